package model

import "time"

type GroupRole string

const (
	GroupRoleOwner  GroupRole = "OWNER"
	GroupRoleAdmin  GroupRole = "ADMIN"
	GroupRoleMember GroupRole = "MEMBER"
)

// OperatingHours is a local-time window, both ends inclusive.
type OperatingHours struct {
	StartHour string `json:"start_hour"` // HH:MM
	EndHour   string `json:"end_hour"`   // HH:MM
}

type Group struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	FamilyID       int64           `json:"family_id"` // семья-владелец
	Timezone       string          `json:"timezone"`
	OperatingHours *OperatingHours `json:"operating_hours,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// GroupMembership links a family to a group.
type GroupMembership struct {
	GroupID  int64     `json:"group_id"`
	FamilyID int64     `json:"family_id"`
	Role     GroupRole `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
