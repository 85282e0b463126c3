package model

import "time"

type FamilyRole string

const (
	FamilyRoleAdmin  FamilyRole = "ADMIN"
	FamilyRoleMember FamilyRole = "MEMBER"
)

type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// FamilyMember links a user to a family with a role.
type FamilyMember struct {
	FamilyID int64      `json:"family_id"`
	UserID   int64      `json:"user_id"`
	Role     FamilyRole `json:"role"`
}

type Child struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Name      string    `json:"name"`
	Age       *int      `json:"age,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Vehicle struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}
