package model

import "time"

// Trip is a slot as seen from one user's dashboard.
type Trip struct {
	SlotID        int64     `json:"slot_id"`
	GroupID       int64     `json:"group_id"`
	GroupName     string    `json:"group_name"`
	Datetime      time.Time `json:"datetime"`
	VehicleCount  int       `json:"vehicle_count"`
	ChildCount    int       `json:"child_count"`
	TotalCapacity int       `json:"total_capacity"`
	IsDriver      bool      `json:"is_driver"`
}
