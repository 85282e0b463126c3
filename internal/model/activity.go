package model

import "time"

type Activity struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	SlotID    *int64    `json:"slot_id,omitempty"`
	UserID    *int64    `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}
