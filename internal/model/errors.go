package model

import (
	"fmt"
	"strings"
)

// ValidationError is returned for malformed or out-of-range input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// PastDateError rejects mutations of slots that already happened.
type PastDateError struct {
	Message string
}

func (e *PastDateError) Error() string { return e.Message }

// NotConfiguredError means the local weekday/time is absent from the group config.
type NotConfiguredError struct {
	Weekday Weekday
	Time    string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("time %s is not configured for %s", e.Time, e.Weekday)
}

// NoConfigError means the group has no schedule config at all.
type NoConfigError struct {
	GroupID int64
}

func (e *NoConfigError) Error() string {
	return fmt.Sprintf("group %d has no schedule configuration", e.GroupID)
}

// ConflictError is returned when a mutation would break capacity or driver rules.
type ConflictError struct {
	Type    ConflictType
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// SlotInUse describes a configured time that still has bookings.
type SlotInUse struct {
	Weekday    Weekday `json:"weekday"`
	Time       string  `json:"time"`
	ChildCount int     `json:"child_count"`
}

type SlotsInUseError struct {
	Conflicts []SlotInUse
}

func (e *SlotsInUseError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s %s (%d children)", c.Weekday, c.Time, c.ChildCount))
	}
	return "cannot remove time slots with bookings: " + strings.Join(parts, ", ")
}
