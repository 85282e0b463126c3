package model

import "time"

// UnlimitedCapacity is reported for a slot that has no vehicles yet.
const UnlimitedCapacity = 999

type ScheduleSlot struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	Datetime  time.Time `json:"datetime"` // UTC
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Заполняются репозиторием при загрузке слота
	VehicleAssignments []*VehicleAssignment `json:"vehicle_assignments,omitempty"`
	ChildAssignments   []*ChildAssignment   `json:"child_assignments,omitempty"`
}

type VehicleAssignment struct {
	ID             int64     `json:"id"`
	ScheduleSlotID int64     `json:"schedule_slot_id"`
	VehicleID      int64     `json:"vehicle_id"`
	DriverID       *int64    `json:"driver_id,omitempty"`
	SeatOverride   *int      `json:"seat_override,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	Vehicle *Vehicle `json:"vehicle,omitempty"`
	Driver  *User    `json:"driver,omitempty"`
}

type ChildAssignment struct {
	ID                  int64     `json:"id"`
	ScheduleSlotID      int64     `json:"schedule_slot_id"`
	ChildID             int64     `json:"child_id"`
	VehicleAssignmentID int64     `json:"vehicle_assignment_id"`
	AssignedAt          time.Time `json:"assigned_at"`

	Child *Child `json:"child,omitempty"`
}

// EffectiveCapacity returns the seat override when set, otherwise the vehicle capacity.
func (va *VehicleAssignment) EffectiveCapacity() int {
	if va.SeatOverride != nil {
		return *va.SeatOverride
	}
	if va.Vehicle == nil {
		return 0
	}
	return va.Vehicle.Capacity
}

// TotalCapacity sums effective capacities; a slot without vehicles is unlimited.
func (s *ScheduleSlot) TotalCapacity() int {
	if len(s.VehicleAssignments) == 0 {
		return UnlimitedCapacity
	}
	total := 0
	for _, va := range s.VehicleAssignments {
		total += va.EffectiveCapacity()
	}
	return total
}

// VehicleAssignment finds the assignment with the given id on this slot.
func (s *ScheduleSlot) VehicleAssignment(id int64) *VehicleAssignment {
	for _, va := range s.VehicleAssignments {
		if va.ID == id {
			return va
		}
	}
	return nil
}

// VehicleAssignmentByVehicle finds the assignment of vehicleID on this slot.
func (s *ScheduleSlot) VehicleAssignmentByVehicle(vehicleID int64) *VehicleAssignment {
	for _, va := range s.VehicleAssignments {
		if va.VehicleID == vehicleID {
			return va
		}
	}
	return nil
}

// ChildrenIn counts child assignments attached to the given vehicle assignment.
func (s *ScheduleSlot) ChildrenIn(vehicleAssignmentID int64) int {
	n := 0
	for _, ca := range s.ChildAssignments {
		if ca.VehicleAssignmentID == vehicleAssignmentID {
			n++
		}
	}
	return n
}

// HasChild reports whether childID is already assigned to the slot.
func (s *ScheduleSlot) HasChild(childID int64) bool {
	for _, ca := range s.ChildAssignments {
		if ca.ChildID == childID {
			return true
		}
	}
	return false
}

type ConflictType string

const (
	ConflictCapacityExceeded    ConflictType = "CAPACITY_EXCEEDED"
	ConflictDriverDoubleBooking ConflictType = "DRIVER_DOUBLE_BOOKING"
)

type ChangeType string

const (
	ChangeSlotCreated           ChangeType = "SLOT_CREATED"
	ChangeVehicleAssigned       ChangeType = "VEHICLE_ASSIGNED"
	ChangeVehicleRemoved        ChangeType = "VEHICLE_REMOVED"
	ChangeChildAssigned         ChangeType = "CHILD_ASSIGNED"
	ChangeChildRemoved          ChangeType = "CHILD_REMOVED"
	ChangeDriverAssigned        ChangeType = "DRIVER_ASSIGNED"
	ChangeSeatOverrideUpdated   ChangeType = "SEAT_OVERRIDE_UPDATED"
	ChangeScheduleConfigUpdated ChangeType = "SCHEDULE_CONFIG_UPDATED"
)

// DriverBooking is one vehicle assignment a driver holds at a given instant.
type DriverBooking struct {
	SlotID              int64
	GroupID             int64
	VehicleAssignmentID int64
}

// BookedSlot is a slot with at least one child assigned.
type BookedSlot struct {
	SlotID     int64
	Datetime   time.Time
	ChildCount int
}
