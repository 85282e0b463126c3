package service

import (
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"go.uber.org/zap"
)

type DriverRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ChildRef struct {
	AssignmentID        int64  `json:"assignment_id"`
	ChildID             int64  `json:"child_id"`
	Name                string `json:"name"`
	VehicleAssignmentID int64  `json:"vehicle_assignment_id"`
}

type VehicleDetails struct {
	AssignmentID      int64      `json:"assignment_id"`
	VehicleID         int64      `json:"vehicle_id"`
	Name              string     `json:"name"`
	Capacity          int        `json:"capacity"`
	SeatOverride      *int       `json:"seat_override,omitempty"`
	EffectiveCapacity int        `json:"effective_capacity"`
	Driver            *DriverRef `json:"driver,omitempty"`
	Children          []ChildRef `json:"children"`
}

// SlotDetails is the presentation view of a slot with computed capacity.
type SlotDetails struct {
	ID             int64            `json:"id"`
	GroupID        int64            `json:"group_id"`
	Datetime       time.Time        `json:"datetime"`
	Vehicles       []VehicleDetails `json:"vehicles"`
	Children       []ChildRef       `json:"children"`
	TotalCapacity  int              `json:"total_capacity"`
	ChildCount     int              `json:"child_count"`
	AvailableSeats int              `json:"available_seats"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// BuildSlotDetails считает вместимость и свободные места.
// Назначения детей без существующего назначения машины пропускаются с предупреждением.
func BuildSlotDetails(slot *model.ScheduleSlot, logger *zap.Logger) *SlotDetails {
	details := &SlotDetails{
		ID:            slot.ID,
		GroupID:       slot.GroupID,
		Datetime:      slot.Datetime.UTC(),
		Vehicles:      make([]VehicleDetails, 0, len(slot.VehicleAssignments)),
		Children:      make([]ChildRef, 0, len(slot.ChildAssignments)),
		TotalCapacity: slot.TotalCapacity(),
		CreatedAt:     slot.CreatedAt,
		UpdatedAt:     slot.UpdatedAt,
	}

	byAssignment := make(map[int64]int, len(slot.VehicleAssignments))
	for _, va := range slot.VehicleAssignments {
		vd := VehicleDetails{
			AssignmentID:      va.ID,
			VehicleID:         va.VehicleID,
			SeatOverride:      va.SeatOverride,
			EffectiveCapacity: va.EffectiveCapacity(),
			Children:          []ChildRef{},
		}
		if va.Vehicle != nil {
			vd.Name = va.Vehicle.Name
			vd.Capacity = va.Vehicle.Capacity
		}
		if va.Driver != nil {
			vd.Driver = &DriverRef{ID: va.Driver.ID, Name: va.Driver.Name}
		} else if va.DriverID != nil {
			vd.Driver = &DriverRef{ID: *va.DriverID}
		}
		byAssignment[va.ID] = len(details.Vehicles)
		details.Vehicles = append(details.Vehicles, vd)
	}

	for _, ca := range slot.ChildAssignments {
		idx, ok := byAssignment[ca.VehicleAssignmentID]
		if !ok {
			logger.Warn("Skipping child assignment without vehicle assignment",
				zap.Int64("slot_id", slot.ID),
				zap.Int64("child_assignment_id", ca.ID),
				zap.Int64("vehicle_assignment_id", ca.VehicleAssignmentID))
			continue
		}

		ref := ChildRef{
			AssignmentID:        ca.ID,
			ChildID:             ca.ChildID,
			VehicleAssignmentID: ca.VehicleAssignmentID,
		}
		if ca.Child != nil {
			ref.Name = ca.Child.Name
		}
		details.Children = append(details.Children, ref)
		details.Vehicles[idx].Children = append(details.Vehicles[idx].Children, ref)
	}

	details.ChildCount = len(details.Children)
	details.AvailableSeats = details.TotalCapacity - details.ChildCount

	return details
}
