package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
	"go.uber.org/zap"
)

type SlotService struct {
	slots    SlotStore
	groups   GroupStore
	users    UserStore
	vehicles VehicleStore
	children ChildStore
	config   *ScheduleConfigService
	notifier Notifier
	locks    *slotLocks
	logger   *zap.Logger
	now      func() time.Time
}

func NewSlotService(
	slots SlotStore,
	groups GroupStore,
	users UserStore,
	vehicles VehicleStore,
	children ChildStore,
	config *ScheduleConfigService,
	notifier Notifier,
	logger *zap.Logger,
) *SlotService {
	return &SlotService{
		slots:    slots,
		groups:   groups,
		users:    users,
		vehicles: vehicles,
		children: children,
		config:   config,
		notifier: notifier,
		locks:    newSlotLocks(),
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock подменяет источник текущего времени (для тестов)
func (s *SlotService) WithClock(now func() time.Time) *SlotService {
	s.now = now
	return s
}

type CreateSlotInput struct {
	GroupID      int64
	Datetime     time.Time
	VehicleID    int64
	DriverID     *int64
	SeatOverride *int
	ActingUserID int64
}

type AssignVehicleInput struct {
	SlotID       int64
	VehicleID    int64
	DriverID     *int64
	SeatOverride *int
	ActingUserID int64
}

// RemoveVehicleResult describes the slot after a vehicle left it.
type RemoveVehicleResult struct {
	SlotDeleted bool         `json:"slot_deleted"`
	Slot        *SlotDetails `json:"slot,omitempty"`
}

// GroupSchedule is a group's slots within a date range.
type GroupSchedule struct {
	GroupID   int64          `json:"group_id"`
	Timezone  string         `json:"timezone"`
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	Slots     []*SlotDetails `json:"schedule_slots"`
}

// CreateSlotWithVehicle создаёт слот и сразу назначает на него машину.
// Все проверки выполняются до записи в БД.
func (s *SlotService) CreateSlotWithVehicle(ctx context.Context, in CreateSlotInput) (*SlotDetails, error) {
	group, err := loadGroup(ctx, s.groups, in.GroupID)
	if err != nil {
		return nil, err
	}
	if err := requireGroupMember(ctx, s.groups, in.GroupID, in.ActingUserID); err != nil {
		return nil, err
	}

	if err := validateSeatOverride(in.SeatOverride); err != nil {
		return nil, err
	}

	vehicle, err := s.vehicles.GetByID(ctx, in.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, &model.NotFoundError{Entity: "vehicle", ID: in.VehicleID}
	}
	if err := requireGroupFamily(ctx, s.groups, in.GroupID, vehicle.FamilyID, "vehicle"); err != nil {
		return nil, err
	}
	if in.DriverID != nil {
		if err := requireGroupDriver(ctx, s.users, s.groups, in.GroupID, *in.DriverID); err != nil {
			return nil, err
		}
	}

	tz := resolveTimezone(ctx, s.users, in.ActingUserID, group, s.logger)
	if err := s.rejectPast(in.Datetime, tz); err != nil {
		return nil, err
	}

	if err := s.config.ValidateScheduleTime(ctx, in.GroupID, in.Datetime, tz); err != nil {
		return nil, err
	}

	if in.DriverID != nil {
		if err := s.checkDriverAvailable(ctx, *in.DriverID, in.Datetime, 0); err != nil {
			return nil, err
		}
	}

	slot := &model.ScheduleSlot{
		GroupID:  in.GroupID,
		Datetime: in.Datetime.UTC(),
	}
	va := &model.VehicleAssignment{
		VehicleID:    in.VehicleID,
		DriverID:     in.DriverID,
		SeatOverride: in.SeatOverride,
	}
	if err := s.slots.CreateWithVehicle(ctx, slot, va); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.logger.Info("Schedule slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("group_id", in.GroupID),
		zap.Time("datetime", slot.Datetime),
		zap.Int64("vehicle_id", in.VehicleID),
		zap.Int64("user_id", in.ActingUserID),
	)

	s.notify(ctx, slot.ID, model.ChangeSlotCreated, in.ActingUserID)

	return s.mustDetails(ctx, slot.ID)
}

// AssignVehicleToSlot назначает машину (и опционально водителя) на существующий слот
func (s *SlotService) AssignVehicleToSlot(ctx context.Context, in AssignVehicleInput) (*SlotDetails, error) {
	unlock := s.locks.Lock(in.SlotID)
	defer unlock()

	slot, err := s.loadMutableSlot(ctx, in.SlotID, in.ActingUserID)
	if err != nil {
		return nil, err
	}

	if err := validateSeatOverride(in.SeatOverride); err != nil {
		return nil, err
	}

	vehicle, err := s.vehicles.GetByID(ctx, in.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, &model.NotFoundError{Entity: "vehicle", ID: in.VehicleID}
	}
	if err := requireGroupFamily(ctx, s.groups, slot.GroupID, vehicle.FamilyID, "vehicle"); err != nil {
		return nil, err
	}
	if slot.VehicleAssignmentByVehicle(in.VehicleID) != nil {
		return nil, model.NewValidationError("vehicle %d is already assigned to this slot", in.VehicleID)
	}

	if in.DriverID != nil {
		if err := requireGroupDriver(ctx, s.users, s.groups, slot.GroupID, *in.DriverID); err != nil {
			return nil, err
		}
		if err := s.checkDriverAvailable(ctx, *in.DriverID, slot.Datetime, 0); err != nil {
			return nil, err
		}
	}

	va := &model.VehicleAssignment{
		ScheduleSlotID: slot.ID,
		VehicleID:      in.VehicleID,
		DriverID:       in.DriverID,
		SeatOverride:   in.SeatOverride,
	}
	if err := s.slots.AssignVehicle(ctx, va); err != nil {
		return nil, fmt.Errorf("assign vehicle: %w", err)
	}

	s.logger.Info("Vehicle assigned to slot",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("vehicle_id", in.VehicleID),
		zap.Int64("vehicle_assignment_id", va.ID),
	)

	s.checkIntegrity(ctx, slot.ID)
	s.notify(ctx, slot.ID, model.ChangeVehicleAssigned, in.ActingUserID)

	return s.mustDetails(ctx, slot.ID)
}

// RemoveVehicleFromSlot снимает машину со слота. Если это была последняя машина,
// слот удаляется целиком.
func (s *SlotService) RemoveVehicleFromSlot(ctx context.Context, slotID, vehicleID, actingUserID int64) (*RemoveVehicleResult, error) {
	unlock := s.locks.Lock(slotID)
	defer unlock()

	slot, err := s.loadMutableSlot(ctx, slotID, actingUserID)
	if err != nil {
		return nil, err
	}

	if slot.VehicleAssignmentByVehicle(vehicleID) == nil {
		return nil, &model.NotFoundError{Entity: "vehicle assignment for vehicle", ID: vehicleID}
	}

	// Уведомляем до удаления, чтобы в снимке слота ещё была машина
	s.notify(ctx, slotID, model.ChangeVehicleRemoved, actingUserID)

	deleted, err := s.slots.RemoveVehicle(ctx, slotID, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("remove vehicle: %w", err)
	}

	s.logger.Info("Vehicle removed from slot",
		zap.Int64("slot_id", slotID),
		zap.Int64("vehicle_id", vehicleID),
		zap.Bool("slot_deleted", deleted),
	)

	if deleted {
		return &RemoveVehicleResult{SlotDeleted: true}, nil
	}

	s.checkIntegrity(ctx, slotID)

	details, err := s.mustDetails(ctx, slotID)
	if err != nil {
		return nil, err
	}
	return &RemoveVehicleResult{Slot: details}, nil
}

// AssignChildToSlot сажает ребёнка в конкретную машину слота
func (s *SlotService) AssignChildToSlot(ctx context.Context, slotID, childID, vehicleAssignmentID, actingUserID int64) (*SlotDetails, error) {
	unlock := s.locks.Lock(slotID)
	defer unlock()

	slot, err := s.loadMutableSlot(ctx, slotID, actingUserID)
	if err != nil {
		return nil, err
	}

	child, err := s.children.GetByID(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	if child == nil {
		return nil, &model.NotFoundError{Entity: "child", ID: childID}
	}
	if err := requireGroupFamily(ctx, s.groups, slot.GroupID, child.FamilyID, "child"); err != nil {
		return nil, err
	}
	if slot.HasChild(childID) {
		return nil, model.NewValidationError("child %d is already assigned to this slot", childID)
	}

	va := slot.VehicleAssignment(vehicleAssignmentID)
	if va == nil {
		return nil, model.NewValidationError("vehicle assignment %d does not belong to slot %d", vehicleAssignmentID, slotID)
	}

	if slot.ChildrenIn(va.ID) >= va.EffectiveCapacity() {
		return nil, &model.ConflictError{
			Type:    model.ConflictCapacityExceeded,
			Message: fmt.Sprintf("vehicle assignment %d has no seats left", va.ID),
		}
	}
	if len(slot.ChildAssignments) >= slot.TotalCapacity() {
		return nil, &model.ConflictError{
			Type:    model.ConflictCapacityExceeded,
			Message: fmt.Sprintf("slot %d has no seats left", slotID),
		}
	}

	ca := &model.ChildAssignment{
		ScheduleSlotID:      slotID,
		ChildID:             childID,
		VehicleAssignmentID: va.ID,
	}
	if err := s.slots.AssignChild(ctx, ca); err != nil {
		return nil, fmt.Errorf("assign child: %w", err)
	}

	s.logger.Info("Child assigned to slot",
		zap.Int64("slot_id", slotID),
		zap.Int64("child_id", childID),
		zap.Int64("vehicle_assignment_id", va.ID),
	)

	s.notify(ctx, slotID, model.ChangeChildAssigned, actingUserID)

	return s.mustDetails(ctx, slotID)
}

// RemoveChildFromSlot убирает ребёнка из слота
func (s *SlotService) RemoveChildFromSlot(ctx context.Context, slotID, childID, actingUserID int64) (*SlotDetails, error) {
	unlock := s.locks.Lock(slotID)
	defer unlock()

	slot, err := s.loadMutableSlot(ctx, slotID, actingUserID)
	if err != nil {
		return nil, err
	}
	if !slot.HasChild(childID) {
		return nil, &model.NotFoundError{Entity: "child assignment for child", ID: childID}
	}

	removed, err := s.slots.RemoveChild(ctx, slotID, childID)
	if err != nil {
		return nil, fmt.Errorf("remove child: %w", err)
	}

	s.logger.Info("Child removed from slot",
		zap.Int64("slot_id", slotID),
		zap.Int64("child_id", childID),
		zap.Bool("removed", removed),
	)

	if removed {
		s.checkIntegrity(ctx, slotID)
		s.notify(ctx, slotID, model.ChangeChildRemoved, actingUserID)
	}

	return s.mustDetails(ctx, slotID)
}

// UpdateVehicleDriver меняет (или снимает, если driverID == nil) водителя машины в слоте
func (s *SlotService) UpdateVehicleDriver(ctx context.Context, vehicleAssignmentID int64, driverID *int64, actingUserID int64) (*SlotDetails, error) {
	va, err := s.loadVehicleAssignment(ctx, vehicleAssignmentID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(va.ScheduleSlotID)
	defer unlock()

	slot, err := s.loadMutableSlot(ctx, va.ScheduleSlotID, actingUserID)
	if err != nil {
		return nil, err
	}

	if driverID != nil {
		if err := requireGroupDriver(ctx, s.users, s.groups, slot.GroupID, *driverID); err != nil {
			return nil, err
		}
		if err := s.checkDriverAvailable(ctx, *driverID, slot.Datetime, vehicleAssignmentID); err != nil {
			return nil, err
		}
	}

	if err := s.slots.UpdateVehicleDriver(ctx, vehicleAssignmentID, driverID); err != nil {
		return nil, fmt.Errorf("update vehicle driver: %w", err)
	}

	s.logger.Info("Vehicle driver updated",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("vehicle_assignment_id", vehicleAssignmentID),
		zap.Int64p("driver_id", driverID),
	)

	s.checkIntegrity(ctx, slot.ID)
	if driverID != nil {
		s.notify(ctx, slot.ID, model.ChangeDriverAssigned, actingUserID)
	}

	return s.mustDetails(ctx, slot.ID)
}

// UpdateSeatOverride меняет (или сбрасывает) число мест машины в конкретном слоте
func (s *SlotService) UpdateSeatOverride(ctx context.Context, vehicleAssignmentID int64, seatOverride *int, actingUserID int64) (*SlotDetails, error) {
	if err := validateSeatOverride(seatOverride); err != nil {
		return nil, err
	}

	va, err := s.loadVehicleAssignment(ctx, vehicleAssignmentID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(va.ScheduleSlotID)
	defer unlock()

	slot, err := s.loadMutableSlot(ctx, va.ScheduleSlotID, actingUserID)
	if err != nil {
		return nil, err
	}

	current := slot.VehicleAssignment(vehicleAssignmentID)
	if current == nil {
		return nil, &model.NotFoundError{Entity: "vehicle assignment", ID: vehicleAssignmentID}
	}

	next := *current
	next.SeatOverride = seatOverride
	if seated := slot.ChildrenIn(vehicleAssignmentID); seated > next.EffectiveCapacity() {
		return nil, &model.ConflictError{
			Type: model.ConflictCapacityExceeded,
			Message: fmt.Sprintf("%d children are already assigned, cannot reduce seats to %d",
				seated, next.EffectiveCapacity()),
		}
	}

	if err := s.slots.UpdateSeatOverride(ctx, vehicleAssignmentID, seatOverride); err != nil {
		return nil, fmt.Errorf("update seat override: %w", err)
	}

	s.logger.Info("Seat override updated",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("vehicle_assignment_id", vehicleAssignmentID),
		zap.Intp("seat_override", seatOverride),
	)

	s.checkIntegrity(ctx, slot.ID)
	s.notify(ctx, slot.ID, model.ChangeSeatOverrideUpdated, actingUserID)

	return s.mustDetails(ctx, slot.ID)
}

// GetScheduleSlotDetails возвращает слот с рассчитанной вместимостью или nil
func (s *SlotService) GetScheduleSlotDetails(ctx context.Context, slotID int64) (*SlotDetails, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, nil
	}
	return BuildSlotDetails(slot, s.logger), nil
}

// GetScheduleSlotForUser то же, что GetScheduleSlotDetails, но проверяет членство в группе
func (s *SlotService) GetScheduleSlotForUser(ctx context.Context, slotID, userID int64) (*SlotDetails, error) {
	details, err := s.GetScheduleSlotDetails(ctx, slotID)
	if err != nil || details == nil {
		return details, err
	}
	if err := requireGroupMember(ctx, s.groups, details.GroupID, userID); err != nil {
		return nil, err
	}
	return details, nil
}

// GetSchedule возвращает слоты группы за период. Без периода берётся текущая
// неделя в часовом поясе группы.
func (s *SlotService) GetSchedule(ctx context.Context, groupID int64, start, end *time.Time, actingUserID int64) (*GroupSchedule, error) {
	group, err := loadGroup(ctx, s.groups, groupID)
	if err != nil {
		return nil, err
	}
	if err := requireGroupMember(ctx, s.groups, groupID, actingUserID); err != nil {
		return nil, err
	}

	tz := group.Timezone
	if tz == "" {
		tz = "UTC"
	}

	var from, to time.Time
	switch {
	case start == nil && end == nil:
		week, err := timeutil.WeekBoundaries(s.now(), tz)
		if err != nil {
			return nil, err
		}
		from, to = week.Start, week.End
	case start != nil && end == nil:
		from = *start
		to = from.Add(7*24*time.Hour - time.Millisecond)
	case start == nil && end != nil:
		to = *end
		from = to.Add(-7*24*time.Hour + time.Millisecond)
	default:
		from, to = *start, *end
	}
	if to.Before(from) {
		return nil, model.NewValidationError("end date must not be before start date")
	}

	slots, err := s.slots.ListByGroupAndRange(ctx, groupID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	result := &GroupSchedule{
		GroupID:   groupID,
		Timezone:  tz,
		StartDate: from.UTC(),
		EndDate:   to.UTC(),
		Slots:     make([]*SlotDetails, 0, len(slots)),
	}
	for _, slot := range slots {
		result.Slots = append(result.Slots, BuildSlotDetails(slot, s.logger))
	}

	return result, nil
}

// ValidateSlotConflicts возвращает список конфликтов слота (пустой, если их нет)
func (s *SlotService) ValidateSlotConflicts(ctx context.Context, slotID int64) ([]model.ConflictType, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, &model.NotFoundError{Entity: "schedule slot", ID: slotID}
	}
	return s.conflictsOf(ctx, slot)
}

func (s *SlotService) conflictsOf(ctx context.Context, slot *model.ScheduleSlot) ([]model.ConflictType, error) {
	conflicts := []model.ConflictType{}

	details := BuildSlotDetails(slot, s.logger)
	if details.ChildCount > details.TotalCapacity {
		conflicts = append(conflicts, model.ConflictCapacityExceeded)
	}

	checked := make(map[int64]struct{})
	for _, va := range slot.VehicleAssignments {
		if va.DriverID == nil {
			continue
		}
		driverID := *va.DriverID
		if _, ok := checked[driverID]; ok {
			continue
		}
		checked[driverID] = struct{}{}

		bookings, err := s.slots.FindDriverBookingsAt(ctx, driverID, slot.Datetime)
		if err != nil {
			return nil, fmt.Errorf("find driver bookings: %w", err)
		}

		sameGroup := 0
		for _, b := range bookings {
			if b.GroupID == slot.GroupID {
				sameGroup++
			}
		}
		if sameGroup > 1 {
			conflicts = append(conflicts, model.ConflictDriverDoubleBooking)
			break
		}
	}

	return conflicts, nil
}

// loadMutableSlot загружает слот для изменения: существует, пользователь
// состоит в группе, слот не в прошлом
func (s *SlotService) loadMutableSlot(ctx context.Context, slotID, actingUserID int64) (*model.ScheduleSlot, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, &model.NotFoundError{Entity: "schedule slot", ID: slotID}
	}

	group, err := loadGroup(ctx, s.groups, slot.GroupID)
	if err != nil {
		return nil, err
	}
	if err := requireGroupMember(ctx, s.groups, group.ID, actingUserID); err != nil {
		return nil, err
	}

	tz := resolveTimezone(ctx, s.users, actingUserID, group, s.logger)
	if err := s.rejectPast(slot.Datetime, tz); err != nil {
		return nil, err
	}

	return slot, nil
}

func (s *SlotService) loadVehicleAssignment(ctx context.Context, id int64) (*model.VehicleAssignment, error) {
	va, err := s.slots.GetVehicleAssignmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get vehicle assignment: %w", err)
	}
	if va == nil {
		return nil, &model.NotFoundError{Entity: "vehicle assignment", ID: id}
	}
	return va, nil
}

func (s *SlotService) rejectPast(instant time.Time, tz string) error {
	past, err := timeutil.IsInPast(instant, tz, s.now())
	if err != nil {
		return err
	}
	if past {
		return &model.PastDateError{
			Message: fmt.Sprintf("cannot modify a trip in the past (%s)", instant.UTC().Format(time.RFC3339)),
		}
	}
	return nil
}

// checkDriverAvailable проверяет что водитель не занят в это же время.
// exceptAssignmentID исключает текущее назначение при смене водителя.
func (s *SlotService) checkDriverAvailable(ctx context.Context, driverID int64, datetime time.Time, exceptAssignmentID int64) error {
	bookings, err := s.slots.FindDriverBookingsAt(ctx, driverID, datetime)
	if err != nil {
		return fmt.Errorf("find driver bookings: %w", err)
	}
	for _, b := range bookings {
		if b.VehicleAssignmentID == exceptAssignmentID {
			continue
		}
		return &model.ConflictError{
			Type:    model.ConflictDriverDoubleBooking,
			Message: fmt.Sprintf("driver %d is already driving at %s", driverID, datetime.UTC().Format(time.RFC3339)),
		}
	}
	return nil
}

// checkIntegrity пересчитывает конфликты после изменения и логирует их
func (s *SlotService) checkIntegrity(ctx context.Context, slotID int64) {
	conflicts, err := s.ValidateSlotConflicts(ctx, slotID)
	if err != nil {
		s.logger.Warn("Slot integrity check failed", zap.Int64("slot_id", slotID), zap.Error(err))
		return
	}
	if len(conflicts) > 0 {
		s.logger.Warn("Slot has conflicts after mutation",
			zap.Int64("slot_id", slotID),
			zap.Any("conflicts", conflicts))
	}
}

// notify ставит событие в очередь; ошибки только логируются
func (s *SlotService) notify(ctx context.Context, slotID int64, change model.ChangeType, actorID int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyScheduleSlotChange(ctx, slotID, change, actorID); err != nil {
		s.logger.Warn("Failed to queue slot notification",
			zap.Int64("slot_id", slotID),
			zap.String("change", string(change)),
			zap.Error(err))
	}
}

func (s *SlotService) mustDetails(ctx context.Context, slotID int64) (*SlotDetails, error) {
	details, err := s.GetScheduleSlotDetails(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, &model.NotFoundError{Entity: "schedule slot", ID: slotID}
	}
	return details, nil
}

func validateSeatOverride(seatOverride *int) error {
	if seatOverride != nil && *seatOverride <= 0 {
		return model.NewValidationError("seat override must be a positive number, got %d", *seatOverride)
	}
	return nil
}
