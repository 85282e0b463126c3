package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SlotRepository struct {
	pool *pgxpool.Pool
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

// GetByID получает слот вместе с машинами и детьми
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.ScheduleSlot, error) {
	query := `
		SELECT id, group_id, datetime, created_at, updated_at
		FROM schedule_slots
		WHERE id = $1
	`

	var slot model.ScheduleSlot
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&slot.ID,
		&slot.GroupID,
		&slot.Datetime,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	if err := r.hydrate(ctx, []*model.ScheduleSlot{&slot}); err != nil {
		return nil, err
	}

	return &slot, nil
}

// ListByGroupAndRange получает слоты группы в диапазоне [from, to]
func (r *SlotRepository) ListByGroupAndRange(ctx context.Context, groupID int64, from, to time.Time) ([]*model.ScheduleSlot, error) {
	query := `
		SELECT id, group_id, datetime, created_at, updated_at
		FROM schedule_slots
		WHERE group_id = $1
		  AND datetime >= $2
		  AND datetime <= $3
		ORDER BY datetime, id
	`

	rows, err := r.pool.Query(ctx, query, groupID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.ScheduleSlot
	for rows.Next() {
		var slot model.ScheduleSlot
		if err := rows.Scan(&slot.ID, &slot.GroupID, &slot.Datetime, &slot.CreatedAt, &slot.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, &slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	if err := r.hydrate(ctx, slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// hydrate загружает назначения машин и детей для набора слотов двумя запросами
func (r *SlotRepository) hydrate(ctx context.Context, slots []*model.ScheduleSlot) error {
	if len(slots) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(slots))
	byID := make(map[int64]*model.ScheduleSlot, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
		byID[s.ID] = s
	}

	vaQuery := `
		SELECT sv.id, sv.schedule_slot_id, sv.vehicle_id, sv.driver_id, sv.seat_override, sv.created_at,
		       v.family_id, v.name, v.capacity, v.created_at,
		       u.name, u.email
		FROM schedule_slot_vehicles sv
		JOIN vehicles v ON v.id = sv.vehicle_id
		LEFT JOIN users u ON u.id = sv.driver_id
		WHERE sv.schedule_slot_id = ANY($1)
		ORDER BY sv.id
	`

	rows, err := r.pool.Query(ctx, vaQuery, ids)
	if err != nil {
		return fmt.Errorf("load vehicle assignments: %w", err)
	}
	for rows.Next() {
		var (
			va                     model.VehicleAssignment
			vehicle                model.Vehicle
			driverName, driverMail *string
		)
		err := rows.Scan(
			&va.ID,
			&va.ScheduleSlotID,
			&va.VehicleID,
			&va.DriverID,
			&va.SeatOverride,
			&va.CreatedAt,
			&vehicle.FamilyID,
			&vehicle.Name,
			&vehicle.Capacity,
			&vehicle.CreatedAt,
			&driverName,
			&driverMail,
		)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan vehicle assignment: %w", err)
		}
		vehicle.ID = va.VehicleID
		va.Vehicle = &vehicle
		if va.DriverID != nil && driverName != nil {
			va.Driver = &model.User{ID: *va.DriverID, Name: *driverName}
			if driverMail != nil {
				va.Driver.Email = *driverMail
			}
		}
		slot := byID[va.ScheduleSlotID]
		slot.VehicleAssignments = append(slot.VehicleAssignments, &va)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate vehicle assignments: %w", err)
	}

	caQuery := `
		SELECT sc.id, sc.schedule_slot_id, sc.child_id, sc.vehicle_assignment_id, sc.assigned_at,
		       c.family_id, c.name, c.age, c.created_at
		FROM schedule_slot_children sc
		JOIN children c ON c.id = sc.child_id
		WHERE sc.schedule_slot_id = ANY($1)
		ORDER BY sc.id
	`

	rows, err = r.pool.Query(ctx, caQuery, ids)
	if err != nil {
		return fmt.Errorf("load child assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ca    model.ChildAssignment
			child model.Child
		)
		err := rows.Scan(
			&ca.ID,
			&ca.ScheduleSlotID,
			&ca.ChildID,
			&ca.VehicleAssignmentID,
			&ca.AssignedAt,
			&child.FamilyID,
			&child.Name,
			&child.Age,
			&child.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan child assignment: %w", err)
		}
		child.ID = ca.ChildID
		ca.Child = &child
		slot := byID[ca.ScheduleSlotID]
		slot.ChildAssignments = append(slot.ChildAssignments, &ca)
	}

	return rows.Err()
}

// CreateWithVehicle создаёт слот и первое назначение машины в одной транзакции
func (r *SlotRepository) CreateWithVehicle(ctx context.Context, slot *model.ScheduleSlot, va *model.VehicleAssignment) error {
	return base.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO schedule_slots (group_id, datetime)
			VALUES ($1, $2)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query, slot.GroupID, slot.Datetime).
			Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create slot: %w", err)
		}

		va.ScheduleSlotID = slot.ID
		return insertVehicleAssignment(ctx, tx, va)
	})
}

// AssignVehicle добавляет машину на существующий слот
func (r *SlotRepository) AssignVehicle(ctx context.Context, va *model.VehicleAssignment) error {
	return base.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return assignVehicle(ctx, tx, va)
	})
}

func assignVehicle(ctx context.Context, q base.Querier, va *model.VehicleAssignment) error {
	if err := lockSlot(ctx, q, va.ScheduleSlotID); err != nil {
		return err
	}
	if err := insertVehicleAssignment(ctx, q, va); err != nil {
		return err
	}
	return touchSlot(ctx, q, va.ScheduleSlotID)
}

// lockSlot берёт блокировку строки слота до конца транзакции. Все изменения
// слота идут через неё, поэтому проверки вместимости не гоняются между процессами.
func lockSlot(ctx context.Context, q base.Querier, slotID int64) error {
	var id int64
	err := q.QueryRow(ctx, `SELECT id FROM schedule_slots WHERE id = $1 FOR UPDATE`, slotID).Scan(&id)
	if err != nil {
		if base.IsNotFound(err) {
			return &model.NotFoundError{Entity: "schedule slot", ID: slotID}
		}
		return fmt.Errorf("lock slot: %w", err)
	}
	return nil
}

// lockSlotOfAssignment блокирует слот, которому принадлежит назначение машины
func lockSlotOfAssignment(ctx context.Context, q base.Querier, vehicleAssignmentID int64) (int64, error) {
	var slotID int64
	err := q.QueryRow(ctx, `
		SELECT s.id
		FROM schedule_slots s
		JOIN schedule_slot_vehicles sv ON sv.schedule_slot_id = s.id
		WHERE sv.id = $1
		FOR UPDATE OF s
	`, vehicleAssignmentID).Scan(&slotID)
	if err != nil {
		if base.IsNotFound(err) {
			return 0, &model.NotFoundError{Entity: "vehicle assignment", ID: vehicleAssignmentID}
		}
		return 0, fmt.Errorf("lock slot of vehicle assignment: %w", err)
	}
	return slotID, nil
}

func insertVehicleAssignment(ctx context.Context, q base.Querier, va *model.VehicleAssignment) error {
	query := `
		INSERT INTO schedule_slot_vehicles (schedule_slot_id, vehicle_id, driver_id, seat_override)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query, va.ScheduleSlotID, va.VehicleID, va.DriverID, va.SeatOverride).
		Scan(&va.ID, &va.CreatedAt)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return model.NewValidationError("vehicle %d is already assigned to this slot", va.VehicleID)
		}
		return fmt.Errorf("insert vehicle assignment: %w", err)
	}
	return nil
}

// RemoveVehicle снимает машину со слота (дети этой машины снимаются каскадно).
// Если машин не осталось, слот удаляется. Возвращает true, если слот удалён.
func (r *SlotRepository) RemoveVehicle(ctx context.Context, slotID, vehicleID int64) (bool, error) {
	var slotDeleted bool

	err := base.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockSlot(ctx, tx, slotID); err != nil {
			return err
		}

		affected, err := base.ExecAffected(ctx, tx, `
			DELETE FROM schedule_slot_vehicles
			WHERE schedule_slot_id = $1 AND vehicle_id = $2
		`, slotID, vehicleID)
		if err != nil {
			return fmt.Errorf("delete vehicle assignment: %w", err)
		}
		if affected == 0 {
			return &model.NotFoundError{Entity: "vehicle assignment for vehicle", ID: vehicleID}
		}

		var remaining int
		err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM schedule_slot_vehicles WHERE schedule_slot_id = $1`, slotID).
			Scan(&remaining)
		if err != nil {
			return fmt.Errorf("count vehicle assignments: %w", err)
		}

		if remaining == 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM schedule_slots WHERE id = $1`, slotID); err != nil {
				return fmt.Errorf("delete slot: %w", err)
			}
			slotDeleted = true
			return nil
		}

		return touchSlot(ctx, tx, slotID)
	})
	if err != nil {
		return false, err
	}

	return slotDeleted, nil
}

// AssignChild сажает ребёнка в машину. Вставка условная: если в машине не
// осталось мест или ребёнок уже в слоте, возвращается ConflictError.
func (r *SlotRepository) AssignChild(ctx context.Context, ca *model.ChildAssignment) error {
	return base.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return assignChild(ctx, tx, ca)
	})
}

func assignChild(ctx context.Context, q base.Querier, ca *model.ChildAssignment) error {
	if err := lockSlot(ctx, q, ca.ScheduleSlotID); err != nil {
		return err
	}

	query := `
		INSERT INTO schedule_slot_children (schedule_slot_id, child_id, vehicle_assignment_id)
		SELECT $1, $2, sv.id
		FROM schedule_slot_vehicles sv
		JOIN vehicles v ON v.id = sv.vehicle_id
		WHERE sv.id = $3
		  AND sv.schedule_slot_id = $1
		  AND (
			SELECT COUNT(*) FROM schedule_slot_children sc
			WHERE sc.vehicle_assignment_id = sv.id
		  ) < COALESCE(sv.seat_override, v.capacity)
		ON CONFLICT (schedule_slot_id, child_id) DO NOTHING
		RETURNING id, assigned_at
	`
	err := q.QueryRow(ctx, query, ca.ScheduleSlotID, ca.ChildID, ca.VehicleAssignmentID).
		Scan(&ca.ID, &ca.AssignedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return &model.ConflictError{
				Type:    model.ConflictCapacityExceeded,
				Message: fmt.Sprintf("vehicle assignment %d has no seats left", ca.VehicleAssignmentID),
			}
		}
		return fmt.Errorf("assign child: %w", err)
	}
	return touchSlot(ctx, q, ca.ScheduleSlotID)
}

// RemoveChild убирает ребёнка из слота. Возвращает false, если его там не было.
func (r *SlotRepository) RemoveChild(ctx context.Context, slotID, childID int64) (bool, error) {
	var removed bool

	err := base.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockSlot(ctx, tx, slotID); err != nil {
			return err
		}

		affected, err := base.ExecAffected(ctx, tx, `
			DELETE FROM schedule_slot_children
			WHERE schedule_slot_id = $1 AND child_id = $2
		`, slotID, childID)
		if err != nil {
			return fmt.Errorf("delete child assignment: %w", err)
		}
		removed = affected > 0
		if !removed {
			return nil
		}
		return touchSlot(ctx, tx, slotID)
	})

	return removed, err
}

// UpdateVehicleDriver меняет водителя назначения
func (r *SlotRepository) UpdateVehicleDriver(ctx context.Context, id int64, driverID *int64) error {
	return base.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		slotID, err := lockSlotOfAssignment(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE schedule_slot_vehicles SET driver_id = $2 WHERE id = $1`, id, driverID); err != nil {
			return fmt.Errorf("update vehicle driver: %w", err)
		}
		return touchSlot(ctx, tx, slotID)
	})
}

// UpdateSeatOverride меняет число мест. Обновление условное: новое значение
// не может быть меньше числа уже посаженных детей.
func (r *SlotRepository) UpdateSeatOverride(ctx context.Context, id int64, seatOverride *int) error {
	return base.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return updateSeatOverride(ctx, tx, id, seatOverride)
	})
}

func updateSeatOverride(ctx context.Context, q base.Querier, id int64, seatOverride *int) error {
	slotID, err := lockSlotOfAssignment(ctx, q, id)
	if err != nil {
		return err
	}

	affected, err := base.ExecAffected(ctx, q, `
		UPDATE schedule_slot_vehicles sv SET seat_override = $2
		FROM vehicles v
		WHERE sv.id = $1
		  AND v.id = sv.vehicle_id
		  AND (
			SELECT COUNT(*) FROM schedule_slot_children sc
			WHERE sc.vehicle_assignment_id = sv.id
		  ) <= COALESCE($2::int, v.capacity)
	`, id, seatOverride)
	if err != nil {
		return fmt.Errorf("update seat override: %w", err)
	}
	if affected == 0 {
		return &model.ConflictError{
			Type:    model.ConflictCapacityExceeded,
			Message: fmt.Sprintf("vehicle assignment %d has more children than the new seat count", id),
		}
	}
	return touchSlot(ctx, q, slotID)
}

// GetVehicleAssignmentByID получает назначение машины (без слота) или nil
func (r *SlotRepository) GetVehicleAssignmentByID(ctx context.Context, id int64) (*model.VehicleAssignment, error) {
	query := `
		SELECT id, schedule_slot_id, vehicle_id, driver_id, seat_override, created_at
		FROM schedule_slot_vehicles
		WHERE id = $1
	`

	var va model.VehicleAssignment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&va.ID,
		&va.ScheduleSlotID,
		&va.VehicleID,
		&va.DriverID,
		&va.SeatOverride,
		&va.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get vehicle assignment: %w", err)
	}

	return &va, nil
}

// FindDriverBookingsAt находит все назначения водителя на точно такое же время (во всех группах)
func (r *SlotRepository) FindDriverBookingsAt(ctx context.Context, driverID int64, datetime time.Time) ([]model.DriverBooking, error) {
	query := `
		SELECT s.id, s.group_id, sv.id
		FROM schedule_slot_vehicles sv
		JOIN schedule_slots s ON s.id = sv.schedule_slot_id
		WHERE sv.driver_id = $1
		  AND s.datetime = $2
		ORDER BY sv.id
	`

	rows, err := r.pool.Query(ctx, query, driverID, datetime)
	if err != nil {
		return nil, fmt.Errorf("find driver bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.DriverBooking
	for rows.Next() {
		var b model.DriverBooking
		if err := rows.Scan(&b.SlotID, &b.GroupID, &b.VehicleAssignmentID); err != nil {
			return nil, fmt.Errorf("scan driver booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// ListBookedSlots получает слоты группы начиная с from, на которые записан хотя бы один ребёнок
func (r *SlotRepository) ListBookedSlots(ctx context.Context, groupID int64, from time.Time) ([]model.BookedSlot, error) {
	query := `
		SELECT s.id, s.datetime, COUNT(sc.id)
		FROM schedule_slots s
		JOIN schedule_slot_children sc ON sc.schedule_slot_id = s.id
		WHERE s.group_id = $1
		  AND s.datetime >= $2
		GROUP BY s.id, s.datetime
		ORDER BY s.datetime
	`

	rows, err := r.pool.Query(ctx, query, groupID, from)
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	defer rows.Close()

	var booked []model.BookedSlot
	for rows.Next() {
		var b model.BookedSlot
		if err := rows.Scan(&b.SlotID, &b.Datetime, &b.ChildCount); err != nil {
			return nil, fmt.Errorf("scan booked slot: %w", err)
		}
		booked = append(booked, b)
	}

	return booked, rows.Err()
}

func touchSlot(ctx context.Context, q base.Querier, slotID int64) error {
	if _, err := q.Exec(ctx, `UPDATE schedule_slots SET updated_at = NOW() WHERE id = $1`, slotID); err != nil {
		return fmt.Errorf("touch slot: %w", err)
	}
	return nil
}
