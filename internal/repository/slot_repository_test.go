package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingQuerier запоминает SQL в порядке выполнения и отвечает заготовками
type recordingQuerier struct {
	statements []string
	// rowErr возвращает ошибку Scan для запроса, nil - успешный ответ
	rowErr   func(sql string) error
	affected int64
}

func (q *recordingQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	q.statements = append(q.statements, sql)
	return pgconn.NewCommandTag("UPDATE " + strconv.FormatInt(q.affected, 10)), nil
}

func (q *recordingQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.statements = append(q.statements, sql)
	return nil, errors.New("not supported")
}

func (q *recordingQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	q.statements = append(q.statements, sql)
	var err error
	if q.rowErr != nil {
		err = q.rowErr(sql)
	}
	return fakeRow{err: err}
}

func (q *recordingQuerier) locksFirst(t *testing.T) {
	t.Helper()
	require.NotEmpty(t, q.statements)
	assert.Contains(t, q.statements[0], "FOR UPDATE", "slot must be locked before anything else")
	for _, sql := range q.statements[1:] {
		assert.NotContains(t, sql, "FOR UPDATE")
	}
}

type fakeRow struct{ err error }

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for _, d := range dest {
		switch v := d.(type) {
		case *int64:
			*v = 50
		case *time.Time:
			*v = time.Date(2050, 1, 1, 0, 0, 0, 0, time.UTC)
		}
	}
	return nil
}

func TestAssignChildLocksSlot(t *testing.T) {
	ctx := context.Background()

	q := &recordingQuerier{}
	ca := &model.ChildAssignment{ScheduleSlotID: 50, ChildID: 40, VehicleAssignmentID: 51}
	require.NoError(t, assignChild(ctx, q, ca))
	q.locksFirst(t)
	assert.Len(t, q.statements, 3)
	assert.Contains(t, q.statements[1], "INSERT INTO schedule_slot_children")

	// Нет мест: условная вставка не вернула строку
	q = &recordingQuerier{rowErr: func(sql string) error {
		if strings.Contains(sql, "INSERT") {
			return pgx.ErrNoRows
		}
		return nil
	}}
	err := assignChild(ctx, q, ca)
	var conflict *model.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, model.ConflictCapacityExceeded, conflict.Type)
	q.locksFirst(t)
}

func TestAssignVehicleLocksSlot(t *testing.T) {
	q := &recordingQuerier{}
	va := &model.VehicleAssignment{ScheduleSlotID: 50, VehicleID: 31}
	require.NoError(t, assignVehicle(context.Background(), q, va))
	q.locksFirst(t)
	assert.Contains(t, q.statements[1], "INSERT INTO schedule_slot_vehicles")
}

func TestUpdateSeatOverrideLocksSlot(t *testing.T) {
	ctx := context.Background()
	seats := 2

	q := &recordingQuerier{affected: 1}
	require.NoError(t, updateSeatOverride(ctx, q, 51, &seats))
	q.locksFirst(t)
	assert.Contains(t, q.statements[0], "FOR UPDATE OF s")
	assert.Contains(t, q.statements[1], "UPDATE schedule_slot_vehicles")

	q = &recordingQuerier{affected: 0}
	err := updateSeatOverride(ctx, q, 51, &seats)
	var conflict *model.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Len(t, q.statements, 2, "slot is not touched after a rejected update")
}

func TestLockSlotNotFound(t *testing.T) {
	ctx := context.Background()
	q := &recordingQuerier{rowErr: func(string) error { return pgx.ErrNoRows }}

	var notFound *model.NotFoundError
	require.ErrorAs(t, lockSlot(ctx, q, 50), &notFound)
	assert.Equal(t, "schedule slot", notFound.Entity)

	_, err := lockSlotOfAssignment(ctx, q, 51)
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "vehicle assignment", notFound.Entity)

	q = &recordingQuerier{rowErr: func(string) error { return errors.New("connection reset") }}
	err = lockSlot(ctx, q, 50)
	require.Error(t, err)
	assert.NotErrorAs(t, err, &notFound)
}
