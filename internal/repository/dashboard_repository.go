package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DashboardRepository struct {
	pool *pgxpool.Pool
}

func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// Группы, в которых состоит хотя бы одна семья пользователя
const userGroupsSubquery = `
	SELECT gfm.group_id
	FROM group_family_members gfm
	JOIN family_members fm ON fm.family_id = gfm.family_id
	WHERE fm.user_id = $1
`

func (r *DashboardRepository) count(ctx context.Context, name, query string, args ...any) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

func (r *DashboardRepository) CountGroups(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, "groups", `SELECT COUNT(DISTINCT group_id) FROM (`+userGroupsSubquery+`) ug`, userID)
}

func (r *DashboardRepository) CountChildren(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, "children", `
		SELECT COUNT(*) FROM children c
		JOIN family_members fm ON fm.family_id = c.family_id
		WHERE fm.user_id = $1
	`, userID)
}

func (r *DashboardRepository) CountVehicles(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, "vehicles", `
		SELECT COUNT(*) FROM vehicles v
		JOIN family_members fm ON fm.family_id = v.family_id
		WHERE fm.user_id = $1
	`, userID)
}

// CountTrips считает слоты групп пользователя в диапазоне [from, to]
func (r *DashboardRepository) CountTrips(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	return r.count(ctx, "trips", `
		SELECT COUNT(*) FROM schedule_slots s
		WHERE s.group_id IN (`+userGroupsSubquery+`)
		  AND s.datetime >= $2
		  AND s.datetime <= $3
	`, userID, from, to)
}

// ListTrips получает поездки пользователя в диапазоне. limit <= 0 - без ограничения.
func (r *DashboardRepository) ListTrips(ctx context.Context, userID int64, from, to time.Time, limit int) ([]*model.Trip, error) {
	query := `
		SELECT s.id, s.group_id, g.name, s.datetime,
		       (SELECT COUNT(*) FROM schedule_slot_vehicles sv WHERE sv.schedule_slot_id = s.id),
		       (SELECT COUNT(*) FROM schedule_slot_children sc WHERE sc.schedule_slot_id = s.id),
		       COALESCE((
				SELECT SUM(COALESCE(sv.seat_override, v.capacity))
				FROM schedule_slot_vehicles sv
				JOIN vehicles v ON v.id = sv.vehicle_id
				WHERE sv.schedule_slot_id = s.id
		       ), 0),
		       EXISTS (
				SELECT 1 FROM schedule_slot_vehicles sv
				WHERE sv.schedule_slot_id = s.id AND sv.driver_id = $1
		       )
		FROM schedule_slots s
		JOIN groups g ON g.id = s.group_id
		WHERE s.group_id IN (` + userGroupsSubquery + `)
		  AND s.datetime >= $2
		  AND s.datetime <= $3
		ORDER BY s.datetime, s.id
		LIMIT $4
	`

	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := r.pool.Query(ctx, query, userID, from, to, lim)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var trips []*model.Trip
	for rows.Next() {
		var t model.Trip
		err := rows.Scan(
			&t.SlotID,
			&t.GroupID,
			&t.GroupName,
			&t.Datetime,
			&t.VehicleCount,
			&t.ChildCount,
			&t.TotalCapacity,
			&t.IsDriver,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		if t.VehicleCount == 0 {
			t.TotalCapacity = model.UnlimitedCapacity
		}
		trips = append(trips, &t)
	}

	return trips, rows.Err()
}

// ListRecentActivity получает последние события в группах пользователя
func (r *DashboardRepository) ListRecentActivity(ctx context.Context, userID int64, limit int) ([]*model.Activity, error) {
	query := `
		SELECT a.id, a.group_id, a.slot_id, a.user_id, a.action, a.details, a.created_at
		FROM activity_log a
		WHERE a.group_id IN (` + userGroupsSubquery + `)
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent activity: %w", err)
	}
	defer rows.Close()

	var items []*model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.GroupID, &a.SlotID, &a.UserID, &a.Action, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, &a)
	}

	return items, rows.Err()
}
