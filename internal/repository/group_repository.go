package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GroupRepository struct {
	pool *pgxpool.Pool
}

func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

const groupColumns = `g.id, g.name, g.family_id, g.timezone, g.operating_start, g.operating_end, g.created_at`

func scanGroup(row interface{ Scan(...any) error }) (*model.Group, error) {
	var (
		group      model.Group
		start, end *string
	)
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.FamilyID,
		&group.Timezone,
		&start,
		&end,
		&group.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil {
		group.OperatingHours = &model.OperatingHours{StartHour: *start, EndHour: *end}
	}
	return &group, nil
}

// GetByID получает группу по ID
func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*model.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups g WHERE g.id = $1`

	group, err := scanGroup(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group by id: %w", err)
	}

	return group, nil
}

// Create создаёт группу и добавляет семью-владельца
func (r *GroupRepository) Create(ctx context.Context, group *model.Group) error {
	var start, end *string
	if group.OperatingHours != nil {
		start, end = &group.OperatingHours.StartHour, &group.OperatingHours.EndHour
	}

	return base.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO groups (name, family_id, timezone, operating_start, operating_end)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`
		err := tx.QueryRow(ctx, query, group.Name, group.FamilyID, group.Timezone, start, end).
			Scan(&group.ID, &group.CreatedAt)
		if err != nil {
			return fmt.Errorf("create group: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO group_family_members (group_id, family_id, role)
			VALUES ($1, $2, $3)
		`, group.ID, group.FamilyID, model.GroupRoleOwner)
		if err != nil {
			return fmt.Errorf("add owner family: %w", err)
		}
		return nil
	})
}

// ListByUser получает группы, в которых состоит хотя бы одна семья пользователя
func (r *GroupRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Group, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM groups g
		WHERE g.id IN (
			SELECT gfm.group_id
			FROM group_family_members gfm
			JOIN family_members fm ON fm.family_id = gfm.family_id
			WHERE fm.user_id = $1
		)
		ORDER BY g.created_at, g.id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups by user: %w", err)
	}
	defer rows.Close()

	var groups []*model.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

// AddFamily добавляет семью в группу (повторное добавление игнорируется)
func (r *GroupRepository) AddFamily(ctx context.Context, groupID, familyID int64, role model.GroupRole) error {
	query := `
		INSERT INTO group_family_members (group_id, family_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, family_id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, groupID, familyID, role); err != nil {
		return fmt.Errorf("add family to group: %w", err)
	}
	return nil
}

// IsMember проверяет что пользователь состоит в группе через одну из своих семей
func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM group_family_members gfm
			JOIN family_members fm ON fm.family_id = gfm.family_id
			WHERE gfm.group_id = $1 AND fm.user_id = $2
		)
	`

	var ok bool
	if err := r.pool.QueryRow(ctx, query, groupID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}
	return ok, nil
}

// HasFamily проверяет что семья состоит в группе
func (r *GroupRepository) HasFamily(ctx context.Context, groupID, familyID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM group_family_members
			WHERE group_id = $1 AND family_id = $2
		)
	`

	var ok bool
	if err := r.pool.QueryRow(ctx, query, groupID, familyID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check group family: %w", err)
	}
	return ok, nil
}

// GetScheduleConfig получает конфигурацию расписания группы или nil
func (r *GroupRepository) GetScheduleConfig(ctx context.Context, groupID int64) (*model.ScheduleConfig, error) {
	query := `
		SELECT group_id, schedule_hours, updated_at
		FROM group_schedule_configs
		WHERE group_id = $1
	`

	var (
		cfg model.ScheduleConfig
		raw []byte
	)
	err := r.pool.QueryRow(ctx, query, groupID).Scan(&cfg.GroupID, &raw, &cfg.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg.ScheduleHours); err != nil {
		return nil, fmt.Errorf("decode schedule hours: %w", err)
	}

	return &cfg, nil
}

// UpsertScheduleConfig создаёт или заменяет конфигурацию расписания
func (r *GroupRepository) UpsertScheduleConfig(ctx context.Context, cfg *model.ScheduleConfig) error {
	raw, err := json.Marshal(cfg.ScheduleHours)
	if err != nil {
		return fmt.Errorf("encode schedule hours: %w", err)
	}

	query := `
		INSERT INTO group_schedule_configs (group_id, schedule_hours, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (group_id) DO UPDATE
		SET schedule_hours = EXCLUDED.schedule_hours,
		    updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`

	if err := r.pool.QueryRow(ctx, query, cfg.GroupID, string(raw)).Scan(&cfg.UpdatedAt); err != nil {
		return fmt.Errorf("upsert schedule config: %w", err)
	}
	return nil
}

// ListAll получает все группы
func (r *GroupRepository) ListAll(ctx context.Context) ([]*model.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups g ORDER BY g.id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []*model.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

// GroupIDsForUser получает ID групп пользователя (подписки websocket)
func (r *GroupRepository) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	groups, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	return ids, nil
}
