package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivityRepository struct {
	pool *pgxpool.Pool
}

func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Create записывает событие в журнал активности группы
func (r *ActivityRepository) Create(ctx context.Context, a *model.Activity) error {
	query := `
		INSERT INTO activity_log (group_id, slot_id, user_id, action, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query, a.GroupID, a.SlotID, a.UserID, a.Action, a.Details).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}

	return nil
}
