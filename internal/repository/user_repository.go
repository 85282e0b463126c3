package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `u.id, u.email, u.name, COALESCE(u.timezone, ''), u.telegram_chat_id, u.created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Timezone,
		&user.TelegramChatID,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create создаёт нового пользователя
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (email, name, timezone)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query, user.Email, user.Name, user.Timezone).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

// GetByTelegramChatID получает пользователя по привязанному чату
func (r *UserRepository) GetByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.telegram_chat_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, chatID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by telegram chat id: %w", err)
	}

	return user, nil
}

// SetTelegramChatID привязывает или отвязывает (nil) Telegram чат
func (r *UserRepository) SetTelegramChatID(ctx context.Context, userID int64, chatID *int64) error {
	query := `UPDATE users SET telegram_chat_id = $2 WHERE id = $1`

	affected, err := base.ExecAffected(ctx, r.pool, query, userID, chatID)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return model.NewValidationError("telegram chat is already linked to another user")
		}
		return fmt.Errorf("set telegram chat id: %w", err)
	}
	if affected == 0 {
		return &model.NotFoundError{Entity: "user", ID: userID}
	}

	return nil
}

// FamilyRole возвращает роль пользователя в семье или пустую строку
func (r *UserRepository) FamilyRole(ctx context.Context, userID, familyID int64) (model.FamilyRole, error) {
	query := `SELECT role FROM family_members WHERE user_id = $1 AND family_id = $2`

	var role model.FamilyRole
	err := r.pool.QueryRow(ctx, query, userID, familyID).Scan(&role)
	if err != nil {
		if base.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("get family role: %w", err)
	}

	return role, nil
}

// ListGroupMembers получает всех пользователей семей, состоящих в группе
func (r *UserRepository) ListGroupMembers(ctx context.Context, groupID int64) ([]*model.User, error) {
	query := `
		SELECT DISTINCT ` + userColumns + `
		FROM users u
		JOIN family_members fm ON fm.user_id = u.id
		JOIN group_family_members gfm ON gfm.family_id = fm.family_id
		WHERE gfm.group_id = $1
		ORDER BY u.id
	`

	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// ListFamilyMembers получает всех пользователей семьи
func (r *UserRepository) ListFamilyMembers(ctx context.Context, familyID int64) ([]*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN family_members fm ON fm.user_id = u.id
		WHERE fm.family_id = $1
		ORDER BY u.id
	`

	rows, err := r.pool.Query(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
