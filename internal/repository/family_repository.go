package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VehicleRepository struct {
	pool *pgxpool.Pool
}

func NewVehicleRepository(pool *pgxpool.Pool) *VehicleRepository {
	return &VehicleRepository{pool: pool}
}

// GetByID получает машину по ID
func (r *VehicleRepository) GetByID(ctx context.Context, id int64) (*model.Vehicle, error) {
	query := `
		SELECT id, family_id, name, capacity, created_at
		FROM vehicles
		WHERE id = $1
	`

	var v model.Vehicle
	err := r.pool.QueryRow(ctx, query, id).Scan(&v.ID, &v.FamilyID, &v.Name, &v.Capacity, &v.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get vehicle by id: %w", err)
	}

	return &v, nil
}

// Create создаёт машину семьи
func (r *VehicleRepository) Create(ctx context.Context, v *model.Vehicle) error {
	query := `
		INSERT INTO vehicles (family_id, name, capacity)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	if err := r.pool.QueryRow(ctx, query, v.FamilyID, v.Name, v.Capacity).Scan(&v.ID, &v.CreatedAt); err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

// ListByFamily получает машины семьи
func (r *VehicleRepository) ListByFamily(ctx context.Context, familyID int64) ([]*model.Vehicle, error) {
	query := `
		SELECT id, family_id, name, capacity, created_at
		FROM vehicles
		WHERE family_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.FamilyID, &v.Name, &v.Capacity, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, &v)
	}

	return vehicles, rows.Err()
}

type ChildRepository struct {
	pool *pgxpool.Pool
}

func NewChildRepository(pool *pgxpool.Pool) *ChildRepository {
	return &ChildRepository{pool: pool}
}

// GetByID получает ребёнка по ID
func (r *ChildRepository) GetByID(ctx context.Context, id int64) (*model.Child, error) {
	query := `
		SELECT id, family_id, name, age, created_at
		FROM children
		WHERE id = $1
	`

	var c model.Child
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.FamilyID, &c.Name, &c.Age, &c.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get child by id: %w", err)
	}

	return &c, nil
}

// Create создаёт ребёнка в семье
func (r *ChildRepository) Create(ctx context.Context, c *model.Child) error {
	query := `
		INSERT INTO children (family_id, name, age)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	if err := r.pool.QueryRow(ctx, query, c.FamilyID, c.Name, c.Age).Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("create child: %w", err)
	}
	return nil
}

// ListByFamily получает детей семьи
func (r *ChildRepository) ListByFamily(ctx context.Context, familyID int64) ([]*model.Child, error) {
	query := `
		SELECT id, family_id, name, age, created_at
		FROM children
		WHERE family_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []*model.Child
	for rows.Next() {
		var c model.Child
		if err := rows.Scan(&c.ID, &c.FamilyID, &c.Name, &c.Age, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, &c)
	}

	return children, rows.Err()
}
