package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"go.uber.org/zap"
)

const maxVehicleCapacity = 50

type FamilyService struct {
	users    UserStore
	children ChildStore
	vehicles VehicleStore
	logger   *zap.Logger
}

func NewFamilyService(users UserStore, children ChildStore, vehicles VehicleStore, logger *zap.Logger) *FamilyService {
	return &FamilyService{
		users:    users,
		children: children,
		vehicles: vehicles,
		logger:   logger,
	}
}

// AddChild добавляет ребёнка в семью
func (s *FamilyService) AddChild(ctx context.Context, familyID int64, name string, age *int, actingUserID int64) (*model.Child, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewValidationError("child name is required")
	}
	if age != nil && (*age < 0 || *age > 18) {
		return nil, model.NewValidationError("child age must be between 0 and 18")
	}
	if err := requireFamilyMember(ctx, s.users, actingUserID, familyID); err != nil {
		return nil, err
	}

	child := &model.Child{FamilyID: familyID, Name: name, Age: age}
	if err := s.children.Create(ctx, child); err != nil {
		return nil, fmt.Errorf("create child: %w", err)
	}

	s.logger.Info("Child added",
		zap.Int64("child_id", child.ID),
		zap.Int64("family_id", familyID),
	)
	return child, nil
}

// ListChildren получает детей семьи
func (s *FamilyService) ListChildren(ctx context.Context, familyID, actingUserID int64) ([]*model.Child, error) {
	if err := requireFamilyMember(ctx, s.users, actingUserID, familyID); err != nil {
		return nil, err
	}
	children, err := s.children.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	if children == nil {
		children = []*model.Child{}
	}
	return children, nil
}

// AddVehicle добавляет машину семьи
func (s *FamilyService) AddVehicle(ctx context.Context, familyID int64, name string, capacity int, actingUserID int64) (*model.Vehicle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewValidationError("vehicle name is required")
	}
	if capacity < 1 || capacity > maxVehicleCapacity {
		return nil, model.NewValidationError("vehicle capacity must be between 1 and %d", maxVehicleCapacity)
	}
	if err := requireFamilyMember(ctx, s.users, actingUserID, familyID); err != nil {
		return nil, err
	}

	vehicle := &model.Vehicle{FamilyID: familyID, Name: name, Capacity: capacity}
	if err := s.vehicles.Create(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("create vehicle: %w", err)
	}

	s.logger.Info("Vehicle added",
		zap.Int64("vehicle_id", vehicle.ID),
		zap.Int64("family_id", familyID),
		zap.Int("capacity", capacity),
	)
	return vehicle, nil
}

// ListVehicles получает машины семьи
func (s *FamilyService) ListVehicles(ctx context.Context, familyID, actingUserID int64) ([]*model.Vehicle, error) {
	if err := requireFamilyMember(ctx, s.users, actingUserID, familyID); err != nil {
		return nil, err
	}
	vehicles, err := s.vehicles.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	if vehicles == nil {
		vehicles = []*model.Vehicle{}
	}
	return vehicles, nil
}
