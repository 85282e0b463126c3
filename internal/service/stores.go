package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
)

// Интерфейсы хранилищ, которые нужны сервисам. Реализации на pgx лежат в
// internal/repository, в тестах используются in-memory фейки.

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error)
	SetTelegramChatID(ctx context.Context, userID int64, chatID *int64) error
	FamilyRole(ctx context.Context, userID, familyID int64) (model.FamilyRole, error)
}

type GroupStore interface {
	GetByID(ctx context.Context, id int64) (*model.Group, error)
	Create(ctx context.Context, group *model.Group) error
	ListByUser(ctx context.Context, userID int64) ([]*model.Group, error)
	AddFamily(ctx context.Context, groupID, familyID int64, role model.GroupRole) error
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	HasFamily(ctx context.Context, groupID, familyID int64) (bool, error)
	GetScheduleConfig(ctx context.Context, groupID int64) (*model.ScheduleConfig, error)
	UpsertScheduleConfig(ctx context.Context, cfg *model.ScheduleConfig) error
}

type SlotStore interface {
	GetByID(ctx context.Context, id int64) (*model.ScheduleSlot, error)
	CreateWithVehicle(ctx context.Context, slot *model.ScheduleSlot, va *model.VehicleAssignment) error
	AssignVehicle(ctx context.Context, va *model.VehicleAssignment) error
	RemoveVehicle(ctx context.Context, slotID, vehicleID int64) (slotDeleted bool, err error)
	AssignChild(ctx context.Context, ca *model.ChildAssignment) error
	RemoveChild(ctx context.Context, slotID, childID int64) (bool, error)
	UpdateVehicleDriver(ctx context.Context, vehicleAssignmentID int64, driverID *int64) error
	UpdateSeatOverride(ctx context.Context, vehicleAssignmentID int64, seatOverride *int) error
	GetVehicleAssignmentByID(ctx context.Context, id int64) (*model.VehicleAssignment, error)
	ListByGroupAndRange(ctx context.Context, groupID int64, from, to time.Time) ([]*model.ScheduleSlot, error)
	FindDriverBookingsAt(ctx context.Context, driverID int64, datetime time.Time) ([]model.DriverBooking, error)
	ListBookedSlots(ctx context.Context, groupID int64, from time.Time) ([]model.BookedSlot, error)
}

type VehicleStore interface {
	GetByID(ctx context.Context, id int64) (*model.Vehicle, error)
	Create(ctx context.Context, vehicle *model.Vehicle) error
	ListByFamily(ctx context.Context, familyID int64) ([]*model.Vehicle, error)
}

type ChildStore interface {
	GetByID(ctx context.Context, id int64) (*model.Child, error)
	Create(ctx context.Context, child *model.Child) error
	ListByFamily(ctx context.Context, familyID int64) ([]*model.Child, error)
}

type DashboardStore interface {
	CountGroups(ctx context.Context, userID int64) (int, error)
	CountChildren(ctx context.Context, userID int64) (int, error)
	CountVehicles(ctx context.Context, userID int64) (int, error)
	CountTrips(ctx context.Context, userID int64, from, to time.Time) (int, error)
	ListTrips(ctx context.Context, userID int64, from, to time.Time, limit int) ([]*model.Trip, error)
	ListRecentActivity(ctx context.Context, userID int64, limit int) ([]*model.Activity, error)
}

// Notifier получает события об изменениях. Вызывается синхронно, но
// реализация обязана только поставить событие в очередь.
type Notifier interface {
	NotifyScheduleSlotChange(ctx context.Context, slotID int64, change model.ChangeType, actorID int64) error
	NotifyGroupChange(ctx context.Context, groupID int64, change model.ChangeType, actorID int64) error
}

// FamilyInviter сообщает членам семьи, что семью добавили в группу
type FamilyInviter interface {
	InviteFamily(ctx context.Context, group *model.Group, familyID, inviterID int64) error
}
