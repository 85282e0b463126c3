package handlers

import (
	"context"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Messenger is the part of *bot.Bot the handlers use.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
}

type UserFinder interface {
	GetByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error)
}

type DashboardReader interface {
	GetDashboard(ctx context.Context, userID int64) (*service.Dashboard, error)
}

type GroupLister interface {
	ListUserGroups(ctx context.Context, userID int64) ([]*model.Group, error)
}

type ScheduleReader interface {
	GetSchedule(ctx context.Context, groupID int64, start, end *time.Time, actingUserID int64) (*service.GroupSchedule, error)
}

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	users      UserFinder
	dashboards DashboardReader
	groups     GroupLister
	schedules  ScheduleReader
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	users UserFinder,
	dashboards DashboardReader,
	groups GroupLister,
	schedules ScheduleReader,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		users:      users,
		dashboards: dashboards,
		groups:     groups,
		schedules:  schedules,
		logger:     logger,
		now:        time.Now,
	}
}
