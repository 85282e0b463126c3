package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"go.uber.org/zap"
)

type UserService struct {
	users  UserStore
	logger *zap.Logger
}

func NewUserService(users UserStore, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// GetByID получает пользователя по ID
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetByTelegramChatID получает пользователя по привязанному Telegram чату
func (s *UserService) GetByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error) {
	return s.users.GetByTelegramChatID(ctx, chatID)
}

// LinkTelegram привязывает (или отвязывает при chatID == nil) Telegram чат к пользователю
func (s *UserService) LinkTelegram(ctx context.Context, userID int64, chatID *int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, &model.NotFoundError{Entity: "user", ID: userID}
	}

	if chatID != nil {
		owner, err := s.users.GetByTelegramChatID(ctx, *chatID)
		if err != nil {
			return nil, fmt.Errorf("check telegram chat: %w", err)
		}
		if owner != nil && owner.ID != userID {
			return nil, model.NewValidationError("telegram chat %d is already linked to another user", *chatID)
		}
	}

	if err := s.users.SetTelegramChatID(ctx, userID, chatID); err != nil {
		return nil, fmt.Errorf("update telegram chat: %w", err)
	}
	user.TelegramChatID = chatID

	s.logger.Info("Telegram chat linked",
		zap.Int64("user_id", userID),
		zap.Bool("linked", chatID != nil),
	)

	return user, nil
}
