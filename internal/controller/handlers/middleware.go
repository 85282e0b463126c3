package handlers

import (
	"context"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// requireUser находит пользователя, к которому привязан чат.
// Возвращает user и true если OK, nil и false если нет.
func (h *Handlers) requireUser(ctx context.Context, m Messenger, update *models.Update) (*model.User, bool) {
	if update.Message == nil {
		return nil, false
	}

	chatID := update.Message.Chat.ID
	user, err := h.users.GetByTelegramChatID(ctx, chatID)
	if err != nil {
		h.logger.Error("Failed to get user", zap.Int64("chat_id", chatID), zap.Error(err))
		h.sendMessage(ctx, m, chatID, "❌ Something went wrong. Please try again later.")
		return nil, false
	}

	if user == nil {
		h.sendMessage(ctx, m, chatID, "❌ This chat is not linked to an account yet. Use /start to get your chat ID.")
		return nil, false
	}

	return user, true
}

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, m Messenger, chatID int64, text string) {
	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
