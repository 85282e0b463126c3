package handlers

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/render"
	"github.com/Freeeeeet/schoolrun/internal/service"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const helpText = "📚 Commands:\n\n" +
	"/start - Link this chat to your account\n" +
	"/trips - Today's and upcoming trips\n" +
	"/week - This week's schedule as an image\n" +
	"/help - Show this help"

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.start(ctx, b, update)
}

func (h *Handlers) start(ctx context.Context, m Messenger, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user, err := h.users.GetByTelegramChatID(ctx, chatID)
	if err != nil {
		h.logger.Error("Failed to look up chat", zap.Int64("chat_id", chatID), zap.Error(err))
		h.sendMessage(ctx, m, chatID, "❌ Something went wrong. Please try again later.")
		return
	}

	if user == nil {
		h.sendMessage(ctx, m, chatID, fmt.Sprintf(
			"👋 Welcome to Schoolrun!\n\n"+
				"Your chat ID is %d.\n"+
				"Enter it in the app under Settings → Telegram to receive trip updates here.",
			chatID,
		))
		return
	}

	h.sendMessage(ctx, m, chatID, fmt.Sprintf("👋 Hi, %s! This chat is linked.\n\n%s", user.Name, helpText))
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText)
}

// HandleTrips показывает поездки на сегодня и ближайшие
func (h *Handlers) HandleTrips(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.trips(ctx, b, update)
}

func (h *Handlers) trips(ctx context.Context, m Messenger, update *models.Update) {
	user, ok := h.requireUser(ctx, m, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	d, err := h.dashboards.GetDashboard(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to load dashboard", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, m, chatID, "❌ Could not load your trips. Please try again later.")
		return
	}

	h.sendMessage(ctx, m, chatID, FormatTrips(d, userLocation(user)))
}

// HandleWeek отправляет картинку недели первой группы пользователя
func (h *Handlers) HandleWeek(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.week(ctx, b, update)
}

func (h *Handlers) week(ctx context.Context, m Messenger, update *models.Update) {
	user, ok := h.requireUser(ctx, m, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	groups, err := h.groups.ListUserGroups(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to list groups", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, m, chatID, "❌ Could not load your groups. Please try again later.")
		return
	}
	if len(groups) == 0 {
		h.sendMessage(ctx, m, chatID, "📭 You are not in any carpool group yet.")
		return
	}
	group := groups[0]

	schedule, err := h.schedules.GetSchedule(ctx, group.ID, nil, nil, user.ID)
	if err != nil {
		h.logger.Error("Failed to load schedule", zap.Int64("group_id", group.ID), zap.Error(err))
		h.sendMessage(ctx, m, chatID, "❌ Could not load the schedule. Please try again later.")
		return
	}

	loc, err := timeutil.LoadLocation(schedule.Timezone)
	if err != nil {
		loc = time.UTC
	}

	imageData, err := render.WeekImage(render.WeekInput{
		Title:     group.Name,
		WeekStart: schedule.StartDate,
		Location:  loc,
		Slots:     schedule.Slots,
		Now:       h.now(),
	})
	if err != nil {
		h.logger.Error("Failed to render week image", zap.Int64("group_id", group.ID), zap.Error(err))
		h.sendMessage(ctx, m, chatID, "❌ Could not draw the schedule.")
		return
	}

	_, err = m.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: "week.png", Data: bytes.NewReader(imageData)},
		Caption: fmt.Sprintf("🗓 %s: %d trip(s) this week", group.Name, len(schedule.Slots)),
	})
	if err != nil {
		h.logger.Error("Failed to send week image", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// FormatTrips форматирует поездки дашборда для сообщения
func FormatTrips(d *service.Dashboard, loc *time.Location) string {
	var sb strings.Builder

	sb.WriteString("🚗 Today\n")
	writeTripSection(&sb, d.TodayTrips, loc, "No trips today.")

	sb.WriteString("\n📅 Upcoming\n")
	writeTripSection(&sb, d.UpcomingTrips, loc, "Nothing planned for the next 7 days.")

	return sb.String()
}

func writeTripSection(sb *strings.Builder, sec service.Section[[]*model.Trip], loc *time.Location, empty string) {
	if !sec.Available {
		sb.WriteString("⚠️ Temporarily unavailable\n")
		return
	}
	if len(sec.Data) == 0 {
		sb.WriteString(empty + "\n")
		return
	}
	for _, trip := range sec.Data {
		sb.WriteString(formatTrip(trip, loc))
		sb.WriteString("\n")
	}
}

func formatTrip(trip *model.Trip, loc *time.Location) string {
	line := fmt.Sprintf("• %s %s, %d/%d seats",
		trip.Datetime.In(loc).Format("Mon 02.01 15:04"),
		trip.GroupName,
		trip.ChildCount,
		trip.TotalCapacity)
	if trip.VehicleCount == 0 {
		line = fmt.Sprintf("• %s %s, no car yet",
			trip.Datetime.In(loc).Format("Mon 02.01 15:04"),
			trip.GroupName)
	}
	if trip.IsDriver {
		line += " 🧑‍✈️ you drive"
	}
	return line
}

func userLocation(u *model.User) *time.Location {
	loc, err := timeutil.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
