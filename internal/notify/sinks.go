package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/email"
	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
	"github.com/Freeeeeet/schoolrun/internal/websocket"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type MemberLister interface {
	ListGroupMembers(ctx context.Context, groupID int64) ([]*model.User, error)
}

type GroupReader interface {
	GetByID(ctx context.Context, id int64) (*model.Group, error)
}

// --- websocket ---

type Broadcaster interface {
	BroadcastToGroup(groupID int64, msg websocket.Message) (int, error)
}

type WebsocketSink struct {
	hub Broadcaster
}

func NewWebsocketSink(hub Broadcaster) *WebsocketSink {
	return &WebsocketSink{hub: hub}
}

func (s *WebsocketSink) Name() string { return "websocket" }

func (s *WebsocketSink) Deliver(_ context.Context, ev Event) error {
	msg := websocket.Message{
		Type:    string(ev.Type),
		EventID: ev.ID,
		GroupID: ev.GroupID,
		SlotID:  ev.SlotID,
		ActorID: ev.ActorID,
	}
	if ev.Slot != nil {
		msg.Payload = ev.Slot
	}
	_, err := s.hub.BroadcastToGroup(ev.GroupID, msg)
	return err
}

// --- activity log ---

type ActivityWriter interface {
	Create(ctx context.Context, a *model.Activity) error
}

type ActivitySink struct {
	store ActivityWriter
}

func NewActivitySink(store ActivityWriter) *ActivitySink {
	return &ActivitySink{store: store}
}

func (s *ActivitySink) Name() string { return "activity" }

func (s *ActivitySink) Deliver(ctx context.Context, ev Event) error {
	a := &model.Activity{
		GroupID: ev.GroupID,
		Action:  string(ev.Type),
		Details: describe(ev),
	}
	if ev.SlotID != 0 {
		a.SlotID = &ev.SlotID
	}
	if ev.ActorID != 0 {
		a.UserID = &ev.ActorID
	}
	return s.store.Create(ctx, a)
}

func describe(ev Event) string {
	if ev.Slot == nil {
		return string(ev.Type)
	}
	return fmt.Sprintf("%s %s: %d/%d seats taken",
		ev.Type,
		ev.Slot.Datetime.UTC().Format(time.RFC3339),
		ev.Slot.ChildCount,
		ev.Slot.TotalCapacity)
}

// recipients возвращает участников группы кроме автора изменения
func recipients(ctx context.Context, members MemberLister, ev Event) ([]*model.User, error) {
	users, err := members.ListGroupMembers(ctx, ev.GroupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	out := make([]*model.User, 0, len(users))
	for _, u := range users {
		if u.ID != ev.ActorID {
			out = append(out, u)
		}
	}
	return out, nil
}

// --- telegram ---

// TelegramSender is satisfied by *bot.Bot.
type TelegramSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type TelegramSink struct {
	sender  TelegramSender
	members MemberLister
	groups  GroupReader
	logger  *zap.Logger
}

func NewTelegramSink(sender TelegramSender, members MemberLister, groups GroupReader, logger *zap.Logger) *TelegramSink {
	return &TelegramSink{sender: sender, members: members, groups: groups, logger: logger}
}

func (s *TelegramSink) Name() string { return "telegram" }

// Deliver отправляет сообщение всем привязанным чатам. Ошибка возвращается,
// только если не удалось доставить ни одному получателю.
func (s *TelegramSink) Deliver(ctx context.Context, ev Event) error {
	users, err := recipients(ctx, s.members, ev)
	if err != nil {
		return err
	}

	group, err := s.groups.GetByID(ctx, ev.GroupID)
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}
	groupName := fmt.Sprintf("group %d", ev.GroupID)
	if group != nil {
		groupName = group.Name
	}

	var (
		attempted int
		errs      []error
	)
	for _, u := range users {
		if u.TelegramChatID == nil {
			continue
		}
		attempted++

		_, err := s.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: *u.TelegramChatID,
			Text:   FormatTelegram(ev, groupName, userLocation(u)),
		})
		if err != nil {
			s.logger.Warn("Failed to send telegram notification",
				zap.Int64("user_id", u.ID),
				zap.String("event_id", ev.ID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	if attempted > 0 && len(errs) == attempted {
		return errors.Join(errs...)
	}
	return nil
}

var changeLabels = map[model.ChangeType]string{
	model.ChangeSlotCreated:           "🆕 New trip",
	model.ChangeVehicleAssigned:       "🚗 Vehicle added",
	model.ChangeVehicleRemoved:        "🚫 Vehicle removed",
	model.ChangeChildAssigned:         "🧒 Child added",
	model.ChangeChildRemoved:          "👋 Child removed",
	model.ChangeDriverAssigned:        "🧑‍✈️ Driver assigned",
	model.ChangeSeatOverrideUpdated:   "💺 Seats changed",
	model.ChangeScheduleConfigUpdated: "🗓 Schedule times changed",
}

// FormatTelegram форматирует событие для сообщения в Telegram
func FormatTelegram(ev Event, groupName string, loc *time.Location) string {
	label, ok := changeLabels[ev.Type]
	if !ok {
		label = string(ev.Type)
	}

	text := fmt.Sprintf("%s\n👥 %s", label, groupName)
	if ev.Slot != nil {
		text += fmt.Sprintf("\n📅 %s\n💺 %d/%d seats taken",
			ev.Slot.Datetime.In(loc).Format("Mon 02.01 15:04"),
			ev.Slot.ChildCount,
			ev.Slot.TotalCapacity)
	}
	return text
}

func userLocation(u *model.User) *time.Location {
	loc, err := timeutil.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// --- email ---

type SlotMailer interface {
	SendSlotChange(ctx context.Context, to email.Recipient, c email.SlotChange) error
}

type UserReader interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type EmailSink struct {
	mailer  SlotMailer
	members MemberLister
	groups  GroupReader
	users   UserReader
	logger  *zap.Logger
}

func NewEmailSink(mailer SlotMailer, members MemberLister, groups GroupReader, users UserReader, logger *zap.Logger) *EmailSink {
	return &EmailSink{mailer: mailer, members: members, groups: groups, users: users, logger: logger}
}

func (s *EmailSink) Name() string { return "email" }

// Deliver отправляет письма об изменении поездки. События группы без слота
// в почту не уходят.
func (s *EmailSink) Deliver(ctx context.Context, ev Event) error {
	if ev.Slot == nil {
		return nil
	}

	users, err := recipients(ctx, s.members, ev)
	if err != nil {
		return err
	}

	change := email.SlotChange{
		GroupID:   ev.GroupID,
		SlotID:    ev.SlotID,
		Datetime:  ev.Slot.Datetime,
		Change:    string(ev.Type),
		ActorName: "Someone",
		Children:  ev.Slot.ChildCount,
		Capacity:  ev.Slot.TotalCapacity,
	}
	if group, err := s.groups.GetByID(ctx, ev.GroupID); err == nil && group != nil {
		change.GroupName = group.Name
	}
	if ev.ActorID != 0 {
		if actor, err := s.users.GetByID(ctx, ev.ActorID); err == nil && actor != nil {
			change.ActorName = actor.Name
		}
	}

	var (
		attempted int
		errs      []error
	)
	for _, u := range users {
		if u.Email == "" {
			continue
		}
		attempted++

		err := s.mailer.SendSlotChange(ctx, email.Recipient{
			Email:    u.Email,
			Name:     u.Name,
			Timezone: userLocation(u),
		}, change)
		if err != nil {
			s.logger.Warn("Failed to send email notification",
				zap.Int64("user_id", u.ID),
				zap.String("event_id", ev.ID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	if attempted > 0 && len(errs) == attempted {
		return errors.Join(errs...)
	}
	return nil
}
