package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMessenger struct {
	texts  []string
	photos []*bot.SendPhotoParams
}

func (f *fakeMessenger) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.texts = append(f.texts, p.Text)
	return &models.Message{}, nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, p *bot.SendPhotoParams) (*models.Message, error) {
	f.photos = append(f.photos, p)
	return &models.Message{}, nil
}

type fakeUsers map[int64]*model.User

func (u fakeUsers) GetByTelegramChatID(_ context.Context, chatID int64) (*model.User, error) {
	return u[chatID], nil
}

type fakeDashboards struct {
	d   *service.Dashboard
	err error
}

func (f fakeDashboards) GetDashboard(context.Context, int64) (*service.Dashboard, error) {
	return f.d, f.err
}

type fakeGroups []*model.Group

func (g fakeGroups) ListUserGroups(context.Context, int64) ([]*model.Group, error) { return g, nil }

type fakeSchedules struct{ schedule *service.GroupSchedule }

func (f fakeSchedules) GetSchedule(context.Context, int64, *time.Time, *time.Time, int64) (*service.GroupSchedule, error) {
	return f.schedule, nil
}

const linkedChat = int64(555)

func message(chatID int64) *models.Update {
	return &models.Update{Message: &models.Message{Chat: models.Chat{ID: chatID}}}
}

func newHandlers(d fakeDashboards, groups fakeGroups, schedules fakeSchedules) *Handlers {
	users := fakeUsers{linkedChat: {ID: 1, Name: "Marie", Timezone: "Europe/Paris"}}
	h := NewHandlers(users, d, groups, schedules, zap.NewNop())
	h.now = func() time.Time { return time.Date(2050, 1, 11, 9, 0, 0, 0, time.UTC) }
	return h
}

func TestStartUnlinkedShowsChatID(t *testing.T) {
	m := &fakeMessenger{}
	newHandlers(fakeDashboards{}, nil, fakeSchedules{}).start(context.Background(), m, message(999))

	require.Len(t, m.texts, 1)
	assert.Contains(t, m.texts[0], "Your chat ID is 999")
}

func TestStartLinkedGreetsUser(t *testing.T) {
	m := &fakeMessenger{}
	newHandlers(fakeDashboards{}, nil, fakeSchedules{}).start(context.Background(), m, message(linkedChat))

	require.Len(t, m.texts, 1)
	assert.Contains(t, m.texts[0], "Hi, Marie")
}

func TestTripsRequiresLinkedChat(t *testing.T) {
	m := &fakeMessenger{}
	newHandlers(fakeDashboards{}, nil, fakeSchedules{}).trips(context.Background(), m, message(999))

	require.Len(t, m.texts, 1)
	assert.Contains(t, m.texts[0], "not linked")
}

func TestTripsFormatsInUserTimezone(t *testing.T) {
	d := &service.Dashboard{
		TodayTrips: service.Section[[]*model.Trip]{Available: true, Data: []*model.Trip{
			{GroupName: "Morning run", Datetime: time.Date(2050, 1, 11, 6, 30, 0, 0, time.UTC),
				VehicleCount: 1, ChildCount: 2, TotalCapacity: 4, IsDriver: true},
		}},
		UpcomingTrips: service.Section[[]*model.Trip]{Available: false, Error: "boom"},
	}
	m := &fakeMessenger{}
	newHandlers(fakeDashboards{d: d}, nil, fakeSchedules{}).trips(context.Background(), m, message(linkedChat))

	require.Len(t, m.texts, 1)
	assert.Contains(t, m.texts[0], "Tue 11.01 07:30 Morning run, 2/4 seats")
	assert.Contains(t, m.texts[0], "you drive")
	assert.Contains(t, m.texts[0], "Temporarily unavailable")
}

func TestTripsDashboardError(t *testing.T) {
	m := &fakeMessenger{}
	newHandlers(fakeDashboards{err: errors.New("db down")}, nil, fakeSchedules{}).trips(context.Background(), m, message(linkedChat))

	require.Len(t, m.texts, 1)
	assert.Contains(t, m.texts[0], "Could not load your trips")
}

func TestWeekSendsImage(t *testing.T) {
	schedule := &service.GroupSchedule{
		GroupID:   20,
		Timezone:  "Europe/Paris",
		StartDate: time.Date(2050, 1, 9, 23, 0, 0, 0, time.UTC),
		Slots:     []*service.SlotDetails{{ID: 5, Datetime: time.Date(2050, 1, 10, 6, 30, 0, 0, time.UTC)}},
	}
	m := &fakeMessenger{}
	newHandlers(fakeDashboards{}, fakeGroups{{ID: 20, Name: "Morning run"}}, fakeSchedules{schedule: schedule}).
		week(context.Background(), m, message(linkedChat))

	require.Len(t, m.photos, 1)
	assert.Equal(t, linkedChat, m.photos[0].ChatID)
	assert.Contains(t, m.photos[0].Caption, "Morning run: 1 trip(s)")
}

func TestWeekWithoutGroups(t *testing.T) {
	m := &fakeMessenger{}
	newHandlers(fakeDashboards{}, fakeGroups{}, fakeSchedules{}).week(context.Background(), m, message(linkedChat))

	assert.Empty(t, m.photos)
	require.Len(t, m.texts, 1)
	assert.Contains(t, m.texts[0], "not in any carpool group")
}
