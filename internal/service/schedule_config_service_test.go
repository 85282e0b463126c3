package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/schedule"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withoutTime(hours model.ScheduleHours, day model.Weekday, hhmm string) model.ScheduleHours {
	out := make(model.ScheduleHours, len(hours))
	for d, times := range hours {
		for _, t := range times {
			if d == day && t == hhmm {
				continue
			}
			out[d] = append(out[d], t)
		}
	}
	return out
}

func TestUpdateScheduleConfigBlockedByBookings(t *testing.T) {
	ctx := context.Background()
	f := newSlotFixture(t, fixedNow)

	// Понедельник 07:00 по Парижу, двое детей
	f.db.addSlot(50, testGroup, time.Date(2050, 1, 10, 6, 0, 0, 0, time.UTC))
	f.db.addVA(51, 50, testCar, nil, nil)
	f.db.addCA(50, 40, 51)
	f.db.addCA(50, 41, 51)

	_, err := f.config.UpdateScheduleConfig(ctx, testGroup, withoutTime(schedule.DefaultHours(), model.Monday, "07:00"), testUser)

	var inUse *model.SlotsInUseError
	require.ErrorAs(t, err, &inUse)
	require.Len(t, inUse.Conflicts, 1)
	assert.Equal(t, model.SlotInUse{Weekday: model.Monday, Time: "07:00", ChildCount: 2}, inUse.Conflicts[0])
	assert.Contains(t, inUse.Error(), "MONDAY 07:00")

	cfg, err := f.config.GetScheduleConfig(ctx, testGroup, testUser)
	require.NoError(t, err)
	assert.True(t, cfg.Has(model.Monday, "07:00"), "config must stay unchanged")
	assert.Empty(t, f.notifier.changes())
}

func TestUpdateScheduleConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("removing unbooked time succeeds", func(t *testing.T) {
		f := newSlotFixture(t, fixedNow)
		// Слот без детей не блокирует удаление времени
		f.db.addSlot(50, testGroup, time.Date(2050, 1, 10, 6, 0, 0, 0, time.UTC))
		f.db.addVA(51, 50, testCar, nil, nil)

		hours := withoutTime(schedule.DefaultHours(), model.Monday, "07:00")
		hours[model.Saturday] = []string{"10:00", "09:00"}

		cfg, err := f.config.UpdateScheduleConfig(ctx, testGroup, hours, testUser)
		require.NoError(t, err)
		assert.False(t, cfg.Has(model.Monday, "07:00"))
		assert.Equal(t, []string{"09:00", "10:00"}, cfg.ScheduleHours[model.Saturday])
		assert.Equal(t, []model.ChangeType{model.ChangeScheduleConfigUpdated}, f.notifier.changes())
	})

	t.Run("past bookings do not block", func(t *testing.T) {
		f := newSlotFixture(t, fixedNow)
		f.db.addSlot(50, testGroup, time.Date(2024, 1, 8, 6, 0, 0, 0, time.UTC))
		f.db.addVA(51, 50, testCar, nil, nil)
		f.db.addCA(50, 40, 51)

		_, err := f.config.UpdateScheduleConfig(ctx, testGroup, withoutTime(schedule.DefaultHours(), model.Monday, "07:00"), testUser)
		assert.NoError(t, err)
	})

	t.Run("non admin is rejected", func(t *testing.T) {
		f := newSlotFixture(t, fixedNow)
		_, err := f.config.UpdateScheduleConfig(ctx, testGroup, schedule.DefaultHours(), testDriver)
		var perm *model.PermissionError
		assert.ErrorAs(t, err, &perm)
	})

	t.Run("invalid hours", func(t *testing.T) {
		f := newSlotFixture(t, fixedNow)
		_, err := f.config.UpdateScheduleConfig(ctx, testGroup, model.ScheduleHours{
			model.Monday: {"07:00", "07:00"},
		}, testUser)
		var validation *model.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Contains(t, validation.Message, "duplicate")
	})

	t.Run("unknown group", func(t *testing.T) {
		f := newSlotFixture(t, fixedNow)
		_, err := f.config.UpdateScheduleConfig(ctx, 404, schedule.DefaultHours(), testUser)
		var notFound *model.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestResetScheduleConfig(t *testing.T) {
	ctx := context.Background()
	f := newSlotFixture(t, fixedNow)

	_, err := f.config.UpdateScheduleConfig(ctx, testGroup, model.ScheduleHours{model.Sunday: {"12:00"}}, testUser)
	require.NoError(t, err)

	cfg, err := f.config.ResetScheduleConfig(ctx, testGroup, testUser)
	require.NoError(t, err)
	assert.Equal(t, schedule.DefaultHours(), cfg.ScheduleHours)
	assert.Equal(t, schedule.DefaultHours(), f.config.GetDefaultScheduleHours())
}

func TestGetScheduleConfig(t *testing.T) {
	ctx := context.Background()
	f := newSlotFixture(t, fixedNow)
	f.db.addGroup(22, testFamily, "UTC", nil)

	_, err := f.config.GetScheduleConfig(ctx, 22, testUser)
	var noConfig *model.NoConfigError
	assert.ErrorAs(t, err, &noConfig)

	_, err = f.config.GetScheduleConfig(ctx, testGroup, outsider)
	var perm *model.PermissionError
	assert.ErrorAs(t, err, &perm)
}

func TestValidateScheduleTime(t *testing.T) {
	ctx := context.Background()
	f := newSlotFixture(t, fixedNow)

	assert.NoError(t, f.config.ValidateScheduleTime(ctx, testGroup, futureMonday, "Europe/Paris"))

	var notConfigured *model.NotConfiguredError
	assert.ErrorAs(t, f.config.ValidateScheduleTime(ctx, testGroup, futureMonday, "UTC"), &notConfigured)

	// Суббота не настроена по умолчанию
	saturday := time.Date(2050, 1, 15, 6, 30, 0, 0, time.UTC)
	assert.ErrorAs(t, f.config.ValidateScheduleTime(ctx, testGroup, saturday, "Europe/Paris"), &notConfigured)

	assert.ErrorIs(t, f.config.ValidateScheduleTime(ctx, testGroup, futureMonday, "Mars/Olympus"), timeutil.ErrInvalidTimezone)
}

func TestDefaultHoursForOperatingHours(t *testing.T) {
	hours := defaultHoursFor(&model.OperatingHours{StartHour: "07:30", EndHour: "15:30"})
	assert.Equal(t, []string{"07:30", "08:00", "08:30", "15:00", "15:30"}, hours[model.Monday])
	assert.Equal(t, schedule.DefaultHours(), defaultHoursFor(nil))
}
