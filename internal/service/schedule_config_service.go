package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/schedule"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
	"go.uber.org/zap"
)

type ScheduleConfigService struct {
	groups   GroupStore
	users    UserStore
	slots    SlotStore
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewScheduleConfigService(
	groups GroupStore,
	users UserStore,
	slots SlotStore,
	notifier Notifier,
	logger *zap.Logger,
) *ScheduleConfigService {
	return &ScheduleConfigService{
		groups:   groups,
		users:    users,
		slots:    slots,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock подменяет источник текущего времени (для тестов)
func (s *ScheduleConfigService) WithClock(now func() time.Time) *ScheduleConfigService {
	s.now = now
	return s
}

// GetDefaultScheduleHours возвращает конфигурацию по умолчанию для новых групп
func (s *ScheduleConfigService) GetDefaultScheduleHours() model.ScheduleHours {
	return schedule.DefaultHours()
}

// GetScheduleConfig получает конфигурацию расписания группы
func (s *ScheduleConfigService) GetScheduleConfig(ctx context.Context, groupID, actingUserID int64) (*model.ScheduleConfig, error) {
	if _, err := loadGroup(ctx, s.groups, groupID); err != nil {
		return nil, err
	}
	if err := requireGroupMember(ctx, s.groups, groupID, actingUserID); err != nil {
		return nil, err
	}

	cfg, err := s.groups.GetScheduleConfig(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get schedule config: %w", err)
	}
	if cfg == nil {
		return nil, &model.NoConfigError{GroupID: groupID}
	}
	return cfg, nil
}

// ValidateScheduleTime проверяет что момент времени соответствует настроенному
// слоту группы (день недели и HH:MM в часовом поясе tz)
func (s *ScheduleConfigService) ValidateScheduleTime(ctx context.Context, groupID int64, instant time.Time, tz string) error {
	loc, err := timeutil.LoadLocation(tz)
	if err != nil {
		return err
	}

	group, err := loadGroup(ctx, s.groups, groupID)
	if err != nil {
		return err
	}

	cfg, err := s.groups.GetScheduleConfig(ctx, groupID)
	if err != nil {
		return fmt.Errorf("get schedule config: %w", err)
	}
	if cfg == nil {
		return &model.NoConfigError{GroupID: groupID}
	}

	day, hhmm := timeutil.LocalWeekdayTime(instant, loc)
	if !cfg.Has(day, hhmm) {
		return &model.NotConfiguredError{Weekday: day, Time: hhmm}
	}

	within, err := schedule.WithinOperatingHours(hhmm, group.OperatingHours)
	if err != nil {
		return model.NewValidationError("group %d has invalid operating hours", groupID)
	}
	if !within {
		return model.NewValidationError("time %s is outside operating hours %s-%s",
			hhmm, group.OperatingHours.StartHour, group.OperatingHours.EndHour)
	}

	return nil
}

// UpdateScheduleConfig заменяет конфигурацию расписания группы
func (s *ScheduleConfigService) UpdateScheduleConfig(ctx context.Context, groupID int64, hours model.ScheduleHours, actingUserID int64) (*model.ScheduleConfig, error) {
	group, err := loadGroup(ctx, s.groups, groupID)
	if err != nil {
		return nil, err
	}

	if err := requireFamilyAdmin(ctx, s.users, actingUserID, group.FamilyID); err != nil {
		s.logger.Warn("Schedule config update denied",
			zap.Int64("group_id", groupID),
			zap.Int64("user_id", actingUserID))
		return nil, err
	}

	if err := schedule.Validate(hours, group.OperatingHours); err != nil {
		return nil, err
	}
	hours = schedule.Normalize(hours)

	existing, err := s.groups.GetScheduleConfig(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get schedule config: %w", err)
	}

	if existing != nil {
		if err := s.checkRemovedSlots(ctx, group, existing.ScheduleHours, hours); err != nil {
			return nil, err
		}
	}

	cfg := &model.ScheduleConfig{
		GroupID:       groupID,
		ScheduleHours: hours,
	}
	if err := s.groups.UpsertScheduleConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save schedule config: %w", err)
	}

	s.logger.Info("Schedule config updated",
		zap.Int64("group_id", groupID),
		zap.Int64("user_id", actingUserID),
	)

	if s.notifier != nil {
		if err := s.notifier.NotifyGroupChange(ctx, groupID, model.ChangeScheduleConfigUpdated, actingUserID); err != nil {
			s.logger.Warn("Failed to queue schedule config notification",
				zap.Int64("group_id", groupID),
				zap.Error(err))
		}
	}

	return cfg, nil
}

// ResetScheduleConfig восстанавливает конфигурацию по умолчанию
func (s *ScheduleConfigService) ResetScheduleConfig(ctx context.Context, groupID, actingUserID int64) (*model.ScheduleConfig, error) {
	group, err := loadGroup(ctx, s.groups, groupID)
	if err != nil {
		return nil, err
	}
	return s.UpdateScheduleConfig(ctx, groupID, defaultHoursFor(group.OperatingHours), actingUserID)
}

// checkRemovedSlots запрещает удалять времена, на которые уже записаны дети
func (s *ScheduleConfigService) checkRemovedSlots(ctx context.Context, group *model.Group, old, next model.ScheduleHours) error {
	removed := schedule.RemovedTimes(old, next)
	if len(removed) == 0 {
		return nil
	}

	loc, err := timeutil.LoadLocation(group.Timezone)
	if err != nil {
		return err
	}

	booked, err := s.slots.ListBookedSlots(ctx, group.ID, s.now())
	if err != nil {
		return fmt.Errorf("list booked slots: %w", err)
	}

	type key struct {
		day  model.Weekday
		time string
	}
	counts := make(map[key]int)
	for _, b := range booked {
		day, hhmm := timeutil.LocalWeekdayTime(b.Datetime, loc)
		if _, ok := removed[day][hhmm]; ok {
			counts[key{day, hhmm}] += b.ChildCount
		}
	}
	if len(counts) == 0 {
		return nil
	}

	conflicts := make([]model.SlotInUse, 0, len(counts))
	for k, n := range counts {
		conflicts = append(conflicts, model.SlotInUse{Weekday: k.day, Time: k.time, ChildCount: n})
	}
	sort.Slice(conflicts, func(i, j int) bool {
		di, dj := weekdayIndex(conflicts[i].Weekday), weekdayIndex(conflicts[j].Weekday)
		if di != dj {
			return di < dj
		}
		return conflicts[i].Time < conflicts[j].Time
	})

	s.logger.Info("Schedule config update blocked by bookings",
		zap.Int64("group_id", group.ID),
		zap.Int("conflicts", len(conflicts)))

	return &model.SlotsInUseError{Conflicts: conflicts}
}

// defaultHoursFor возвращает времена по умолчанию, попадающие в рабочие часы группы
func defaultHoursFor(operating *model.OperatingHours) model.ScheduleHours {
	hours := schedule.DefaultHours()
	if operating == nil {
		return hours
	}
	for day, times := range hours {
		kept := times[:0]
		for _, t := range times {
			if ok, err := schedule.WithinOperatingHours(t, operating); err == nil && ok {
				kept = append(kept, t)
			}
		}
		hours[day] = kept
	}
	return hours
}

func weekdayIndex(d model.Weekday) int {
	for i, w := range model.Weekdays {
		if w == d {
			return i
		}
	}
	return len(model.Weekdays)
}
