package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	upcomingTripsLimit  = 10
	recentActivityLimit = 10
	upcomingWindow      = 7 * 24 * time.Hour
)

// Section is one independently computed part of the dashboard.
type Section[T any] struct {
	Data      T      `json:"data"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type DashboardStats struct {
	Groups   int `json:"groups"`
	Children int `json:"children"`
	Vehicles int `json:"vehicles"`
}

type Dashboard struct {
	WeekStart      time.Time                  `json:"week_start"`
	WeekEnd        time.Time                  `json:"week_end"`
	Stats          Section[DashboardStats]    `json:"stats"`
	TripsThisWeek  Section[int]               `json:"trips_this_week"`
	TodayTrips     Section[[]*model.Trip]     `json:"today_trips"`
	UpcomingTrips  Section[[]*model.Trip]     `json:"upcoming_trips"`
	RecentActivity Section[[]*model.Activity] `json:"recent_activity"`
	GeneratedAt    time.Time                  `json:"generated_at"`
}

type DayTrips struct {
	Date    string        `json:"date"`
	Weekday model.Weekday `json:"weekday"`
	Trips   []*model.Trip `json:"trips"`
}

type WeeklyDashboard struct {
	WeekStart time.Time  `json:"week_start"`
	WeekEnd   time.Time  `json:"week_end"`
	Days      []DayTrips `json:"days"`
}

type DashboardService struct {
	store  DashboardStore
	users  UserStore
	logger *zap.Logger
	now    func() time.Time
}

func NewDashboardService(store DashboardStore, users UserStore, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		store:  store,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock подменяет источник текущего времени (для тестов)
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	s.now = now
	return s
}

// GetDashboard собирает дашборд пользователя. Каждая секция считается
// независимо: ошибка в одной секции не ломает остальные.
func (s *DashboardService) GetDashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	now := s.now()

	// Неделя считается по UTC, с понедельника
	week, err := timeutil.WeekBoundaries(now, "UTC")
	if err != nil {
		return nil, err
	}

	loc := s.userLocation(ctx, userID)
	dayStart, dayEnd := timeutil.DayBoundaries(now, loc)

	d := &Dashboard{
		WeekStart:   week.Start,
		WeekEnd:     week.End,
		GeneratedAt: now.UTC(),
	}

	var g errgroup.Group
	g.Go(fill(s.logger, "stats", &d.Stats, func() (DashboardStats, error) {
		return s.stats(ctx, userID)
	}))
	g.Go(fill(s.logger, "trips_this_week", &d.TripsThisWeek, func() (int, error) {
		return s.store.CountTrips(ctx, userID, week.Start, week.End)
	}))
	g.Go(fill(s.logger, "today_trips", &d.TodayTrips, func() ([]*model.Trip, error) {
		return nonNil(s.store.ListTrips(ctx, userID, dayStart, dayEnd, 0))
	}))
	g.Go(fill(s.logger, "upcoming_trips", &d.UpcomingTrips, func() ([]*model.Trip, error) {
		return nonNil(s.store.ListTrips(ctx, userID, now, now.Add(upcomingWindow), upcomingTripsLimit))
	}))
	g.Go(fill(s.logger, "recent_activity", &d.RecentActivity, func() ([]*model.Activity, error) {
		return nonNil(s.store.ListRecentActivity(ctx, userID, recentActivityLimit))
	}))
	// fill всегда возвращает nil: ошибки секций остаются в самих секциях
	_ = g.Wait()

	// Отменённый запрос не отдаём как дашборд из недоступных секций
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return d, nil
}

// GetWeeklyDashboard возвращает поездки пользователя по дням недели (UTC), содержащей ref
func (s *DashboardService) GetWeeklyDashboard(ctx context.Context, userID int64, ref *time.Time) (*WeeklyDashboard, error) {
	at := s.now()
	if ref != nil {
		at = *ref
	}

	week, err := timeutil.WeekBoundaries(at, "UTC")
	if err != nil {
		return nil, err
	}

	trips, err := s.store.ListTrips(ctx, userID, week.Start, week.End, 0)
	if err != nil {
		return nil, fmt.Errorf("list weekly trips: %w", err)
	}

	result := &WeeklyDashboard{
		WeekStart: week.Start,
		WeekEnd:   week.End,
		Days:      make([]DayTrips, 7),
	}
	for i := range result.Days {
		day := week.Start.AddDate(0, 0, i)
		result.Days[i] = DayTrips{
			Date:    day.Format("2006-01-02"),
			Weekday: model.WeekdayOf(day.Weekday()),
			Trips:   []*model.Trip{},
		}
	}
	for _, trip := range trips {
		idx := int(trip.Datetime.UTC().Sub(week.Start) / (24 * time.Hour))
		if idx < 0 || idx > 6 {
			continue
		}
		result.Days[idx].Trips = append(result.Days[idx].Trips, trip)
	}

	return result, nil
}

func (s *DashboardService) stats(ctx context.Context, userID int64) (DashboardStats, error) {
	var st DashboardStats
	var err error

	if st.Groups, err = s.store.CountGroups(ctx, userID); err != nil {
		return st, fmt.Errorf("count groups: %w", err)
	}
	if st.Children, err = s.store.CountChildren(ctx, userID); err != nil {
		return st, fmt.Errorf("count children: %w", err)
	}
	if st.Vehicles, err = s.store.CountVehicles(ctx, userID); err != nil {
		return st, fmt.Errorf("count vehicles: %w", err)
	}
	return st, nil
}

func (s *DashboardService) userLocation(ctx context.Context, userID int64) *time.Location {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil || user == nil || user.Timezone == "" {
		return time.UTC
	}
	loc, err := timeutil.LoadLocation(user.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// fill выполняет fn и записывает результат в секцию. Ошибка превращается в
// пометку "unavailable" и предупреждение в логе.
func fill[T any](logger *zap.Logger, name string, sec *Section[T], fn func() (T, error)) func() error {
	return func() error {
		data, err := fn()
		if err != nil {
			logger.Warn("Dashboard section unavailable",
				zap.String("section", name),
				zap.Error(err))
			sec.Error = "unavailable"
			return nil
		}
		sec.Data = data
		sec.Available = true
		return nil
	}
}

func nonNil[T any](items []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
