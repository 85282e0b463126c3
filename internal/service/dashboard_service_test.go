package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDashboardStore struct {
	trips      []*model.Trip
	activity   []*model.Activity
	tripsErr   error
	countErr   error
	activityEr error
}

func (s *stubDashboardStore) CountGroups(context.Context, int64) (int, error) {
	return 2, s.countErr
}

func (s *stubDashboardStore) CountChildren(context.Context, int64) (int, error) {
	return 3, nil
}

func (s *stubDashboardStore) CountVehicles(context.Context, int64) (int, error) {
	return 1, nil
}

func (s *stubDashboardStore) CountTrips(_ context.Context, _ int64, from, to time.Time) (int, error) {
	trips, err := s.ListTrips(context.Background(), 0, from, to, 0)
	return len(trips), err
}

func (s *stubDashboardStore) ListTrips(_ context.Context, _ int64, from, to time.Time, limit int) ([]*model.Trip, error) {
	if s.tripsErr != nil {
		return nil, s.tripsErr
	}
	var out []*model.Trip
	for _, trip := range s.trips {
		if trip.Datetime.Before(from) || trip.Datetime.After(to) {
			continue
		}
		out = append(out, trip)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubDashboardStore) ListRecentActivity(context.Context, int64, int) ([]*model.Activity, error) {
	return s.activity, s.activityEr
}

func newDashboard(store DashboardStore, now time.Time) *DashboardService {
	db := newMemDB()
	db.addUser(testUser, "")
	return NewDashboardService(store, memUsers{db}, zap.NewNop()).
		WithClock(func() time.Time { return now })
}

func TestGetDashboard(t *testing.T) {
	// Среда
	now := time.Date(2050, 1, 12, 9, 0, 0, 0, time.UTC)
	store := &stubDashboardStore{
		trips: []*model.Trip{
			{SlotID: 1, Datetime: time.Date(2050, 1, 10, 7, 0, 0, 0, time.UTC)},
			{SlotID: 2, Datetime: time.Date(2050, 1, 12, 15, 0, 0, 0, time.UTC), IsDriver: true},
			{SlotID: 3, Datetime: time.Date(2050, 1, 14, 7, 0, 0, 0, time.UTC)},
			{SlotID: 4, Datetime: time.Date(2050, 1, 17, 7, 0, 0, 0, time.UTC)},
		},
	}

	d, err := newDashboard(store, now).GetDashboard(context.Background(), testUser)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2050, 1, 10, 0, 0, 0, 0, time.UTC), d.WeekStart)
	assert.Equal(t, time.Date(2050, 1, 16, 23, 59, 59, 999_000_000, time.UTC), d.WeekEnd)

	require.True(t, d.Stats.Available)
	assert.Equal(t, DashboardStats{Groups: 2, Children: 3, Vehicles: 1}, d.Stats.Data)

	require.True(t, d.TripsThisWeek.Available)
	assert.Equal(t, 3, d.TripsThisWeek.Data)

	require.True(t, d.TodayTrips.Available)
	require.Len(t, d.TodayTrips.Data, 1)
	assert.Equal(t, int64(2), d.TodayTrips.Data[0].SlotID)

	require.True(t, d.UpcomingTrips.Available)
	assert.Len(t, d.UpcomingTrips.Data, 3)

	require.True(t, d.RecentActivity.Available)
	assert.NotNil(t, d.RecentActivity.Data)
	assert.Empty(t, d.RecentActivity.Data)
}

func TestGetDashboardPartialFailure(t *testing.T) {
	now := time.Date(2050, 1, 12, 9, 0, 0, 0, time.UTC)
	store := &stubDashboardStore{
		countErr:   errors.New("connection reset"),
		activityEr: errors.New("timeout"),
	}

	d, err := newDashboard(store, now).GetDashboard(context.Background(), testUser)
	require.NoError(t, err)

	assert.False(t, d.Stats.Available)
	assert.Equal(t, "unavailable", d.Stats.Error)
	assert.False(t, d.RecentActivity.Available)

	assert.True(t, d.TripsThisWeek.Available)
	assert.True(t, d.TodayTrips.Available)
	assert.True(t, d.UpcomingTrips.Available)
}

func TestGetDashboardCancelledRequest(t *testing.T) {
	now := time.Date(2050, 1, 12, 9, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := newDashboard(&stubDashboardStore{}, now).GetDashboard(ctx, testUser)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, d)
}

func TestFillNeverFailsTheGroup(t *testing.T) {
	var sec Section[int]
	run := fill(zap.NewNop(), "count", &sec, func() (int, error) {
		return 0, errors.New("boom")
	})
	require.NoError(t, run())
	assert.False(t, sec.Available)
	assert.Equal(t, "unavailable", sec.Error)

	run = fill(zap.NewNop(), "count", &sec, func() (int, error) { return 3, nil })
	require.NoError(t, run())
	assert.True(t, sec.Available)
	assert.Equal(t, 3, sec.Data)
}

func TestGetWeeklyDashboard(t *testing.T) {
	now := time.Date(2050, 1, 12, 9, 0, 0, 0, time.UTC)
	store := &stubDashboardStore{
		trips: []*model.Trip{
			{SlotID: 1, Datetime: time.Date(2050, 1, 10, 7, 0, 0, 0, time.UTC)},
			{SlotID: 2, Datetime: time.Date(2050, 1, 16, 23, 0, 0, 0, time.UTC)},
		},
	}
	svc := newDashboard(store, now)

	week, err := svc.GetWeeklyDashboard(context.Background(), testUser, nil)
	require.NoError(t, err)
	require.Len(t, week.Days, 7)
	assert.Equal(t, "2050-01-10", week.Days[0].Date)
	assert.Equal(t, model.Monday, week.Days[0].Weekday)
	assert.Len(t, week.Days[0].Trips, 1)
	assert.Equal(t, model.Sunday, week.Days[6].Weekday)
	assert.Len(t, week.Days[6].Trips, 1)
	assert.Empty(t, week.Days[3].Trips)

	// Воскресенье относится к неделе, начатой в понедельник до него
	sunday := time.Date(2050, 1, 16, 12, 0, 0, 0, time.UTC)
	week, err = svc.GetWeeklyDashboard(context.Background(), testUser, &sunday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2050, 1, 10, 0, 0, 0, 0, time.UTC), week.WeekStart)

	store.tripsErr = errors.New("boom")
	_, err = svc.GetWeeklyDashboard(context.Background(), testUser, nil)
	assert.Error(t, err)
}
