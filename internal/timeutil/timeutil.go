// Package timeutil converts between UTC instants and a group's local wall clock.
package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// ClockLayout is the local time-of-day format used by schedule configs.
const ClockLayout = "15:04"

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Week holds UTC instants of Monday 00:00:00.000 and Sunday 23:59:59.999 local time.
type Week struct {
	Start time.Time `json:"week_start"`
	End   time.Time `json:"week_end"`
}

// LoadLocation resolves an IANA zone name; an empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// ParseInstant parses an ISO-8601 date or date-time. Values without an offset are UTC.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// IsInPast reports whether instant is strictly before now, both seen in tz.
// An instant equal to now is not in the past.
func IsInPast(instant time.Time, tz string, now time.Time) (bool, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return false, err
	}
	return instant.In(loc).Before(now.In(loc)), nil
}

// WeekBoundaries returns the Monday-Sunday week containing ref in tz.
func WeekBoundaries(ref time.Time, tz string) (Week, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return Week{}, err
	}

	local := ref.In(loc)
	// Понедельник = 0, воскресенье = 6
	offset := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()

	start := time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d-offset+6, 23, 59, 59, int(999*time.Millisecond), loc)

	return Week{Start: start.UTC(), End: end.UTC()}, nil
}

// DayBoundaries returns the local day containing ref as UTC instants [start, end].
func DayBoundaries(ref time.Time, loc *time.Location) (time.Time, time.Time) {
	local := ref.In(loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
	return start.UTC(), end.UTC()
}

// LocalWeekdayTime returns the local weekday and HH:MM of instant in loc.
func LocalWeekdayTime(instant time.Time, loc *time.Location) (model.Weekday, string) {
	local := instant.In(loc)
	return model.WeekdayOf(local.Weekday()), local.Format(ClockLayout)
}

// ParseClock parses HH:MM into minutes after midnight.
func ParseClock(hhmm string) (int, error) {
	if len(hhmm) != 5 {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidDate, hhmm)
	}
	t, err := time.Parse(ClockLayout, hhmm)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidDate, hhmm)
	}
	return t.Hour()*60 + t.Minute(), nil
}
