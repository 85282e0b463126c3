// Package schedule holds the rules for a group's weekly slot configuration.
package schedule

import (
	"fmt"
	"sort"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
)

const (
	MaxSlotsPerDay    = 20
	MinSpacingMinutes = 15
)

var defaultTimes = []string{"07:00", "07:30", "08:00", "08:30", "15:00", "15:30", "16:00", "16:30"}

// DefaultHours returns the seed configuration for new groups: Monday-Friday, 8 times a day.
func DefaultHours() model.ScheduleHours {
	hours := make(model.ScheduleHours, 5)
	for _, day := range []model.Weekday{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday} {
		hours[day] = append([]string(nil), defaultTimes...)
	}
	return hours
}

// Validate checks every weekday entry. Times must be HH:MM, unique, at most
// MaxSlotsPerDay per day, MinSpacingMinutes apart and inside operating hours.
func Validate(hours model.ScheduleHours, operating *model.OperatingHours) error {
	if hours == nil {
		return model.NewValidationError("schedule hours are required")
	}

	var opStart, opEnd int
	if operating != nil {
		var err error
		if opStart, err = timeutil.ParseClock(operating.StartHour); err != nil {
			return model.NewValidationError("invalid operating hours start %q", operating.StartHour)
		}
		if opEnd, err = timeutil.ParseClock(operating.EndHour); err != nil {
			return model.NewValidationError("invalid operating hours end %q", operating.EndHour)
		}
	}

	// Обходим дни в фиксированном порядке, чтобы ошибки были детерминированными
	for _, day := range orderedDays(hours) {
		times := hours[day]
		if !day.Valid() {
			return model.NewValidationError("unknown weekday %q", day)
		}
		if len(times) > MaxSlotsPerDay {
			return model.NewValidationError("%s has %d time slots, maximum is %d", day, len(times), MaxSlotsPerDay)
		}

		seen := make(map[string]struct{}, len(times))
		minutes := make([]int, 0, len(times))
		for _, hhmm := range times {
			m, err := timeutil.ParseClock(hhmm)
			if err != nil {
				return model.NewValidationError("%s: invalid time %q, expected HH:MM between 00:00 and 23:59", day, hhmm)
			}
			if _, dup := seen[hhmm]; dup {
				return model.NewValidationError("%s: duplicate time %s", day, hhmm)
			}
			seen[hhmm] = struct{}{}

			if operating != nil && (m < opStart || m > opEnd) {
				return model.NewValidationError("%s: time %s is outside operating hours %s-%s",
					day, hhmm, operating.StartHour, operating.EndHour)
			}
			minutes = append(minutes, m)
		}

		sort.Ints(minutes)
		for i := 1; i < len(minutes); i++ {
			if minutes[i]-minutes[i-1] < MinSpacingMinutes {
				return model.NewValidationError("%s: times %s and %s must be at least %d minutes apart",
					day, clock(minutes[i-1]), clock(minutes[i]), MinSpacingMinutes)
			}
		}
	}

	return nil
}

// WithinOperatingHours reports whether hhmm lies in the inclusive window.
// A nil window allows every time.
func WithinOperatingHours(hhmm string, operating *model.OperatingHours) (bool, error) {
	if operating == nil {
		return true, nil
	}
	m, err := timeutil.ParseClock(hhmm)
	if err != nil {
		return false, err
	}
	start, err := timeutil.ParseClock(operating.StartHour)
	if err != nil {
		return false, err
	}
	end, err := timeutil.ParseClock(operating.EndHour)
	if err != nil {
		return false, err
	}
	return m >= start && m <= end, nil
}

// Normalize returns a copy with each day's times sorted ascending.
func Normalize(hours model.ScheduleHours) model.ScheduleHours {
	out := make(model.ScheduleHours, len(hours))
	for day, times := range hours {
		sorted := append([]string(nil), times...)
		sort.Strings(sorted)
		out[day] = sorted
	}
	return out
}

// RemovedTimes returns, per weekday, the times present in old but missing from next.
func RemovedTimes(old, next model.ScheduleHours) map[model.Weekday]map[string]struct{} {
	removed := make(map[model.Weekday]map[string]struct{})
	for day, times := range old {
		keep := make(map[string]struct{}, len(next[day]))
		for _, t := range next[day] {
			keep[t] = struct{}{}
		}
		for _, t := range times {
			if _, ok := keep[t]; ok {
				continue
			}
			if removed[day] == nil {
				removed[day] = make(map[string]struct{})
			}
			removed[day][t] = struct{}{}
		}
	}
	return removed
}

func orderedDays(hours model.ScheduleHours) []model.Weekday {
	days := make([]model.Weekday, 0, len(hours))
	for _, d := range model.Weekdays {
		if _, ok := hours[d]; ok {
			days = append(days, d)
		}
	}
	// Неизвестные ключи идут последними
	var unknown []model.Weekday
	for d := range hours {
		if !d.Valid() {
			unknown = append(unknown, d)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return append(days, unknown...)
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
