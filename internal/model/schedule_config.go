package model

import "time"

type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// Weekdays lists all weekdays, Monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayOf converts time.Weekday to Weekday.
func WeekdayOf(d time.Weekday) Weekday {
	switch d {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// Valid reports whether w is one of the known weekdays.
func (w Weekday) Valid() bool {
	for _, d := range Weekdays {
		if d == w {
			return true
		}
	}
	return false
}

// ScheduleHours maps a weekday to its local HH:MM slot times.
type ScheduleHours map[Weekday][]string

type ScheduleConfig struct {
	GroupID       int64         `json:"group_id"`
	ScheduleHours ScheduleHours `json:"schedule_hours"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Has reports whether the config lists hhmm for the given weekday.
func (c *ScheduleConfig) Has(day Weekday, hhmm string) bool {
	if c == nil {
		return false
	}
	for _, t := range c.ScheduleHours[day] {
		if t == hhmm {
			return true
		}
	}
	return false
}
