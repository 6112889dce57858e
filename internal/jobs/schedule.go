package jobs

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Schedule is a weekly trigger: one weekday and hour in a named timezone.
type Schedule struct {
	Location *time.Location
	Weekday  time.Weekday
	Hour     int
}

// DefaultSchedule is Monday 16:00 Asia/Tokyo.
func DefaultSchedule() Schedule {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	return Schedule{Location: loc, Weekday: time.Monday, Hour: 16}
}

// NewSchedule builds a schedule from configuration strings.
func NewSchedule(timezone, weekday string, hour int) (Schedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	wd, err := parseWeekday(weekday)
	if err != nil {
		return Schedule{}, err
	}
	if hour < 0 || hour > 23 {
		return Schedule{}, fmt.Errorf("invalid hour %d", hour)
	}
	return Schedule{Location: loc, Weekday: wd, Hour: hour}, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// Next returns the first scheduled instant strictly after now. It depends
// only on its input.
func (s Schedule) Next(now time.Time) time.Time {
	local := now.In(s.Location)
	days := (int(s.Weekday) - int(local.Weekday()) + 7) % 7
	next := time.Date(local.Year(), local.Month(), local.Day()+days, s.Hour, 0, 0, 0, s.Location)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+days+7, s.Hour, 0, 0, 0, s.Location)
	}
	return next
}

// Upcoming returns the scheduled instant on the first scheduled weekday after
// today's date, never today. This is the time advertised to clients.
func (s Schedule) Upcoming(now time.Time) time.Time {
	local := now.In(s.Location)
	days := (int(s.Weekday) - int(local.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return time.Date(local.Year(), local.Month(), local.Day()+days, s.Hour, 0, 0, 0, s.Location)
}
