package schedule

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without date or zone, parsed from "HH:MM" or "HH:MM:SS".
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	layout := "15:04:05"
	if strings.Count(s, ":") == 1 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

// Offset is the duration since midnight.
func (t TimeOfDay) Offset() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute + time.Duration(t.Second)*time.Second
}

func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On combines the calendar date of d (its own Y-M-D fields, no zone conversion) with t in loc.
func (t TimeOfDay) On(d time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, t.Hour, t.Minute, t.Second, 0, loc)
}

func timeOfDayFromOffset(d time.Duration) TimeOfDay {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return TimeOfDay{Hour: secs / 3600, Minute: (secs % 3600) / 60, Second: secs % 60}
}

// sinceMidnight returns how far now is into its own day in loc, keeping sub-second precision.
func sinceMidnight(now time.Time, loc *time.Location) time.Duration {
	local := now.In(loc)
	return time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
}

// daysBetween counts calendar days from a to b using their Y-M-D fields.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// DateOnly strips the clock from d, keeping its Y-M-D fields in UTC.
func DateOnly(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
