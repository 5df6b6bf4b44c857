// Package schedule computes QR validity windows for training programs and
// decides whether a QR presentment is admissible at a given instant.
package schedule

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultBuffer is how long before the first session the QR codes open.
	DefaultBuffer   = 15 * time.Minute
	HoursPerDay     = 8
	MinDurationDays = 1
	MaxDurationDays = 3
)

// InvalidScheduleError reports scheduling input that cannot produce a valid QR window.
type InvalidScheduleError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InvalidScheduleError) Error() string {
	msg := "invalid schedule"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidScheduleError) Unwrap() error { return e.Err }

// DurationDaysFromHours converts declared learning hours into session days:
// clamp(round(hours/8), 1, 3). Halves round up (2.5 -> 3), so 20h is 3 days.
func DurationDaysFromHours(hours float64) (int, error) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return 0, &InvalidScheduleError{Field: "learning_hours", Reason: fmt.Sprintf("unusable value %v", hours)}
	}
	days := int(math.Round(hours / HoursPerDay))
	if days < MinDurationDays {
		days = MinDurationDays
	}
	if days > MaxDurationDays {
		days = MaxDurationDays
	}
	return days, nil
}

// Window is the inclusive [From, To] range during which a program's QR codes may be used.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether now lies inside the window, both ends inclusive.
func (w Window) Contains(now time.Time) bool {
	return !now.Before(w.From) && !now.After(w.To)
}

type Input struct {
	StartDate    time.Time // only Y-M-D is used
	StartTime    string
	EndTime      string // daily end of session, applies every day
	DurationDays int
	Buffer       time.Duration
	Location     *time.Location
}

// Plan is the derived schedule of a program.
type Plan struct {
	Start        time.Time
	StartDate    time.Time
	EndDate      time.Time
	StartTime    TimeOfDay
	EndTime      TimeOfDay
	DurationDays int
	Window       Window
}

func ComputeWindow(in Input) (Plan, error) {
	if in.StartDate.IsZero() {
		return Plan{}, &InvalidScheduleError{Field: "start_date", Reason: "required"}
	}
	if in.DurationDays < MinDurationDays || in.DurationDays > MaxDurationDays {
		return Plan{}, &InvalidScheduleError{Field: "duration_days", Reason: fmt.Sprintf("must be between %d and %d, got %d", MinDurationDays, MaxDurationDays, in.DurationDays)}
	}
	if in.Buffer <= 0 {
		return Plan{}, &InvalidScheduleError{Field: "buffer", Reason: "must be positive"}
	}
	startTime, err := ParseTimeOfDay(in.StartTime)
	if err != nil {
		return Plan{}, &InvalidScheduleError{Field: "start_time", Err: err}
	}
	endTime, err := ParseTimeOfDay(in.EndTime)
	if err != nil {
		return Plan{}, &InvalidScheduleError{Field: "end_time", Err: err}
	}
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	startDate := DateOnly(in.StartDate)
	endDate := startDate.AddDate(0, 0, in.DurationDays-1)
	start := startTime.On(startDate, loc)
	w := Window{
		From: start.Add(-in.Buffer),
		To:   endTime.On(endDate, loc),
	}
	if !w.From.Before(w.To) {
		return Plan{}, &InvalidScheduleError{
			Field:  "end_time",
			Reason: fmt.Sprintf("qr window collapses: valid_to %s is not after valid_from %s", formatStamp(w.To), formatStamp(w.From)),
		}
	}
	return Plan{
		Start:        start,
		StartDate:    startDate,
		EndDate:      endDate,
		StartTime:    startTime,
		EndTime:      endTime,
		DurationDays: in.DurationDays,
		Window:       w,
	}, nil
}

func formatStamp(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}
