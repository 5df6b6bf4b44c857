package schedule

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusAdmitted       Status = "admitted"
	StatusNotStarted     Status = "not_started"
	StatusEnded          Status = "ended"
	StatusDeactivated    Status = "deactivated"
	StatusNoSessionToday Status = "no_session_today"
	StatusOutsideHours   Status = "outside_session_hours"
)

// DailyStartGrace opens each day's sub-window this long before the session start.
const DailyStartGrace = 15 * time.Minute

// DailyWindow restricts admission to session hours on each program day.
type DailyWindow struct {
	Start TimeOfDay
	End   TimeOfDay
}

type GateInput struct {
	Window       Window
	Active       bool
	StartDate    time.Time
	DurationDays int
	// Daily is nil when only the overall window applies.
	Daily    *DailyWindow
	Location *time.Location
}

// Decision is the outcome of evaluating a QR presentment. It is never persisted.
type Decision struct {
	Status   Status     `json:"status"`
	Message  string     `json:"message"`
	Boundary *time.Time `json:"boundary,omitempty"`
	// Day is the 1-based program day, set when the daily sub-window was checked.
	Day int `json:"day,omitempty"`
}

func (d Decision) Admitted() bool { return d.Status == StatusAdmitted }

// Evaluate applies, in order: not started, ended, deactivated, then the
// optional daily sub-window. Window checks precede the manual override so a
// deactivated code outside its window reports the window reason.
func Evaluate(now time.Time, in GateInput) Decision {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	if now.Before(in.Window.From) {
		from := in.Window.From
		return Decision{
			Status:   StatusNotStarted,
			Message:  fmt.Sprintf("QR code not valid until %s", formatStamp(from.In(loc))),
			Boundary: &from,
		}
	}
	if now.After(in.Window.To) {
		to := in.Window.To
		return Decision{
			Status:   StatusEnded,
			Message:  fmt.Sprintf("QR code expired on %s", formatStamp(to.In(loc))),
			Boundary: &to,
		}
	}
	if !in.Active {
		return Decision{
			Status:  StatusDeactivated,
			Message: "QR code is currently disabled by administrator",
		}
	}
	if in.Daily == nil {
		return Decision{Status: StatusAdmitted, Message: "Valid QR code"}
	}

	day := DayNumber(now, in.StartDate, loc)
	if day < 1 || day > in.DurationDays {
		return Decision{
			Status:  StatusNoSessionToday,
			Message: "No active training session today",
			Day:     day,
		}
	}
	opens := in.Daily.Start.Offset() - DailyStartGrace
	if opens < 0 {
		opens = 0
	}
	closes := in.Daily.End.Offset()
	at := sinceMidnight(now, loc)
	if at < opens || at > closes {
		return Decision{
			Status: StatusOutsideHours,
			Message: fmt.Sprintf("Attendance only valid between %s and %s",
				timeOfDayFromOffset(opens), in.Daily.End),
			Day: day,
		}
	}
	return Decision{Status: StatusAdmitted, Message: "Valid QR code", Day: day}
}

// DayNumber is the 1-based program day that now falls on in loc. It is below 1
// before the start date.
func DayNumber(now, startDate time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	return daysBetween(DateOnly(startDate), now.In(loc)) + 1
}
