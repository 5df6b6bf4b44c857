package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/zaqqye/training_qr_backend/internal/database"
	"github.com/zaqqye/training_qr_backend/internal/database/inmem"
	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/schedule"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ uint, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type harness struct {
	store *inmem.Store
	pub   *recorder
	svc   *Service
	now   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: inmem.New(), pub: &recorder{}}
	h.svc = NewService(h.store, h.pub, Options{
		Location: time.UTC,
		Now:      func() time.Time { return h.now },
	})
	return h
}

// addProgram stores a two-day program on 1-2 June 2025, 09:00-17:00, held in Main Hall.
func (h *harness) addProgram(t *testing.T, daily bool) models.TrainingProgram {
	t.Helper()
	p := models.TrainingProgram{
		TrainingName: "Fire Safety",
		LocationHall: "Main Hall",
		StartDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		StartTime:    "09:00:00",
		EndTime:      "17:00:00",
		DurationDays: 2,
		QRValidFrom:  time.Date(2025, 6, 1, 8, 45, 0, 0, time.UTC),
		QRValidTo:    time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC),
		QRActive:     true,
		DailyWindow:  daily,
	}
	require.NoError(t, h.store.CreateProgram(context.Background(), &p))
	return p
}

func trainee(code string) SubmitRequest {
	return SubmitRequest{EmployeeCode: code, EmployeeName: "Trainee " + code, Department: "Ops"}
}

func TestSubmitRecordsDayAndPublishesCount(t *testing.T) {
	h := newHarness(t)
	p := h.addProgram(t, true)
	h.now = time.Date(2025, 6, 2, 8, 45, 0, 0, time.UTC)

	rec, err := h.svc.Submit(context.Background(), p.ID, trainee("E001"))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Day)

	_, err = h.svc.Submit(context.Background(), p.ID, trainee("E002"))
	require.NoError(t, err)

	_, err = h.svc.Submit(context.Background(), p.ID, trainee("E001"))
	assert.ErrorIs(t, err, database.ErrDuplicate)

	require.Len(t, h.pub.events, 2)
	assert.EqualValues(t, 2, h.pub.events[1].Count)
	assert.Equal(t, 2, h.pub.events[1].Day)

	roster, err := h.svc.Roster(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, roster, 2)
}

func TestSubmitOutsideSessionHours(t *testing.T) {
	h := newHarness(t)
	daily := h.addProgram(t, true)
	plain := h.addProgram(t, false)
	h.now = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	_, err := h.svc.Submit(context.Background(), daily.ID, trainee("E001"))
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, schedule.StatusOutsideHours, denied.Decision.Status)
	assert.Equal(t, "Attendance only valid between 08:45 and 17:00", denied.Decision.Message)

	rec, err := h.svc.Submit(context.Background(), plain.ID, trainee("E001"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Day)
}

func TestSubmitDuringOpeningBufferCountsAsFirstDay(t *testing.T) {
	h := newHarness(t)
	p := h.addProgram(t, false)
	p.QRValidFrom = time.Date(2025, 5, 31, 23, 50, 0, 0, time.UTC)
	require.NoError(t, h.store.CreateProgram(context.Background(), &p))
	h.now = time.Date(2025, 5, 31, 23, 55, 0, 0, time.UTC)

	rec, err := h.svc.Submit(context.Background(), p.ID, trainee("E001"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Day)
}

func TestSubmitDeniedByGate(t *testing.T) {
	h := newHarness(t)
	p := h.addProgram(t, false)

	cases := []struct {
		name   string
		now    time.Time
		active bool
		want   schedule.Status
	}{
		{"before window", time.Date(2025, 6, 1, 8, 44, 0, 0, time.UTC), true, schedule.StatusNotStarted},
		{"after window", time.Date(2025, 6, 2, 17, 0, 1, 0, time.UTC), true, schedule.StatusEnded},
		{"deactivated", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), false, schedule.StatusDeactivated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, h.store.SetProgramActive(context.Background(), p.ID, tc.active))
			h.now = tc.now
			_, err := h.svc.Submit(context.Background(), p.ID, trainee("E900"))
			var denied *DeniedError
			require.ErrorAs(t, err, &denied)
			assert.Equal(t, tc.want, denied.Decision.Status)
		})
	}
	assert.Empty(t, h.pub.events)
}

func TestSubmitValidatesAndReportsMissingProgram(t *testing.T) {
	h := newHarness(t)
	p := h.addProgram(t, false)
	h.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := h.svc.Submit(context.Background(), p.ID, SubmitRequest{EmployeeName: "No Code"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = h.svc.Submit(context.Background(), 404, trainee("E001"))
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func feedback(code string, rating int) FeedbackRequest {
	return FeedbackRequest{
		EmployeeCode:    code,
		ContentRating:   rating,
		TrainerRating:   4,
		RelevanceRating: 4,
		OverallRating:   5,
		Comments:        "useful",
		Answers:         datatypes.JSON(`{"recommend":"yes"}`),
	}
}

func TestFeedbackIgnoresDailyWindow(t *testing.T) {
	h := newHarness(t)
	p := h.addProgram(t, true)
	h.now = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	_, d, err := h.svc.Check(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusOutsideHours, d.Status)

	rec, err := h.svc.SubmitFeedback(context.Background(), p.ID, feedback("E001", 5))
	require.NoError(t, err)
	assert.Equal(t, 5, rec.ContentRating)
	assert.Len(t, h.store.Feedback(p.ID), 1)

	_, err = h.svc.SubmitFeedback(context.Background(), p.ID, feedback("E001", 3))
	assert.ErrorIs(t, err, database.ErrDuplicate)
}

func TestFeedbackValidationAndWindow(t *testing.T) {
	h := newHarness(t)
	p := h.addProgram(t, false)
	h.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := h.svc.SubmitFeedback(context.Background(), p.ID, feedback("E001", 6))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = h.svc.SubmitFeedback(context.Background(), p.ID, feedback("E001", 0))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	h.now = time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	_, err = h.svc.SubmitFeedback(context.Background(), p.ID, feedback("E001", 4))
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, schedule.StatusEnded, denied.Decision.Status)
}

func TestResolveHall(t *testing.T) {
	h := newHarness(t)
	h.store.AddHall(models.Hall{Name: "Main Hall", Slug: "main_hall", Active: true})
	p := h.addProgram(t, false)

	h.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	good := 806
	res, err := h.svc.ResolveHall(context.Background(), "main_hall", &good)
	require.NoError(t, err)
	assert.Equal(t, p.ID, res.Program.ID)
	assert.True(t, res.Decision.Admitted())

	res, err = h.svc.ResolveHall(context.Background(), "main_hall", nil)
	require.NoError(t, err)
	assert.Equal(t, p.ID, res.Program.ID)

	bad := 805
	_, err = h.svc.ResolveHall(context.Background(), "main_hall", &bad)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	_, err = h.svc.ResolveHall(context.Background(), "board_room", nil)
	assert.ErrorIs(t, err, database.ErrNotFound)

	h.now = time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)
	_, err = h.svc.ResolveHall(context.Background(), "main_hall", nil)
	assert.ErrorIs(t, err, ErrNoActiveProgram)
}

func TestResolveHallRejectsInactiveHall(t *testing.T) {
	h := newHarness(t)
	h.store.AddHall(models.Hall{Name: "Main Hall", Slug: "main_hall", Active: false})
	h.addProgram(t, false)

	h.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	good := 806
	_, err := h.svc.ResolveHall(context.Background(), "main_hall", &good)
	assert.ErrorIs(t, err, ErrNoActiveProgram)
}

func TestSubmitStampsGateInstant(t *testing.T) {
	h := newHarness(t)
	p := h.addProgram(t, true)

	start := time.Date(2025, 6, 1, 16, 59, 30, 0, time.UTC)
	var mu sync.Mutex
	calls := 0
	svc := NewService(h.store, h.pub, Options{
		Location: time.UTC,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			at := start.Add(time.Duration(calls) * time.Minute)
			calls++
			return at
		},
	})

	rec, err := svc.Submit(context.Background(), p.ID, trainee("E-7"))
	require.NoError(t, err)
	assert.Equal(t, start, rec.SubmittedAt)
	assert.Equal(t, 1, rec.Day)
}
