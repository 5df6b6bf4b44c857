// Package attendance admits QR presentments for training programs and records
// attendance and feedback submissions.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/qrcode"
	"github.com/zaqqye/training_qr_backend/internal/schedule"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrChecksumMismatch = errors.New("location code checksum mismatch")
	ErrNoActiveProgram  = errors.New("no training program is running in this hall")
)

// DeniedError carries the gate decision that refused a submission.
type DeniedError struct {
	Decision schedule.Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("qr code rejected (%s): %s", e.Decision.Status, e.Decision.Message)
}

type Store interface {
	ProgramByID(ctx context.Context, id uint) (models.TrainingProgram, error)
	HallBySlug(ctx context.Context, slug string) (models.Hall, error)
	ProgramsInHallAt(ctx context.Context, hall string, at time.Time) ([]models.TrainingProgram, error)
	CreateAttendance(ctx context.Context, a *models.Attendance) error
	CountAttendance(ctx context.Context, programID uint, day int) (int64, error)
	ListAttendance(ctx context.Context, programID uint) ([]models.Attendance, error)
	CreateFeedback(ctx context.Context, f *models.FeedbackResponse) error
}

// Event is published after every recorded attendance.
type Event struct {
	Type         string    `json:"type"`
	ProgramID    uint      `json:"program_id"`
	Day          int       `json:"day"`
	Count        int64     `json:"count"`
	EmployeeCode string    `json:"employee_code"`
	EmployeeName string    `json:"employee_name"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type Publisher interface {
	Publish(programID uint, ev Event)
}

type Options struct {
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	store    Store
	pub      Publisher
	validate *validator.Validate
	loc      *time.Location
	now      func() time.Time
}

// NewService builds the service; pub may be nil.
func NewService(store Store, pub Publisher, opts Options) *Service {
	s := &Service{store: store, pub: pub, validate: validator.New(), loc: opts.Location, now: opts.Now}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func gateInput(p models.TrainingProgram, loc *time.Location, daily bool) (schedule.GateInput, error) {
	in := schedule.GateInput{
		Window:       schedule.Window{From: p.QRValidFrom, To: p.QRValidTo},
		Active:       p.QRActive,
		StartDate:    p.StartDate,
		DurationDays: p.DurationDays,
		Location:     loc,
	}
	if daily {
		start, err := schedule.ParseTimeOfDay(p.StartTime)
		if err != nil {
			return in, fmt.Errorf("program %d start time: %w", p.ID, err)
		}
		end, err := schedule.ParseTimeOfDay(p.EndTime)
		if err != nil {
			return in, fmt.Errorf("program %d end time: %w", p.ID, err)
		}
		in.Daily = &schedule.DailyWindow{Start: start, End: end}
	}
	return in, nil
}

// Check evaluates the attendance gate for program id at the current instant.
// The daily sub-window applies when the program enables it.
func (s *Service) Check(ctx context.Context, id uint) (models.TrainingProgram, schedule.Decision, error) {
	return s.checkAt(ctx, id, s.now())
}

func (s *Service) checkAt(ctx context.Context, id uint, now time.Time) (models.TrainingProgram, schedule.Decision, error) {
	p, err := s.store.ProgramByID(ctx, id)
	if err != nil {
		return models.TrainingProgram{}, schedule.Decision{}, err
	}
	d, err := s.evaluate(p, p.DailyWindow, now)
	return p, d, err
}

// CheckFeedback evaluates the feedback gate: window and activation only.
func (s *Service) CheckFeedback(ctx context.Context, id uint) (models.TrainingProgram, schedule.Decision, error) {
	p, err := s.store.ProgramByID(ctx, id)
	if err != nil {
		return models.TrainingProgram{}, schedule.Decision{}, err
	}
	d, err := s.evaluate(p, false, s.now())
	return p, d, err
}

func (s *Service) evaluate(p models.TrainingProgram, daily bool, now time.Time) (schedule.Decision, error) {
	in, err := gateInput(p, s.loc, daily)
	if err != nil {
		return schedule.Decision{}, err
	}
	return schedule.Evaluate(now, in), nil
}

type SubmitRequest struct {
	EmployeeCode string `json:"employee_code" validate:"required,max=64"`
	EmployeeName string `json:"employee_name" validate:"required,max=255"`
	Department   string `json:"department" validate:"max=128"`
}

// Submit records one attendance for the current program day.
func (s *Service) Submit(ctx context.Context, id uint, req SubmitRequest) (models.Attendance, error) {
	req.EmployeeCode = strings.TrimSpace(req.EmployeeCode)
	req.EmployeeName = strings.TrimSpace(req.EmployeeName)
	if err := s.validate.Struct(req); err != nil {
		return models.Attendance{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	now := s.now()
	p, d, err := s.checkAt(ctx, id, now)
	if err != nil {
		return models.Attendance{}, err
	}
	if !d.Admitted() {
		return models.Attendance{}, &DeniedError{Decision: d}
	}

	day := d.Day
	if day == 0 {
		day = clampDay(schedule.DayNumber(now, p.StartDate, s.loc), p.DurationDays)
	}
	rec := models.Attendance{
		ProgramID:    p.ID,
		EmployeeCode: req.EmployeeCode,
		EmployeeName: req.EmployeeName,
		Department:   strings.TrimSpace(req.Department),
		Day:          day,
		SubmittedAt:  now,
	}
	if err := s.store.CreateAttendance(ctx, &rec); err != nil {
		return models.Attendance{}, err
	}
	log.Printf("attendance: program %d day %d employee %s", p.ID, day, rec.EmployeeCode)
	s.publish(ctx, rec)
	return rec, nil
}

// clampDay maps instants inside the validity buffer onto the first or last day.
func clampDay(day, duration int) int {
	if day < 1 {
		return 1
	}
	if duration > 0 && day > duration {
		return duration
	}
	return day
}

func (s *Service) publish(ctx context.Context, rec models.Attendance) {
	if s.pub == nil {
		return
	}
	count, err := s.store.CountAttendance(ctx, rec.ProgramID, rec.Day)
	if err != nil {
		log.Printf("attendance: count for program %d: %v", rec.ProgramID, err)
		return
	}
	s.pub.Publish(rec.ProgramID, Event{
		Type:         "attendance",
		ProgramID:    rec.ProgramID,
		Day:          rec.Day,
		Count:        count,
		EmployeeCode: rec.EmployeeCode,
		EmployeeName: rec.EmployeeName,
		SubmittedAt:  rec.SubmittedAt,
	})
}

func (s *Service) Roster(ctx context.Context, id uint) ([]models.Attendance, error) {
	if _, err := s.store.ProgramByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListAttendance(ctx, id)
}

type FeedbackRequest struct {
	EmployeeCode    string         `json:"employee_code" validate:"required,max=64"`
	EmployeeName    string         `json:"employee_name" validate:"max=255"`
	ContentRating   int            `json:"content_rating" validate:"required,min=1,max=5"`
	TrainerRating   int            `json:"trainer_rating" validate:"required,min=1,max=5"`
	RelevanceRating int            `json:"relevance_rating" validate:"required,min=1,max=5"`
	OverallRating   int            `json:"overall_rating" validate:"required,min=1,max=5"`
	Comments        string         `json:"comments" validate:"max=4000"`
	Answers         datatypes.JSON `json:"answers"`
}

// SubmitFeedback records the single feedback response of an employee.
func (s *Service) SubmitFeedback(ctx context.Context, id uint, req FeedbackRequest) (models.FeedbackResponse, error) {
	req.EmployeeCode = strings.TrimSpace(req.EmployeeCode)
	if err := s.validate.Struct(req); err != nil {
		return models.FeedbackResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	p, d, err := s.CheckFeedback(ctx, id)
	if err != nil {
		return models.FeedbackResponse{}, err
	}
	if !d.Admitted() {
		return models.FeedbackResponse{}, &DeniedError{Decision: d}
	}
	rec := models.FeedbackResponse{
		ProgramID:       p.ID,
		EmployeeCode:    req.EmployeeCode,
		EmployeeName:    strings.TrimSpace(req.EmployeeName),
		ContentRating:   req.ContentRating,
		TrainerRating:   req.TrainerRating,
		RelevanceRating: req.RelevanceRating,
		OverallRating:   req.OverallRating,
		Comments:        strings.TrimSpace(req.Comments),
		Answers:         req.Answers,
		SubmittedAt:     s.now(),
	}
	if err := s.store.CreateFeedback(ctx, &rec); err != nil {
		return models.FeedbackResponse{}, err
	}
	log.Printf("feedback: program %d employee %s", p.ID, rec.EmployeeCode)
	return rec, nil
}

// HallResolution is the program a scanned hall code currently points at.
type HallResolution struct {
	Hall     models.Hall            `json:"hall"`
	Program  models.TrainingProgram `json:"program"`
	Decision schedule.Decision      `json:"decision"`
}

// ResolveHall finds the program running now in the hall behind slug. The
// checksum, when supplied, must match the hall name.
func (s *Service) ResolveHall(ctx context.Context, slug string, checksum *int) (HallResolution, error) {
	hall, err := s.store.HallBySlug(ctx, qrcode.SanitizeName(slug))
	if err != nil {
		return HallResolution{}, err
	}
	if checksum != nil && !qrcode.VerifyLocationChecksum(hall.Name, *checksum) {
		return HallResolution{}, ErrChecksumMismatch
	}
	if !hall.Active {
		return HallResolution{}, fmt.Errorf("%s is inactive: %w", hall.Name, ErrNoActiveProgram)
	}
	now := s.now()
	candidates, err := s.store.ProgramsInHallAt(ctx, hall.Name, now)
	if err != nil {
		return HallResolution{}, err
	}
	if len(candidates) == 0 {
		return HallResolution{}, fmt.Errorf("%s: %w", hall.Name, ErrNoActiveProgram)
	}
	// prefer a program whose codes are enabled
	chosen := candidates[0]
	for _, p := range candidates {
		if p.QRActive {
			chosen = p
			break
		}
	}
	d, err := s.evaluate(chosen, chosen.DailyWindow, now)
	if err != nil {
		return HallResolution{}, err
	}
	return HallResolution{Hall: hall, Program: chosen, Decision: d}, nil
}
