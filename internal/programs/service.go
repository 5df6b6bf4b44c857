// Package programs schedules training programs and manages their QR codes
// over the program lifetime.
package programs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zaqqye/training_qr_backend/internal/database"
	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/qrcode"
	"github.com/zaqqye/training_qr_backend/internal/schedule"
)

type Store interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	TrainingByID(ctx context.Context, id uint) (models.Training, error)
	CreateProgram(ctx context.Context, p *models.TrainingProgram) error
	ProgramByID(ctx context.Context, id uint) (models.TrainingProgram, error)
	ProgramByIDForUpdate(ctx context.Context, id uint) (models.TrainingProgram, error)
	SetProgramQRPaths(ctx context.Context, id uint, attendance, feedback *string) error
	SetProgramActive(ctx context.Context, id uint, active bool) error
	DeleteProgram(ctx context.Context, id uint) error
	ListPrograms(ctx context.Context, f database.ProgramFilter) ([]models.TrainingProgram, int64, error)
}

// Renderer is the subset of *qrcode.Generator the service needs.
type Renderer interface {
	GenerateProgramCodes(ctx context.Context, programID uint, baseURL string) (qrcode.ProgramArtifacts, error)
	Remove(names ...string)
	Exists(name string) bool
	Path(name string) string
	Poster(info qrcode.PosterInfo) ([]byte, error)
}

type Options struct {
	Buffer        time.Duration
	Location      *time.Location
	BaseURL       string
	PartialPolicy PartialPolicy
	// DailyWindow is the default for programs that do not choose.
	DailyWindow bool
	Now         func() time.Time
}

type Service struct {
	store  Store
	render Renderer
	opts   Options
}

func NewService(store Store, render Renderer, opts Options) *Service {
	if opts.Buffer <= 0 {
		opts.Buffer = schedule.DefaultBuffer
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PartialPolicy == "" {
		opts.PartialPolicy = PolicyRollback
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, render: render, opts: opts}
}

func (s *Service) Location() *time.Location { return s.opts.Location }

func (s *Service) Now() time.Time { return s.opts.Now() }

type ScheduleRequest struct {
	TrainingID   uint
	LocationHall string
	ProgramType  string
	StartDate    time.Time
	StartTime    string
	EndTime      string
	Faculty      []string
	// DailyWindow overrides Options.DailyWindow when set.
	DailyWindow *bool
}

type ScheduleResult struct {
	Program   models.TrainingProgram  `json:"program"`
	Artifacts qrcode.ProgramArtifacts `json:"-"`
}

// Schedule stores a new program with its QR window and both QR codes in one
// transaction. On render failure nothing is stored unless the partial policy
// is keep and exactly one code rendered; the program is then returned
// together with ErrQRPending.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (ScheduleResult, error) {
	training, err := s.store.TrainingByID(ctx, req.TrainingID)
	if err != nil {
		return ScheduleResult{}, fmt.Errorf("training %d: %w", req.TrainingID, err)
	}
	days, err := schedule.DurationDaysFromHours(training.LearningHours)
	if err != nil {
		return ScheduleResult{}, err
	}
	plan, err := schedule.ComputeWindow(schedule.Input{
		StartDate:    req.StartDate,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		DurationDays: days,
		Buffer:       s.opts.Buffer,
		Location:     s.opts.Location,
	})
	if err != nil {
		return ScheduleResult{}, err
	}
	if strings.TrimSpace(req.LocationHall) == "" {
		return ScheduleResult{}, &schedule.InvalidScheduleError{Field: "location_hall", Reason: "required"}
	}

	daily := s.opts.DailyWindow
	if req.DailyWindow != nil {
		daily = *req.DailyWindow
	}
	faculty := make([]string, 4)
	copy(faculty, req.Faculty)

	program := models.TrainingProgram{
		TrainingID:          training.ID,
		TrainingName:        training.Name,
		PMOTrainingCategory: training.PMOCategory,
		PLCategory:          training.PLCategory,
		BRSRCategory:        training.BRSRCategory,
		TNIStatus:           training.TNIStatus,
		LearningHours:       training.LearningHours,
		LocationHall:        strings.TrimSpace(req.LocationHall),
		ProgramType:         req.ProgramType,
		Faculty1:            faculty[0],
		Faculty2:            faculty[1],
		Faculty3:            faculty[2],
		Faculty4:            faculty[3],
		StartDate:           plan.StartDate,
		EndDate:             plan.EndDate,
		StartTime:           plan.StartTime.String(),
		EndTime:             plan.EndTime.String(),
		DurationDays:        plan.DurationDays,
		QRValidFrom:         plan.Window.From,
		QRValidTo:           plan.Window.To,
		QRActive:            true,
		DailyWindow:         daily,
	}

	var (
		arts    qrcode.ProgramArtifacts
		written []string
		pending error
	)
	base := s.opts.BaseURL
	err = s.store.Transaction(ctx, func(ctx context.Context) error {
		if err := s.store.CreateProgram(ctx, &program); err != nil {
			return err
		}
		var renderErr error
		arts, renderErr = s.render.GenerateProgramCodes(ctx, program.ID, base)
		written = artifactNames(arts)
		if renderErr != nil {
			var partial *qrcode.PartialRenderError
			if !errors.As(renderErr, &partial) || s.opts.PartialPolicy != PolicyKeep {
				return renderErr
			}
			pending = fmt.Errorf("program %d: %w: %w", program.ID, ErrQRPending, renderErr)
		}
		program.QRCodePath = artifactName(arts.Attendance)
		program.FeedbackQRCodePath = artifactName(arts.Feedback)
		return s.store.SetProgramQRPaths(ctx, program.ID, program.QRCodePath, program.FeedbackQRCodePath)
	})
	if err != nil {
		s.render.Remove(written...)
		return ScheduleResult{}, err
	}
	if pending != nil {
		log.Printf("programs: program %d stored with pending qr codes: %v", program.ID, pending)
		return ScheduleResult{Program: program, Artifacts: arts}, pending
	}
	log.Printf("programs: scheduled program %d (%s) window %s - %s", program.ID, program.TrainingName,
		program.QRValidFrom.Format(time.RFC3339), program.QRValidTo.Format(time.RFC3339))
	return ScheduleResult{Program: program, Artifacts: arts}, nil
}

// Toggle flips qr_active. It is accepted only while the validity window is open.
func (s *Service) Toggle(ctx context.Context, id uint) (models.TrainingProgram, error) {
	var out models.TrainingProgram
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		p, err := s.store.ProgramByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.opts.Now()
		w := Window(p)
		if !w.Contains(now) {
			return &ToggleRejectedError{ProgramID: p.ID, Now: now, Window: w}
		}
		p.QRActive = !p.QRActive
		if err := s.store.SetProgramActive(ctx, p.ID, p.QRActive); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return models.TrainingProgram{}, err
	}
	log.Printf("programs: program %d qr_active=%v", out.ID, out.QRActive)
	return out, nil
}

// Regenerate re-renders both codes of an existing program, overwriting the
// previous files. A failed kind keeps its old file when one is still on disk;
// the program is still returned together with the render error.
func (s *Service) Regenerate(ctx context.Context, id uint) (models.TrainingProgram, error) {
	var (
		out     models.TrainingProgram
		pending error
	)
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		p, err := s.store.ProgramByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		arts, renderErr := s.render.GenerateProgramCodes(ctx, p.ID, s.opts.BaseURL)
		if renderErr != nil {
			var partial *qrcode.PartialRenderError
			if !errors.As(renderErr, &partial) {
				return renderErr
			}
		}
		p.QRCodePath = s.keepOrReplace(p.QRCodePath, arts.Attendance)
		p.FeedbackQRCodePath = s.keepOrReplace(p.FeedbackQRCodePath, arts.Feedback)
		if err := s.store.SetProgramQRPaths(ctx, p.ID, p.QRCodePath, p.FeedbackQRCodePath); err != nil {
			return err
		}
		switch {
		case p.QRPending():
			pending = fmt.Errorf("program %d: %w: %w", p.ID, ErrQRPending, renderErr)
		case renderErr != nil:
			// The previous file was kept and may encode an outdated target.
			pending = fmt.Errorf("program %d: kept previous code: %w", p.ID, renderErr)
		}
		out = p
		return nil
	})
	if err != nil {
		return models.TrainingProgram{}, err
	}
	if pending != nil {
		return out, pending
	}
	log.Printf("programs: regenerated qr codes for program %d", out.ID)
	return out, nil
}

func (s *Service) keepOrReplace(current *string, fresh *qrcode.Artifact) *string {
	if fresh != nil {
		return artifactName(fresh)
	}
	if current != nil && s.render.Exists(*current) {
		return current
	}
	return nil
}

// Delete removes the program row, then its QR images on a best-effort basis.
func (s *Service) Delete(ctx context.Context, id uint) error {
	var removed models.TrainingProgram
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		p, err := s.store.ProgramByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		removed = p
		return s.store.DeleteProgram(ctx, id)
	})
	if err != nil {
		return err
	}
	var names []string
	for _, p := range []*string{removed.QRCodePath, removed.FeedbackQRCodePath} {
		if p != nil {
			names = append(names, *p)
		}
	}
	s.render.Remove(names...)
	log.Printf("programs: deleted program %d", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id uint) (models.TrainingProgram, error) {
	return s.store.ProgramByID(ctx, id)
}

// List pages through programs; Status is judged against today in the program time zone.
func (s *Service) List(ctx context.Context, f database.ProgramFilter) ([]models.TrainingProgram, int64, error) {
	if f.Today.IsZero() {
		f.Today = s.opts.Now().In(s.opts.Location)
	}
	return s.store.ListPrograms(ctx, f)
}

// ArtifactFile resolves the on-disk path of one of a program's QR images.
func (s *Service) ArtifactFile(ctx context.Context, id uint, kind qrcode.Kind) (string, error) {
	p, err := s.store.ProgramByID(ctx, id)
	if err != nil {
		return "", err
	}
	var name *string
	switch kind {
	case qrcode.KindAttendance:
		name = p.QRCodePath
	case qrcode.KindFeedback:
		name = p.FeedbackQRCodePath
	default:
		return "", fmt.Errorf("qr kind %q: %w", kind, ErrArtifactMissing)
	}
	if name == nil || *name == "" || !s.render.Exists(*name) {
		return "", fmt.Errorf("%s qr code of program %d: %w", kind, id, ErrArtifactMissing)
	}
	return s.render.Path(*name), nil
}

// Poster renders the printable A4 sheet carrying both codes of a program.
func (s *Service) Poster(ctx context.Context, id uint) ([]byte, error) {
	p, err := s.store.ProgramByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.QRPending() {
		return nil, fmt.Errorf("program %d: %w", id, ErrQRPending)
	}
	loc := s.opts.Location
	return s.render.Poster(qrcode.PosterInfo{
		Title: p.TrainingName,
		Hall:  p.LocationHall,
		Schedule: fmt.Sprintf("%s to %s, %s - %s daily",
			p.StartDate.Format("02/01/2006"), p.EndDate.Format("02/01/2006"), p.StartTime, p.EndTime),
		ValidRange: fmt.Sprintf("QR valid %s - %s",
			p.QRValidFrom.In(loc).Format("02/01/2006 15:04"), p.QRValidTo.In(loc).Format("02/01/2006 15:04")),
		Attendance: *p.QRCodePath,
		Feedback:   *p.FeedbackQRCodePath,
	})
}

// Window is the stored validity window of p.
func Window(p models.TrainingProgram) schedule.Window {
	return schedule.Window{From: p.QRValidFrom, To: p.QRValidTo}
}

func artifactName(a *qrcode.Artifact) *string {
	if a == nil {
		return nil
	}
	name := a.Name
	return &name
}

func artifactNames(arts qrcode.ProgramArtifacts) []string {
	var out []string
	for _, a := range []*qrcode.Artifact{arts.Attendance, arts.Feedback} {
		if a != nil {
			out = append(out, a.Name)
		}
	}
	return out
}
