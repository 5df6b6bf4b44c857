// Package inmem is a map-backed implementation of the repository used by
// service and controller tests.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zaqqye/training_qr_backend/internal/database"
	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/schedule"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID     uint
	trainings  map[uint]models.Training
	programs   map[uint]models.TrainingProgram
	halls      map[uint]models.Hall
	attendance map[uint]models.Attendance
	feedback   map[uint]models.FeedbackResponse
	targets    map[uint]models.TrainingTarget

	// FailNext, when set, is returned by the next write and then cleared.
	FailNext error
}

func New() *Store {
	return &Store{
		trainings:  map[uint]models.Training{},
		programs:   map[uint]models.TrainingProgram{},
		halls:      map[uint]models.Hall{},
		attendance: map[uint]models.Attendance{},
		feedback:   map[uint]models.FeedbackResponse{},
		targets:    map[uint]models.TrainingTarget{},
	}
}

type txKey struct{}

type snapshot struct {
	nextID     uint
	trainings  map[uint]models.Training
	programs   map[uint]models.TrainingProgram
	halls      map[uint]models.Hall
	attendance map[uint]models.Attendance
	feedback   map[uint]models.FeedbackResponse
	targets    map[uint]models.TrainingTarget
}

func copyMap[V any](m map[uint]V) map[uint]V {
	out := make(map[uint]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		nextID:     s.nextID,
		trainings:  copyMap(s.trainings),
		programs:   copyMap(s.programs),
		halls:      copyMap(s.halls),
		attendance: copyMap(s.attendance),
		feedback:   copyMap(s.feedback),
		targets:    copyMap(s.targets),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.trainings = snap.trainings
	s.programs = snap.programs
	s.halls = snap.halls
	s.attendance = snap.attendance
	s.feedback = snap.feedback
	s.targets = snap.targets
}

// Transaction serialises fn against other transactions and restores the
// previous state when fn fails.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func (s *Store) failure() error {
	if err := s.FailNext; err != nil {
		s.FailNext = nil
		return err
	}
	return nil
}

func (s *Store) AddTraining(t models.Training) models.Training {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id()
	}
	s.trainings[t.ID] = t
	return t
}

func (s *Store) AddHall(h models.Hall) models.Hall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == 0 {
		h.ID = s.id()
	}
	s.halls[h.ID] = h
	return h
}

func (s *Store) AddTarget(t models.TrainingTarget) models.TrainingTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id()
	}
	s.targets[t.ID] = t
	return t
}

// Programs returns every stored program ordered by id.
func (s *Store) Programs() []models.TrainingProgram {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TrainingProgram, 0, len(s.programs))
	for _, p := range s.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) TrainingByID(_ context.Context, id uint) (models.Training, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trainings[id]
	if !ok {
		return models.Training{}, database.ErrNotFound
	}
	return t, nil
}

func (s *Store) CreateProgram(_ context.Context, p *models.TrainingProgram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	if p.DurationDays < 1 || p.DurationDays > 3 {
		return fmt.Errorf("check constraint on duration_days violated: %d", p.DurationDays)
	}
	now := time.Now()
	p.ID = s.id()
	p.CreatedAt, p.UpdatedAt = now, now
	s.programs[p.ID] = *p
	return nil
}

func (s *Store) ProgramByID(_ context.Context, id uint) (models.TrainingProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.programs[id]
	if !ok {
		return models.TrainingProgram{}, database.ErrNotFound
	}
	return p, nil
}

func (s *Store) ProgramByIDForUpdate(ctx context.Context, id uint) (models.TrainingProgram, error) {
	return s.ProgramByID(ctx, id)
}

func (s *Store) updateProgram(id uint, fn func(p *models.TrainingProgram)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	p, ok := s.programs[id]
	if !ok {
		return database.ErrNotFound
	}
	fn(&p)
	p.UpdatedAt = time.Now()
	s.programs[id] = p
	return nil
}

func (s *Store) SetProgramQRPaths(_ context.Context, id uint, attendance, feedback *string) error {
	return s.updateProgram(id, func(p *models.TrainingProgram) {
		p.QRCodePath = attendance
		p.FeedbackQRCodePath = feedback
	})
}

func (s *Store) SetProgramActive(_ context.Context, id uint, active bool) error {
	return s.updateProgram(id, func(p *models.TrainingProgram) { p.QRActive = active })
}

func (s *Store) DeleteProgram(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	if _, ok := s.programs[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.programs, id)
	return nil
}

func (s *Store) ListPrograms(_ context.Context, f database.ProgramFilter) ([]models.TrainingProgram, int64, error) {
	f = f.Normalize()
	today := schedule.DateOnly(f.Today)
	search := strings.ToLower(strings.TrimSpace(f.Search))

	s.mu.Lock()
	var matched []models.TrainingProgram
	for _, p := range s.programs {
		if loc := strings.TrimSpace(f.Location); loc != "" && p.LocationHall != loc {
			continue
		}
		end := schedule.DateOnly(p.EndDate)
		switch f.Status {
		case "scheduled":
			if end.Before(today) {
				continue
			}
		case "completed":
			if !end.Before(today) {
				continue
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.TrainingName), search) &&
			!strings.Contains(strings.ToLower(p.LocationHall), search) {
			continue
		}
		matched = append(matched, p)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartDate.Equal(matched[j].StartDate) {
			return matched[i].StartDate.After(matched[j].StartDate)
		}
		return matched[i].StartTime > matched[j].StartTime
	})
	total := int64(len(matched))
	from := (f.Page - 1) * f.PerPage
	if from >= len(matched) {
		return []models.TrainingProgram{}, total, nil
	}
	to := from + f.PerPage
	if to > len(matched) {
		to = len(matched)
	}
	return matched[from:to], total, nil
}

func (s *Store) ProgramsInHallAt(_ context.Context, hall string, at time.Time) ([]models.TrainingProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TrainingProgram
	for _, p := range s.programs {
		if p.LocationHall != hall || at.Before(p.QRValidFrom) || at.After(p.QRValidTo) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QRValidFrom.Before(out[j].QRValidFrom) })
	return out, nil
}

func (s *Store) HallBySlug(_ context.Context, slug string) (models.Hall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.halls {
		if h.Slug == slug {
			return h, nil
		}
	}
	return models.Hall{}, database.ErrNotFound
}

func (s *Store) CreateAttendance(_ context.Context, a *models.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	for _, existing := range s.attendance {
		if existing.ProgramID == a.ProgramID && existing.EmployeeCode == a.EmployeeCode && existing.Day == a.Day {
			return fmt.Errorf("%w: uniq_attendance_day", database.ErrDuplicate)
		}
	}
	a.ID = s.id()
	a.CreatedAt = time.Now()
	s.attendance[a.ID] = *a
	return nil
}

func (s *Store) CountAttendance(_ context.Context, programID uint, day int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.attendance {
		if a.ProgramID == programID && a.Day == day {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListAttendance(_ context.Context, programID uint) ([]models.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Attendance
	for _, a := range s.attendance {
		if a.ProgramID == programID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (s *Store) CreateFeedback(_ context.Context, f *models.FeedbackResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	for _, existing := range s.feedback {
		if existing.ProgramID == f.ProgramID && existing.EmployeeCode == f.EmployeeCode {
			return fmt.Errorf("%w: uniq_feedback_employee", database.ErrDuplicate)
		}
	}
	f.ID = s.id()
	f.CreatedAt = time.Now()
	s.feedback[f.ID] = *f
	return nil
}

// Feedback returns the stored responses of a program.
func (s *Store) Feedback(programID uint) []models.FeedbackResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FeedbackResponse
	for _, f := range s.feedback {
		if f.ProgramID == programID {
			out = append(out, f)
		}
	}
	return out
}

func (s *Store) TargetsByYear(_ context.Context, year int) ([]models.TrainingTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TrainingTarget
	for _, t := range s.targets {
		if t.TargetYear == year {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PMOCategory != out[j].PMOCategory {
			return out[i].PMOCategory < out[j].PMOCategory
		}
		return out[i].TrainingName < out[j].TrainingName
	})
	return out, nil
}

func (s *Store) UpdateTargetRows(_ context.Context, year int, rows []models.TrainingTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	for _, row := range rows {
		t, ok := s.targets[row.ID]
		if !ok || t.TargetYear != year {
			return fmt.Errorf("target %d for %d: %w", row.ID, year, database.ErrNotFound)
		}
		t.Target = row.Target
		t.BatchSize = row.BatchSize
		t.YTDTarget = row.YTDTarget
		t.YTDActual = row.YTDActual
		t.Balance = row.Balance
		t.ProgramsToRun = row.ProgramsToRun
		t.UpdatedAt = time.Now()
		s.targets[row.ID] = t
	}
	return nil
}

func (s *Store) TargetYears(_ context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[int]bool{}
	var years []int
	for _, t := range s.targets {
		if !seen[t.TargetYear] {
			seen[t.TargetYear] = true
			years = append(years, t.TargetYear)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

func (s *Store) TrainingsByTNIStatus(_ context.Context, status string) ([]models.Training, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Training
	for _, t := range s.trainings {
		if t.TNIStatus == status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertMissingTargets(_ context.Context, rows []models.TrainingTarget) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return 0, err
	}
	added := 0
	for _, row := range rows {
		exists := false
		for _, t := range s.targets {
			if t.TrainingName == row.TrainingName && t.TargetYear == row.TargetYear {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		row.ID = s.id()
		row.UpdatedAt = time.Now()
		s.targets[row.ID] = row
		added++
	}
	return added, nil
}
