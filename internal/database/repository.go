package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zaqqye/training_qr_backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// ProgramFilter narrows program listings. Status is "scheduled" (not yet
// ended as of Today) or "completed".
type ProgramFilter struct {
	Location string
	Status   string
	Search   string
	Today    time.Time
	Page     int
	PerPage  int
}

func (f ProgramFilter) Normalize() ProgramFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 10
	}
	if f.Today.IsZero() {
		f.Today = time.Now()
	}
	return f
}

// Repository is the PostgreSQL persistence layer of the portal.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type txKey struct{}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Transaction runs fn in one database transaction; repository calls made with
// the context passed to fn join it. Any error rolls everything back.
func (r *Repository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

func (r *Repository) TrainingByID(ctx context.Context, id uint) (models.Training, error) {
	var t models.Training
	err := r.conn(ctx).First(&t, id).Error
	return t, translateError(err)
}

func (r *Repository) CreateProgram(ctx context.Context, p *models.TrainingProgram) error {
	return translateError(r.conn(ctx).Create(p).Error)
}

func (r *Repository) ProgramByID(ctx context.Context, id uint) (models.TrainingProgram, error) {
	var p models.TrainingProgram
	err := r.conn(ctx).First(&p, id).Error
	return p, translateError(err)
}

// ProgramByIDForUpdate locks the row until the surrounding transaction ends.
func (r *Repository) ProgramByIDForUpdate(ctx context.Context, id uint) (models.TrainingProgram, error) {
	var p models.TrainingProgram
	err := r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	return p, translateError(err)
}

func (r *Repository) SetProgramQRPaths(ctx context.Context, id uint, attendance, feedback *string) error {
	res := r.conn(ctx).Model(&models.TrainingProgram{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"qr_code_path":          attendance,
			"feedback_qr_code_path": feedback,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetProgramActive(ctx context.Context, id uint, active bool) error {
	res := r.conn(ctx).Model(&models.TrainingProgram{}).Where("id = ?", id).Update("qr_active", active)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteProgram(ctx context.Context, id uint) error {
	res := r.conn(ctx).Delete(&models.TrainingProgram{}, id)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListPrograms(ctx context.Context, f ProgramFilter) ([]models.TrainingProgram, int64, error) {
	f = f.Normalize()
	base := r.conn(ctx).Model(&models.TrainingProgram{})
	if loc := strings.TrimSpace(f.Location); loc != "" {
		base = base.Where("location_hall = ?", loc)
	}
	today := f.Today.Format("2006-01-02")
	switch f.Status {
	case "scheduled":
		base = base.Where("end_date >= ?", today)
	case "completed":
		base = base.Where("end_date < ?", today)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := "%" + q + "%"
		base = base.Where("(training_name ILIKE ? OR location_hall ILIKE ?)", like, like)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}
	var out []models.TrainingProgram
	err := base.Order("start_date DESC, start_time DESC").
		Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).
		Find(&out).Error
	return out, total, translateError(err)
}

// ProgramsInHallAt returns programs held in hall whose QR window contains at.
func (r *Repository) ProgramsInHallAt(ctx context.Context, hall string, at time.Time) ([]models.TrainingProgram, error) {
	var out []models.TrainingProgram
	err := r.conn(ctx).
		Where("location_hall = ? AND qr_valid_from <= ? AND qr_valid_to >= ?", hall, at, at).
		Order("qr_valid_from ASC").
		Find(&out).Error
	return out, translateError(err)
}

func (r *Repository) HallBySlug(ctx context.Context, slug string) (models.Hall, error) {
	var h models.Hall
	err := r.conn(ctx).Where("slug = ?", slug).First(&h).Error
	return h, translateError(err)
}

func (r *Repository) CreateAttendance(ctx context.Context, a *models.Attendance) error {
	return translateError(r.conn(ctx).Create(a).Error)
}

func (r *Repository) CountAttendance(ctx context.Context, programID uint, day int) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&models.Attendance{}).
		Where("program_id = ? AND day = ?", programID, day).
		Count(&n).Error
	return n, translateError(err)
}

func (r *Repository) ListAttendance(ctx context.Context, programID uint) ([]models.Attendance, error) {
	var out []models.Attendance
	err := r.conn(ctx).Where("program_id = ?", programID).
		Order("day ASC, submitted_at ASC").
		Find(&out).Error
	return out, translateError(err)
}

func (r *Repository) CreateFeedback(ctx context.Context, f *models.FeedbackResponse) error {
	return translateError(r.conn(ctx).Create(f).Error)
}

func (r *Repository) TargetsByYear(ctx context.Context, year int) ([]models.TrainingTarget, error) {
	var out []models.TrainingTarget
	err := r.conn(ctx).Where("target_year = ?", year).
		Order("pmo_category ASC, training_name ASC").
		Find(&out).Error
	return out, translateError(err)
}

// UpdateTargetRows writes the editable and derived columns of the given rows.
func (r *Repository) UpdateTargetRows(ctx context.Context, year int, rows []models.TrainingTarget) error {
	for _, row := range rows {
		res := r.conn(ctx).Model(&models.TrainingTarget{}).
			Where("id = ? AND target_year = ?", row.ID, year).
			Updates(map[string]interface{}{
				"target":          row.Target,
				"batch_size":      row.BatchSize,
				"ytd_target":      row.YTDTarget,
				"ytd_actual":      row.YTDActual,
				"balance":         row.Balance,
				"programs_to_run": row.ProgramsToRun,
			})
		if res.Error != nil {
			return translateError(res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("target %d for %d: %w", row.ID, year, ErrNotFound)
		}
	}
	return nil
}

// TargetYears lists the plan years that have rows, newest first.
func (r *Repository) TargetYears(ctx context.Context) ([]int, error) {
	var years []int
	err := r.conn(ctx).Model(&models.TrainingTarget{}).
		Distinct("target_year").
		Order("target_year DESC").
		Pluck("target_year", &years).Error
	return years, translateError(err)
}

func (r *Repository) TrainingsByTNIStatus(ctx context.Context, status string) ([]models.Training, error) {
	var out []models.Training
	err := r.conn(ctx).Where("tni_status = ?", status).Order("name ASC").Find(&out).Error
	return out, translateError(err)
}

// InsertMissingTargets inserts rows whose (training_name, target_year) is not
// stored yet and reports how many were added. Existing rows are untouched.
func (r *Repository) InsertMissingTargets(ctx context.Context, rows []models.TrainingTarget) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "training_name"}, {Name: "target_year"}},
		DoNothing: true,
	}).Create(&rows)
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	return int(res.RowsAffected), nil
}
