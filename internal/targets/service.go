// Package targets maintains the yearly target-vs-actual training plan.
package targets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zaqqye/training_qr_backend/internal/models"
)

var ErrInvalidRequest = errors.New("invalid target update")

type Store interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	TargetsByYear(ctx context.Context, year int) ([]models.TrainingTarget, error)
	UpdateTargetRows(ctx context.Context, year int, rows []models.TrainingTarget) error
	TargetYears(ctx context.Context) ([]int, error)
	TrainingsByTNIStatus(ctx context.Context, status string) ([]models.Training, error)
	InsertMissingTargets(ctx context.Context, rows []models.TrainingTarget) (int, error)
}

// TNIStatus marks catalogue trainings that belong in the yearly plan.
const TNIStatus = "TNI"

// MonthIndex is the position of t's month in the April-to-March plan year,
// April being 1. February and March stay at 10.
func MonthIndex(t time.Time) int {
	m := int(t.Month())
	if m >= 4 {
		return m - 3
	}
	if m+9 > 10 {
		return 10
	}
	return m + 9
}

// Derive fills the computed columns of row from target, batch size and ytd actual.
func Derive(row models.TrainingTarget, monthIndex int) models.TrainingTarget {
	row.Balance = row.Target - row.YTDActual
	if row.Balance < 0 || row.Target <= 0 {
		row.Balance = 0
	}
	row.ProgramsToRun = 0
	if row.BatchSize > 0 {
		row.ProgramsToRun = round1(float64(row.Balance) / float64(row.BatchSize))
	}
	row.YTDTarget = 0
	if row.Target > 0 {
		row.YTDTarget = (row.Target / 10) * monthIndex
	}
	return row
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

type Item struct {
	ID        uint `json:"id" validate:"required"`
	Target    int  `json:"target" validate:"min=0"`
	BatchSize int  `json:"batch_size" validate:"min=0"`
	YTDActual int  `json:"ytd_actual" validate:"min=0"`
}

type BatchUpdate struct {
	Year  int    `json:"year" validate:"required,min=1900,max=2100"`
	Items []Item `json:"items" validate:"required,min=1,dive"`
}

// Sheet is one plan year with category subtotals and a grand total.
type Sheet struct {
	Year       int                     `json:"year"`
	MonthIndex int                     `json:"month_index"`
	Rows       []models.TrainingTarget `json:"rows"`
	Totals     []models.TrainingTarget `json:"category_totals"`
	GrandTotal models.TrainingTarget   `json:"grand_total"`
}

type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, validate: validator.New(), now: now}
}

func (s *Service) Sheet(ctx context.Context, year int) (Sheet, error) {
	rows, err := s.store.TargetsByYear(ctx, year)
	if err != nil {
		return Sheet{}, err
	}
	return Summarize(year, MonthIndex(s.now()), rows), nil
}

// Summarize groups rows by PMO category and adds the derived totals.
func Summarize(year, monthIndex int, rows []models.TrainingTarget) Sheet {
	sheet := Sheet{Year: year, MonthIndex: monthIndex, Rows: rows}
	byCategory := map[string]*models.TrainingTarget{}
	var order []string
	grand := models.TrainingTarget{TrainingName: "Grand Total", TargetYear: year}
	for _, r := range rows {
		t, ok := byCategory[r.PMOCategory]
		if !ok {
			t = &models.TrainingTarget{TrainingName: r.PMOCategory + " (Total)", PMOCategory: r.PMOCategory, TargetYear: year}
			byCategory[r.PMOCategory] = t
			order = append(order, r.PMOCategory)
		}
		for _, acc := range []*models.TrainingTarget{t, &grand} {
			acc.Target += r.Target
			acc.BatchSize += r.BatchSize
			acc.YTDActual += r.YTDActual
		}
	}
	sort.Strings(order)
	for _, cat := range order {
		sheet.Totals = append(sheet.Totals, Derive(*byCategory[cat], monthIndex))
	}
	sheet.GrandTotal = Derive(grand, monthIndex)
	return sheet
}

// Apply validates and stores a batch of edits atomically, recomputing the
// derived columns of every edited row.
func (s *Service) Apply(ctx context.Context, req BatchUpdate) (Sheet, error) {
	if err := s.validate.Struct(req); err != nil {
		return Sheet{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	seen := map[uint]bool{}
	for _, it := range req.Items {
		if seen[it.ID] {
			return Sheet{}, fmt.Errorf("%w: target %d listed twice", ErrInvalidRequest, it.ID)
		}
		seen[it.ID] = true
	}

	monthIndex := MonthIndex(s.now())
	var sheet Sheet
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		current, err := s.store.TargetsByYear(ctx, req.Year)
		if err != nil {
			return err
		}
		byID := make(map[uint]models.TrainingTarget, len(current))
		for _, r := range current {
			byID[r.ID] = r
		}
		updated := make([]models.TrainingTarget, 0, len(req.Items))
		for _, it := range req.Items {
			row, ok := byID[it.ID]
			if !ok {
				return fmt.Errorf("%w: target %d does not belong to %d", ErrInvalidRequest, it.ID, req.Year)
			}
			row.Target, row.BatchSize, row.YTDActual = it.Target, it.BatchSize, it.YTDActual
			row = Derive(row, monthIndex)
			byID[it.ID] = row
			updated = append(updated, row)
		}
		if err := s.store.UpdateTargetRows(ctx, req.Year, updated); err != nil {
			return err
		}
		rows := make([]models.TrainingTarget, 0, len(current))
		for _, r := range current {
			rows = append(rows, byID[r.ID])
		}
		sheet = Summarize(req.Year, monthIndex, rows)
		return nil
	})
	if err != nil {
		return Sheet{}, err
	}
	log.Printf("targets: updated %d rows for %d", len(req.Items), req.Year)
	return sheet, nil
}

func (s *Service) Years(ctx context.Context) ([]int, error) {
	return s.store.TargetYears(ctx)
}

func validYear(year int) error {
	if year < 1900 || year > 2100 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidRequest, year)
	}
	return nil
}

// InitYear opens a plan year with the trainings of sourceYear, or of the
// latest stored year when sourceYear is zero. New rows start with zero
// target and batch size; rows already present are kept.
func (s *Service) InitYear(ctx context.Context, year, sourceYear int) (int, error) {
	if err := validYear(year); err != nil {
		return 0, err
	}
	var added int
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		src := sourceYear
		if src == 0 {
			years, err := s.store.TargetYears(ctx)
			if err != nil {
				return err
			}
			src = year - 1
			if len(years) > 0 {
				src = years[0]
			}
		}
		if src == year {
			return fmt.Errorf("%w: source year equals target year", ErrInvalidRequest)
		}
		rows, err := s.store.TargetsByYear(ctx, src)
		if err != nil {
			return err
		}
		fresh := make([]models.TrainingTarget, 0, len(rows))
		for _, r := range rows {
			fresh = append(fresh, models.TrainingTarget{
				TrainingName: r.TrainingName,
				PMOCategory:  r.PMOCategory,
				PLCategory:   r.PLCategory,
				TargetYear:   year,
			})
		}
		added, err = s.store.InsertMissingTargets(ctx, fresh)
		return err
	})
	if err != nil {
		return 0, err
	}
	log.Printf("targets: initialised %d with %d rows", year, added)
	return added, nil
}

// SyncCatalogue adds a plan row for every TNI training of the catalogue
// that the year does not list yet.
func (s *Service) SyncCatalogue(ctx context.Context, year int) (int, error) {
	if err := validYear(year); err != nil {
		return 0, err
	}
	trainings, err := s.store.TrainingsByTNIStatus(ctx, TNIStatus)
	if err != nil {
		return 0, err
	}
	rows := make([]models.TrainingTarget, 0, len(trainings))
	for _, t := range trainings {
		rows = append(rows, models.TrainingTarget{
			TrainingName: t.Name,
			PMOCategory:  t.PMOCategory,
			PLCategory:   t.PLCategory,
			TargetYear:   year,
		})
	}
	added, err := s.store.InsertMissingTargets(ctx, rows)
	if err != nil {
		return 0, err
	}
	log.Printf("targets: synced %d catalogue trainings into %d", added, year)
	return added, nil
}
