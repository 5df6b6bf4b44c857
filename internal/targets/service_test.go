package targets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/training_qr_backend/internal/database/inmem"
	"github.com/zaqqye/training_qr_backend/internal/models"
)

func TestMonthIndex(t *testing.T) {
	want := map[time.Month]int{
		time.April: 1, time.May: 2, time.December: 9,
		time.January: 10, time.February: 10, time.March: 10,
	}
	for m, idx := range want {
		assert.Equal(t, idx, MonthIndex(time.Date(2025, m, 15, 0, 0, 0, 0, time.UTC)), m.String())
	}
}

func TestDerive(t *testing.T) {
	row := Derive(models.TrainingTarget{Target: 95, BatchSize: 20, YTDActual: 30}, 3)
	assert.Equal(t, 65, row.Balance)
	assert.Equal(t, 3.3, row.ProgramsToRun)
	assert.Equal(t, 27, row.YTDTarget)

	over := Derive(models.TrainingTarget{Target: 10, BatchSize: 5, YTDActual: 40}, 1)
	assert.Equal(t, 0, over.Balance)
	assert.Equal(t, 0.0, over.ProgramsToRun)

	noBatch := Derive(models.TrainingTarget{Target: 50, YTDActual: 10}, 1)
	assert.Equal(t, 40, noBatch.Balance)
	assert.Equal(t, 0.0, noBatch.ProgramsToRun)
}

func seed(store *inmem.Store) (models.TrainingTarget, models.TrainingTarget, models.TrainingTarget) {
	a := store.AddTarget(models.TrainingTarget{TrainingName: "Fire Safety", PMOCategory: "Safety", TargetYear: 2025})
	b := store.AddTarget(models.TrainingTarget{TrainingName: "First Aid", PMOCategory: "Safety", TargetYear: 2025})
	c := store.AddTarget(models.TrainingTarget{TrainingName: "Negotiation", PMOCategory: "Behavioural", TargetYear: 2025})
	store.AddTarget(models.TrainingTarget{TrainingName: "Fire Safety", PMOCategory: "Safety", TargetYear: 2024})
	return a, b, c
}

func TestApplyRecomputesRowsAndTotals(t *testing.T) {
	store := inmem.New()
	a, b, c := seed(store)
	svc := NewService(store, func() time.Time { return time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC) })

	sheet, err := svc.Apply(context.Background(), BatchUpdate{Year: 2025, Items: []Item{
		{ID: a.ID, Target: 100, BatchSize: 20, YTDActual: 30},
		{ID: b.ID, Target: 50, BatchSize: 10, YTDActual: 10},
		{ID: c.ID, Target: 20, BatchSize: 0, YTDActual: 0},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, sheet.MonthIndex)
	require.Len(t, sheet.Rows, 3)

	require.Len(t, sheet.Totals, 2)
	assert.Equal(t, "Behavioural (Total)", sheet.Totals[0].TrainingName)
	safety := sheet.Totals[1]
	assert.Equal(t, 150, safety.Target)
	assert.Equal(t, 110, safety.Balance)
	assert.Equal(t, 3.7, safety.ProgramsToRun)
	assert.Equal(t, 45, safety.YTDTarget)
	assert.Equal(t, 170, sheet.GrandTotal.Target)

	stored, err := store.TargetsByYear(context.Background(), 2025)
	require.NoError(t, err)
	for _, r := range stored {
		if r.ID == a.ID {
			assert.Equal(t, 70, r.Balance)
			assert.Equal(t, 3.5, r.ProgramsToRun)
			assert.Equal(t, 30, r.YTDTarget)
		}
	}
}

func TestApplyRejectsBadBatches(t *testing.T) {
	store := inmem.New()
	a, _, _ := seed(store)
	svc := NewService(store, nil)

	cases := map[string]BatchUpdate{
		"no items":       {Year: 2025},
		"negative":       {Year: 2025, Items: []Item{{ID: a.ID, Target: -1}}},
		"missing id":     {Year: 2025, Items: []Item{{Target: 1}}},
		"bad year":       {Year: 12, Items: []Item{{ID: a.ID}}},
		"duplicate":      {Year: 2025, Items: []Item{{ID: a.ID}, {ID: a.ID}}},
		"other year row": {Year: 2024, Items: []Item{{ID: a.ID, Target: 5}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Apply(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestApplyIsAtomic(t *testing.T) {
	store := inmem.New()
	a, b, _ := seed(store)
	svc := NewService(store, nil)
	store.FailNext = errors.New("disk full")

	_, err := svc.Apply(context.Background(), BatchUpdate{Year: 2025, Items: []Item{
		{ID: a.ID, Target: 100},
		{ID: b.ID, Target: 50},
	}})
	require.Error(t, err)

	stored, err := store.TargetsByYear(context.Background(), 2025)
	require.NoError(t, err)
	for _, r := range stored {
		assert.Zero(t, r.Target)
	}
}

func TestInitYearCopiesLatestStructure(t *testing.T) {
	store := inmem.New()
	seed(store)
	svc := NewService(store, nil)

	added, err := svc.InitYear(context.Background(), 2026, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	rows, err := store.TargetsByYear(context.Background(), 2026)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Zero(t, r.Target)
		assert.Zero(t, r.BatchSize)
	}

	again, err := svc.InitYear(context.Background(), 2026, 2025)
	require.NoError(t, err)
	assert.Zero(t, again)

	years, err := svc.Years(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2026, 2025, 2024}, years)

	_, err = svc.InitYear(context.Background(), 2026, 2026)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSyncCatalogueAddsOnlyMissingTNITrainings(t *testing.T) {
	store := inmem.New()
	seed(store)
	store.AddTraining(models.Training{Name: "Fire Safety", PMOCategory: "Safety", TNIStatus: TNIStatus})
	store.AddTraining(models.Training{Name: "Forklift", PMOCategory: "Safety", TNIStatus: TNIStatus})
	store.AddTraining(models.Training{Name: "Yoga", PMOCategory: "Wellness", TNIStatus: "Non-TNI"})
	svc := NewService(store, nil)

	added, err := svc.SyncCatalogue(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	_, err = svc.SyncCatalogue(context.Background(), 99)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
