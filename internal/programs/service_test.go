package programs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/training_qr_backend/internal/database"
	"github.com/zaqqye/training_qr_backend/internal/database/inmem"
	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/qrcode"
	"github.com/zaqqye/training_qr_backend/internal/schedule"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store    *inmem.Store
	gen      *qrcode.Generator
	svc      *Service
	clock    *clock
	folder   string
	training models.Training
}

// failOn makes the encoder fail for payloads containing any of the fragments.
func failOn(fragments ...string) qrcode.EncodeFunc {
	return func(content string, style qrcode.Style) ([]byte, error) {
		for _, f := range fragments {
			if strings.Contains(content, f) {
				return nil, errors.New("encoder exploded")
			}
		}
		return qrcode.EncodePNG(content, style)
	}
}

func newFixture(t *testing.T, policy PartialPolicy, encode qrcode.EncodeFunc) *fixture {
	t.Helper()
	folder := t.TempDir()
	c := &clock{now: time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)}
	gen, err := qrcode.NewGenerator(qrcode.Options{Folder: folder, Encode: encode, Now: c.Now})
	require.NoError(t, err)
	store := inmem.New()
	training := store.AddTraining(models.Training{
		Name:          "Fire Safety",
		LearningHours: 16,
		PMOCategory:   "Safety",
		TNIStatus:     "TNI",
	})
	svc := NewService(store, gen, Options{
		Buffer:        15 * time.Minute,
		Location:      time.UTC,
		BaseURL:       "https://portal.example.com",
		PartialPolicy: policy,
		Now:           c.Now,
	})
	return &fixture{store: store, gen: gen, svc: svc, clock: c, folder: folder, training: training}
}

func (f *fixture) request() ScheduleRequest {
	return ScheduleRequest{
		TrainingID:   f.training.ID,
		LocationHall: "Main Hall",
		ProgramType:  "Classroom",
		StartDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		StartTime:    "09:00",
		EndTime:      "17:00",
		Faculty:      []string{"A. Trainer"},
	}
}

func pngFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	return matches
}

func TestScheduleEndToEnd(t *testing.T) {
	f := newFixture(t, PolicyRollback, nil)

	res, err := f.svc.Schedule(context.Background(), f.request())
	require.NoError(t, err)

	p := res.Program
	assert.Equal(t, 2, p.DurationDays)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), p.EndDate)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 45, 0, 0, time.UTC), p.QRValidFrom)
	assert.Equal(t, time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC), p.QRValidTo)
	assert.True(t, p.QRActive)
	assert.Equal(t, "Fire Safety", p.TrainingName)
	assert.Equal(t, "A. Trainer", p.Faculty1)
	require.False(t, p.QRPending())

	stored, err := f.svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, qrcode.ArtifactName(qrcode.KindAttendance, p.ID), *stored.QRCodePath)
	assert.Equal(t, qrcode.ArtifactName(qrcode.KindFeedback, p.ID), *stored.FeedbackQRCodePath)
	assert.Len(t, pngFiles(t, f.folder), 2)
	require.NotNil(t, res.Artifacts.Attendance)
	assert.Equal(t, "https://portal.example.com/attendance/"+strconv.FormatUint(uint64(p.ID), 10), res.Artifacts.Attendance.URL)
}

func TestScheduleRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, PolicyRollback, nil)

	req := f.request()
	req.StartTime = "25:99"
	_, err := f.svc.Schedule(context.Background(), req)
	var invalid *schedule.InvalidScheduleError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "start_time", invalid.Field)

	req = f.request()
	req.TrainingID = 999
	_, err = f.svc.Schedule(context.Background(), req)
	assert.ErrorIs(t, err, database.ErrNotFound)

	req = f.request()
	req.LocationHall = "  "
	_, err = f.svc.Schedule(context.Background(), req)
	require.ErrorAs(t, err, &invalid)

	assert.Empty(t, f.store.Programs())
	assert.Empty(t, pngFiles(t, f.folder))
}

func TestScheduleRollsBackOnRenderFailure(t *testing.T) {
	f := newFixture(t, PolicyRollback, failOn("/feedback/"))

	_, err := f.svc.Schedule(context.Background(), f.request())
	var partial *qrcode.PartialRenderError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, qrcode.KindFeedback, partial.Failed.Kind)

	assert.Empty(t, f.store.Programs())
	assert.Empty(t, pngFiles(t, f.folder), "the attendance image written before the failure is cleaned up")
}

func TestScheduleTotalRenderFailure(t *testing.T) {
	f := newFixture(t, PolicyKeep, failOn("/feedback/", "/attendance/"))

	_, err := f.svc.Schedule(context.Background(), f.request())
	var renderErr *qrcode.RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.NotErrorIs(t, err, ErrQRPending)
	assert.Empty(t, f.store.Programs())
}

func TestScheduleKeepPolicyLeavesProgramPending(t *testing.T) {
	f := newFixture(t, PolicyKeep, failOn("/feedback/"))

	res, err := f.svc.Schedule(context.Background(), f.request())
	require.ErrorIs(t, err, ErrQRPending)
	var partial *qrcode.PartialRenderError
	assert.ErrorAs(t, err, &partial)

	stored, getErr := f.svc.Get(context.Background(), res.Program.ID)
	require.NoError(t, getErr)
	assert.True(t, stored.QRPending())
	require.NotNil(t, stored.QRCodePath)
	assert.Nil(t, stored.FeedbackQRCodePath)

	_, err = f.svc.ArtifactFile(context.Background(), stored.ID, qrcode.KindFeedback)
	assert.ErrorIs(t, err, ErrArtifactMissing)
	_, err = f.svc.Poster(context.Background(), stored.ID)
	assert.ErrorIs(t, err, ErrQRPending)
}

func TestRegenerateRecoversPendingProgram(t *testing.T) {
	f := newFixture(t, PolicyKeep, nil)
	broken, err := qrcode.NewGenerator(qrcode.Options{Folder: f.folder, Encode: failOn("/feedback/")})
	require.NoError(t, err)
	f.svc.render = broken

	res, err := f.svc.Schedule(context.Background(), f.request())
	require.ErrorIs(t, err, ErrQRPending)

	f.svc.render = f.gen
	p, err := f.svc.Regenerate(context.Background(), res.Program.ID)
	require.NoError(t, err)
	assert.False(t, p.QRPending())
	assert.Len(t, pngFiles(t, f.folder), 2)
}

func TestRegenerateKeepsExistingFileOnPartialFailure(t *testing.T) {
	f := newFixture(t, PolicyRollback, nil)
	res, err := f.svc.Schedule(context.Background(), f.request())
	require.NoError(t, err)

	broken, err := qrcode.NewGenerator(qrcode.Options{Folder: f.folder, Encode: failOn("/feedback/")})
	require.NoError(t, err)
	f.svc.render = broken

	p, err := f.svc.Regenerate(context.Background(), res.Program.ID)
	var partial *qrcode.PartialRenderError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, qrcode.KindFeedback, partial.Failed.Kind)
	assert.NotErrorIs(t, err, ErrQRPending)
	assert.Equal(t, res.Program.ID, p.ID)
	assert.False(t, p.QRPending())
	assert.Equal(t, qrcode.ArtifactName(qrcode.KindFeedback, p.ID), *p.FeedbackQRCodePath)
}

func TestScheduleTimeoutLeavesNoFiles(t *testing.T) {
	f := newFixture(t, PolicyRollback, nil)
	slow, err := qrcode.NewGenerator(qrcode.Options{
		Folder:  f.folder,
		Timeout: 20 * time.Millisecond,
		Encode: func(content string, style qrcode.Style) ([]byte, error) {
			time.Sleep(150 * time.Millisecond)
			return qrcode.EncodePNG(content, style)
		},
	})
	require.NoError(t, err)
	f.svc.render = slow

	_, err = f.svc.Schedule(context.Background(), f.request())
	require.Error(t, err)
	assert.Empty(t, f.store.Programs())

	time.Sleep(400 * time.Millisecond)
	assert.Empty(t, pngFiles(t, f.folder))
}

func TestToggleInsideWindow(t *testing.T) {
	f := newFixture(t, PolicyRollback, nil)
	res, err := f.svc.Schedule(context.Background(), f.request())
	require.NoError(t, err)
	id := res.Program.ID

	f.clock.Set(res.Program.QRValidTo)
	p, err := f.svc.Toggle(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, p.QRActive)

	f.clock.Set(res.Program.QRValidFrom)
	p, err = f.svc.Toggle(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, p.QRActive)
}

func TestToggleOutsideWindowIsRejected(t *testing.T) {
	f := newFixture(t, PolicyRollback, nil)
	res, err := f.svc.Schedule(context.Background(), f.request())
	require.NoError(t, err)
	id := res.Program.ID

	for _, at := range []time.Time{
		res.Program.QRValidTo.Add(time.Second),
		res.Program.QRValidFrom.Add(-time.Second),
	} {
		f.clock.Set(at)
		_, err := f.svc.Toggle(context.Background(), id)
		var rejected *ToggleRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, id, rejected.ProgramID)

		stored, getErr := f.svc.Get(context.Background(), id)
		require.NoError(t, getErr)
		assert.True(t, stored.QRActive, "state unchanged")
	}

	_, err = f.svc.Toggle(context.Background(), 9999)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestConcurrentTogglesAreSerialised(t *testing.T) {
	f := newFixture(t, PolicyRollback, nil)
	res, err := f.svc.Schedule(context.Background(), f.request())
	require.NoError(t, err)
	f.clock.Set(res.Program.QRValidFrom.Add(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Toggle(context.Background(), res.Program.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := f.svc.Get(context.Background(), res.Program.ID)
	require.NoError(t, err)
	assert.True(t, stored.QRActive, "an even number of flips returns to the initial state")
}

func TestDeleteRemovesArtifacts(t *testing.T) {
	f := newFixture(t, PolicyRollback, nil)
	res, err := f.svc.Schedule(context.Background(), f.request())
	require.NoError(t, err)
	require.Len(t, pngFiles(t, f.folder), 2)

	require.NoError(t, f.svc.Delete(context.Background(), res.Program.ID))
	assert.Empty(t, pngFiles(t, f.folder))
	_, err = f.svc.Get(context.Background(), res.Program.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), res.Program.ID), database.ErrNotFound)
}

func TestArtifactFileAndPoster(t *testing.T) {
	f := newFixture(t, PolicyRollback, nil)
	res, err := f.svc.Schedule(context.Background(), f.request())
	require.NoError(t, err)

	path, err := f.svc.ArtifactFile(context.Background(), res.Program.ID, qrcode.KindAttendance)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)

	_, err = f.svc.ArtifactFile(context.Background(), res.Program.ID, qrcode.KindHall)
	assert.ErrorIs(t, err, ErrArtifactMissing)

	pdf, err := f.svc.Poster(context.Background(), res.Program.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t, PolicyRollback, nil)
	past := f.request()
	past.StartDate = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.Schedule(context.Background(), past)
	require.NoError(t, err)
	upcoming := f.request()
	upcoming.LocationHall = "Board Room"
	_, err = f.svc.Schedule(context.Background(), upcoming)
	require.NoError(t, err)

	items, total, err := f.svc.List(context.Background(), database.ProgramFilter{Status: "completed"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Main Hall", items[0].LocationHall)

	items, total, err = f.svc.List(context.Background(), database.ProgramFilter{Status: "scheduled"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Board Room", items[0].LocationHall)

	_, total, err = f.svc.List(context.Background(), database.ProgramFilter{Search: "fire"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestParsePartialPolicy(t *testing.T) {
	p, err := ParsePartialPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyRollback, p)
	p, err = ParsePartialPolicy(" Keep ")
	require.NoError(t, err)
	assert.Equal(t, PolicyKeep, p)
	_, err = ParsePartialPolicy("retry")
	assert.Error(t, err)
}
