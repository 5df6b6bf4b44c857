package schedule

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDurationDaysFromHours(t *testing.T) {
	cases := []struct {
		hours float64
		want  int
	}{
		{1, 1},
		{4, 1},
		{8, 1},
		{12, 2},
		{16, 2},
		{20, 3},
		{24, 3},
		{30, 3},
		{0, 1},
		{3.99, 1},
		{36, 3},
	}
	for _, tc := range cases {
		got, err := DurationDaysFromHours(tc.hours)
		require.NoError(t, err)
		assert.Equalf(t, tc.want, got, "hours=%v", tc.hours)
	}
}

func TestDurationDaysFromHoursRejectsUnusableHours(t *testing.T) {
	for _, h := range []float64{-1, math.Inf(1), math.NaN()} {
		_, err := DurationDaysFromHours(h)
		var invalid *InvalidScheduleError
		assert.Truef(t, errors.As(err, &invalid), "hours=%v err=%v", h, err)
	}
}

func TestComputeWindowTwoDayProgram(t *testing.T) {
	plan, err := ComputeWindow(Input{
		StartDate:    date(2025, time.June, 1),
		StartTime:    "09:00",
		EndTime:      "17:00",
		DurationDays: 2,
		Buffer:       15 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 1, 8, 45, 0, 0, time.UTC), plan.Window.From)
	assert.Equal(t, time.Date(2025, time.June, 2, 17, 0, 0, 0, time.UTC), plan.Window.To)
	assert.Equal(t, date(2025, time.June, 2), plan.EndDate)
	assert.Equal(t, time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC), plan.Start)
}

func TestComputeWindowUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	plan, err := ComputeWindow(Input{
		StartDate:    date(2025, time.June, 1),
		StartTime:    "09:00:00",
		EndTime:      "17:30",
		DurationDays: 1,
		Buffer:       30 * time.Minute,
		Location:     loc,
	})
	require.NoError(t, err)
	assert.True(t, plan.Window.From.Equal(time.Date(2025, time.June, 1, 8, 30, 0, 0, loc)))
	assert.True(t, plan.Window.To.Equal(time.Date(2025, time.June, 1, 17, 30, 0, 0, loc)))
}

func TestComputeWindowInvariantHolds(t *testing.T) {
	starts := []string{"07:00", "09:30", "13:00"}
	ends := []string{"12:00", "17:00", "23:59"}
	for days := MinDurationDays; days <= MaxDurationDays; days++ {
		for _, s := range starts {
			for _, e := range ends {
				for _, buf := range []time.Duration{time.Minute, 15 * time.Minute, time.Hour} {
					plan, err := ComputeWindow(Input{
						StartDate:    date(2025, time.March, 30),
						StartTime:    s,
						EndTime:      e,
						DurationDays: days,
						Buffer:       buf,
					})
					if err != nil {
						// single-day programs ending before they open are rejected, nothing else is
						require.Equal(t, 1, days, "start=%s end=%s", s, e)
						continue
					}
					assert.True(t, plan.Window.From.Before(plan.Window.To))
					assert.Equal(t, plan.Start.Add(-buf), plan.Window.From)
				}
			}
		}
	}
}

func TestComputeWindowRejectsBadInput(t *testing.T) {
	base := Input{
		StartDate:    date(2025, time.June, 1),
		StartTime:    "09:00",
		EndTime:      "17:00",
		DurationDays: 1,
		Buffer:       DefaultBuffer,
	}
	cases := map[string]func(in *Input){
		"bad start time":   func(in *Input) { in.StartTime = "9am" },
		"bad end time":     func(in *Input) { in.EndTime = "25:00" },
		"zero duration":    func(in *Input) { in.DurationDays = 0 },
		"four days":        func(in *Input) { in.DurationDays = 4 },
		"zero buffer":      func(in *Input) { in.Buffer = 0 },
		"missing date":     func(in *Input) { in.StartDate = time.Time{} },
		"collapsed window": func(in *Input) { in.EndTime = "08:45" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			_, err := ComputeWindow(in)
			var invalid *InvalidScheduleError
			require.Error(t, err)
			assert.True(t, errors.As(err, &invalid), "got %T", err)
		})
	}
}

func TestWindowContainsIsInclusive(t *testing.T) {
	w := Window{
		From: time.Date(2025, time.June, 1, 8, 45, 0, 0, time.UTC),
		To:   time.Date(2025, time.June, 2, 17, 0, 0, 0, time.UTC),
	}
	assert.True(t, w.Contains(w.From))
	assert.True(t, w.Contains(w.To))
	assert.False(t, w.Contains(w.From.Add(-time.Second)))
	assert.False(t, w.Contains(w.To.Add(time.Second)))
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay(" 9:05 ")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 5}, tod)
	assert.Equal(t, "09:05", tod.String())

	tod, err = ParseTimeOfDay("17:00:30")
	require.NoError(t, err)
	assert.Equal(t, 17*time.Hour+30*time.Second, tod.Offset())

	_, err = ParseTimeOfDay("")
	assert.Error(t, err)
}
