package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

func TestCalendarWindows(t *testing.T) {
	wednesday := time.Date(2026, 3, 18, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		resolver  CalendarWindows
		period    models.Period
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "week from monday",
			resolver:  CalendarWindows{WeekStart: time.Monday},
			period:    models.Weekly,
			wantStart: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "week from sunday",
			resolver:  CalendarWindows{WeekStart: time.Sunday},
			period:    models.Weekly,
			wantStart: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "calendar month",
			resolver:  CalendarWindows{},
			period:    models.Monthly,
			wantStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := tt.resolver.Window(tt.period, wednesday)
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(w.Start), "start %v", w.Start)
			assert.True(t, tt.wantEnd.Equal(w.End), "end %v", w.End)
			assert.True(t, w.Contains(wednesday))
			assert.False(t, w.Contains(w.End))
		})
	}
}

func TestCalendarWindowOnWeekStartDay(t *testing.T) {
	monday := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	w, err := CalendarWindows{WeekStart: time.Monday}.Window(models.Weekly, monday)
	require.NoError(t, err)
	assert.True(t, monday.Equal(w.Start))
}

func TestCalendarWindowUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// 2026-03-31 20:00 UTC is already April 1st at UTC+10.
	now := time.Date(2026, 3, 31, 20, 0, 0, 0, time.UTC)

	w, err := CalendarWindows{Location: loc}.Window(models.Monthly, now)
	require.NoError(t, err)
	assert.Equal(t, time.April, w.Start.Month())
}

func TestRollingWindows(t *testing.T) {
	now := time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)

	w, err := RollingWindows{}.Window(models.Weekly, now)
	require.NoError(t, err)
	assert.True(t, w.Contains(now))
	assert.True(t, w.Contains(now.AddDate(0, 0, -6)))
	assert.False(t, w.Contains(now.AddDate(0, 0, -8)))

	w, err = RollingWindows{}.Window(models.Monthly, now)
	require.NoError(t, err)
	assert.True(t, w.Contains(now.AddDate(0, 0, -29)))
	assert.False(t, w.Contains(now.AddDate(0, 0, -31)))
}

func TestUnknownPeriodHasNoWindow(t *testing.T) {
	_, err := CalendarWindows{}.Window(models.Period(0), time.Now())
	assert.Error(t, err)
	_, err = RollingWindows{}.Window(models.Period(0), time.Now())
	assert.Error(t, err)
}
