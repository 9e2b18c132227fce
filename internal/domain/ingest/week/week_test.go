package week

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve_SingleWeekSnapsToMonday(t *testing.T) {
	tests := []struct {
		name      string
		dates     []time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "exact monday to sunday",
			dates:     []time.Time{date(2025, time.January, 6), date(2025, time.January, 12)},
			wantStart: date(2025, time.January, 6),
			wantEnd:   date(2025, time.January, 12),
		},
		{
			name:      "midweek batch snaps back",
			dates:     []time.Time{date(2025, time.January, 8), date(2025, time.January, 10)},
			wantStart: date(2025, time.January, 6),
			wantEnd:   date(2025, time.January, 12),
		},
		{
			name:      "single day",
			dates:     []time.Time{date(2025, time.January, 13)},
			wantStart: date(2025, time.January, 13),
			wantEnd:   date(2025, time.January, 19),
		},
		{
			name:      "sunday only snaps to preceding monday",
			dates:     []time.Time{date(2025, time.January, 12)},
			wantStart: date(2025, time.January, 6),
			wantEnd:   date(2025, time.January, 12),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.dates)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, got.Start)
			assert.Equal(t, tt.wantEnd, got.End)
		})
	}
}

// A multi-week export picks the most recent complete Monday-Sunday week
// ending on or before the newest transaction.
func TestResolve_MultiWeekPicksLastCompleteWeek(t *testing.T) {
	// Jan 1 - Jan 20 2025 spans 20 days; Jan 20 is a Monday, so the last
	// complete week is Jan 13 - Jan 19.
	got, err := Resolve([]time.Time{
		date(2025, time.January, 1),
		date(2025, time.January, 10),
		date(2025, time.January, 20),
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.January, 13), got.Start)
	assert.Equal(t, date(2025, time.January, 19), got.End)
}

func TestResolve_MultiWeekEndingOnSunday(t *testing.T) {
	// Max is Sunday Jan 19: the week ending that day is complete.
	got, err := Resolve([]time.Time{
		date(2025, time.January, 2),
		date(2025, time.January, 19),
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.January, 13), got.Start)
	assert.Equal(t, date(2025, time.January, 19), got.End)
}

func TestResolve_WeekInvariant(t *testing.T) {
	// Every resolved window is exactly 7 days, Monday through Sunday.
	for day := 1; day <= 60; day++ {
		d := date(2025, time.January, 1).AddDate(0, 0, day)
		w, err := Resolve([]time.Time{d})
		require.NoError(t, err)
		assert.Equal(t, time.Monday, w.Start.Weekday())
		assert.Equal(t, time.Sunday, w.End.Weekday())
		assert.Equal(t, w.Start.AddDate(0, 0, 6), w.End)
	}
}

func TestResolve_NoDates(t *testing.T) {
	_, err := Resolve(nil)
	assert.ErrorIs(t, err, ErrNoDates)
}

func TestMonthOf(t *testing.T) {
	w, err := MonthOf([]time.Time{
		date(2025, time.January, 3),
		date(2025, time.February, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.February, 1), w.Start)
	assert.Equal(t, date(2025, time.February, 28), w.End)
}

func TestWindow_Contains(t *testing.T) {
	w := Window{Start: date(2025, time.January, 6), End: date(2025, time.January, 12)}

	assert.True(t, w.Contains(date(2025, time.January, 6)))
	assert.True(t, w.Contains(date(2025, time.January, 12)))
	assert.True(t, w.Contains(time.Date(2025, time.January, 8, 15, 30, 0, 0, time.UTC)))
	assert.False(t, w.Contains(date(2025, time.January, 5)))
	assert.False(t, w.Contains(date(2025, time.January, 13)))
}

func TestIsWeekend(t *testing.T) {
	assert.False(t, IsWeekend(date(2025, time.January, 13))) // Monday
	assert.True(t, IsWeekend(date(2025, time.January, 11)))  // Saturday
	assert.True(t, IsWeekend(date(2025, time.January, 12)))  // Sunday
}
