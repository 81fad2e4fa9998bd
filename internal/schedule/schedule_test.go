package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestNextOccurrenceWindow(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	tests := []struct {
		name      string
		ref       time.Time
		day       time.Weekday
		wantStart time.Time
		wantLen   time.Duration
	}{
		{
			name:      "same day is zero days ahead",
			ref:       time.Date(2025, 3, 2, 20, 0, 0, 0, ny),
			day:       time.Sunday,
			wantStart: time.Date(2025, 3, 2, 0, 0, 0, 0, ny),
			wantLen:   24 * time.Hour,
		},
		{
			name:      "spring forward day is 23h",
			ref:       time.Date(2025, 3, 7, 12, 0, 0, 0, ny),
			day:       time.Sunday,
			wantStart: time.Date(2025, 3, 9, 0, 0, 0, 0, ny),
			wantLen:   23 * time.Hour,
		},
		{
			name:      "fall back day is 25h",
			ref:       time.Date(2025, 10, 29, 9, 0, 0, 0, ny),
			day:       time.Sunday,
			wantStart: time.Date(2025, 11, 2, 0, 0, 0, 0, ny),
			wantLen:   25 * time.Hour,
		},
		{
			name:      "reference converted to zone before picking the date",
			ref:       time.Date(2025, 3, 9, 3, 0, 0, 0, time.UTC), // Sat 22:00 EST
			day:       time.Sunday,
			wantStart: time.Date(2025, 3, 9, 0, 0, 0, 0, ny),
			wantLen:   23 * time.Hour,
		},
		{
			name:      "wraps across the week",
			ref:       time.Date(2025, 3, 6, 8, 0, 0, 0, ny), // Thursday
			day:       time.Wednesday,
			wantStart: time.Date(2025, 3, 12, 0, 0, 0, 0, ny),
			wantLen:   24 * time.Hour,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := NextOccurrenceWindow(tt.ref, tt.day, ny)
			assert.True(t, tt.wantStart.Equal(start), "start %s, want %s", start, tt.wantStart)
			assert.Equal(t, tt.wantLen-time.Nanosecond, end.Sub(start))
			assert.Equal(t, tt.day, start.Weekday())
			assert.Equal(t, tt.day, end.In(ny).Weekday())
		})
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = LoadLocation("Mars/Olympus_Mons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTimezone))
	assert.Contains(t, err.Error(), "Mars/Olympus_Mons")
}

func TestLocalizeDoesNotMutate(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	src := time.Date(2025, 6, 1, 0, 30, 0, 0, time.UTC)

	got := Localize(src, tokyo, LongFormat)

	assert.Equal(t, "Sunday, June 1, 2025 9:30 AM", got)
	assert.Equal(t, time.UTC, src.Location())
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("Sunday")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)

	d, err = ParseWeekday("thu")
	require.NoError(t, err)
	assert.Equal(t, time.Thursday, d)

	_, err = ParseWeekday("someday")
	assert.Error(t, err)
}

func TestRoundMinutes(t *testing.T) {
	assert.Equal(t, 0, RoundMinutes(0))
	assert.Equal(t, 0, RoundMinutes(29))
	assert.Equal(t, 1, RoundMinutes(30))
	assert.Equal(t, 5, RoundMinutes(300))
	assert.Equal(t, 3, RoundMinutes(170))
}
