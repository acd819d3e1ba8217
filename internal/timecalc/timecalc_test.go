package timecalc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHours(t *testing.T) {
	tests := []struct {
		name        string
		start, end  string
		breakMins   int
		wantTotal   string
		wantWorking string
	}{
		{"regular shift", "09:00", "18:00", 30, "09:00", "08:30"},
		{"overnight", "23:50", "00:10", 0, "00:20", "00:20"},
		{"overnight with break", "22:00", "06:00", 45, "08:00", "07:15"},
		{"break longer than shift", "10:00", "11:00", 90, "01:00", "00:00"},
		{"same minute", "12:00", "12:00", 0, "00:00", "00:00"},
		{"negative break ignored", "08:00", "10:10", -5, "02:10", "02:10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ComputeHours(tt.start, tt.end, tt.breakMins)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, h.Total)
			assert.Equal(t, tt.wantWorking, h.Working)
			assert.GreaterOrEqual(t, h.WorkingMinutes, 0)
		})
	}
}

func TestComputeHours_OvernightWrap(t *testing.T) {
	for start := 0; start < MinutesPerDay; start += 37 {
		for end := 0; end < start; end += 41 {
			h, err := ComputeHours(FormatMinutes(start), FormatMinutes(end), 0)
			require.NoError(t, err)
			assert.Equal(t, end-start+MinutesPerDay, h.TotalMinutes)
		}
	}
}

func TestComputeHours_Missing(t *testing.T) {
	_, err := ComputeHours("", "10:00", 0)
	assert.ErrorIs(t, err, ErrMissingTime)

	_, err = ComputeHours("10:00", " ", 0)
	assert.ErrorIs(t, err, ErrMissingTime)
}

func TestRecompute_RetainsOnDegenerateInput(t *testing.T) {
	prev, err := ComputeHours("09:00", "17:00", 60)
	require.NoError(t, err)

	assert.Equal(t, prev, prev.Recompute("", "17:00", 60))
	assert.Equal(t, prev, prev.Recompute("09:0", "17:", 60))

	next := prev.Recompute("09:00", "18:00", 60)
	assert.Equal(t, "09:00", next.Total)
	assert.Equal(t, "08:00", next.Working)
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "02:10", FormatMinutes(130))
	assert.Equal(t, "00:00", FormatMinutes(0))
	assert.Equal(t, "00:00", FormatMinutes(-3))
	assert.Equal(t, "24:00", FormatMinutes(1440))
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, 425, m)

	for _, bad := range []string{"7", "24:00", "12:60", "ab:cd", "-1:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestElapsed(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	now := start.Add(2*time.Hour + 3*time.Minute + 4*time.Second)

	assert.Equal(t, "02:03:04", FormatElapsed(Elapsed(start, now)))
	assert.Equal(t, time.Duration(0), Elapsed(now, start))
}
