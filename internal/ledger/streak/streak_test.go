package streak

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "japa/pkg/domain"
)

func buckets(days ...string) map[id.Day]int64 {
	m := make(map[id.Day]int64, len(days))
	for _, d := range days {
		m[id.Day(d)]++
	}
	return m
}

func TestActiveDays(t *testing.T) {
	t.Run("sorted ascending", func(t *testing.T) {
		active := ActiveDays(buckets("2025-03-03", "2025-03-01", "2025-03-02"))
		assert.Equal(t, []id.Day{"2025-03-01", "2025-03-02", "2025-03-03"}, active)
	})

	t.Run("zero buckets excluded", func(t *testing.T) {
		days := buckets("2025-03-01")
		days["2025-03-02"] = 0
		assert.Equal(t, []id.Day{"2025-03-01"}, ActiveDays(days))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, ActiveDays(nil))
	})
}

func TestCurrent(t *testing.T) {
	today := id.Day("2025-03-10")

	tests := []struct {
		name   string
		active []id.Day
		want   int
	}{
		{"no history", nil, 0},
		{"today only", []id.Day{"2025-03-10"}, 1},
		{"consecutive run ending today", []id.Day{"2025-03-08", "2025-03-09", "2025-03-10"}, 3},
		{"run ending yesterday still counts", []id.Day{"2025-03-08", "2025-03-09"}, 2},
		{"gap before yesterday breaks the streak", []id.Day{"2025-03-07", "2025-03-08"}, 0},
		{"gap inside history limits the run", []id.Day{"2025-03-05", "2025-03-06", "2025-03-09", "2025-03-10"}, 2},
		{"only old history", []id.Day{"2025-02-01"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Current(tt.active, today))
		})
	}
}

func TestLongest(t *testing.T) {
	tests := []struct {
		name   string
		active []id.Day
		want   int
	}{
		{"no history", nil, 0},
		{"single day", []id.Day{"2025-03-10"}, 1},
		{"one run", []id.Day{"2025-03-01", "2025-03-02", "2025-03-03"}, 3},
		{"longest run in the past", []id.Day{"2025-02-01", "2025-02-02", "2025-02-03", "2025-02-04", "2025-03-09", "2025-03-10"}, 4},
		{"runs across a month boundary", []id.Day{"2025-02-27", "2025-02-28", "2025-03-01"}, 3},
		{"scattered days", []id.Day{"2025-01-01", "2025-01-05", "2025-01-09"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Longest(tt.active))
		})
	}
}

// Recording on consecutive dates grows both streaks together; a missed
// date resets the current streak but the longest survives.
func TestStreakLifecycle(t *testing.T) {
	days := map[id.Day]int64{"2025-03-01": 5}

	active := ActiveDays(days)
	assert.Equal(t, 1, Current(active, "2025-03-01"))

	days["2025-03-02"] = 3
	active = ActiveDays(days)
	assert.Equal(t, 2, Current(active, "2025-03-02"))
	assert.Equal(t, 2, Longest(active))

	// Nothing recorded on the 3rd; seen from the 4th the streak is gone.
	assert.Equal(t, 0, Current(active, "2025-03-04"))
	assert.Equal(t, 2, Longest(active))
}

func TestWeekCount(t *testing.T) {
	days := map[id.Day]int64{
		"2025-03-04": 10, // 6 days before today, inside the window
		"2025-03-03": 99, // 7 days before today, outside
		"2025-03-10": 5,
	}
	assert.Equal(t, int64(15), WeekCount(days, "2025-03-10"))
	assert.Equal(t, int64(0), WeekCount(nil, "2025-03-10"))
}

func TestDailyAverage(t *testing.T) {
	assert.Equal(t, 0.0, DailyAverage(0, 0))
	assert.Equal(t, 7.0, DailyAverage(21, 3))
	assert.InDelta(t, 3.33, DailyAverage(10, 3), 0.01)
}
