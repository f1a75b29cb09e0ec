package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seaward/marketsync/internal/support/exception"
)

func mustRange(t *testing.T, start, end string) DateRange {
	t.Helper()
	r, err := ParseDateRange(start, end)
	assert.NoError(t, err)
	return r
}

func TestParseDateRange(t *testing.T) {
	r := mustRange(t, "2025-01-01", "2025-01-31")
	assert.Equal(t, "2025-01-01..2025-01-31", r.String())
	assert.Equal(t, 31, r.Days())
}

func TestParseDateRange_SingleDay(t *testing.T) {
	r := mustRange(t, "2025-06-15", "2025-06-15")
	assert.Equal(t, 1, r.Days())
	windows, err := r.Split(10)
	assert.NoError(t, err)
	assert.Len(t, windows, 1)
	assert.Equal(t, r, windows[0])
}

func TestParseDateRange_StartAfterEnd(t *testing.T) {
	_, err := ParseDateRange("2025-02-01", "2025-01-01")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrInvalidRange))
	assert.True(t, exception.IsErrorOfType(err, "InvalidRange"))

	var pe *exception.PipelineError
	assert.True(t, errors.As(err, &pe))
	assert.False(t, pe.IsRetryable())
	assert.False(t, pe.IsSkippable())
}

func TestParseDateRange_MalformedInput(t *testing.T) {
	for _, tc := range []struct{ start, end string }{
		{"2025/01/01", "2025-01-31"},
		{"2025-01-01", "31-01-2025"},
		{"", "2025-01-31"},
		{"2025-13-01", "2025-12-31"},
	} {
		_, err := ParseDateRange(tc.start, tc.end)
		assert.Error(t, err, "start=%q end=%q", tc.start, tc.end)
		assert.True(t, errors.Is(err, exception.ErrInvalidRange))
	}
}

func TestNewDateRange_TruncatesTimeComponent(t *testing.T) {
	start := time.Date(2025, 3, 1, 23, 59, 58, 0, time.FixedZone("JST", 9*3600))
	end := time.Date(2025, 3, 5, 1, 0, 0, 0, time.UTC)
	r, err := NewDateRange(start, end)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, 0, r.Start.Hour())
}

func TestSplit_ContiguousNonOverlapping(t *testing.T) {
	r := mustRange(t, "2025-01-01", "2025-03-15")
	windows, err := r.Split(10)
	assert.NoError(t, err)
	assert.NotEmpty(t, windows)

	assert.Equal(t, r.Start, windows[0].Start)
	assert.Equal(t, r.End, windows[len(windows)-1].End)

	totalDays := 0
	for i, w := range windows {
		assert.False(t, w.Start.After(w.End))
		assert.LessOrEqual(t, w.Days(), 10)
		if i > 0 {
			// Each window starts the day after the previous one ends.
			assert.Equal(t, windows[i-1].End.AddDate(0, 0, 1), w.Start)
		}
		totalDays += w.Days()
	}
	assert.Equal(t, r.Days(), totalDays)
}

func TestSplit_OnlyLastWindowShort(t *testing.T) {
	r := mustRange(t, "2025-01-01", "2025-01-25")
	windows, err := r.Split(10)
	assert.NoError(t, err)
	assert.Len(t, windows, 3)
	assert.Equal(t, 10, windows[0].Days())
	assert.Equal(t, 10, windows[1].Days())
	assert.Equal(t, 5, windows[2].Days())
}

func TestSplit_RangeShorterThanWindow(t *testing.T) {
	r := mustRange(t, "2025-01-01", "2025-01-03")
	windows, err := r.Split(30)
	assert.NoError(t, err)
	assert.Len(t, windows, 1)
	assert.Equal(t, r, windows[0])
}

func TestSplit_ExactMultiple(t *testing.T) {
	r := mustRange(t, "2025-01-01", "2025-01-20")
	windows, err := r.Split(10)
	assert.NoError(t, err)
	assert.Len(t, windows, 2)
	assert.Equal(t, 10, windows[0].Days())
	assert.Equal(t, 10, windows[1].Days())
}

func TestSplit_InvalidWindowSize(t *testing.T) {
	r := mustRange(t, "2025-01-01", "2025-01-31")
	_, err := r.Split(0)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrInvalidRange))
}

func TestContains(t *testing.T) {
	r := mustRange(t, "2025-01-10", "2025-01-20")
	assert.True(t, r.Contains(time.Date(2025, 1, 10, 5, 0, 0, 0, time.UTC)))
	assert.True(t, r.Contains(time.Date(2025, 1, 20, 23, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC)))
}
