// Package schedule models inclusive date ranges and splits them into
// API-sized windows. All range arithmetic in the pipeline goes through this
// package so that every source sees the same calendar semantics.
package schedule

import (
	"fmt"
	"time"

	"github.com/seaward/marketsync/internal/support/exception"
)

const moduleName = "schedule"

// DateLayout is the wire format for dates at the CLI and API boundary.
const DateLayout = "2006-01-02"

// DateRange is an inclusive calendar date range. Start and End carry only
// their date component, normalized to midnight UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a DateRange from two timestamps, truncating both to
// their date component. It returns an InvalidRange error when start is after
// end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: truncateToDate(start), End: truncateToDate(end)}
	if r.Start.After(r.End) {
		return DateRange{}, NewInvalidRangeError(
			fmt.Sprintf("start date %s is after end date %s", r.Start.Format(DateLayout), r.End.Format(DateLayout)))
	}
	return r, nil
}

// ParseDateRange parses "YYYY-MM-DD" start and end strings into a DateRange.
func ParseDateRange(startStr, endStr string) (DateRange, error) {
	start, err := time.ParseInLocation(DateLayout, startStr, time.UTC)
	if err != nil {
		return DateRange{}, NewInvalidRangeError(fmt.Sprintf("start date %q is not in YYYY-MM-DD format", startStr))
	}
	end, err := time.ParseInLocation(DateLayout, endStr, time.UTC)
	if err != nil {
		return DateRange{}, NewInvalidRangeError(fmt.Sprintf("end date %q is not in YYYY-MM-DD format", endStr))
	}
	return NewDateRange(start, end)
}

// Days returns the number of calendar days the range covers, inclusive.
// A single-day range returns 1.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether the given date falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := truncateToDate(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// String formats the range as "YYYY-MM-DD..YYYY-MM-DD".
func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// Split divides the range into chronologically ordered sub-ranges of at most
// maxWindowDays days each. The sub-ranges are contiguous and non-overlapping:
// each window starts the day after the previous window ends, and their union
// covers the full range exactly. Only the final window may be shorter than
// maxWindowDays.
func (r DateRange) Split(maxWindowDays int) ([]DateRange, error) {
	if maxWindowDays <= 0 {
		return nil, NewInvalidRangeError(fmt.Sprintf("window size must be positive, got %d", maxWindowDays))
	}

	var windows []DateRange
	cursor := r.Start
	for !cursor.After(r.End) {
		windowEnd := cursor.AddDate(0, 0, maxWindowDays-1)
		if windowEnd.After(r.End) {
			windowEnd = r.End
		}
		windows = append(windows, DateRange{Start: cursor, End: windowEnd})
		cursor = windowEnd.AddDate(0, 0, 1)
	}
	return windows, nil
}

// NewInvalidRangeError builds the non-retryable, non-skippable error raised
// for malformed or inverted date ranges. Callers detect it with
// exception.IsErrorOfType(err, "InvalidRange").
func NewInvalidRangeError(message string) error {
	return exception.NewPipelineError(moduleName, message, exception.ErrInvalidRange, false, false)
}

func truncateToDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
