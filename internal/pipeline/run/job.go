// Package run orchestrates a pipeline run: it expands the requested date
// range into fetch jobs per source, executes them on a bounded worker pool,
// and aggregates the outcome into a run summary.
package run

import (
	"context"
	"time"

	"github.com/seaward/marketsync/internal/pipeline/schedule"
)

// JobState is the lifecycle state of a FetchJob.
type JobState string

const (
	JobPending   JobState = "Pending"
	JobInFlight  JobState = "InFlight"
	JobSucceeded JobState = "Succeeded"
	JobFailed    JobState = "Failed"
)

// FetchJob is one (source, window) pair queued for extraction. A job is owned
// exclusively by the coordinator worker processing its source, so its fields
// need no locking until the run summary is assembled.
type FetchJob struct {
	Source string
	Window schedule.DateRange
	State  JobState
	Err    error

	Pages       int
	RowsWritten int64
	Skipped     int

	StartedAt  time.Time
	FinishedAt time.Time
}

// WindowResult reports what one window's execution produced.
type WindowResult struct {
	// Pages is the number of pages fetched.
	Pages int
	// RowsWritten is the number of canonical rows handed to the store.
	RowsWritten int64
	// Skipped is the number of malformed records dropped during normalization.
	Skipped int
}

// SourceRunner executes the fetch-normalize-write cycle for one window of one
// data source. Implementations live in internal/source.
type SourceRunner interface {
	// Name returns the source name used in job summaries and metrics.
	Name() string
	// Required reports whether a window failure of this source aborts the
	// whole run. Sources whose tables others link against are required.
	Required() bool
	// MaxWindowDays returns the widest window the source's API accepts.
	MaxWindowDays() int
	// RunWindow fetches, normalizes, and writes one window.
	RunWindow(ctx context.Context, window schedule.DateRange) (WindowResult, error)
	// Finalize runs once per run, after every source's windows have
	// completed, for work that spans windows or reads other sources' tables
	// (e.g., recalculating aggregates over the full range). It is invoked
	// even when some non-required windows failed.
	Finalize(ctx context.Context, full schedule.DateRange) error
}
