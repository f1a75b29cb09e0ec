// Package metrics defines the recorder interface for pipeline observability
// and its Prometheus and no-op implementations.
package metrics

import (
	"time"
)

// MetricRecorder receives pipeline events. Implementations must be safe for
// concurrent use: sources report from worker goroutines.
type MetricRecorder interface {
	// RecordRunStart records the start of a pipeline run.
	RecordRunStart(runID string)
	// RecordRunEnd records a finished run with its terminal status
	// ("Completed" or "CompletedWithErrors") and duration.
	RecordRunEnd(runID string, status string, duration time.Duration)
	// RecordJobEnd records a finished fetch job with its terminal state
	// ("Succeeded" or "Failed").
	RecordJobEnd(source string, state string, duration time.Duration)
	// RecordPagesFetched adds fetched pages for a source.
	RecordPagesFetched(source string, count int)
	// RecordRowsWritten adds upserted rows for a source.
	RecordRowsWritten(source string, count int64)
	// RecordRecordsSkipped adds malformed records skipped during normalization.
	RecordRecordsSkipped(source string, count int)
}

// NoopRecorder discards all events. Used when metrics are not wired, and as
// the default in tests.
type NoopRecorder struct{}

func NewNoopRecorder() MetricRecorder { return &NoopRecorder{} }

func (*NoopRecorder) RecordRunStart(string)                        {}
func (*NoopRecorder) RecordRunEnd(string, string, time.Duration)   {}
func (*NoopRecorder) RecordJobEnd(string, string, time.Duration)   {}
func (*NoopRecorder) RecordPagesFetched(string, int)               {}
func (*NoopRecorder) RecordRowsWritten(string, int64)              {}
func (*NoopRecorder) RecordRecordsSkipped(string, int)             {}

var _ MetricRecorder = (*NoopRecorder)(nil)
