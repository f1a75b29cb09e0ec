package run

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/seaward/marketsync/internal/pipeline/schedule"
)

// RunState is the lifecycle state of a whole run.
type RunState string

const (
	RunNotStarted          RunState = "NotStarted"
	RunRunning             RunState = "Running"
	RunCompleted           RunState = "Completed"
	RunCompletedWithErrors RunState = "CompletedWithErrors"
	// RunFailed means a required source failed and the run was aborted:
	// remaining windows were skipped and no finalizer ran.
	RunFailed RunState = "Failed"
)

// Summary is the outcome of one pipeline run. It lists every job with its
// terminal state so an operator can re-invoke the pipeline for exactly the
// failed (source, window) pairs.
type Summary struct {
	RunID      string
	Range      schedule.DateRange
	State      RunState
	StartedAt  time.Time
	FinishedAt time.Time

	Jobs []*FetchJob

	PagesFetched   int
	RowsWritten    int64
	RecordsSkipped int

	// Err aggregates every job and finalize failure of the run. It is nil
	// when the run completed cleanly.
	Err error
}

// FailedJobs returns the jobs that ended in the Failed state.
func (s *Summary) FailedJobs() []*FetchJob {
	var failed []*FetchJob
	for _, j := range s.Jobs {
		if j.State == JobFailed {
			failed = append(failed, j)
		}
	}
	return failed
}

// PendingJobs returns jobs that never started, e.g., after a cancellation.
func (s *Summary) PendingJobs() []*FetchJob {
	var pending []*FetchJob
	for _, j := range s.Jobs {
		if j.State == JobPending {
			pending = append(pending, j)
		}
	}
	return pending
}

// appendError folds err into the summary's aggregated error.
func (s *Summary) appendError(err error) {
	if err == nil {
		return
	}
	s.Err = multierror.Append(s.Err, err)
}

// Duration returns the wall-clock duration of the run.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
