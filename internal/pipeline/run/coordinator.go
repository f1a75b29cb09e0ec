package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seaward/marketsync/internal/metrics"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/logger"
)

// SummaryRecorder persists a finished run summary. The store implementation
// lives alongside the pipeline_runs entity; tests use an in-memory one.
type SummaryRecorder interface {
	RecordSummary(ctx context.Context, summary *Summary) error
}

// Coordinator executes one pipeline run across all enabled sources.
//
// Sources run concurrently on a bounded worker pool; windows within one
// source run sequentially in chronological order so a partial re-run can
// resume from a known boundary. A window failure is isolated: the source's
// remaining windows and all other sources still execute, and the run ends
// CompletedWithErrors instead of aborting. The exception is a source marked
// required: its failure aborts the run, since sources that link against its
// tables would only produce wrong aggregates.
//
// Finalize hooks run only after every source's windows have completed, in
// registration order and one at a time. Cross-source work in a finalizer
// (order linkage, customer aggregates) therefore always sees fully loaded
// tables and never races another finalizer's SQL.
type Coordinator struct {
	runners  []SourceRunner
	workers  int
	recorder metrics.MetricRecorder
	store    SummaryRecorder
}

// NewCoordinator assembles a Coordinator. store may be nil when run
// persistence is not wired (tests, dry runs).
func NewCoordinator(runners []SourceRunner, workerPoolSize int, recorder metrics.MetricRecorder, store SummaryRecorder) *Coordinator {
	if workerPoolSize <= 0 {
		workerPoolSize = 1
	}
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}
	return &Coordinator{
		runners:  runners,
		workers:  workerPoolSize,
		recorder: recorder,
		store:    store,
	}
}

// sourcePlan is one source's job list, owned by a single worker for the whole
// run.
type sourcePlan struct {
	runner      SourceRunner
	jobs        []*FetchJob
	finalizeErr error
}

// abortState records the first required-source failure and cancels the rest
// of the run when one occurs.
type abortState struct {
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func (a *abortState) trigger(err error) {
	a.mu.Lock()
	if a.err == nil {
		a.err = err
	}
	a.mu.Unlock()
	a.cancel()
}

func (a *abortState) reason() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Run executes the pipeline over the requested range and returns the run
// summary. Job-level failures never surface as the returned error; only
// setup-time failures (an invalid range) abort before any job is created.
func (c *Coordinator) Run(ctx context.Context, r schedule.DateRange) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.New().String(),
		Range:     r,
		State:     RunNotStarted,
		StartedAt: time.Now(),
	}

	plans, err := c.expandPlans(r)
	if err != nil {
		return nil, err
	}

	summary.State = RunRunning
	c.recorder.RecordRunStart(summary.RunID)
	logger.Infof("Run %s started for range %s (%d sources, %d workers)", summary.RunID, r, len(plans), c.workers)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	abort := &abortState{cancel: cancel}

	c.executePlans(runCtx, plans, abort)
	if runCtx.Err() == nil {
		c.finalizePlans(runCtx, r, plans)
	}

	c.assemble(ctx, summary, plans, abort.reason())

	if c.store != nil {
		if err := c.store.RecordSummary(ctx, summary); err != nil {
			logger.Errorf("Run %s: failed to persist run summary: %v", summary.RunID, err)
		}
	}

	c.recorder.RecordRunEnd(summary.RunID, string(summary.State), summary.Duration())
	logger.Infof("Run %s finished: state=%s rows=%d pages=%d skipped=%d failed_jobs=%d",
		summary.RunID, summary.State, summary.RowsWritten, summary.PagesFetched, summary.RecordsSkipped, len(summary.FailedJobs()))

	return summary, nil
}

// expandPlans splits the range into per-source job lists. Splitting happens
// before any I/O so an invalid range fails the run up front.
func (c *Coordinator) expandPlans(r schedule.DateRange) ([]*sourcePlan, error) {
	plans := make([]*sourcePlan, 0, len(c.runners))
	for _, runner := range c.runners {
		windows, err := r.Split(runner.MaxWindowDays())
		if err != nil {
			return nil, err
		}
		jobs := make([]*FetchJob, 0, len(windows))
		for _, w := range windows {
			jobs = append(jobs, &FetchJob{Source: runner.Name(), Window: w, State: JobPending})
		}
		plans = append(plans, &sourcePlan{runner: runner, jobs: jobs})
	}
	return plans, nil
}

// executePlans distributes source plans across the worker pool and waits for
// all of them.
func (c *Coordinator) executePlans(ctx context.Context, plans []*sourcePlan, abort *abortState) {
	planCh := make(chan *sourcePlan)
	var wg sync.WaitGroup

	workers := c.workers
	if workers > len(plans) {
		workers = len(plans)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for plan := range planCh {
				c.runPlan(ctx, plan, abort)
			}
		}()
	}

	for _, plan := range plans {
		planCh <- plan
	}
	close(planCh)
	wg.Wait()
}

// runPlan executes one source's jobs in chronological order. Cancellation is
// honored between jobs only: a job already in flight runs to completion so no
// window is left half-written.
func (c *Coordinator) runPlan(ctx context.Context, plan *sourcePlan, abort *abortState) {
	name := plan.runner.Name()
	for _, job := range plan.jobs {
		if ctx.Err() != nil {
			logger.Warnf("Source %s: run cancelled, %s and later windows not started", name, job.Window)
			return
		}
		c.runJob(ctx, plan.runner, job, abort)
	}
}

// finalizePlans runs every source's Finalize after all windows of all
// sources are done. Sequential execution keeps the finalizers' full-table
// SQL from contending with each other.
func (c *Coordinator) finalizePlans(ctx context.Context, full schedule.DateRange, plans []*sourcePlan) {
	for _, plan := range plans {
		if ctx.Err() != nil {
			return
		}
		if err := plan.runner.Finalize(ctx, full); err != nil {
			plan.finalizeErr = fmt.Errorf("source %s: finalize failed: %w", plan.runner.Name(), err)
			logger.Errorf("%v", plan.finalizeErr)
		}
	}
}

func (c *Coordinator) runJob(ctx context.Context, runner SourceRunner, job *FetchJob, abort *abortState) {
	job.State = JobInFlight
	job.StartedAt = time.Now()

	result, err := runner.RunWindow(ctx, job.Window)

	job.FinishedAt = time.Now()
	job.Pages = result.Pages
	job.RowsWritten = result.RowsWritten
	job.Skipped = result.Skipped

	if err != nil {
		job.State = JobFailed
		job.Err = err
		logger.Errorf("Source %s window %s failed: %v", job.Source, job.Window, err)
		if runner.Required() {
			abort.trigger(fmt.Errorf("required source %s window %s failed: %w", job.Source, job.Window, err))
		}
	} else {
		job.State = JobSucceeded
		logger.Infof("Source %s window %s succeeded: pages=%d rows=%d skipped=%d",
			job.Source, job.Window, result.Pages, result.RowsWritten, result.Skipped)
	}

	c.recorder.RecordJobEnd(job.Source, string(job.State), job.FinishedAt.Sub(job.StartedAt))
	c.recorder.RecordPagesFetched(job.Source, result.Pages)
	c.recorder.RecordRowsWritten(job.Source, result.RowsWritten)
	c.recorder.RecordRecordsSkipped(job.Source, result.Skipped)
}

// assemble folds every plan's outcome into the summary and fixes the terminal
// state.
func (c *Coordinator) assemble(ctx context.Context, summary *Summary, plans []*sourcePlan, requiredErr error) {
	clean := true
	for _, plan := range plans {
		for _, job := range plan.jobs {
			summary.Jobs = append(summary.Jobs, job)
			summary.PagesFetched += job.Pages
			summary.RowsWritten += job.RowsWritten
			summary.RecordsSkipped += job.Skipped
			switch job.State {
			case JobFailed:
				clean = false
				summary.appendError(fmt.Errorf("source %s window %s: %w", job.Source, job.Window, job.Err))
			case JobPending:
				// Left behind by a cancellation.
				clean = false
			}
		}
		if plan.finalizeErr != nil {
			clean = false
			summary.appendError(plan.finalizeErr)
		}
	}

	if requiredErr != nil {
		clean = false
		summary.appendError(requiredErr)
	}
	if err := ctx.Err(); err != nil {
		clean = false
		summary.appendError(err)
	}

	summary.FinishedAt = time.Now()
	switch {
	case requiredErr != nil:
		summary.State = RunFailed
	case clean:
		summary.State = RunCompleted
	default:
		summary.State = RunCompletedWithErrors
	}
}
