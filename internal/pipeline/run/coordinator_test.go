package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/exception"
)

// stubRunner is a scripted SourceRunner for coordinator tests.
type stubRunner struct {
	mu            sync.Mutex
	name          string
	required      bool
	maxWindowDays int
	windowResult  WindowResult
	failWindows   map[string]error // keyed by window String()
	finalizeErr   error
	ranWindows    []string
	finalized     []schedule.DateRange
	onWindow      func(window schedule.DateRange)
	onFinalize    func(full schedule.DateRange)
}

func (s *stubRunner) Name() string        { return s.name }
func (s *stubRunner) Required() bool      { return s.required }
func (s *stubRunner) MaxWindowDays() int  { return s.maxWindowDays }

func (s *stubRunner) RunWindow(_ context.Context, window schedule.DateRange) (WindowResult, error) {
	s.mu.Lock()
	s.ranWindows = append(s.ranWindows, window.String())
	onWindow := s.onWindow
	s.mu.Unlock()

	if onWindow != nil {
		onWindow(window)
	}
	if err, ok := s.failWindows[window.String()]; ok {
		return WindowResult{}, err
	}
	return s.windowResult, nil
}

func (s *stubRunner) Finalize(_ context.Context, full schedule.DateRange) error {
	s.mu.Lock()
	s.finalized = append(s.finalized, full)
	onFinalize := s.onFinalize
	s.mu.Unlock()

	if onFinalize != nil {
		onFinalize(full)
	}
	return s.finalizeErr
}

// memoryStore captures the persisted summary.
type memoryStore struct {
	mu        sync.Mutex
	summaries []*Summary
}

func (m *memoryStore) RecordSummary(_ context.Context, s *Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, s)
	return nil
}

func fullRange(t *testing.T) schedule.DateRange {
	t.Helper()
	r, err := schedule.ParseDateRange("2025-01-01", "2025-01-25")
	assert.NoError(t, err)
	return r
}

func TestRun_AllWindowsSucceed(t *testing.T) {
	// Two pages of fifty records per window.
	runner := &stubRunner{name: "orders", maxWindowDays: 30, windowResult: WindowResult{Pages: 2, RowsWritten: 100}}
	store := &memoryStore{}
	c := NewCoordinator([]SourceRunner{runner}, 2, nil, store)

	summary, err := c.Run(context.Background(), fullRange(t))

	assert.NoError(t, err)
	assert.Equal(t, RunCompleted, summary.State)
	assert.NoError(t, summary.Err)
	assert.Len(t, summary.Jobs, 1)
	assert.Equal(t, JobSucceeded, summary.Jobs[0].State)
	assert.Equal(t, int64(100), summary.RowsWritten)
	assert.Equal(t, 2, summary.PagesFetched)
	assert.NotEmpty(t, summary.RunID)
	assert.Len(t, store.summaries, 1)
	assert.Equal(t, []schedule.DateRange{fullRange(t)}, runner.finalized)
}

func TestRun_WindowsChronologicalWithinSource(t *testing.T) {
	runner := &stubRunner{name: "finance", maxWindowDays: 10}
	c := NewCoordinator([]SourceRunner{runner}, 4, nil, nil)

	summary, err := c.Run(context.Background(), fullRange(t))

	assert.NoError(t, err)
	assert.Equal(t, []string{
		"2025-01-01..2025-01-10",
		"2025-01-11..2025-01-20",
		"2025-01-21..2025-01-25",
	}, runner.ranWindows)
	assert.Len(t, summary.Jobs, 3)
}

func TestRun_FailedWindowIsIsolated(t *testing.T) {
	// The middle window fails; its neighbors and the other source still run.
	failing := &stubRunner{
		name:          "finance",
		maxWindowDays: 10,
		windowResult:  WindowResult{RowsWritten: 10},
		failWindows: map[string]error{
			"2025-01-11..2025-01-20": errors.New("boom"),
		},
	}
	healthy := &stubRunner{name: "orders", maxWindowDays: 30, windowResult: WindowResult{RowsWritten: 5}}
	c := NewCoordinator([]SourceRunner{failing, healthy}, 2, nil, nil)

	summary, err := c.Run(context.Background(), fullRange(t))

	assert.NoError(t, err)
	assert.Equal(t, RunCompletedWithErrors, summary.State)
	assert.Len(t, failing.ranWindows, 3)
	assert.Len(t, healthy.ranWindows, 1)

	failed := summary.FailedJobs()
	assert.Len(t, failed, 1)
	assert.Equal(t, "finance", failed[0].Source)
	assert.Equal(t, "2025-01-11..2025-01-20", failed[0].Window.String())
	assert.ErrorContains(t, summary.Err, "boom")

	// Rows from the surviving windows are still counted.
	assert.Equal(t, int64(25), summary.RowsWritten)
}

func TestRun_FinalizeStillRunsAfterWindowFailure(t *testing.T) {
	failing := &stubRunner{
		name:          "orders",
		maxWindowDays: 10,
		failWindows:   map[string]error{"2025-01-01..2025-01-10": errors.New("boom")},
	}
	c := NewCoordinator([]SourceRunner{failing}, 1, nil, nil)

	summary, err := c.Run(context.Background(), fullRange(t))

	assert.NoError(t, err)
	assert.Equal(t, RunCompletedWithErrors, summary.State)
	assert.Len(t, failing.finalized, 1)
}

func TestRun_FinalizeFailureDegradesRun(t *testing.T) {
	runner := &stubRunner{name: "orders", maxWindowDays: 30, finalizeErr: errors.New("recalc failed")}
	c := NewCoordinator([]SourceRunner{runner}, 1, nil, nil)

	summary, err := c.Run(context.Background(), fullRange(t))

	assert.NoError(t, err)
	assert.Equal(t, RunCompletedWithErrors, summary.State)
	assert.ErrorContains(t, summary.Err, "recalc failed")
	assert.Empty(t, summary.FailedJobs())
}

func TestRun_InvalidWindowSizeFailsBeforeAnyJob(t *testing.T) {
	runner := &stubRunner{name: "orders", maxWindowDays: 0}
	c := NewCoordinator([]SourceRunner{runner}, 1, nil, nil)

	summary, err := c.Run(context.Background(), fullRange(t))

	assert.Nil(t, summary)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrInvalidRange))
	assert.Empty(t, runner.ranWindows)
}

func TestRun_CancellationBetweenJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &stubRunner{name: "finance", maxWindowDays: 10, windowResult: WindowResult{RowsWritten: 1}}
	runner.onWindow = func(schedule.DateRange) { cancel() }
	c := NewCoordinator([]SourceRunner{runner}, 1, nil, nil)

	summary, err := c.Run(ctx, fullRange(t))

	assert.NoError(t, err)
	// The in-flight window ran to completion; the later ones never started.
	assert.Len(t, runner.ranWindows, 1)
	assert.Equal(t, RunCompletedWithErrors, summary.State)
	assert.Len(t, summary.PendingJobs(), 2)
	assert.Equal(t, JobSucceeded, summary.Jobs[0].State)
	// Finalize is skipped on cancellation.
	assert.Empty(t, runner.finalized)
}

func TestRun_FinalizeSeesEveryOtherSourceFinished(t *testing.T) {
	// finance finishes its single window long before the three slow orders
	// windows; its finalizer links against the orders table, so it must not
	// fire until those windows are done too.
	var ordersDone int32
	orders := &stubRunner{name: "orders", maxWindowDays: 10, windowResult: WindowResult{RowsWritten: 1}}
	orders.onWindow = func(schedule.DateRange) {
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&ordersDone, 1)
	}

	var seenAtFinalize int32 = -1
	finance := &stubRunner{name: "finance", maxWindowDays: 30, windowResult: WindowResult{RowsWritten: 1}}
	finance.onFinalize = func(schedule.DateRange) {
		atomic.StoreInt32(&seenAtFinalize, atomic.LoadInt32(&ordersDone))
	}

	c := NewCoordinator([]SourceRunner{orders, finance}, 2, nil, nil)

	summary, err := c.Run(context.Background(), fullRange(t))

	assert.NoError(t, err)
	assert.Equal(t, RunCompleted, summary.State)
	assert.Equal(t, int32(3), seenAtFinalize)
}

func TestRun_FinalizersRunInRegistrationOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) func(schedule.DateRange) {
		return func(schedule.DateRange) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	orders := &stubRunner{name: "orders", maxWindowDays: 30, onFinalize: record("orders")}
	finance := &stubRunner{name: "finance", maxWindowDays: 30, onFinalize: record("finance")}
	c := NewCoordinator([]SourceRunner{orders, finance}, 4, nil, nil)

	_, err := c.Run(context.Background(), fullRange(t))

	assert.NoError(t, err)
	assert.Equal(t, []string{"orders", "finance"}, order)
}

func TestRun_RequiredSourceFailureAbortsRun(t *testing.T) {
	orders := &stubRunner{
		name:          "orders",
		required:      true,
		maxWindowDays: 10,
		failWindows:   map[string]error{"2025-01-01..2025-01-10": errors.New("boom")},
	}
	finance := &stubRunner{name: "finance", maxWindowDays: 30, windowResult: WindowResult{RowsWritten: 1}}
	c := NewCoordinator([]SourceRunner{orders, finance}, 1, nil, nil)

	summary, err := c.Run(context.Background(), fullRange(t))

	assert.NoError(t, err)
	assert.Equal(t, RunFailed, summary.State)
	assert.ErrorContains(t, summary.Err, "required source orders")

	// Later orders windows and the whole finance plan never started.
	assert.Len(t, orders.ranWindows, 1)
	assert.Empty(t, finance.ranWindows)
	assert.NotEmpty(t, summary.PendingJobs())

	// No finalizer runs against the aborted load.
	assert.Empty(t, orders.finalized)
	assert.Empty(t, finance.finalized)
}

func TestRun_NonRequiredFailureDoesNotAbort(t *testing.T) {
	finance := &stubRunner{
		name:          "finance",
		maxWindowDays: 10,
		failWindows:   map[string]error{"2025-01-01..2025-01-10": errors.New("boom")},
	}
	orders := &stubRunner{name: "orders", required: true, maxWindowDays: 30, windowResult: WindowResult{RowsWritten: 1}}
	c := NewCoordinator([]SourceRunner{orders, finance}, 1, nil, nil)

	summary, err := c.Run(context.Background(), fullRange(t))

	assert.NoError(t, err)
	assert.Equal(t, RunCompletedWithErrors, summary.State)
	assert.Len(t, finance.ranWindows, 3)
	assert.Len(t, orders.finalized, 1)
	assert.Len(t, finance.finalized, 1)
}

func TestRun_ManySourcesBoundedPool(t *testing.T) {
	var runners []SourceRunner
	for i := 0; i < 6; i++ {
		runners = append(runners, &stubRunner{
			name:          fmt.Sprintf("source-%d", i),
			maxWindowDays: 30,
			windowResult:  WindowResult{RowsWritten: 1},
		})
	}
	c := NewCoordinator(runners, 2, nil, nil)

	summary, err := c.Run(context.Background(), fullRange(t))

	assert.NoError(t, err)
	assert.Equal(t, RunCompleted, summary.State)
	assert.Len(t, summary.Jobs, 6)
	assert.Equal(t, int64(6), summary.RowsWritten)
}
