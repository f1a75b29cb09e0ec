// Package retry implements the bounded-attempt backoff policy used for page
// fetches and batch writes.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/support/exception"
	"github.com/seaward/marketsync/internal/support/logger"
)

// Policy decides whether an error is retryable and how long to wait between
// attempts.
type Policy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// BackoffInterval returns the waiting time until the next retry for the
	// given attempt number (starting from 1).
	BackoffInterval(attempt int) time.Duration
	// MaxAttempts returns the maximum number of attempts, including the first.
	MaxAttempts() int
}

// Sleeper abstracts waiting between attempts so tests can run without real
// delays.
type Sleeper interface {
	// Sleep waits for d or until ctx is cancelled, returning the context's
	// error in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SystemSleeper returns a Sleeper backed by a real timer.
func SystemSleeper() Sleeper { return timerSleeper{} }

// exponentialPolicy implements Policy with exponential backoff and full
// jitter. The interval for attempt n is initial * factor^(n-1), capped at
// maxInterval, with a random jitter of up to half the interval added on top.
type exponentialPolicy struct {
	maxAttempts         int
	initialInterval     time.Duration
	maxInterval         time.Duration
	factor              float64
	retryableExceptions []string
}

// NewPolicy builds a Policy from a RetryConfig, optionally extended with
// additional retryable exception type names (matched through
// exception.IsErrorOfType).
func NewPolicy(cfg config.RetryConfig, retryableExceptions ...string) Policy {
	factor := cfg.Factor
	if factor < 1 {
		factor = 2.0
	}
	return &exponentialPolicy{
		maxAttempts:         cfg.MaxAttempts,
		initialInterval:     time.Duration(cfg.InitialInterval) * time.Millisecond,
		maxInterval:         time.Duration(cfg.MaxInterval) * time.Millisecond,
		factor:              factor,
		retryableExceptions: retryableExceptions,
	}
}

func (p *exponentialPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry checks the PipelineError retryable flag first, then the
// configured exception list, then the generic transient-error heuristics.
func (p *exponentialPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pe *exception.PipelineError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}

	for _, typeName := range p.retryableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}

	return exception.IsTemporary(err)
}

func (p *exponentialPolicy) BackoffInterval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	interval := float64(p.initialInterval) * math.Pow(p.factor, float64(attempt-1))
	if p.maxInterval > 0 && interval > float64(p.maxInterval) {
		interval = float64(p.maxInterval)
	}
	// Full interval plus up to 50% jitter, so concurrent workers retrying the
	// same outage do not synchronize their attempts.
	jitter := rand.Float64() * interval * 0.5
	return time.Duration(interval + jitter)
}

// Verify interfaces
var _ Policy = (*exponentialPolicy)(nil)

// Do runs op up to policy.MaxAttempts() times, sleeping the policy's backoff
// interval between attempts. It stops early when the error is not retryable
// or the context is cancelled, and returns the last error observed.
func Do(ctx context.Context, policy Policy, sleeper Sleeper, opName string, op func(ctx context.Context) error) error {
	if sleeper == nil {
		sleeper = SystemSleeper()
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == policy.MaxAttempts() || !policy.ShouldRetry(lastErr) {
			break
		}

		backoff := policy.BackoffInterval(attempt)
		logger.Warnf("%s failed (attempt %d/%d), retrying in %v: %v", opName, attempt, policy.MaxAttempts(), backoff, lastErr)
		if err := sleeper.Sleep(ctx, backoff); err != nil {
			return err
		}
	}
	return lastErr
}
