// Package ratelimit implements the token-bucket limiter that paces API
// requests. Each data source owns one limiter sized from its configured
// request budget.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/seaward/marketsync/internal/config"
)

// Clock abstracts time for the limiter so tests can drive refills
// deterministically.
type Clock interface {
	Now() time.Time
}

// systemClock is the production Clock backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }

// Limiter is a token-bucket rate limiter. Tokens refill continuously at the
// configured rate up to the bucket capacity. Acquire blocks until a token is
// available or the context is cancelled.
type Limiter struct {
	mu       sync.Mutex
	clock    Clock
	capacity float64
	// refillPerSec is the steady-state token refill rate.
	refillPerSec float64
	tokens       float64
	lastRefill   time.Time
}

// NewLimiter creates a limiter that allows rate.Requests requests per
// rate.IntervalMs milliseconds, with burst capacity rate.Burst (defaulting to
// rate.Requests). The bucket starts full so the first requests of a run are
// not delayed.
func NewLimiter(rate config.RateConfig, clock Clock) *Limiter {
	if clock == nil {
		clock = SystemClock()
	}
	capacity := float64(rate.Burst)
	if capacity <= 0 {
		capacity = float64(rate.Requests)
	}
	interval := time.Duration(rate.IntervalMs) * time.Millisecond
	refillPerSec := float64(rate.Requests) / interval.Seconds()

	return &Limiter{
		clock:        clock,
		capacity:     capacity,
		refillPerSec: refillPerSec,
		tokens:       capacity,
		lastRefill:   clock.Now(),
	}
}

// Acquire takes one token from the bucket, blocking until one becomes
// available. It returns the context's error when cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait := l.tryTake()
		if wait <= 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire takes a token without blocking and reports whether one was
// available.
func (l *Limiter) TryAcquire() bool {
	return l.tryTake() <= 0
}

// tryTake refills the bucket from elapsed time and either consumes a token
// (returning 0) or returns how long until the next token accrues.
func (l *Limiter) tryTake() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * l.refillPerSec
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
		l.lastRefill = now
	}

	if l.tokens >= 1 {
		l.tokens--
		return 0
	}

	deficit := 1 - l.tokens
	return time.Duration(deficit / l.refillPerSec * float64(time.Second))
}
