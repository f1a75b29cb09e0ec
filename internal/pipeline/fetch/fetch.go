// Package fetch drives paginated extraction from remote APIs. A Paginator
// walks one date window page by page, pacing requests through the source's
// rate limiter and retrying transient failures per the configured policy.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/seaward/marketsync/internal/pipeline/ratelimit"
	"github.com/seaward/marketsync/internal/pipeline/retry"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/exception"
	"github.com/seaward/marketsync/internal/support/logger"
)

// Cursor identifies a position within a paginated result set. Sources use
// whichever field matches their API's pagination style: Offset for
// offset-based APIs, Page for page-number APIs, Token for opaque
// continuation tokens.
type Cursor struct {
	Offset int
	Page   int
	Token  string
}

// FirstPage returns the cursor for the start of a result set. Page-number
// APIs count from 1.
func FirstPage() Cursor {
	return Cursor{Page: 1}
}

// RawPage is one page of records as returned by a source, before
// normalization. Next is nil when this is the last page.
type RawPage struct {
	Records []json.RawMessage
	Next    *Cursor
}

// PageFetcher retrieves a single page of raw records for a date window.
// Implementations translate HTTP-level failures into PipelineErrors whose
// retryable flag reflects the response status.
type PageFetcher interface {
	FetchPage(ctx context.Context, window schedule.DateRange, cursor Cursor, pageSize int) (RawPage, error)
}

// FetchError reports that a window could not be fetched after the retry
// policy was exhausted. It wraps the final underlying error.
type FetchError struct {
	Source string
	Window schedule.DateRange
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for source %q window %s: %v", e.Source, e.Window, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err as a FetchError for the given source and window.
func NewFetchError(source string, window schedule.DateRange, err error) *FetchError {
	return &FetchError{Source: source, Window: window, Err: err}
}

// Paginator walks a date window page by page for one source.
type Paginator struct {
	source   string
	fetcher  PageFetcher
	limiter  *ratelimit.Limiter
	policy   retry.Policy
	sleeper  retry.Sleeper
	pageSize int
}

// NewPaginator assembles a Paginator. The limiter is shared by all windows of
// the same source so the request budget holds across the whole run.
func NewPaginator(source string, fetcher PageFetcher, limiter *ratelimit.Limiter, policy retry.Policy, sleeper retry.Sleeper, pageSize int) *Paginator {
	return &Paginator{
		source:   source,
		fetcher:  fetcher,
		limiter:  limiter,
		policy:   policy,
		sleeper:  sleeper,
		pageSize: pageSize,
	}
}

// FetchWindow fetches every page of the window in order, invoking handle once
// per page. It returns the number of pages fetched.
//
// A fetch failure that survives the retry policy is returned as a FetchError.
// Errors from handle abort the walk and are returned unwrapped, so writer
// failures keep their own classification.
func (p *Paginator) FetchWindow(ctx context.Context, window schedule.DateRange, handle func(page RawPage) error) (int, error) {
	cursor := FirstPage()
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		var page RawPage
		err := retry.Do(ctx, p.policy, p.sleeper, fmt.Sprintf("fetch %s %s page", p.source, window), func(ctx context.Context) error {
			// Every attempt pays a token, so retries stay inside the
			// source's request budget.
			if err := p.limiter.Acquire(ctx); err != nil {
				return err
			}
			var fetchErr error
			page, fetchErr = p.fetcher.FetchPage(ctx, window, cursor, p.pageSize)
			return fetchErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			return pages, NewFetchError(p.source, window, err)
		}

		pages++
		logger.Debugf("source %s window %s: page %d fetched, %d records", p.source, window, pages, len(page.Records))

		if err := handle(page); err != nil {
			return pages, err
		}

		if page.Next == nil {
			return pages, nil
		}
		if *page.Next == cursor {
			return pages, NewFetchError(p.source, window,
				exception.NewPipelineError("fetch", "pagination cursor did not advance", nil, false, false))
		}
		cursor = *page.Next
	}
}
