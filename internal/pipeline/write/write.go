// Package write loads canonical rows into the destination store. Writes are
// idempotent upserts keyed on each table's natural key, batched into one
// transaction per batch so a failure never leaves a batch half-applied.
package write

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seaward/marketsync/internal/pipeline/retry"
	"github.com/seaward/marketsync/internal/support/logger"
)

// WriteError reports that a batch could not be written after the retry policy
// was exhausted. It wraps the final underlying error.
type WriteError struct {
	Table string
	Rows  int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed for table %q (%d rows): %v", e.Table, e.Rows, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// NewWriteError wraps err as a WriteError for the given table and row count.
func NewWriteError(table string, rows int, err error) *WriteError {
	return &WriteError{Table: table, Rows: rows, Err: err}
}

// UpsertSpec names the conflict target and the columns refreshed on conflict.
// An empty UpdateColumns list means conflicting rows are left untouched
// (insert-or-ignore).
type UpsertSpec struct {
	Table           string
	ConflictColumns []string
	UpdateColumns   []string
}

// Upserter writes rows of one entity type with ON CONFLICT semantics.
// Re-running the same rows produces the same table state: conflicting rows
// are overwritten column-for-column, never duplicated.
type Upserter[T any] struct {
	db        *gorm.DB
	spec      UpsertSpec
	batchSize int
	policy    retry.Policy
	sleeper   retry.Sleeper
}

// NewUpserter assembles an Upserter. batchSize bounds how many rows share one
// transaction.
func NewUpserter[T any](db *gorm.DB, spec UpsertSpec, batchSize int, policy retry.Policy, sleeper retry.Sleeper) *Upserter[T] {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Upserter[T]{
		db:        db,
		spec:      spec,
		batchSize: batchSize,
		policy:    policy,
		sleeper:   sleeper,
	}
}

// Write upserts rows in batches and returns the number of rows handed to the
// store. Each batch runs in its own transaction; a transient failure retries
// the whole batch, which is safe because the upsert is idempotent.
func (u *Upserter[T]) Write(ctx context.Context, rows []T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var written int64
	for start := 0; start < len(rows); start += u.batchSize {
		end := start + u.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		if err := u.writeBatch(ctx, batch); err != nil {
			return written, NewWriteError(u.spec.Table, len(batch), err)
		}
		written += int64(len(batch))
	}

	logger.Debugf("table %s: upserted %d rows", u.spec.Table, written)
	return written, nil
}

func (u *Upserter[T]) writeBatch(ctx context.Context, batch []T) error {
	columns := make([]clause.Column, 0, len(u.spec.ConflictColumns))
	for _, col := range u.spec.ConflictColumns {
		columns = append(columns, clause.Column{Name: col})
	}

	onConflict := clause.OnConflict{Columns: columns}
	if len(u.spec.UpdateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(u.spec.UpdateColumns)
	} else {
		onConflict.DoNothing = true
	}

	op := func(ctx context.Context) error {
		return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Table(u.spec.Table).Clauses(onConflict).Create(&batch).Error
		})
	}

	return retry.Do(ctx, u.policy, u.sleeper, fmt.Sprintf("upsert batch into %s", u.spec.Table), op)
}

// Replace deletes the rows matching query and inserts rows in their place,
// all inside one transaction. Child tables whose rows have no stable natural
// key (e.g., per-order fee items) use this instead of an upsert: re-running
// the same input converges on the same table state.
func (u *Upserter[T]) Replace(ctx context.Context, query string, args []interface{}, rows []T) (int64, error) {
	op := func(ctx context.Context) error {
		return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var zero T
			if err := tx.Table(u.spec.Table).Where(query, args...).Delete(&zero).Error; err != nil {
				return err
			}
			if len(rows) == 0 {
				return nil
			}
			return tx.Table(u.spec.Table).Create(&rows).Error
		})
	}

	if err := retry.Do(ctx, u.policy, u.sleeper, fmt.Sprintf("replace rows in %s", u.spec.Table), op); err != nil {
		return 0, NewWriteError(u.spec.Table, len(rows), err)
	}
	return int64(len(rows)), nil
}
