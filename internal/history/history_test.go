package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/seaward/marketsync/internal/pipeline/run"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
)

func setupGormMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gorm_logger.Default.LogMode(gorm_logger.Silent)})
	require.NoError(t, err)

	t.Cleanup(func() {
		mock.ExpectClose()
		_ = sqlDB.Close()
	})
	return db, mock
}

func sampleSummary(t *testing.T) *run.Summary {
	t.Helper()
	dateRange, err := schedule.ParseDateRange("2025-01-01", "2025-01-31")
	require.NoError(t, err)

	window, err := schedule.ParseDateRange("2025-01-11", "2025-01-20")
	require.NoError(t, err)

	now := time.Now()
	return &run.Summary{
		RunID:          "run-1",
		Range:          dateRange,
		State:          run.RunCompletedWithErrors,
		StartedAt:      now.Add(-time.Minute),
		FinishedAt:     now,
		PagesFetched:   12,
		RowsWritten:    3400,
		RecordsSkipped: 2,
		Jobs: []*run.FetchJob{
			{Source: "orders", Window: window, State: run.JobFailed, Err: errors.New("boom")},
			{Source: "finance", Window: window, State: run.JobSucceeded},
		},
	}
}

func TestRecordSummary(t *testing.T) {
	db, mock := setupGormMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `pipeline_runs`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := NewStore(db).RecordSummary(context.Background(), sampleSummary(t))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSummary_DatabaseError(t *testing.T) {
	db, mock := setupGormMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `pipeline_runs`").
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	err := NewStore(db).RecordSummary(context.Background(), sampleSummary(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist run summary")
}
