package write

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/pipeline/retry"
)

type orderRow struct {
	OrderID string `gorm:"column:order_id"`
	Status  string `gorm:"column:status"`
}

// instantSleeper skips backoff waits entirely.
type instantSleeper struct{}

func (instantSleeper) Sleep(context.Context, time.Duration) error { return nil }

func setupGormMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	assert.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gorm_logger.Default.LogMode(gorm_logger.Silent)})
	assert.NoError(t, err)

	t.Cleanup(func() {
		mock.ExpectClose()
		sqlDB.Close()
	})
	return gormDB, mock
}

func testUpserter(db *gorm.DB, batchSize int) *Upserter[orderRow] {
	spec := UpsertSpec{
		Table:           "orders",
		ConflictColumns: []string{"order_id"},
		UpdateColumns:   []string{"status"},
	}
	policy := retry.NewPolicy(config.RetryConfig{MaxAttempts: 3, InitialInterval: 1, MaxInterval: 2, Factor: 2.0})
	return NewUpserter[orderRow](db, spec, batchSize, policy, instantSleeper{})
}

func TestWrite_BatchesIntoSeparateTransactions(t *testing.T) {
	db, mock := setupGormMock(t)
	u := testUpserter(db, 2)

	// Three rows with batch size two means two transactions.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `orders`").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `orders`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rows := []orderRow{{OrderID: "a"}, {OrderID: "b"}, {OrderID: "c"}}
	written, err := u.Write(context.Background(), rows)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite_EmptyInputTouchesNothing(t *testing.T) {
	db, mock := setupGormMock(t)
	u := testUpserter(db, 100)

	written, err := u.Write(context.Background(), nil)

	assert.NoError(t, err)
	assert.Equal(t, int64(0), written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite_RetriesTransientFailure(t *testing.T) {
	db, mock := setupGormMock(t)
	u := testUpserter(db, 100)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `orders`").WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `orders`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	written, err := u.Write(context.Background(), []orderRow{{OrderID: "a"}})

	assert.NoError(t, err)
	assert.Equal(t, int64(1), written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite_PermanentFailureReturnsWriteError(t *testing.T) {
	db, mock := setupGormMock(t)
	u := testUpserter(db, 100)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `orders`").WillReturnError(errors.New("column \"bogus\" does not exist"))
	mock.ExpectRollback()

	written, err := u.Write(context.Background(), []orderRow{{OrderID: "a"}})

	assert.Equal(t, int64(0), written)
	var we *WriteError
	assert.True(t, errors.As(err, &we))
	assert.Equal(t, "orders", we.Table)
	assert.Equal(t, 1, we.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite_PartialProgressReported(t *testing.T) {
	db, mock := setupGormMock(t)
	u := testUpserter(db, 1)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `orders`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `orders`").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	written, err := u.Write(context.Background(), []orderRow{{OrderID: "a"}, {OrderID: "b"}})

	assert.Error(t, err)
	assert.Equal(t, int64(1), written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_DeleteAndInsertShareOneTransaction(t *testing.T) {
	db, mock := setupGormMock(t)
	u := testUpserter(db, 100)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `orders`").
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO `orders`").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	written, err := u.Replace(context.Background(), "order_id = ?", []interface{}{"a"},
		[]orderRow{{OrderID: "a", Status: "delivered"}, {OrderID: "a", Status: "returned"}})

	assert.NoError(t, err)
	assert.Equal(t, int64(2), written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_EmptyRowsStillDeletes(t *testing.T) {
	db, mock := setupGormMock(t)
	u := testUpserter(db, 100)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `orders`").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	written, err := u.Replace(context.Background(), "order_id = ?", []interface{}{"gone"}, nil)

	assert.NoError(t, err)
	assert.Equal(t, int64(0), written)
	assert.NoError(t, mock.ExpectationsWereMet())
}
