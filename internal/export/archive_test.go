package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/seaward/marketsync/internal/adapter/storage"
	"github.com/seaward/marketsync/internal/adapter/storage/local"
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

func archiverOver(t *testing.T, db *gorm.DB, baseDir string) *Archiver {
	t.Helper()
	conn, err := local.NewAdapter(storage.StorageConfig{BaseDir: baseDir}, "archive_test")
	require.NoError(t, err)

	return &Archiver{
		db:          db,
		conn:        conn,
		compression: mustCodec(t, "SNAPPY"),
		now:         func() time.Time { return time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC) },
	}
}

func mustCodec(t *testing.T, name string) parquet.CompressionCodec {
	t.Helper()
	c, err := compressionCodec(name)
	require.NoError(t, err)
	return c
}

func TestExport_WritesParquetSnapshot(t *testing.T) {
	db, mock := setupGormMock(t)
	base := t.TempDir()

	orderDate := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT \\* FROM `orders`").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "customer_id", "order_date", "status", "revenue", "fees_total", "payout"}).
			AddRow("1-1", "1", orderDate, "delivered", 100.0, -20.0, 80.0).
			AddRow("2-1", "2", orderDate, "delivered", 50.0, -10.0, 40.0))
	mock.ExpectQuery("SELECT \\* FROM `order_fee_items`").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "fee_group", "amount"}))
	mock.ExpectQuery("SELECT \\* FROM `campaign_daily`").
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "stat_date"}))

	window, err := schedule.ParseDateRange("2025-01-01", "2025-01-31")
	require.NoError(t, err)

	err = archiverOver(t, db, base).Export(context.Background(), window)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	object := filepath.Join(base, "orders", "range=2025-01-01_2025-01-31", "data_20250201030000.parquet")
	info, err := os.Stat(object)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// Empty tables produce no files.
	_, err = os.Stat(filepath.Join(base, "order_fee_items"))
	assert.True(t, os.IsNotExist(err))
}

func TestExport_QueryFailureIsReported(t *testing.T) {
	db, mock := setupGormMock(t)

	mock.ExpectQuery("SELECT \\* FROM `orders`").
		WillReturnError(assert.AnError)
	mock.ExpectQuery("SELECT \\* FROM `order_fee_items`").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))
	mock.ExpectQuery("SELECT \\* FROM `campaign_daily`").
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id"}))

	window, err := schedule.ParseDateRange("2025-01-01", "2025-01-31")
	require.NoError(t, err)

	err = archiverOver(t, db, t.TempDir()).Export(context.Background(), window)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders query")
}
