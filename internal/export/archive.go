// Package export writes parquet snapshots of the rows a run loaded to a
// storage connection, one file per table per range. The archive is an
// optional post-run step; failures degrade the run but never undo writes.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/adapter/storage"
	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/domain/entity"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/exception"
	"github.com/seaward/marketsync/internal/support/logger"
)

const moduleName = "archive"

// Archiver exports loaded rows as parquet snapshots.
type Archiver struct {
	db          *gorm.DB
	conn        storage.Connection
	compression parquet.CompressionCodec

	// now is injectable for deterministic file names in tests.
	now func() time.Time
}

// NewArchiver resolves the archive storage connection from configuration.
// Call only when the archive is enabled.
func NewArchiver(cfg *config.Config, db *gorm.DB) (*Archiver, error) {
	conn, err := storage.Resolve(cfg, cfg.Marketsync.Archive.StorageRef)
	if err != nil {
		return nil, err
	}

	codec, err := compressionCodec(cfg.Marketsync.Archive.Compression)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "invalid archive compression", err, false, false)
	}

	return &Archiver{db: db, conn: conn, compression: codec, now: time.Now}, nil
}

// Export snapshots the orders, charges, and campaign statistics loaded for
// the range. Each table failing is recorded but does not stop the others.
func (a *Archiver) Export(ctx context.Context, full schedule.DateRange) error {
	logger.Infof("archiving loaded rows for %s to %s", full, a.conn.Name())

	rangeStart := full.Start
	rangeEnd := full.End.AddDate(0, 0, 1)

	var multiErr error

	var orders []entity.Order
	err := a.db.WithContext(ctx).Table("orders").
		Where("order_date >= ? AND order_date < ?", rangeStart, rangeEnd).
		Find(&orders).Error
	if err != nil {
		multiErr = multierror.Append(multiErr, fmt.Errorf("orders query: %w", err))
	} else if err := exportTable(ctx, a, full, "orders", orders, newOrderSnapshot); err != nil {
		multiErr = multierror.Append(multiErr, err)
	}

	var fees []entity.OrderFeeItem
	err = a.db.WithContext(ctx).Table("order_fee_items").
		Where("occurred_at >= ? AND occurred_at < ?", rangeStart, rangeEnd).
		Find(&fees).Error
	if err != nil {
		multiErr = multierror.Append(multiErr, fmt.Errorf("order_fee_items query: %w", err))
	} else if err := exportTable(ctx, a, full, "order_fee_items", fees, newFeeItemSnapshot); err != nil {
		multiErr = multierror.Append(multiErr, err)
	}

	var campaigns []entity.CampaignDaily
	err = a.db.WithContext(ctx).Table("campaign_daily").
		Where("stat_date >= ? AND stat_date < ?", rangeStart, rangeEnd).
		Find(&campaigns).Error
	if err != nil {
		multiErr = multierror.Append(multiErr, fmt.Errorf("campaign_daily query: %w", err))
	} else if err := exportTable(ctx, a, full, "campaign_daily", campaigns, newCampaignSnapshot); err != nil {
		multiErr = multierror.Append(multiErr, err)
	}

	if multiErr != nil {
		return exception.NewPipelineError(moduleName, "archive export incomplete", multiErr, false, true)
	}
	return nil
}

// Close releases the storage connection.
func (a *Archiver) Close() error {
	return a.conn.Close()
}

// exportTable serializes rows into one parquet object named
// <table>/range=<start>_<end>/data_<timestamp>.parquet.
func exportTable[E any, S any](ctx context.Context, a *Archiver, full schedule.DateRange, table string, rows []E, toSnapshot func(E) S) error {
	if len(rows) == 0 {
		logger.Debugf("archive: no %s rows in range, skipping", table)
		return nil
	}

	snapshots := make([]S, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, toSnapshot(row))
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(S), int64(len(snapshots)))
	if err != nil {
		return fmt.Errorf("%s: create parquet writer: %w", table, err)
	}
	pw.CompressionType = a.compression

	for _, s := range snapshots {
		if err := pw.Write(s); err != nil {
			return fmt.Errorf("%s: write parquet row: %w", table, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("%s: finalize parquet file: %w", table, err)
	}

	partition := fmt.Sprintf("range=%s_%s",
		full.Start.Format(schedule.DateLayout), full.End.Format(schedule.DateLayout))
	objectName := path.Join(table, partition,
		fmt.Sprintf("data_%s.parquet", a.now().UTC().Format("20060102150405")))

	if err := a.conn.Upload(ctx, objectName, buf); err != nil {
		return fmt.Errorf("%s: upload %s: %w", table, objectName, err)
	}
	logger.Infof("archive: wrote %d %s rows to %s", len(snapshots), table, objectName)
	return nil
}

func compressionCodec(compression string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compression) {
	case "SNAPPY", "":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compression)
	}
}
