// Package history persists run summaries to the pipeline_runs table so
// operators can audit past runs and re-invoke failed windows.
package history

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seaward/marketsync/internal/domain/entity"
	"github.com/seaward/marketsync/internal/pipeline/run"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/exception"
)

const moduleName = "history"

// Store implements run.SummaryRecorder on the destination store.
type Store struct {
	db *gorm.DB
}

// NewStore builds a Store over one database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// failedWindow is one failed job in the persisted summary.
type failedWindow struct {
	Source string `json:"source"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Error  string `json:"error"`
}

// RecordSummary implements run.SummaryRecorder. The row is upserted on run_id
// so a duplicated record of the same run converges.
func (s *Store) RecordSummary(ctx context.Context, summary *run.Summary) error {
	failed := make([]failedWindow, 0)
	for _, job := range summary.FailedJobs() {
		fw := failedWindow{
			Source: job.Source,
			Start:  job.Window.Start.Format(schedule.DateLayout),
			End:    job.Window.End.Format(schedule.DateLayout),
		}
		if job.Err != nil {
			fw.Error = job.Err.Error()
		}
		failed = append(failed, fw)
	}

	failedJSON, err := json.Marshal(failed)
	if err != nil {
		return exception.NewPipelineError(moduleName, "failed to encode failed windows", err, false, false)
	}

	row := entity.PipelineRun{
		RunID:          summary.RunID,
		RangeStart:     summary.Range.Start,
		RangeEnd:       summary.Range.End,
		Status:         string(summary.State),
		StartedAt:      summary.StartedAt,
		FinishedAt:     summary.FinishedAt,
		PagesFetched:   summary.PagesFetched,
		RowsWritten:    summary.RowsWritten,
		RecordsSkipped: summary.RecordsSkipped,
		FailedWindows:  string(failedJSON),
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "run_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "finished_at", "pages_fetched",
				"rows_written", "records_skipped", "failed_windows",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return exception.NewPipelineError(moduleName, "failed to persist run summary", err, false, true)
	}
	return nil
}

var _ run.SummaryRecorder = (*Store)(nil)
