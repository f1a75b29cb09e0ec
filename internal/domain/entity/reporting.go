package entity

import "time"

// CampaignDaily is one advertising campaign's statistics for one day, keyed
// by (campaign_id, stat_date).
type CampaignDaily struct {
	CampaignID    string    `gorm:"column:campaign_id;primaryKey"`
	CampaignTitle string    `gorm:"column:campaign_title"`
	StatDate      time.Time `gorm:"column:stat_date;primaryKey"`
	Impressions   int64     `gorm:"column:impressions"`
	Clicks        int64     `gorm:"column:clicks"`
	Spend         float64   `gorm:"column:spend"`
	AvgBid        float64   `gorm:"column:avg_bid"`
	OrdersCount   int64     `gorm:"column:orders_cnt"`
	OrdersAmount  float64   `gorm:"column:orders_amount"`
}

func (CampaignDaily) TableName() string { return "campaign_daily" }

// PeriodCost is a daily aggregate of charges not tied to any order, keyed by
// (cost_date, fee_group, fee_name). It is rebuilt from fee items after the
// finance source loads.
type PeriodCost struct {
	CostDate time.Time `gorm:"column:cost_date;primaryKey"`
	FeeGroup string    `gorm:"column:fee_group;primaryKey"`
	FeeName  string    `gorm:"column:fee_name;primaryKey"`
	Amount   float64   `gorm:"column:amount"`
}

func (PeriodCost) TableName() string { return "period_costs" }

// PipelineRun is the persisted summary of one run, for operational history
// and re-run decisions.
type PipelineRun struct {
	RunID          string    `gorm:"column:run_id;primaryKey"`
	RangeStart     time.Time `gorm:"column:range_start"`
	RangeEnd       time.Time `gorm:"column:range_end"`
	Status         string    `gorm:"column:status"`
	StartedAt      time.Time `gorm:"column:started_at"`
	FinishedAt     time.Time `gorm:"column:finished_at"`
	PagesFetched   int       `gorm:"column:pages_fetched"`
	RowsWritten    int64     `gorm:"column:rows_written"`
	RecordsSkipped int       `gorm:"column:records_skipped"`

	// FailedWindows is a JSON array of {source, start, end, error} objects,
	// one per failed fetch job.
	FailedWindows string `gorm:"column:failed_windows"`
}

func (PipelineRun) TableName() string { return "pipeline_runs" }
