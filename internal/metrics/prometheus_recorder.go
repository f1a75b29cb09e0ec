package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/seaward/marketsync/internal/support/logger"
)

// PrometheusRecorder is a Prometheus implementation of MetricRecorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	runDurationSeconds *prometheus.HistogramVec
	runStatusCounter   *prometheus.CounterVec

	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	pagesFetched   *prometheus.CounterVec
	rowsWritten    *prometheus.CounterVec
	recordsSkipped *prometheus.CounterVec
}

// NewPrometheusRecorder creates a PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketsync_run_duration_seconds",
			Help:    "Duration of pipeline runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsync_run_status_total",
			Help: "Total number of pipeline runs by terminal status.",
		}, []string{"status"}),
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketsync_job_duration_seconds",
			Help:    "Duration of fetch jobs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source", "state"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsync_job_status_total",
			Help: "Total number of fetch jobs by source and terminal state.",
		}, []string{"source", "state"}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsync_pages_fetched_total",
			Help: "Total pages fetched by source.",
		}, []string{"source"}),
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsync_rows_written_total",
			Help: "Total rows upserted by source.",
		}, []string{"source"}),
		recordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsync_records_skipped_total",
			Help: "Total malformed records skipped during normalization by source.",
		}, []string{"source"}),
	}

	registry.MustRegister(r.runDurationSeconds)
	registry.MustRegister(r.runStatusCounter)
	registry.MustRegister(r.jobDurationSeconds)
	registry.MustRegister(r.jobStatusCounter)
	registry.MustRegister(r.pagesFetched)
	registry.MustRegister(r.rowsWritten)
	registry.MustRegister(r.recordsSkipped)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) RecordRunStart(runID string) {
	logger.Debugf("Metrics: run %s started.", runID)
}

func (r *PrometheusRecorder) RecordRunEnd(runID string, status string, duration time.Duration) {
	r.runStatusCounter.WithLabelValues(status).Inc()
	r.runDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
	logger.Debugf("Metrics: run %s ended with status %s. Duration: %.3fs", runID, status, duration.Seconds())
}

func (r *PrometheusRecorder) RecordJobEnd(source string, state string, duration time.Duration) {
	r.jobStatusCounter.WithLabelValues(source, state).Inc()
	r.jobDurationSeconds.WithLabelValues(source, state).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordPagesFetched(source string, count int) {
	r.pagesFetched.WithLabelValues(source).Add(float64(count))
}

func (r *PrometheusRecorder) RecordRowsWritten(source string, count int64) {
	r.rowsWritten.WithLabelValues(source).Add(float64(count))
}

func (r *PrometheusRecorder) RecordRecordsSkipped(source string, count int) {
	r.recordsSkipped.WithLabelValues(source).Add(float64(count))
}

var _ MetricRecorder = (*PrometheusRecorder)(nil)
