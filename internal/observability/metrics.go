package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geo_etl"

// Metrics holds the Prometheus collectors for one ETL process.
type Metrics struct {
	FilesProcessed   *prometheus.CounterVec // labels: format, outcome={succeeded,failed}
	RecordsExtracted *prometheus.CounterVec // labels: type
	SoftErrors       *prometheus.CounterVec // labels: kind
	RunDuration      prometheus.Histogram
	LastRunRecords   prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Input files processed by detected format and outcome.",
		}, []string{"format", "outcome"}),
		RecordsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Records extracted by record type.",
		}, []string{"type"}),
		SoftErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "soft_errors_total",
			Help:      "Skipped or repaired elements by error kind.",
		}, []string{"kind"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-merge-load run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastRunRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_records",
			Help:      "Rows in the unified table of the most recent run.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent run finished.",
		}),
	}
}

// NewMetrics creates all pipeline metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.FilesProcessed,
		m.RecordsExtracted,
		m.SoftErrors,
		m.RunDuration,
		m.LastRunRecords,
		m.LastRunTimestamp,
	)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
