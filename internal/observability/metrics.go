// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"macrokit-datalake/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	ObservationsAppended *prometheus.CounterVec // by table and revision result
	ObservationsDropped  *prometheus.CounterVec // by table
	TableIngestions      *prometheus.CounterVec // by table and status
	IngestionRuns        *prometheus.CounterVec // by mode and status
	IngestionDuration    *prometheus.HistogramVec

	// Source connector metrics
	FetchLatency *prometheus.HistogramVec
	FetchErrors  *prometheus.CounterVec

	// Transformation metrics
	NodeRuns       *prometheus.CounterVec   // by node and status
	NodeDuration   *prometheus.HistogramVec
	MartRows       *prometheus.GaugeVec     // rows written per mart table
	StagingDropped *prometheus.CounterVec   // by table and reason

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulTransform prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "macrokit_datalake"
	}

	return &Metrics{
		ObservationsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observations_appended_total",
			Help:      "Total observations appended by table and revision result",
		}, []string{"table", "result"}),
		ObservationsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observations_dropped_total",
			Help:      "Total observations dropped by validation",
		}, []string{"table"}),
		TableIngestions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "table_ingestions_total",
			Help:      "Total per-table ingestions by status",
		}, []string{"table", "status"}),
		IngestionRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "runs_total",
			Help:      "Total ingestion runs by mode and status",
		}, []string{"mode", "status"}),
		IngestionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duration_seconds",
			Help:      "Ingestion duration per table",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"table"}),

		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Source fetch latency per series",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"series"}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetch_errors_total",
			Help:      "Total source fetch errors by type",
		}, []string{"series", "error_type"}),

		NodeRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "node_runs_total",
			Help:      "Total node materializations by node and status",
		}, []string{"node", "status"}),
		NodeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "node_duration_seconds",
			Help:      "Node materialization duration",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"node"}),
		MartRows: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "mart_rows",
			Help:      "Rows written to each mart table on the last run",
		}, []string{"table"}),
		StagingDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "staging_dropped_total",
			Help:      "Total rows dropped by staging transforms by reason",
		}, []string{"table", "reason"}),

		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of the last fully successful ingestion run",
		}),
		LastSuccessfulTransform: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_transform_timestamp",
			Help:      "Unix timestamp of the last fully successful transformation run",
		}),
	}
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAppend records one appended observation by revision result.
func RecordAppend(table, result string) {
	DefaultMetrics.ObservationsAppended.WithLabelValues(table, result).Inc()
}

// RecordDropped records validation-dropped observations for a table.
func RecordDropped(table string, n int) {
	DefaultMetrics.ObservationsDropped.WithLabelValues(table).Add(float64(n))
}

// RecordStagingDrops records rows a staging transform excluded, broken
// out by drop reason.
func RecordStagingDrops(table string, stats domain.StagingStats) {
	if stats.NullDropped > 0 {
		DefaultMetrics.StagingDropped.WithLabelValues(table, "null").Add(float64(stats.NullDropped))
	}
	if stats.UnmappedKeys > 0 {
		DefaultMetrics.StagingDropped.WithLabelValues(table, "unmapped_key").Add(float64(stats.UnmappedKeys))
	}
}

// RecordTableIngestion records a per-table ingestion outcome.
func RecordTableIngestion(table, status string, seconds float64) {
	DefaultMetrics.TableIngestions.WithLabelValues(table, status).Inc()
	DefaultMetrics.IngestionDuration.WithLabelValues(table).Observe(seconds)
}

// RecordRun records an ingestion run outcome.
func RecordRun(mode, status string) {
	DefaultMetrics.IngestionRuns.WithLabelValues(mode, status).Inc()
}

// RecordFetch records source fetch latency and outcome.
func RecordFetch(series string, seconds float64, errType string) {
	DefaultMetrics.FetchLatency.WithLabelValues(series).Observe(seconds)
	if errType != "" {
		DefaultMetrics.FetchErrors.WithLabelValues(series, errType).Inc()
	}
}

// RecordNodeRun records a node materialization outcome.
func RecordNodeRun(node, status string, seconds float64) {
	DefaultMetrics.NodeRuns.WithLabelValues(node, status).Inc()
	DefaultMetrics.NodeDuration.WithLabelValues(node).Observe(seconds)
}

// RecordMartRows records the row count of a mart table after a run.
func RecordMartRows(table string, rows int) {
	DefaultMetrics.MartRows.WithLabelValues(table).Set(float64(rows))
}
