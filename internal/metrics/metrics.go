// Package metrics exposes Prometheus collectors for the tracking service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogPagesTotal     *prometheus.CounterVec
	catalogFetchRetries   prometheus.Counter
	catalogFetchDuration  prometheus.Histogram
	trackingRunsTotal     *prometheus.CounterVec
	trackingActiveUsers   prometheus.Gauge
	sinkRowsAppendedTotal *prometheus.CounterVec
	sinkErrorsTotal       prometheus.Counter
	snapshotsCreatedTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call more than
// once.
func Init() {
	once.Do(func() {
		catalogPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_catalog_pages_total",
				Help: "Total catalog search pages fetched, labeled by status.",
			},
			[]string{"status"},
		)

		catalogFetchRetries = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_catalog_fetch_retries_total",
				Help: "Total retried catalog page fetches.",
			},
		)

		catalogFetchDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracker_catalog_fetch_duration_seconds",
				Help:    "Histogram of catalog page fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 13},
			},
		)

		trackingRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_runs_total",
				Help: "Total per-user tracking runs, labeled by outcome.",
			},
			[]string{"status"},
		)

		trackingActiveUsers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracker_active_users",
				Help: "Users with a tracking run currently in flight.",
			},
		)

		sinkRowsAppendedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_sink_rows_appended_total",
				Help: "Total rows appended to the reporting sink, labeled by sheet target.",
			},
			[]string{"target"},
		)

		sinkErrorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_sink_errors_total",
				Help: "Total failed reporting sink appends.",
			},
		)

		snapshotsCreatedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_snapshots_created_total",
				Help: "Total tracking snapshots persisted, labeled by mode and trigger.",
			},
			[]string{"mode", "trigger"},
		)
	})
}

// IncPagesFetched records one fetched catalog page.
func IncPagesFetched(status string) {
	if catalogPagesTotal != nil {
		catalogPagesTotal.WithLabelValues(status).Inc()
	}
}

// IncFetchRetry records one retried page fetch.
func IncFetchRetry() {
	if catalogFetchRetries != nil {
		catalogFetchRetries.Inc()
	}
}

// ObserveFetchDuration records one catalog fetch latency.
func ObserveFetchDuration(d time.Duration) {
	if catalogFetchDuration != nil {
		catalogFetchDuration.Observe(d.Seconds())
	}
}

// IncTrackingRun records one finished per-user tracking run.
func IncTrackingRun(status string) {
	if trackingRunsTotal != nil {
		trackingRunsTotal.WithLabelValues(status).Inc()
	}
}

// SetActiveUsers publishes the current in-flight run count.
func SetActiveUsers(n int) {
	if trackingActiveUsers != nil {
		trackingActiveUsers.Set(float64(n))
	}
}

// AddSinkRows records rows appended to the reporting sink.
func AddSinkRows(target string, n int) {
	if sinkRowsAppendedTotal != nil {
		sinkRowsAppendedTotal.WithLabelValues(target).Add(float64(n))
	}
}

// IncSinkError records one failed sink append.
func IncSinkError() {
	if sinkErrorsTotal != nil {
		sinkErrorsTotal.Inc()
	}
}

// IncSnapshotCreated records one persisted snapshot.
func IncSnapshotCreated(mode string, auto bool) {
	if snapshotsCreatedTotal == nil {
		return
	}
	trigger := "user"
	if auto {
		trigger = "scheduler"
	}
	snapshotsCreatedTotal.WithLabelValues(mode, trigger).Inc()
}
