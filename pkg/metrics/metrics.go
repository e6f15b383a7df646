// Package metrics defines the Prometheus metric collectors used by the
// poller and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the poller.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	PollCyclesTotal        *prometheus.CounterVec
	PollDuration           prometheus.Histogram
	RecordsFetchedTotal    *prometheus.CounterVec
	FetchErrorsTotal       *prometheus.CounterVec
	CursorsTracked         prometheus.Gauge
	CursorEvictionsTotal   *prometheus.CounterVec
	CursorsCreatedTotal    *prometheus.CounterVec
	TopologyRefreshesTotal prometheus.Counter
	BatchSize              prometheus.Histogram
	SinkDeliveriesTotal    *prometheus.CounterVec
	CircuitBreakerState    *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of admin API requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Admin API request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		PollCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poll_cycles_total",
				Help: "Total poll invocations by outcome (batch, no_data, error).",
			},
			[]string{"outcome"},
		),
		PollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "poll_duration_seconds",
				Help:    "Duration of one poll invocation in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		RecordsFetchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_fetched_total",
				Help: "Total records fetched per shard.",
			},
			[]string{"shard_id"},
		),
		FetchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetch_errors_total",
				Help: "Total per-shard fetch failures by reason (expired, transient).",
			},
			[]string{"reason"},
		),
		CursorsTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cursors_tracked",
				Help: "Number of shard cursors currently held in poll state.",
			},
		),
		CursorEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cursor_evictions_total",
				Help: "Total cursor evictions by reason (shard_closed, recovery_failed).",
			},
			[]string{"reason"},
		),
		CursorsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cursors_created_total",
				Help: "Total cursors created by trigger (discovery, expiry_recovery).",
			},
			[]string{"trigger"},
		),
		TopologyRefreshesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "topology_refreshes_total",
				Help: "Total shard topology refreshes.",
			},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "batch_size_records",
				Help:    "Number of records per emitted batch.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		SinkDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_deliveries_total",
				Help: "Total batch deliveries to the sink by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PollCyclesTotal,
		m.PollDuration,
		m.RecordsFetchedTotal,
		m.FetchErrorsTotal,
		m.CursorsTracked,
		m.CursorEvictionsTotal,
		m.CursorsCreatedTotal,
		m.TopologyRefreshesTotal,
		m.BatchSize,
		m.SinkDeliveriesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
