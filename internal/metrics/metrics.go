package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ops HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "void_http_requests_total",
			Help: "Total HTTP requests to the ops endpoint",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "void_http_request_duration_seconds",
			Help:    "Ops endpoint request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Stream metrics
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "void_pages_fetched_total",
			Help: "Total backward pages fetched",
		},
		[]string{"stream"}, // "chat" or "comments"
	)

	ItemsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "void_items_fetched_total",
			Help: "Total items returned by backward pages",
		},
		[]string{"stream"},
	)

	Renders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "void_renders_total",
			Help: "Total renders by kind",
		},
		[]string{"kind"}, // "append", "prepend", "replace", "echo"
	)

	SnapshotsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "void_snapshots_received_total",
			Help: "Total live snapshots received",
		},
		[]string{"stream"},
	)

	SnapshotsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "void_snapshots_suppressed_total",
			Help: "Total live snapshots that did not trigger a render",
		},
		[]string{"reason"}, // "seen", "own", "echo", "unchanged"
	)

	Failures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "void_failures_total",
			Help: "Total fetch and write failures surfaced to the user",
		},
		[]string{"kind"}, // "fetch" or "write"
	)

	ItemsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "void_items_written_total",
			Help: "Total items written",
		},
		[]string{"stream"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "void_store_latency_seconds",
			Help:    "Store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"backend", "op"},
	)
)

// ObserveStore records the latency of a store operation started at start.
func ObserveStore(backend, op string, start time.Time) {
	StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
