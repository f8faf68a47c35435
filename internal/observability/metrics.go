// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	EventsReceived prometheus.Counter
	EventsDeduped  prometheus.Counter
	EventsDropped  prometheus.Counter
	Reconnects     prometheus.Counter

	// Ingest metrics
	EventsStored prometheus.Counter
	BatchFlushes prometheus.Counter
	FlushErrors  prometheus.Counter
	QueueDepth   prometheus.Gauge

	// Simulation metrics
	TradesExecuted *prometheus.CounterVec
	TradesRejected prometheus.Counter
	EventsSkipped  *prometheus.CounterVec
	SnapshotsTaken prometheus.Counter

	// Notify metrics
	NotificationsDropped prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_copysim"
	}

	return &Metrics{
		// Feed metrics
		EventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_received_total",
			Help:      "Total number of trade events received from the feed",
		}),
		EventsDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_deduped_total",
			Help:      "Total number of events suppressed by the signature ring",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_dropped_total",
			Help:      "Total number of messages dropped for decode or validation failures",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts",
		}),

		// Ingest metrics
		EventsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_stored_total",
			Help:      "Total number of trade events stored to the event log",
		}),
		BatchFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batch_flushes_total",
			Help:      "Total number of event batch flushes",
		}),
		FlushErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "flush_errors_total",
			Help:      "Total number of failed batch flushes (batch dropped)",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Current number of events waiting in the simulation queue",
		}),

		// Simulation metrics
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_executed_total",
			Help:      "Total number of simulated trades executed by side",
		}, []string{"side"}),
		TradesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_rejected_total",
			Help:      "Total number of trades rejected by the slippage cap",
		}),
		EventsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "events_skipped_total",
			Help:      "Total number of events skipped before execution by reason",
		}, []string{"reason"}),
		SnapshotsTaken: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "snapshots_taken_total",
			Help:      "Total number of performance snapshots taken",
		}),

		// Notify metrics
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Total number of notifications dropped because the send buffer was full",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventReceived increments the events received counter.
func RecordEventReceived() {
	DefaultMetrics.EventsReceived.Inc()
}

// RecordEventDeduped increments the deduped events counter.
func RecordEventDeduped() {
	DefaultMetrics.EventsDeduped.Inc()
}

// RecordEventDropped increments the dropped messages counter.
func RecordEventDropped() {
	DefaultMetrics.EventsDropped.Inc()
}

// RecordReconnect increments the reconnect counter.
func RecordReconnect() {
	DefaultMetrics.Reconnects.Inc()
}

// RecordEventsStored adds to the stored events counter.
func RecordEventsStored(count int) {
	DefaultMetrics.EventsStored.Add(float64(count))
}

// RecordBatchFlush records one flush attempt and its outcome.
func RecordBatchFlush(err error) {
	DefaultMetrics.BatchFlushes.Inc()
	if err != nil {
		DefaultMetrics.FlushErrors.Inc()
	}
}

// SetQueueDepth updates the queue depth gauge.
func SetQueueDepth(depth int) {
	DefaultMetrics.QueueDepth.Set(float64(depth))
}

// RecordTradeExecuted increments the executed trades counter for a side.
func RecordTradeExecuted(side string) {
	DefaultMetrics.TradesExecuted.WithLabelValues(side).Inc()
}

// RecordTradeRejected increments the rejected trades counter.
func RecordTradeRejected() {
	DefaultMetrics.TradesRejected.Inc()
}

// RecordEventSkipped increments the skipped events counter for a reason.
func RecordEventSkipped(reason string) {
	DefaultMetrics.EventsSkipped.WithLabelValues(reason).Inc()
}

// RecordSnapshot increments the snapshots counter.
func RecordSnapshot() {
	DefaultMetrics.SnapshotsTaken.Inc()
}

// RecordNotificationDropped increments the dropped notifications counter.
func RecordNotificationDropped() {
	DefaultMetrics.NotificationsDropped.Inc()
}
