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
	// Webhook metrics
	WebhookRequests  *prometheus.CounterVec
	EventsNormalized *prometheus.CounterVec
	EventsInserted   prometheus.Counter
	EventsRolledBack prometheus.Counter
	BlocksApplied    prometheus.Counter
	BlocksRolledBack prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Store metrics
	StoreOpDuration *prometheus.HistogramVec
	StoreOpErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cypher_activity"
	}

	return &Metrics{
		WebhookRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Total number of chainhook webhook deliveries by outcome",
		}, []string{"outcome"}),
		EventsNormalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_normalized_total",
			Help:      "Total number of canonical events produced by type",
		}, []string{"event_type"}),
		EventsInserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_inserted_total",
			Help:      "Total number of activity events stored",
		}),
		EventsRolledBack: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_rolled_back_total",
			Help:      "Total number of activity events flagged as rolled back",
		}),
		BlocksApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "blocks_applied_total",
			Help:      "Total number of apply blocks processed",
		}),
		BlocksRolledBack: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "blocks_rolled_back_total",
			Help:      "Total number of rollback blocks processed",
		}),

		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		StoreOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Activity store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		StoreOpErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_errors_total",
			Help:      "Total number of activity store operation errors",
		}, []string{"operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordWebhook records a webhook delivery outcome (ok, unauthorized,
// invalid, error).
func RecordWebhook(outcome string) {
	DefaultMetrics.WebhookRequests.WithLabelValues(outcome).Inc()
}

// RecordEventNormalized increments the normalized event counter for a type.
func RecordEventNormalized(eventType string) {
	DefaultMetrics.EventsNormalized.WithLabelValues(eventType).Inc()
}

// RecordBlockApplied records one processed apply block and its stored events.
func RecordBlockApplied(inserted int) {
	DefaultMetrics.BlocksApplied.Inc()
	DefaultMetrics.EventsInserted.Add(float64(inserted))
}

// RecordBlockRolledBack records one processed rollback block and the events
// it flagged.
func RecordBlockRolledBack(flagged int64) {
	DefaultMetrics.BlocksRolledBack.Inc()
	DefaultMetrics.EventsRolledBack.Add(float64(flagged))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path, status string, seconds float64) {
	DefaultMetrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordStoreOp records an activity store operation.
func RecordStoreOp(operation string, seconds float64, err error) {
	DefaultMetrics.StoreOpDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.StoreOpErrors.WithLabelValues(operation).Inc()
	}
}
