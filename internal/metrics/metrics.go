// Package metrics holds the Prometheus collectors for the fulfillment
// workflow. Register must be called once at startup before the /metrics
// endpoint is served.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Payment webhook deliveries by result",
		},
		[]string{"result"},
	)

	OwnershipTransfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ownership_transfers_total",
			Help: "Ownership transfer attempts by result",
		},
		[]string{"result"},
	)

	ProvenanceEntriesAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "provenance_entries_appended_total",
			Help: "Provenance entries appended to item histories",
		},
	)

	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliations_total",
			Help: "Reconciliation runs by result",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, path pattern, and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(
		WebhookEvents,
		OwnershipTransfers,
		ProvenanceEntriesAppended,
		Reconciliations,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
