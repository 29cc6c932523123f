// Package metrics provides Prometheus metrics for the catalog services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	BatchesApplied        prometheus.Counter
	BatchesRejected       prometheus.Counter
	ImportErrors          *prometheus.CounterVec
	ImportDuration        prometheus.Histogram
	OrphanedMappings      prometheus.Gauge
	SuggestionsResolved   prometheus.Counter
	FindingsMatched       prometheus.Counter
	FindingsUnmatched     prometheus.Counter
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	ConsumerLag           *prometheus.GaugeVec
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		BatchesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_batches_applied_total",
			Help: "Total catalog import batches applied",
		}),
		BatchesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_batches_rejected_total",
			Help: "Total undecodable or unstorable catalog batches",
		}),
		ImportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_import_errors_total",
			Help: "Validation errors reported by batch imports",
		}, []string{"kind", "entity"}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_import_duration_seconds",
			Help:    "Batch import processing duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		OrphanedMappings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_orphaned_mappings",
			Help: "Mappings referencing treatments absent from the catalog",
		}),
		SuggestionsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_suggestions_resolved_total",
			Help: "Total condition-to-treatment suggestion resolutions",
		}),
		FindingsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_findings_matched_total",
			Help: "Findings matched by a clinical rule",
		}),
		FindingsUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_findings_unmatched_total",
			Help: "Findings no clinical rule matched",
		}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		ConsumerLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Consumer group lag per topic and partition",
		}, []string{"topic", "partition"}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.BatchesApplied,
		m.BatchesRejected,
		m.ImportErrors,
		m.ImportDuration,
		m.OrphanedMappings,
		m.SuggestionsResolved,
		m.FindingsMatched,
		m.FindingsUnmatched,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.ConsumerLag,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
