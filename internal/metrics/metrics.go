package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	PublishCount     prometheus.Counter
	ReplayCount      prometheus.Counter
	SendAttempts     prometheus.Counter
	SendSuccesses    prometheus.Counter
	SendFailures     prometheus.Counter
	PoisonTasks      prometheus.Counter
	SendDuration     prometheus.Histogram
	PendingTasks     prometheus.Gauge
	IdempotencySwept prometheus.Counter
}

// NewMetrics creates new Prometheus metrics on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates new Prometheus metrics on the given registerer.
// Tests pass a private registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PublishCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "zero2prod_publish_count",
			Help: "Total number of newsletter issues published",
		}),
		ReplayCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "zero2prod_idempotency_replay_count",
			Help: "Total number of publish commands answered from a saved response",
		}),
		SendAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "zero2prod_delivery_send_attempts",
			Help: "Total number of delivery task send attempts",
		}),
		SendSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "zero2prod_delivery_send_successes",
			Help: "Total number of successfully delivered issue emails",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "zero2prod_delivery_send_failures",
			Help: "Total number of failed delivery attempts left for retry",
		}),
		PoisonTasks: factory.NewCounter(prometheus.CounterOpts{
			Name: "zero2prod_delivery_poison_tasks",
			Help: "Total number of delivery tasks dropped as unretryable",
		}),
		SendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "zero2prod_delivery_send_duration_seconds",
			Help:    "Time spent sending one issue email",
			Buckets: prometheus.DefBuckets,
		}),
		PendingTasks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "zero2prod_delivery_pending_tasks",
			Help: "Number of delivery tasks currently pending",
		}),
		IdempotencySwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "zero2prod_idempotency_records_swept",
			Help: "Total number of expired idempotency records deleted",
		}),
	}
}
