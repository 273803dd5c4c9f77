package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks message outcomes per topic.
type Metrics struct {
	processed *prometheus.CounterVec
	retried   *prometheus.CounterVec
	failed    *prometheus.CounterVec
	inFlight  *prometheus.GaugeVec
	duration  *prometheus.HistogramVec
}

// NewMetrics registers the worker metric family on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_messages_processed_total",
			Help: "Messages handled successfully and acked.",
		}, []string{"topic"}),
		retried: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_messages_retried_total",
			Help: "Messages nacked for redelivery after a transient failure.",
		}, []string{"topic"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_messages_failed_total",
			Help: "Messages dropped after a permanent failure or attempt exhaustion.",
		}, []string{"topic"}),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_messages_in_flight",
			Help: "Messages currently being handled.",
		}, []string{"topic"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_handle_duration_seconds",
			Help:    "Time spent handling a single message.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"topic"}),
	}
}
