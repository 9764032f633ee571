package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_producer_messages_published_total",
		Help: "Messages successfully written to Kafka.",
	}, []string{"topic"})

	publishErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_producer_publish_errors_total",
		Help: "Failed Kafka writes.",
	}, []string{"topic"})

	publishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_producer_publish_duration_seconds",
		Help:    "Latency of Kafka writes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
)

// RegisterMetrics exposes producer metrics on reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{messagesPublished, publishErrors, publishDuration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
