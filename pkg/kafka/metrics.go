package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_events_published_total",
			Help: "Domain events written to Kafka, by topic and result",
		},
		[]string{"topic", "result"},
	)

	publishLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_publish_duration_seconds",
			Help:    "Latency of synchronous Kafka writes",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"topic"},
	)
)

func observePublish(topic string, start time.Time, err error) {
	publishLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsPublished.WithLabelValues(topic, result).Inc()
}
