package forward

import (
	"github.com/inbucket/mailroute/pkg/metric"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Name:      "delivery_attempts_total",
			Help:      "Delivery attempts by outcome: delivered, unverified, recoverable or unrecoverable",
		},
		[]string{"class"},
	)
	forwardDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Name:      "forward_duration_seconds",
			Help:      "Time spent forwarding one message to all of its destination groups",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	metric.MustRegister(deliveryAttempts, forwardDuration)
}
