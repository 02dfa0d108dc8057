package route

import (
	"github.com/inbucket/mailroute/pkg/metric"
	"github.com/prometheus/client_golang/prometheus"
)

var decisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metric.Namespace,
		Name:      "decisions_total",
		Help:      "Routing decisions by action and deciding phase",
	},
	[]string{"action", "phase"},
)

func init() {
	metric.MustRegister(decisionsTotal)
}
