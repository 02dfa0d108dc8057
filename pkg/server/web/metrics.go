package web

import (
	"github.com/inbucket/mailroute/pkg/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// WebSocketConnectsCurrent counts the open monitor sockets.
var WebSocketConnectsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: metric.Namespace,
	Subsystem: "web",
	Name:      "websocket_connects_current",
	Help:      "Open websocket monitor connections",
})

func init() {
	metric.MustRegister(WebSocketConnectsCurrent)
}
