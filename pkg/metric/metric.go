// Package metric holds the Prometheus registry shared by mailroute packages.  Packages declare
// their own collectors and register them from init.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every mailroute metric name.
const Namespace = "mailroute"

// Registry collects mailroute metrics, plus the Go runtime and process collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// MustRegister adds collectors to Registry, panicking on duplicate names.
func MustRegister(cs ...prometheus.Collector) {
	Registry.MustRegister(cs...)
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
