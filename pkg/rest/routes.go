package rest

import (
	"github.com/gorilla/mux"
	"github.com/inbucket/mailroute/pkg/server/web"
)

// SetupRoutes populates the routes for the REST interface
func SetupRoutes(r *mux.Router) {
	// API v1
	r.Path("/v1/messages").Handler(
		web.Handler(RouteMessageV1)).Name("RouteMessageV1").Methods("POST")
	r.Path("/v1/explain/{address}").Handler(
		web.Handler(ExplainV1)).Name("ExplainV1").Methods("GET")
	r.Path("/v1/status").Handler(
		web.Handler(StatusV1)).Name("StatusV1").Methods("GET")
	r.Path("/v1/decisions").Handler(
		web.Handler(RecentDecisionsV1)).Name("RecentDecisionsV1").Methods("GET")
	r.Path("/v1/monitor/decisions").Handler(
		web.Handler(MonitorAllDecisionsV1)).Name("MonitorAllDecisionsV1").Methods("GET")
	r.Path("/v1/monitor/decisions/{address}").Handler(
		web.Handler(MonitorAddressDecisionsV1)).Name("MonitorAddressDecisionsV1").Methods("GET")
}
