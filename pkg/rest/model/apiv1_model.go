// Package model holds the JSON documents of the mailroute REST API.
package model

// JSONDecisionV1 is the outcome of routing one message.
type JSONDecisionV1 struct {
	ID        string   `json:"id"`
	Action    string   `json:"action"`
	Phase     string   `json:"phase"`
	Addresses []string `json:"addresses"`
	Reason    string   `json:"reason,omitempty"`
}

// JSONErrorV1 reports a message that could not be routed.  Temporary errors are worth retrying
// later; others need the request or configuration fixed first.
type JSONErrorV1 struct {
	Error     string `json:"error"`
	Temporary bool   `json:"temporary"`
}

// JSONDestinationsV1 is a parsed destination specification.
type JSONDestinationsV1 struct {
	Groups    [][]string `json:"groups"`
	Invalid   []string   `json:"invalid,omitempty"`
	Duplicate []string   `json:"duplicate,omitempty"`
	// Unverified lists addresses the relay will refuse to deliver to.
	Unverified []string `json:"unverified,omitempty"`
}

// JSONPlanV1 explains how mail to an address would be routed.
type JSONPlanV1 struct {
	Address       string              `json:"address"`
	Parsed        bool                `json:"parsed"`
	User          string              `json:"user,omitempty"`
	Subaddress    string              `json:"subaddress,omitempty"`
	Domain        string              `json:"domain,omitempty"`
	Overridden    bool                `json:"overridden"`
	Admitted      bool                `json:"admitted"`
	Accept        *JSONDestinationsV1 `json:"accept,omitempty"`
	RejectForward *JSONDestinationsV1 `json:"reject_forward,omitempty"`
	RejectReason  string              `json:"reject_reason"`
}

// JSONStatusV1 describes the running server.
type JSONStatusV1 struct {
	Version      string              `json:"version"`
	BuildDate    string              `json:"build_date"`
	StoreBackend string              `json:"store_backend"`
	RelayAddr    string              `json:"relay_addr"`
	Listeners    map[string][]string `json:"listeners"`
}

// JSONMonitorEventV1 is a routing decision as seen by the decision monitor.
type JSONMonitorEventV1 struct {
	ID        string   `json:"id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Subject   string   `json:"subject"`
	Size      int64    `json:"size"`
	Action    string   `json:"action"`
	Phase     string   `json:"phase"`
	Addresses []string `json:"addresses"`
	Reason    string   `json:"reason,omitempty"`
}
