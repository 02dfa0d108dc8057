// Package event holds the values passed to extension listeners.
package event

// Decision actions.
const (
	ActionForward = "forward"
	ActionReject  = "reject"
)

// Recipient describes an inbound recipient before the admission check.
type Recipient struct {
	// ID correlates the events of one message.
	ID         string
	From       string
	Address    string
	LocalPart  string
	Domain     string
	User       string
	Subaddress string
	// Overridden is true when stored configuration exists for User.
	Overridden bool
	// Admitted is the verdict of the configured policy.
	Admitted bool
}

// AdmissionResponse overrides the admission verdict for a recipient.
type AdmissionResponse struct {
	Admit bool
}

// RouteDecision reports how a message was handled.
type RouteDecision struct {
	ID      string
	From    string
	To      string
	Subject string
	Size    int64
	// Action is ActionForward or ActionReject.
	Action string
	// Phase names the routing phase that decided.
	Phase string
	// Addresses holds the destinations that accepted the message.
	Addresses []string
	// Reason is the reject reason, empty when forwarded.
	Reason string
}
