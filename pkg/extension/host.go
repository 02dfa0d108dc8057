package extension

import (
	"github.com/inbucket/mailroute/pkg/extension/event"
)

// Host defines the extension points of the router.
type Host struct {
	Events *Events
}

// Events defines all the event types supported by the extension host.
//
// Before-events let extensions change a routing decision.  They are processed synchronously
// while the message waits; the first listener to respond with a non-nil value determines the
// response, and the remaining listeners are not called.
//
// After-events report a decision once it is final.  Listeners run in parallel with each other
// and with the rest of the router.
type Events struct {
	AfterMessageForwarded   AsyncEventBroker[event.RouteDecision]
	AfterMessageRejected    AsyncEventBroker[event.RouteDecision]
	BeforeRecipientAdmitted EventBroker[event.Recipient, event.AdmissionResponse]
}

// NewHost creates a new extension host.
func NewHost() *Host {
	return &Host{Events: &Events{}}
}

// Listeners returns the registered listener names per event, for status reporting.
func (h *Host) Listeners() map[string][]string {
	return map[string][]string{
		"after.message_forwarded":   h.Events.AfterMessageForwarded.Listeners(),
		"after.message_rejected":    h.Events.AfterMessageRejected.Listeners(),
		"before.recipient_admitted": h.Events.BeforeRecipientAdmitted.Listeners(),
	}
}
