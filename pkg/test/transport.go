package test

import (
	"sync"
)

// TransportStub is a route.Transport that delivers through a DelivererStub and records rejects.
type TransportStub struct {
	*DelivererStub

	mu      sync.Mutex
	rejects []string
}

// NewTransport creates a new TransportStub accepting every delivery.
func NewTransport() *TransportStub {
	return &TransportStub{DelivererStub: NewDeliverer()}
}

// Reject records reason.
func (t *TransportStub) Reject(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rejects = append(t.rejects, reason)
}

// Rejects returns every recorded reject reason.
func (t *TransportStub) Rejects() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.rejects...)
}
