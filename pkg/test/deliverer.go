package test

import (
	"context"
	"sync"

	"github.com/inbucket/mailroute/pkg/forward"
)

// Attempt records one call to DelivererStub.Deliver.
type Attempt struct {
	Address string
	Headers forward.Headers
}

// DelivererStub is a scripted forward.Deliverer.  Addresses without a script accept every
// delivery.
type DelivererStub struct {
	mu       sync.Mutex
	queued   map[string][]error
	always   map[string]error
	attempts []Attempt
}

// NewDeliverer creates a new DelivererStub.
func NewDeliverer() *DelivererStub {
	return &DelivererStub{
		queued: make(map[string][]error),
		always: make(map[string]error),
	}
}

// FailNext makes the next deliveries to address fail with errs, one per attempt.  A nil entry
// lets that attempt succeed.
func (d *DelivererStub) FailNext(address string, errs ...error) *DelivererStub {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queued[address] = append(d.queued[address], errs...)
	return d
}

// FailAlways makes every delivery to address fail with err once the queued errors are used.
func (d *DelivererStub) FailAlways(address string, err error) *DelivererStub {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.always[address] = err
	return d
}

// Deliver implements forward.Deliverer.
func (d *DelivererStub) Deliver(_ context.Context, address string, headers forward.Headers) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts = append(d.attempts, Attempt{Address: address, Headers: headers})
	if q := d.queued[address]; len(q) > 0 {
		d.queued[address] = q[1:]
		return q[0]
	}
	return d.always[address]
}

// Attempts returns every recorded attempt, in call order.
func (d *DelivererStub) Attempts() []Attempt {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Attempt(nil), d.attempts...)
}

// Addresses returns the address of every recorded attempt, in call order.
func (d *DelivererStub) Addresses() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]string, 0, len(d.attempts))
	for _, a := range d.attempts {
		result = append(result, a.Address)
	}
	return result
}

// Count returns the number of attempts made to address.
func (d *DelivererStub) Count(address string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, a := range d.attempts {
		if a.Address == address {
			n++
		}
	}
	return n
}
