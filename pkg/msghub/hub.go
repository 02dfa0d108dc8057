// Package msghub keeps a short history of routing decisions and relays new ones to live
// monitors.
package msghub

import (
	"container/ring"
	"context"

	"github.com/inbucket/mailroute/pkg/extension"
	"github.com/inbucket/mailroute/pkg/extension/event"
)

// Length of msghub operation queue
const opChanLen = 100

// listenerName is used for the extension event registrations of the hub.
const listenerName = "msghub"

// Listener receives the contents of the history buffer, followed by new decisions
type Listener interface {
	Receive(d event.RouteDecision) error
}

// Hub relays routing decisions on to its listeners
type Hub struct {
	// history buffer, points next decision to write.  Proceeding non-nil entry is oldest decision
	history   *ring.Ring
	listeners map[Listener]struct{} // listeners interested in new decisions
	opChan    chan func(h *Hub)     // operations queued for this actor
	done      chan struct{}         // closed once the processing loop has stopped
}

// New constructs a new Hub which will cache historyLen decisions in memory for playback to future
// listeners.  Call Start to begin processing.
func New(historyLen int, extHost *extension.Host) *Hub {
	hub := &Hub{
		history:   ring.New(historyLen),
		listeners: make(map[Listener]struct{}),
		opChan:    make(chan func(h *Hub), opChanLen),
		done:      make(chan struct{}),
	}

	// Register extension event listeners for both final outcomes.
	extHost.Events.AfterMessageForwarded.AddListener(listenerName, hub.Dispatch)
	extHost.Events.AfterMessageRejected.AddListener(listenerName, hub.Dispatch)

	return hub
}

// Start Hub processing loop, it runs until ctx is canceled.
func (hub *Hub) Start(ctx context.Context) {
	defer close(hub.done)
	for {
		select {
		case <-ctx.Done():
			// Shutdown
			return
		case op := <-hub.opChan:
			op(hub)
		}
	}
}

// queue hands op to the processing loop, dropping it once the hub has stopped.
func (hub *Hub) queue(op func(h *Hub)) bool {
	select {
	case hub.opChan <- op:
		return true
	case <-hub.done:
		return false
	}
}

// Dispatch queues a decision for broadcast by the hub.  The decision will be placed into the
// history buffer and then relayed to all registered listeners.
func (hub *Hub) Dispatch(d event.RouteDecision) {
	hub.queue(func(h *Hub) {
		if h.history != nil {
			// Add to history buffer
			h.history.Value = d
			h.history = h.history.Next()
		}

		// Deliver decision to all listeners, removing listeners if they return an error
		for l := range h.listeners {
			if err := l.Receive(d); err != nil {
				delete(h.listeners, l)
			}
		}
	})
}

// AddListener registers a listener to receive broadcasted decisions.
func (hub *Hub) AddListener(l Listener) {
	hub.queue(func(h *Hub) {
		// Playback log
		h.history.Do(func(v any) {
			if v != nil {
				_ = l.Receive(v.(event.RouteDecision))
			}
		})

		// Add to listeners
		h.listeners[l] = struct{}{}
	})
}

// RemoveListener deletes a listener registration, it will cease to receive decisions.
func (hub *Hub) RemoveListener(l Listener) {
	hub.queue(func(h *Hub) {
		delete(h.listeners, l)
	})
}

// History returns the buffered decisions, oldest first.
func (hub *Hub) History() []event.RouteDecision {
	result := make(chan []event.RouteDecision, 1)
	if !hub.queue(func(h *Hub) {
		var ds []event.RouteDecision
		h.history.Do(func(v any) {
			if v != nil {
				ds = append(ds, v.(event.RouteDecision))
			}
		})
		result <- ds
	}) {
		return nil
	}
	select {
	case ds := <-result:
		return ds
	case <-hub.done:
		return nil
	}
}

// Sync blocks until the msghub has processed its queue up to this point, useful
// for unit tests.
func (hub *Hub) Sync() {
	done := make(chan struct{})
	if !hub.queue(func(h *Hub) {
		close(done)
	}) {
		return
	}
	select {
	case <-done:
	case <-hub.done:
	}
}
