package extension

import (
	"errors"
	"time"
)

// EventBroker calls listeners in order until one of them returns a result.  Used for
// before-events, where an extension may change the outcome.
type EventBroker[E any, R any] struct {
	listeners[func(E) *R]
}

// Emit sends event to each listener in order, until one returns a non-nil result.  That result
// is returned to the caller; nil means no listener had an opinion.
func (eb *EventBroker[E, R]) Emit(event *E) *R {
	eb.RLock()
	defer eb.RUnlock()

	for _, l := range eb.funcs {
		// Listeners get a copy so they cannot alter the caller's event.
		if result := l(*event); result != nil {
			return result
		}
	}

	return nil
}

// AddListener registers the named listener, replacing one with a duplicate name if present.
// Listeners should be added most significant first.
func (eb *EventBroker[E, R]) AddListener(name string, listener func(E) *R) {
	eb.add(name, listener)
}

// RemoveListener unregisters the named listener.
func (eb *EventBroker[E, R]) RemoveListener(name string) {
	eb.remove(name)
}

// AsyncEventBroker sends events to all listeners in parallel and ignores the outcome.  Used for
// after-events.
type AsyncEventBroker[E any] struct {
	listeners[func(E)]
}

// Emit sends event to every listener, each on its own goroutine.
func (eb *AsyncEventBroker[E]) Emit(event *E) {
	eb.RLock()
	defer eb.RUnlock()

	for _, l := range eb.funcs {
		go l(*event)
	}
}

// AddListener registers the named listener, replacing one with a duplicate name if present.
func (eb *AsyncEventBroker[E]) AddListener(name string, listener func(E)) {
	eb.add(name, listener)
}

// RemoveListener unregisters the named listener.
func (eb *AsyncEventBroker[E]) RemoveListener(name string) {
	eb.remove(name)
}

// AsyncTestListener registers a listener that buffers up to capacity events, and returns a func
// that waits for the next one.  The listener is removed once capacity events were read.
func (eb *AsyncEventBroker[E]) AsyncTestListener(name string, capacity int) func() (*E, error) {
	events := make(chan E, capacity)
	eb.AddListener(name, func(ev E) {
		events <- ev
	})

	count := 0
	return func() (*E, error) {
		count++
		defer func() {
			if count >= capacity {
				eb.RemoveListener(name)
			}
		}()

		select {
		case ev := <-events:
			return &ev, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("timeout waiting for event")
		}
	}
}
