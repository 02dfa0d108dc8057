package extension

import (
	"slices"
	"sync"
)

// listeners is an ordered list of named listener functions.
type listeners[F any] struct {
	sync.RWMutex
	names []string
	funcs []F
}

// add registers the named listener, replacing one with a duplicate name if present.
func (l *listeners[F]) add(name string, f F) {
	l.Lock()
	defer l.Unlock()

	l.lockedRemove(name)
	l.names = append(l.names, name)
	l.funcs = append(l.funcs, f)
}

func (l *listeners[F]) remove(name string) {
	l.Lock()
	defer l.Unlock()

	l.lockedRemove(name)
}

func (l *listeners[F]) lockedRemove(name string) {
	if i := slices.Index(l.names, name); i >= 0 {
		l.names = slices.Delete(l.names, i, i+1)
		l.funcs = slices.Delete(l.funcs, i, i+1)
	}
}

// Listeners returns the names of the registered listeners, in call order.
func (l *listeners[F]) Listeners() []string {
	l.RLock()
	defer l.RUnlock()

	return slices.Clone(l.names)
}
