package mem

import (
	"context"
	"sync"

	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/kvstore"
)

// Store implements an in-memory override store.
type Store struct {
	sync.RWMutex
	values map[string]string
}

var _ kvstore.Store = &Store{}

// New returns an empty memory store.
func New(cfg config.Store) (kvstore.Store, error) {
	return NewStore(nil), nil
}

// NewStore returns a memory store holding a copy of values.
func NewStore(values map[string]string) *Store {
	s := &Store{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.RLock()
	defer s.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *Store) Set(key, value string) {
	s.Lock()
	defer s.Unlock()
	s.values[key] = value
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.Lock()
	defer s.Unlock()
	delete(s.values, key)
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.values)
}
