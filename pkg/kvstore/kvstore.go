// Package kvstore contains the key-value lookup used for stored routing overrides.
package kvstore

import (
	"context"
	"fmt"

	"github.com/inbucket/mailroute/pkg/config"
)

// Store is a read-only key-value lookup.
type Store interface {
	// Get returns the value stored under key.  ok is false when the key is absent; a present
	// empty value is returned as "" with ok true.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, key string) (string, bool, error)

// Get calls f.
func (f StoreFunc) Get(ctx context.Context, key string) (string, bool, error) {
	return f(ctx, key)
}

// StoreConstructor constructs a Store instance.
type StoreConstructor func(config.Store) (Store, error)

// Constructors tracks registered Store constructors.
var Constructors = make(map[string]StoreConstructor)

// FromConfig creates a store based on the store configuration.
func FromConfig(c config.Store) (Store, error) {
	if cf := Constructors[c.Backend]; cf != nil {
		return cf(c)
	}
	return nil, fmt.Errorf("unknown store backend configured: %q", c.Backend)
}

// Key returns key with the configured prefix applied.
func Key(prefix, key string) string {
	return prefix + key
}
