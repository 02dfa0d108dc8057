// Package memcache implements an override store backed by memcached.
package memcache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/kvstore"
)

// Store looks up overrides with memcached GET.
type Store struct {
	client *memcache.Client
	prefix string
}

var _ kvstore.Store = &Store{}

// New builds a client for the configured servers, cfg.Addr may list several separated by
// commas, and verifies they respond.
func New(cfg config.Store) (kvstore.Store, error) {
	servers := strings.Split(cfg.Addr, ",")
	for i := range servers {
		servers[i] = strings.TrimSpace(servers[i])
	}
	client := memcache.New(servers...)
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to memcached at %s: %w", cfg.Addr, err)
	}
	return &Store{client: client, prefix: cfg.KeyPrefix}, nil
}

// Get returns the value stored under key, treating a cache miss as absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	mkey, err := memcacheKey(s.prefix, key)
	if err != nil {
		return "", false, err
	}
	item, err := s.client.Get(mkey)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("memcache get: %w", err)
	}
	return string(item.Value), true, nil
}

// memcacheKey applies prefix and checks the memcached key limits.
func memcacheKey(prefix, key string) (string, error) {
	k := kvstore.Key(prefix, key)
	if len(k) > 250 {
		return "", fmt.Errorf("memcache key %q exceeds 250 bytes", k)
	}
	for i := 0; i < len(k); i++ {
		if k[i] <= ' ' || k[i] == 0x7f {
			return "", fmt.Errorf("memcache key %q contains space or control character", k)
		}
	}
	return k, nil
}
