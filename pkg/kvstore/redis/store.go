// Package redis implements an override store backed by a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/kvstore"
	goredis "github.com/redis/go-redis/v9"
)

// Store looks up overrides with Redis GET.
type Store struct {
	client  *goredis.Client
	prefix  string
	timeout time.Duration
}

var _ kvstore.Store = &Store{}

// New connects to the configured Redis server and verifies it responds.
func New(cfg config.Store) (kvstore.Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s := &Store{client: client, prefix: cfg.KeyPrefix, timeout: cfg.Timeout}

	ctx, cancel := s.withTimeout(context.Background())
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return s, nil
}

// Get returns the value stored under key, treating redis.Nil as absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.client.Get(ctx, kvstore.Key(s.prefix, key)).Result()
	return result(val, err)
}

// Close releases the client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// result maps a GET reply onto the Store contract.
func result(val string, err error) (string, bool, error) {
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}
