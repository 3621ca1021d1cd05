package cachestore

import (
	"context"
	"time"
)

// NoopStore is the stand-in when no cache store is configured. Reads always
// miss and writes succeed silently, so callers built on Store need no special
// casing for the unconfigured path.
type NoopStore struct{}

// NewNoop creates a no-op store
func NewNoop() *NoopStore {
	return &NoopStore{}
}

// Get always misses
func (s *NoopStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}

// Set discards the value
func (s *NoopStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}

// Incr always reports 1, keeping window counters permanently under any limit
func (s *NoopStore) Incr(ctx context.Context, key string) (int64, error) {
	return 1, nil
}

// Expire does nothing
func (s *NoopStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

// Exists always reports absent
func (s *NoopStore) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

// Del does nothing
func (s *NoopStore) Del(ctx context.Context, key string) error {
	return nil
}

// TTL always reports zero
func (s *NoopStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, nil
}

// Ping always succeeds
func (s *NoopStore) Ping(ctx context.Context) error {
	return nil
}

// Close does nothing
func (s *NoopStore) Close() error {
	return nil
}
