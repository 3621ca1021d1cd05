// Package cachestore provides a uniform key-value contract over an optional
// remote store. Callers treat every operation as best-effort: when no store
// is configured, or the configured store is unreachable, the package degrades
// to a no-op so caching and rate limiting disable themselves without taking
// the service down.
package cachestore

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Store is the uniform get/set/incr/expire contract used by the caches and
// the rate admission guard.
type Store interface {
	// Get returns the value for key. The second return is false on miss.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Incr atomically increments the integer value at key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets a TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Del removes key.
	Del(ctx context.Context, key string) error
	// TTL returns the remaining lifetime of key, 0 when absent or persistent.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Close releases any underlying resources.
	Close() error
}

// New returns the store for the given URL. An empty URL yields the no-op
// store. A URL that fails to parse or to answer a ping also yields the no-op
// store: the engine must keep serving when the cache service is down.
func New(ctx context.Context, url string, logger zerolog.Logger) Store {
	if url == "" {
		logger.Info().Msg("No cache store configured, caching and rate limiting disabled")
		return NewNoop()
	}

	store, err := NewRedis(url)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid cache store URL, falling back to no-op store")
		return NewNoop()
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Msg("Cache store unreachable, falling back to no-op store")
		store.Close()
		return NewNoop()
	}

	logger.Info().Msg("Cache store connected")
	return store
}
