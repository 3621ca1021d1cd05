// Package cache provides the two caching tiers of the conversation engine:
// a full-response cache consulted before the orchestrator loop, and a
// per-tool-result cache consulted before each tool execution. Both are
// best-effort layers over cachestore.Store; any store failure is logged and
// treated as a miss.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/youneslaaroussi/railway-llm-template/internal/metrics"
	"github.com/youneslaaroussi/railway-llm-template/pkg/cachestore"
)

// corruptSentinel is the artifact a careless serializer leaves behind when it
// stringifies an object instead of encoding it. Entries carrying it are
// purged on read.
const corruptSentinel = "[object Object]"

// jsonCache is the shared read/write discipline for both tiers
type jsonCache struct {
	store   cachestore.Store
	ttl     time.Duration
	name    string // metrics label
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func newJSONCache(store cachestore.Store, ttl time.Duration, name string, logger zerolog.Logger, m *metrics.Metrics) *jsonCache {
	return &jsonCache{
		store:   store,
		ttl:     ttl,
		name:    name,
		logger:  logger.With().Str("cache", name).Logger(),
		metrics: m,
	}
}

// get returns the raw serialized value for key. Corrupt entries are purged
// and reported as a miss; store errors are logged and reported as a miss.
func (c *jsonCache) get(ctx context.Context, key string) (string, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		c.miss()
		return "", false
	}
	if !ok {
		c.miss()
		return "", false
	}

	if raw == corruptSentinel || !json.Valid([]byte(raw)) {
		c.logger.Warn().Str("key", key).Msg("Purging corrupt cache entry")
		if err := c.store.Del(ctx, key); err != nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("Failed to purge corrupt entry")
		}
		if c.metrics != nil {
			c.metrics.CachePurgesTotal.WithLabelValues(c.name).Inc()
		}
		c.miss()
		return "", false
	}

	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(c.name).Inc()
	}
	return raw, true
}

// set writes a pre-serialized value. Values that are not valid JSON, or that
// carry the corrupt sentinel, are skipped silently. Store errors are logged
// and swallowed.
func (c *jsonCache) set(ctx context.Context, key, serialized string) {
	if serialized == corruptSentinel || !json.Valid([]byte(serialized)) {
		c.logger.Debug().Str("key", key).Msg("Skipping cache write of unserializable value")
		return
	}

	if err := c.store.Set(ctx, key, serialized, c.ttl); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

func (c *jsonCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(c.name).Inc()
	}
}

// ResponseCache caches complete buffered agent responses keyed by the inbound
// message and conversation history.
type ResponseCache struct {
	inner *jsonCache
}

// NewResponseCache creates the full-response cache
func NewResponseCache(store cachestore.Store, ttl time.Duration, logger zerolog.Logger, m *metrics.Metrics) *ResponseCache {
	return &ResponseCache{
		inner: newJSONCache(store, ttl, "response", logger, m),
	}
}

// Get looks up a cached response and unmarshals it into out. Returns false
// on miss, corrupt entry, or store failure.
func (c *ResponseCache) Get(ctx context.Context, message string, history any, out any) bool {
	raw, ok := c.inner.get(ctx, ResponseKey(message, history))
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.inner.logger.Warn().Err(err).Msg("Cached response does not match expected shape, purging")
		c.inner.store.Del(ctx, ResponseKey(message, history))
		return false
	}
	return true
}

// Set writes a response through to the store. Serialization failures skip
// the write silently.
func (c *ResponseCache) Set(ctx context.Context, message string, history any, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.inner.logger.Debug().Err(err).Msg("Skipping cache write, response failed to serialize")
		return
	}
	c.inner.set(ctx, ResponseKey(message, history), string(data))
}

// ToolResultCache caches serialized tool results keyed by tool name and
// argument hash. It operates on pre-serialized JSON so a cache hit returns
// the byte-for-byte payload the first execution produced.
type ToolResultCache struct {
	inner *jsonCache
}

// NewToolResultCache creates the per-tool-result cache
func NewToolResultCache(store cachestore.Store, ttl time.Duration, logger zerolog.Logger, m *metrics.Metrics) *ToolResultCache {
	return &ToolResultCache{
		inner: newJSONCache(store, ttl, "tool", logger, m),
	}
}

// Get returns the serialized result for (toolName, args), or false on miss
func (c *ToolResultCache) Get(ctx context.Context, toolName string, args map[string]any) (string, bool) {
	return c.inner.get(ctx, ToolKey(toolName, args))
}

// Set writes a serialized tool result through to the store
func (c *ToolResultCache) Set(ctx context.Context, toolName string, args map[string]any, serialized string) {
	c.inner.set(ctx, ToolKey(toolName, args), serialized)
}
