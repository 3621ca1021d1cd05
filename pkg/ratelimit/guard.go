// Package ratelimit implements the request admission guard: a fixed-window
// counter plus an escalating block per client network identity, both kept in
// the shared cache store. Every store failure fails open — an unreachable
// store must never cost availability.
package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/youneslaaroussi/railway-llm-template/internal/metrics"
	"github.com/youneslaaroussi/railway-llm-template/pkg/cachestore"
)

const (
	countKeyPrefix = "ratelimit:count:"
	blockKeyPrefix = "ratelimit:block:"
)

// Config holds admission guard settings
type Config struct {
	MaxRequests int           // admitted requests per window
	Window      time.Duration // counter window
	BlockFor    time.Duration // block duration once the window is exceeded
}

// Decision is the outcome of an admission check
type Decision struct {
	Allowed    bool
	Remaining  int // requests left in the current window, valid when Allowed
	RetryAfter int // seconds until the caller may retry, valid when !Allowed
}

// Guard is the rate admission guard
type Guard struct {
	store   cachestore.Store
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates an admission guard over the given store
func New(store cachestore.Store, cfg Config, logger zerolog.Logger, m *metrics.Metrics) *Guard {
	return &Guard{
		store:   store,
		cfg:     cfg,
		logger:  logger.With().Str("component", "ratelimit").Logger(),
		metrics: m,
	}
}

// Check admits or rejects one request from the given client identifier.
func (g *Guard) Check(ctx context.Context, clientID string) Decision {
	if clientID == "" {
		return Decision{Allowed: true, Remaining: g.cfg.MaxRequests}
	}

	// A standing block rejects before the counter is touched.
	blocked, err := g.store.Exists(ctx, blockKeyPrefix+clientID)
	if err != nil {
		return g.failOpen(err, clientID)
	}
	if blocked {
		retryAfter := g.blockRetryAfter(ctx, clientID)
		g.reject(clientID, retryAfter, "client is blocked")
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	count, err := g.store.Incr(ctx, countKeyPrefix+clientID)
	if err != nil {
		return g.failOpen(err, clientID)
	}

	// Only the increment that opens a window sets its TTL; later increments
	// must not slide the window forward.
	if count == 1 {
		if err := g.store.Expire(ctx, countKeyPrefix+clientID, g.cfg.Window); err != nil {
			return g.failOpen(err, clientID)
		}
	}

	if count > int64(g.cfg.MaxRequests) {
		if err := g.store.Set(ctx, blockKeyPrefix+clientID, "1", g.cfg.BlockFor); err != nil {
			return g.failOpen(err, clientID)
		}
		if g.metrics != nil {
			g.metrics.RateLimitBlocksTotal.Inc()
		}

		retryAfter := int(math.Ceil(g.cfg.BlockFor.Seconds()))
		g.reject(clientID, retryAfter, "window limit exceeded, block established")
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	return Decision{
		Allowed:   true,
		Remaining: g.cfg.MaxRequests - int(count),
	}
}

// blockRetryAfter reads the remaining block TTL, rounded up to whole seconds
func (g *Guard) blockRetryAfter(ctx context.Context, clientID string) int {
	ttl, err := g.store.TTL(ctx, blockKeyPrefix+clientID)
	if err != nil || ttl <= 0 {
		return int(math.Ceil(g.cfg.BlockFor.Seconds()))
	}
	return int(math.Ceil(ttl.Seconds()))
}

func (g *Guard) failOpen(err error, clientID string) Decision {
	g.logger.Warn().Err(err).Str("client", clientID).Msg("Rate limit store error, admitting request")
	return Decision{Allowed: true, Remaining: g.cfg.MaxRequests}
}

func (g *Guard) reject(clientID string, retryAfter int, reason string) {
	if g.metrics != nil {
		g.metrics.RateLimitRejectionsTotal.Inc()
	}
	g.logger.Warn().
		Str("client", clientID).
		Int("retry_after", retryAfter).
		Msg("Rate limit exceeded: " + reason)
}
