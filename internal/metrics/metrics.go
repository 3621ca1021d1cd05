package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Chat request metrics
	ChatRequestsTotal   *prometheus.CounterVec
	ChatRequestDuration *prometheus.HistogramVec
	ChatIterationsTotal prometheus.Counter

	// Tool metrics
	ToolExecutionsTotal   *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CachePurgesTotal *prometheus.CounterVec

	// Admission metrics
	RateLimitRejectionsTotal prometheus.Counter
	RateLimitBlocksTotal     prometheus.Counter

	// Streaming metrics
	StreamEventsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ChatRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_requests_total",
				Help: "Total number of chat requests handled",
			},
			[]string{"mode", "status"},
		),
		ChatRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chat_request_duration_seconds",
				Help:    "Duration of chat requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		ChatIterationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chat_iterations_total",
				Help: "Total number of completion/tool-call iterations executed",
			},
		),

		ToolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		CachePurgesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_purges_total",
				Help: "Total number of corrupt cache entries purged",
			},
			[]string{"cache"},
		),

		RateLimitRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_rejections_total",
				Help: "Total number of requests rejected by the admission guard",
			},
		),
		RateLimitBlocksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_blocks_total",
				Help: "Total number of client blocks established",
			},
		),

		StreamEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_events_total",
				Help: "Total number of streaming updates emitted",
			},
			[]string{"type"},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.ChatRequestsTotal)
	m.registry.MustRegister(m.ChatRequestDuration)
	m.registry.MustRegister(m.ChatIterationsTotal)

	m.registry.MustRegister(m.ToolExecutionsTotal)
	m.registry.MustRegister(m.ToolExecutionDuration)

	m.registry.MustRegister(m.CacheHitsTotal)
	m.registry.MustRegister(m.CacheMissesTotal)
	m.registry.MustRegister(m.CachePurgesTotal)

	m.registry.MustRegister(m.RateLimitRejectionsTotal)
	m.registry.MustRegister(m.RateLimitBlocksTotal)

	m.registry.MustRegister(m.StreamEventsTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
