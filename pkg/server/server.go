// Package server exposes the conversation engine over HTTP: buffered chat,
// SSE streaming, a websocket event mirror, health, and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/youneslaaroussi/railway-llm-template/internal/metrics"
	"github.com/youneslaaroussi/railway-llm-template/pkg/agent"
	"github.com/youneslaaroussi/railway-llm-template/pkg/ratelimit"
)

// Options holds server configuration
type Options struct {
	Host string
	Port int

	// HeartbeatInterval is the SSE idle-comment cadence
	HeartbeatInterval time.Duration
}

// Server is the HTTP front end for the agent service
type Server struct {
	options        Options
	service        *agent.Service
	guard          *ratelimit.Guard
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	server         *http.Server
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new HTTP server
func NewServer(options Options, service *agent.Service, guard *ratelimit.Guard, m *metrics.Metrics, logger zerolog.Logger) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("agent service is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("rate admission guard is required")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics are required")
	}

	if options.Port == 0 {
		options.Port = 8080
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.HeartbeatInterval == 0 {
		options.HeartbeatInterval = 15 * time.Second
	}

	return &Server{
		options:   options,
		service:   service,
		guard:     guard,
		metrics:   m,
		logger:    logger,
		startTime: time.Now(),
	}, nil
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/agent/chat", s.handleChat)
	mux.HandleFunc("/agent/chat/stream", s.handleChatStream)
	mux.HandleFunc("/agent/chat/ws", s.handleChatWS)
	mux.HandleFunc("/healthcheck", s.handleHealthcheck)
	mux.Handle("/metrics", s.metrics.Handler())

	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server, draining in-flight requests first
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down HTTP server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// shuttingDown reports whether new requests should be turned away
func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}
