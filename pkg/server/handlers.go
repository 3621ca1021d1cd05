package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/youneslaaroussi/railway-llm-template/internal/tracing"
	"github.com/youneslaaroussi/railway-llm-template/pkg/agent"
	"github.com/youneslaaroussi/railway-llm-template/pkg/ratelimit"
)

const msgRateLimited = "You've sent too many requests. Please wait a moment before trying again."

// handleChat handles POST /agent/chat, the buffered entry point
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.shuttingDown() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	req, ctx, ok := s.admitRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.service.ProcessRequest(ctx, *req)
	if err != nil {
		s.logger.Error().Err(err).Msg("Chat request failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleHealthcheck handles GET /healthcheck
func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	})
}

// admitRequest decodes the body, applies the admission guard, and prepares
// the request context. A false return means the response was already written.
func (s *Server) admitRequest(w http.ResponseWriter, r *http.Request) (*agent.AgentRequest, context.Context, bool) {
	var req agent.AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil, nil, false
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return nil, nil, false
	}

	ip := ratelimit.ClientIP(r)
	ctx := tracing.NewRequestContext(r.Context())
	ctx = tracing.WithClientIP(ctx, ip)

	decision := s.guard.Check(ctx, ip)
	if !decision.Allowed {
		s.logger.Warn().
			Str("ip", ip).
			Int("retry_after", decision.RetryAfter).
			Msg("Request rejected by admission guard")

		w.Header().Set("Retry-After", fmt.Sprintf("%d", decision.RetryAfter))
		// Rejections share the normal response shape so clients have a
		// single contract
		writeJSON(w, http.StatusTooManyRequests, &agent.AgentResponse{
			Message:             msgRateLimited,
			ConversationHistory: req.ConversationHistory,
			SessionID:           req.SessionID,
			Completed:           true,
			RateLimited:         true,
			RetryAfter:          decision.RetryAfter,
		})
		return nil, nil, false
	}

	return &req, ctx, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
