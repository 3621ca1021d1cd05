package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/youneslaaroussi/railway-llm-template/internal/tracing"
	"github.com/youneslaaroussi/railway-llm-template/pkg/agent"
	"github.com/youneslaaroussi/railway-llm-template/pkg/ratelimit"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// handleChatWS handles GET /agent/chat/ws: the client sends one AgentRequest
// frame and receives the same event sequence as the SSE endpoint, one JSON
// frame per StreamingUpdate, closing after the terminal complete event.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	defer conn.Close()

	ip := ratelimit.ClientIP(r)
	ctx := tracing.NewRequestContext(r.Context())
	ctx = tracing.WithClientIP(ctx, ip)

	var req agent.AgentRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read websocket request")
		return
	}
	if req.Message == "" {
		conn.WriteJSON(map[string]string{"error": "message is required"})
		return
	}

	decision := s.guard.Check(ctx, ip)
	if !decision.Allowed {
		// Same rejection shape as the buffered and SSE paths
		conn.WriteJSON(&agent.AgentResponse{
			Message:             msgRateLimited,
			ConversationHistory: req.ConversationHistory,
			SessionID:           req.SessionID,
			Completed:           true,
			RateLimited:         true,
			RetryAfter:          decision.RetryAfter,
		})
		return
	}

	for u := range s.service.ProcessRequestStream(ctx, req) {
		if err := conn.WriteJSON(u); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Msg("WebSocket write error")
			}
			return
		}
	}
}
