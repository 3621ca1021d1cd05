package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleChatStream handles POST /agent/chat/stream. Each StreamingUpdate is
// written as an SSE "data:" line; comment lines keep idle connections alive
// while a slow tool or reasoning turn is in flight.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
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

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	req, ctx, admitted := s.admitRequest(w, r)
	if !admitted {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates := s.service.ProcessRequestStream(ctx, *req)

	heartbeat := time.NewTicker(s.options.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case u, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(u)
			if err != nil {
				s.logger.Error().Err(err).Msg("Failed to encode streaming update")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			// Client disconnected; ctx cancellation aborts the run
			return
		}
	}
}
