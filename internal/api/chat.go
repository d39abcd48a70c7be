package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type sseFrame struct {
	Event string `json:"event,omitempty"`
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// sseWriter sends JSON frames as server-sent events. Headers are committed on
// the first frame, so errors before any output can still use a status code.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *sseWriter) send(frame sseFrame) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// streamChat handles POST /api/chat. Each delta is sent as {"data": delta},
// followed by {"event":"end","data":"done"}. Failures after the stream has
// started are sent as a final {"error": ...} frame.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid JSON: %v", err)})
		return
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	sse := &sseWriter{w: w, flusher: flusher}

	err = s.chat.Reply(r.Context(), id, req.Text, func(delta string) error {
		if err := r.Context().Err(); err != nil {
			return err
		}
		return sse.send(sseFrame{Data: delta})
	})
	if err != nil {
		if !sse.started {
			s.writeError(w, r, err)
			return
		}
		if r.Context().Err() == nil {
			s.logger.Warn("chat stream ended with error", "session_id", id, "error", err)
			_ = sse.send(sseFrame{Error: err.Error()})
		}
		return
	}

	_ = sse.send(sseFrame{Event: "end", Data: "done"})
}
