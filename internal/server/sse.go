package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SSEWriter writes Server-Sent Events.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter sets the event-stream headers on w.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends one event with a JSON payload.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event.
func (s *SSEWriter) WriteError(message string) error {
	return s.WriteEvent("error", map[string]string{"error": message})
}

// handleEvents streams a "status" event whenever the job's status record
// changes and a final "complete" event once it is terminal.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	job, err := s.jobs.Status(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	ticker := time.NewTicker(s.cfg.EventInterval)
	defer ticker.Stop()

	var last *StatusResponse
	for {
		current := toStatusResponse(job)
		if last == nil || statusChanged(*last, current) {
			if err := sse.WriteEvent("status", current); err != nil {
				return
			}
			last = &current
		}
		if job.Status.IsTerminal() {
			_ = sse.WriteEvent("complete", current)
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		job, err = s.jobs.Status(r.Context(), id)
		if err != nil {
			if r.Context().Err() == nil {
				s.logger.Warn("status poll failed", zap.String("job_id", id), zap.Error(err))
				_ = sse.WriteError(err.Error())
			}
			return
		}
	}
}

func statusChanged(a, b StatusResponse) bool {
	return a.Status != b.Status || a.Error != b.Error || !a.UpdatedAt.Equal(b.UpdatedAt)
}
