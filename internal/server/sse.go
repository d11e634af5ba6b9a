package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"mcp-wiki/internal/dispatch"
	"mcp-wiki/internal/registry"
)

type connectedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type toolsListEvent struct {
	Type  string           `json:"type"`
	Tools []registry.Entry `json:"tools"`
}

type heartbeatEvent struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

type toolStartEvent struct {
	Type string `json:"type"`
	Tool string `json:"tool"`
}

type toolResultEvent struct {
	Type   string `json:"type"`
	Result string `json:"result"`
}

type toolCompleteEvent struct {
	Type string `json:"type"`
}

type toolErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// eventWriter frames JSON payloads as "data: <json>\n\n" and flushes each one.
type eventWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &eventWriter{w: w, rc: http.NewResponseController(w)}
}

func (e *eventWriter) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return e.rc.Flush()
}

// sessionStream is one long-lived GET /sse connection. The catalog is a
// snapshot taken when the connection was accepted.
type sessionStream struct {
	id        string
	created   time.Time
	catalog   []registry.Entry
	heartbeat time.Duration
	epoch     time.Time
}

// run emits connected, tools_list and then a heartbeat every interval until
// ctx ends or a write fails. It never retries a failed write.
func (st *sessionStream) run(ctx context.Context, ew *eventWriter) error {
	if err := ew.send(connectedEvent{Type: "connected", Message: "SSE connection established"}); err != nil {
		return err
	}
	if err := ew.send(toolsListEvent{Type: "tools_list", Tools: st.catalog}); err != nil {
		return err
	}

	ticker := time.NewTicker(st.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Seconds on the server's monotonic clock.
			ts := time.Since(st.epoch).Seconds()
			if err := ew.send(heartbeatEvent{Type: "heartbeat", Timestamp: ts}); err != nil {
				return err
			}
		}
	}
}

// handleSSE serves GET /sse.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	st := &sessionStream{
		id:        middleware.GetReqID(r.Context()),
		created:   time.Now(),
		catalog:   s.tools.List(),
		heartbeat: s.cfg.Heartbeat,
		epoch:     s.started,
	}
	ew := newEventWriter(w)
	s.logger.Info("sse session opened", "session", st.id, "tools", len(st.catalog))

	err := st.run(r.Context(), ew)
	lifetime := time.Since(st.created)
	if r.Context().Err() != nil {
		s.logger.Info("sse session closed", "session", st.id, "lifetime", lifetime)
		return
	}
	s.logger.Warn("sse session write failed", "session", st.id, "lifetime", lifetime, "err", err)
}

// handleSSECall serves POST /sse/call. An unknown tool or an unreadable body
// yields a plain JSON error object; otherwise the response is a finite event
// stream ending in exactly one of tool_complete or tool_error.
func (s *Server) handleSSECall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.logger.Warn("malformed sse/call body", "err", err)
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	if !s.tools.Has(req.Name) {
		writeJSON(w, http.StatusOK, map[string]string{"error": fmt.Sprintf("Tool '%s' not found", req.Name)})
		return
	}

	ew := newEventWriter(w)
	if err := s.streamCall(r.Context(), ew, req); err != nil {
		s.logger.Warn("sse call stream aborted", "tool", req.Name, "err", err)
	}
}

func (s *Server) streamCall(ctx context.Context, ew *eventWriter, req CallRequest) error {
	if err := ew.send(toolStartEvent{Type: "tool_start", Tool: req.Name}); err != nil {
		return err
	}
	out := s.invoke(ctx, req.Name, req.Arguments)
	if out.Kind != dispatch.Success {
		return ew.send(toolErrorEvent{Type: "tool_error", Error: out.Message})
	}
	if err := ew.send(toolResultEvent{Type: "tool_result", Result: dispatch.Render(out.Value)}); err != nil {
		return err
	}
	return ew.send(toolCompleteEvent{Type: "tool_complete"})
}
