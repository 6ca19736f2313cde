package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finresearch/agentflow/stream"
)

// streamThread serves GET /stream/{thread_id}: one `data: <json AgentEvent>\n`
// line per event, no `event:` line, terminated by `data: null\n` when the
// thread completes. An
// `?after=N` query resumes from offset N instead of replaying from the
// start.
func (s *Server) streamThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")

	after := int64(0)
	if v := r.URL.Query().Get("after"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &after); err != nil {
			writeDetail(w, http.StatusBadRequest, "after must be an integer seq_id")
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, err := s.Bus.Subscribe(r.Context(), threadID, after)
	if err != nil {
		writeError(w, err)
		return
	}
	defer s.Bus.Unsubscribe(threadID, sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.writeStream(r.Context(), w, flusher, sub)
}

func (s *Server) writeStream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sub *stream.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				_, _ = fmt.Fprint(w, "data: null\n")
				flusher.Flush()
				return
			}
			raw, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n", raw); err != nil {
				return
			}
			flusher.Flush()
			if event.Type == stream.EventLifecycleStatus {
				if data, ok := event.Data.(stream.LifecycleStatusData); ok && (data.Status == "done" || data.Status == "error") {
					_, _ = fmt.Fprint(w, "data: null\n")
					flusher.Flush()
					return
				}
			}
		}
	}
}
