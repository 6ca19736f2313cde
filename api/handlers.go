package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/finresearch/agentflow/contract"
	"github.com/finresearch/agentflow/workflow"
)

// startRequest is the body of POST /stream: either a new message starts a
// run, or a resume_payload answers the thread's active interrupt. Exactly
// one of the two is expected; both absent is a validation error.
type startRequest struct {
	ThreadID      string         `json:"thread_id"`
	Message       string         `json:"message,omitempty"`
	ResumePayload map[string]any `json:"resume_payload,omitempty"`
}

type startResponse struct {
	ThreadID  string `json:"thread_id"`
	StartedAt string `json:"started_at"`
}

// postStream handles POST /stream.
func (s *Server) postStream(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "could not read request body")
		return
	}
	var req startRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeValidation(w, http.StatusBadRequest, validationError{Loc: "body", Msg: "invalid JSON", Type: "json_error"})
		return
	}
	if req.ThreadID == "" {
		writeValidation(w, http.StatusBadRequest, validationError{Loc: "thread_id", Msg: "required", Type: "missing"})
		return
	}

	var handle workflow.StreamHandle
	if req.ResumePayload != nil {
		handle, err = s.Scheduler.Resume(r.Context(), req.ThreadID, req.ResumePayload)
	} else if req.Message != "" {
		handle, err = s.Scheduler.Start(r.Context(), req.ThreadID, req.Message)
	} else {
		writeValidation(w, http.StatusBadRequest, validationError{Loc: "body", Msg: "one of message or resume_payload is required", Type: "missing"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, startResponse{
		ThreadID:  handle.ThreadID,
		StartedAt: handle.StartedAt.UTC().Format(timeLayout),
	})
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// getHistory handles GET /history/{thread_id}?before=<msg_id>.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")
	before := r.URL.Query().Get("before")

	msgs, err := s.Scheduler.History(r.Context(), threadID, before, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// getThread handles GET /thread/{thread_id}.
func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")

	th, err := s.Scheduler.State(r.Context(), threadID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, th)
}

// agentIDFor derives the owning agent id from a node id by convention
// (agents/* node ids are "<agent>.<step>", e.g. "fundamental.report").
func agentIDFor(nodeID string) string {
	if i := strings.IndexByte(nodeID, '.'); i >= 0 {
		return nodeID[:i]
	}
	return nodeID
}

// getThreadAgents handles GET /thread/{thread_id}/agents.
func (s *Server) getThreadAgents(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")

	th, err := s.Scheduler.State(r.Context(), threadID)
	if err != nil {
		writeError(w, err)
		return
	}

	statuses := make(map[string]workflow.NodeStatus, len(th.State.NodeStatuses))
	for nodeID, status := range th.State.NodeStatuses {
		agentID := agentIDFor(nodeID)
		if existing, ok := statuses[agentID]; !ok || status == workflow.StatusRunning || existing == workflow.StatusIdle {
			statuses[agentID] = status
		}
	}
	writeJSON(w, http.StatusOK, statuses)
}

// getArtifact handles GET /api/artifacts/{artifact_id}. Kind-discriminated:
// the client parses the envelope, then the kind-specific data.
func (s *Server) getArtifact(w http.ResponseWriter, r *http.Request) {
	artifactID := chi.URLParam(r, "artifact_id")

	env, err := s.Artifacts.LoadAny(r.Context(), artifactID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// getContracts handles GET /api/contracts: every registered (kind, version)
// pair, sorted.
func (s *Server) getContracts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.RegisteredKinds())
}

// getContractSchema handles GET /api/contracts/{kind}/schema, serving the
// reflected JSON-Schema document for a registered kind. Documentation only:
// artifact validation never runs against this document.
func (s *Server) getContractSchema(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	doc, err := contract.RenderJSONSchemaDoc(kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
