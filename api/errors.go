// Package api implements the Control API: the HTTP surface over a
// workflow.Scheduler and artifact.Store.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finresearch/agentflow/artifact"
	"github.com/finresearch/agentflow/contract"
	"github.com/finresearch/agentflow/interrupt"
	"github.com/finresearch/agentflow/workflow"
)

// validationError mirrors interrupt.ValidationError's {loc,msg,type} shape
// on the wire, the uniform error payload every handler emits.
type validationError struct {
	Loc  string `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

type errorPayload struct {
	Detail any `json:"detail"`
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorPayload{Detail: detail})
}

func writeValidation(w http.ResponseWriter, status int, errs ...validationError) {
	writeJSON(w, status, errorPayload{Detail: errs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error returned by the scheduler or artifact store onto
// the status-code taxonomy (400 validation, 404 unknown thread/artifact,
// 409 race, 422 interrupt schema mismatch, 500 internal). There is no
// fallback decoding of unrecognized errors — anything not named here is 500.
func writeError(w http.ResponseWriter, err error) {
	var ve *interrupt.ValidationError
	if errors.As(err, &ve) {
		writeValidation(w, http.StatusUnprocessableEntity, validationError{Loc: ve.Loc, Msg: ve.Msg, Type: ve.Type})
		return
	}

	switch {
	case errors.Is(err, workflow.ErrInvalidResumePayload):
		writeValidation(w, http.StatusUnprocessableEntity, validationError{Loc: "resume_payload", Msg: err.Error(), Type: "invalid_resume_payload"})
	case errors.Is(err, workflow.ErrThreadNotFound), errors.Is(err, artifact.ErrArtifactNotFound), errors.Is(err, contract.ErrUnknownKind):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrThreadAlreadyRunning), errors.Is(err, workflow.ErrNoPendingInterrupt), errors.Is(err, artifact.ErrArtifactConflict):
		writeDetail(w, http.StatusConflict, err.Error())
	case errors.Is(err, artifact.ErrKindMismatch):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		writeDetail(w, http.StatusInternalServerError, err.Error())
	}
}
