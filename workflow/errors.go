package workflow

import (
	"errors"

	"github.com/finresearch/agentflow/stream"
)

// User-level errors, surfaced directly as API errors; they never mutate
// thread state.
var (
	ErrThreadAlreadyRunning = errors.New("workflow: thread already running")
	ErrGraphCompiled        = errors.New("workflow: graph compilation is inconsistent")
	ErrNoPendingInterrupt   = errors.New("workflow: no pending interrupt")
	ErrInvalidResumePayload = errors.New("workflow: resume payload invalid")
	ErrThreadNotFound       = errors.New("workflow: thread not found")
)

// Taxonomy errors. ErrNodeTimeout is raised by the scheduler itself;
// ErrProtocolVersionMismatch is re-exported from the stream package so
// scheduler callers can check it here too.
var (
	ErrNodeTimeout = errors.New("workflow: node timeout")

	// ErrProtocolVersionMismatch aliases the stream package's sentinel so
	// errors.Is works the same whichever package a caller imported it from.
	ErrProtocolVersionMismatch = stream.ErrProtocolVersionMismatch
)

// TransientIOError marks an error retryable per policy — network or
// rate-limit failures from LLM or external data clients.
type TransientIOError struct {
	Cause error
}

func (e *TransientIOError) Error() string { return "workflow: transient I/O error: " + e.Cause.Error() }
func (e *TransientIOError) Unwrap() error { return e.Cause }
