// Package artifact implements the typed artifact store: the content-
// addressed persistence layer for cross-agent exchange units. Every
// envelope's data payload is pre-validated against the contract registry
// before it reaches this package — the store's own job is identity,
// idempotent writes, and kind-safe retrieval.
package artifact

import "time"

// Envelope is the cross-agent exchange unit named ArtifactEnvelope in the
// data model: a kind-discriminated, schema-validated payload addressed by
// a deterministic artifact id.
type Envelope struct {
	ArtifactID string         `json:"artifact_id"`
	Kind       string         `json:"kind"`
	Version    string         `json:"version"`
	ProducedBy string         `json:"produced_by"`
	ThreadID   string         `json:"thread_id"`
	CreatedAt  time.Time      `json:"created_at"`
	Data       map[string]any `json:"data"`
}

// Reference is an out-of-band pointer to an Envelope, used in preview and
// summary payloads so streamed events stay small.
type Reference struct {
	ArtifactID string `json:"artifact_id"`
	Kind       string `json:"kind"`
	Version    string `json:"version"`
}

// ToReference returns the Reference that points at e.
func (e Envelope) ToReference() Reference {
	return Reference{ArtifactID: e.ArtifactID, Kind: e.Kind, Version: e.Version}
}

// Incident is one structured entry in an AgentOutputEnvelope's error_logs.
type Incident struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// OutputEnvelope is the per-step emission from an agent: a summary plus a
// bounded preview for the UI, an optional Reference to the full artifact,
// and any structured incidents recorded while producing it.
//
// Invariant: if Reference is non-nil, the referenced artifact already
// exists in the Store before this envelope is emitted — see Store.Save.
type OutputEnvelope struct {
	Kind      string         `json:"kind"`
	Version   string         `json:"version"`
	Summary   string         `json:"summary"`
	Preview   map[string]any `json:"preview"`
	Reference *Reference     `json:"reference,omitempty"`
	ErrorLogs []Incident     `json:"error_logs,omitempty"`
}
