// Package boundarylog is the single structured-logging path for the core.
// The scheduler is the only caller of Log, and it emits one Record per node
// start and per node end. The artifact save/load, cross-agent consumption,
// and interrupt Crossing values are defined here but nothing emits them:
// those crossings are not logged. Nodes themselves never call a logger
// directly — they return domain-neutral results.
package boundarylog

import (
	"time"

	"github.com/finresearch/agentflow/artifact"
)

// Crossing names the kind of boundary event being logged.
type Crossing string

const (
	CrossingNodeStart             Crossing = "node_start"
	CrossingNodeEnd               Crossing = "node_end"
	CrossingArtifactSave          Crossing = "artifact_save"
	CrossingArtifactLoad          Crossing = "artifact_load"
	CrossingCrossAgentConsumption Crossing = "cross_agent_consumption"
	CrossingInterrupt             Crossing = "interrupt"
)

// Replay is the reproduction snapshot attached to every non-OK Record: the
// current node, every artifact reference in scope, and a hash of the state
// slice at the time of the crossing.
type Replay struct {
	CurrentNode       string               `json:"current_node"`
	ArtifactRefs      []artifact.Reference `json:"artifact_refs"`
	StateSnapshotHash string               `json:"state_snapshot_hash"`
}

// Record is one structured log entry for a single boundary crossing.
type Record struct {
	Crossing     Crossing         `json:"crossing"`
	Node         string           `json:"node"`
	ThreadID     string           `json:"thread_id"`
	ArtifactID   *string          `json:"artifact_id,omitempty"`
	ContractKind *string          `json:"contract_kind,omitempty"`
	ErrorCode    string           `json:"error_code,omitempty"`
	Replay       *Replay          `json:"replay,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// OK reports whether r represents a successful crossing (no error_code).
func (r Record) OK() bool { return r.ErrorCode == "" }

// HashStateSnapshot hashes state's canonical JSON form for inclusion in a
// Replay. Two calls over equal state always produce the same hash,
// regardless of map iteration order.
func HashStateSnapshot(state any) (string, error) {
	canonical, err := artifact.CanonicalJSON(state)
	if err != nil {
		return "", err
	}
	return sha256Hex(canonical), nil
}
