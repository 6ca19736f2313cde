package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/finresearch/agentflow/storage"
)

// Checkpoint is what's persisted after every round (once per fan-out round,
// not per child) and on every suspension, error, and finish:
// the full state tree, last_seq_id, the current interrupt if any, and a
// monotonic checkpoint sequence number.
type Checkpoint struct {
	ThreadID      string             `json:"thread_id"`
	State         ThreadState        `json:"state"`
	LastSeqID     int64              `json:"last_seq_id"`
	Interrupt     *interruptSnapshot `json:"interrupt,omitempty"`
	CheckpointSeq int64              `json:"checkpoint_seq"`
	Status        string             `json:"status"`
	// ReadyNodes mirrors Thread.ReadyNodes so a paused or in-round thread
	// resumes at the right node(s) after a process restart reloads it
	// from its checkpoint instead of from in-memory scheduler state.
	ReadyNodes []string `json:"ready_nodes,omitempty"`
	// Recordings carries every RecordedIO captured for this thread, so a
	// restarted process can reattach a Recorder in ReplayModeReplay or
	// ReplayModeVerify instead of losing replay coverage across restarts.
	Recordings []RecordedIO `json:"recordings,omitempty"`
}

// interruptSnapshot avoids a checkpoint.go -> interrupt package import
// cycle concern by storing the request as a generic payload; the
// Scheduler reattaches the typed *interrupt.Request on load.
type interruptSnapshot = json.RawMessage

const checkpointKeyPrefix = "checkpoint:"

// CheckpointStore persists Checkpoints keyed by thread id, one current
// checkpoint per thread, overwritten on each save.
type CheckpointStore struct {
	blobs storage.BlobStore
}

// NewCheckpointStore wraps blobs as a CheckpointStore.
func NewCheckpointStore(blobs storage.BlobStore) *CheckpointStore {
	return &CheckpointStore{blobs: blobs}
}

// Save persists cp, overwriting any previous checkpoint for its thread.
func (s *CheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("workflow: marshal checkpoint: %w", err)
	}
	if err := s.blobs.Put(ctx, checkpointKeyPrefix+cp.ThreadID, raw); err != nil {
		return fmt.Errorf("workflow: save checkpoint %s: %w", cp.ThreadID, err)
	}
	return nil
}

// Load retrieves the current checkpoint for threadID. Returns
// ErrThreadNotFound if none exists.
func (s *CheckpointStore) Load(ctx context.Context, threadID string) (Checkpoint, error) {
	raw, err := s.blobs.Get(ctx, checkpointKeyPrefix+threadID)
	if errors.Is(err, storage.ErrNotFound) {
		return Checkpoint{}, ErrThreadNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("workflow: load checkpoint %s: %w", threadID, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("workflow: decode checkpoint %s: %w", threadID, err)
	}
	return cp, nil
}
