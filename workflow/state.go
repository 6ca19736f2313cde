// Package workflow implements the stateful, suspend/resume graph execution
// engine: Thread/ThreadState, the Scheduler that advances a thread round by
// round, checkpointing, retry/backoff, and deterministic state merge.
package workflow

import (
	"time"

	"github.com/finresearch/agentflow/artifact"
	"github.com/finresearch/agentflow/interrupt"
)

// NodeStatus is the lifecycle status of a single node within a thread.
type NodeStatus string

const (
	StatusIdle      NodeStatus = "idle"
	StatusRunning   NodeStatus = "running"
	StatusDone      NodeStatus = "done"
	StatusError     NodeStatus = "error"
	StatusAttention NodeStatus = "attention"
)

// Message is one entry in a thread's accumulated conversation history.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadState is the tree of per-node state slots the scheduler mutates.
// It is the one concrete state shape this engine's merge function,
// reducer, and node contracts are built around.
type ThreadState struct {
	Messages     []Message             `json:"messages"`
	NodeStatuses map[string]NodeStatus `json:"node_statuses"`

	// AgentOutputs holds the most recent OutputEnvelope per agent id,
	// reference-only — full payloads live in the artifact store.
	AgentOutputs map[string]artifact.OutputEnvelope `json:"agent_outputs"`

	// Slots holds arbitrary per-node state payloads keyed by node id, used
	// by agent orchestrators to stash intermediate typed data that doesn't
	// belong in AgentOutputs (e.g. the intent agent's disambiguation
	// candidates before an interrupt is raised).
	Slots map[string]map[string]any `json:"slots"`
}

// NewThreadState returns an empty, fully-initialized ThreadState.
func NewThreadState() ThreadState {
	return ThreadState{
		NodeStatuses: make(map[string]NodeStatus),
		AgentOutputs: make(map[string]artifact.OutputEnvelope),
		Slots:        make(map[string]map[string]any),
	}
}

// Thread is the top-level unit of execution: one active graph run per
// thread_id, owning its state tree and pending interrupt exclusively.
type Thread struct {
	ThreadID         string             `json:"thread_id"`
	CreatedAt        time.Time          `json:"created_at"`
	Terminal         bool               `json:"terminal"`
	IsRunning        bool               `json:"is_running"`
	Cancelled        bool               `json:"cancelled"`
	State            ThreadState        `json:"state"`
	LastSeqID        int64              `json:"last_seq_id"`
	PendingInterrupt *interrupt.Request `json:"pending_interrupt,omitempty"`
	CheckpointSeq    int64              `json:"checkpoint_seq"`
	Status           string             `json:"status"` // running|paused|done|error

	// ReadyNodes is the node id(s) awaiting execution on the next round.
	// It is part of Thread (not scheduler-local bookkeeping) so a
	// checkpoint reload after a process restart resumes at the same
	// point instead of losing track of where execution paused.
	ReadyNodes []string `json:"ready_nodes,omitempty"`
}

// NewThread creates a fresh, non-running Thread.
func NewThread(threadID string) *Thread {
	return &Thread{
		ThreadID:  threadID,
		CreatedAt: time.Now(),
		State:     NewThreadState(),
		Status:    "idle",
	}
}
