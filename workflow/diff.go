package workflow

import (
	"fmt"
	"sort"

	"github.com/finresearch/agentflow/artifact"
)

// StateDiff is a node's declared mutation to ThreadState: a sparse set of
// field-level updates, merged into the owning Thread's state after the
// node completes (or, for fan-out, merged deterministically at the join).
type StateDiff struct {
	AppendMessages []Message
	NodeStatuses   map[string]NodeStatus
	AgentOutputs   map[string]artifact.OutputEnvelope
	Slots          map[string]map[string]any
}

// ErrMergeConflict is returned when two diffs in the same round write
// different scalar values to the same single-writer slot.
type ErrMergeConflict struct {
	Field string
}

func (e *ErrMergeConflict) Error() string {
	return fmt.Sprintf("workflow: merge conflict on %s: concurrent writers disagree", e.Field)
}

// Merge applies diffs to state in order and returns the resulting state.
// Mappings are merged key-wise with last-writer-wins within
// a round; lists append; node-status writes within a single round must
// agree (single-writer) or the merge errors out — two fanned-out children
// both claiming to own the same node's status is a graph-authoring bug,
// not something to silently resolve.
//
// diffs must be pre-sorted into a deterministic order by the caller (the
// join node orders children by their declared node id, not completion
// time) so repeated runs over the same input always merge identically.
func Merge(state ThreadState, diffs []StateDiff) (ThreadState, error) {
	out := state
	out.NodeStatuses = copyStatuses(state.NodeStatuses)
	out.AgentOutputs = copyOutputs(state.AgentOutputs)
	out.Slots = copySlots(state.Slots)
	out.Messages = append([]Message(nil), state.Messages...)

	seenStatusWriters := make(map[string]NodeStatus)
	seenStatusInThisMerge := make(map[string]bool)

	for _, d := range diffs {
		out.Messages = append(out.Messages, d.AppendMessages...)

		for node, status := range d.NodeStatuses {
			if prior, ok := seenStatusInThisMerge[node]; ok && prior {
				if seenStatusWriters[node] != status {
					return state, &ErrMergeConflict{Field: "node_status:" + node}
				}
			}
			seenStatusWriters[node] = status
			seenStatusInThisMerge[node] = true
			out.NodeStatuses[node] = status
		}

		for agent, output := range d.AgentOutputs {
			out.AgentOutputs[agent] = output // last-writer-wins, key-wise
		}

		for node, slot := range d.Slots {
			merged := out.Slots[node]
			if merged == nil {
				merged = make(map[string]any)
			}
			for k, v := range slot {
				merged[k] = v // last-writer-wins, key-wise within the slot
			}
			out.Slots[node] = merged
		}
	}

	return out, nil
}

// SortByNodeID is the deterministic merge order a join node uses across
// fanned-out children: lexicographic by the node id each diff originated
// from, independent of completion order.
func SortByNodeID(nodeIDs []string, diffs []StateDiff) []StateDiff {
	type pair struct {
		id   string
		diff StateDiff
	}
	pairs := make([]pair, len(nodeIDs))
	for i, id := range nodeIDs {
		pairs[i] = pair{id: id, diff: diffs[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	out := make([]StateDiff, len(pairs))
	for i, p := range pairs {
		out[i] = p.diff
	}
	return out
}

func copyStatuses(m map[string]NodeStatus) map[string]NodeStatus {
	out := make(map[string]NodeStatus, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyOutputs(m map[string]artifact.OutputEnvelope) map[string]artifact.OutputEnvelope {
	out := make(map[string]artifact.OutputEnvelope, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySlots(m map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(m))
	for k, v := range m {
		inner := make(map[string]any, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		out[k] = inner
	}
	return out
}
