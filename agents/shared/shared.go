// Package shared holds the state-access and routing discipline every agent
// node follows, so individual nodes stay thin: they read a
// typed slice of ThreadState, call their orchestrator, and translate the
// result into a workflow.Command through these helpers — never touching
// ThreadState's maps directly.
package shared

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/finresearch/agentflow/artifact"
	"github.com/finresearch/agentflow/interrupt"
	"github.com/finresearch/agentflow/llm"
	"github.com/finresearch/agentflow/workflow"
)

// ThreadID returns the thread id the scheduler attached to ctx for the
// currently executing node, per workflow.ContextWithThreadID.
func ThreadID(ctx context.Context) (string, bool) {
	return workflow.ThreadIDFromContext(ctx)
}

// Slot reads one key out of nodeID's slot, reporting whether it was set.
func Slot(state workflow.ThreadState, nodeID, key string) (any, bool) {
	slot, ok := state.Slots[nodeID]
	if !ok {
		return nil, false
	}
	v, ok := slot[key]
	return v, ok
}

// SlotString reads a string-typed slot value.
func SlotString(state workflow.ThreadState, nodeID, key string) (string, bool) {
	v, ok := Slot(state, nodeID, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ResolvedTickerSlot and ResolvedTickerKey name where the intent agent
// stashes the symbol every downstream research node reads, so a rename in
// one place doesn't require hunting through every agent package.
const (
	ResolvedTickerSlot = "intent.resolve"
	ResolvedTickerKey  = "selected_symbol"
)

// Ticker returns the symbol the intent agent resolved for state's thread.
func Ticker(state workflow.ThreadState) (string, bool) {
	return SlotString(state, ResolvedTickerSlot, ResolvedTickerKey)
}

// LatestUserMessage returns the content of the last user-role message in
// state, the entry point most agent orchestrators parse for their task.
func LatestUserMessage(state workflow.ThreadState) (string, bool) {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == "user" {
			return state.Messages[i].Content, true
		}
	}
	return "", false
}

// InterruptCommand builds the Command a node returns to pause the thread:
// the INTERRUPT sentinel Goto plus req stashed at slots[nodeID]["__interrupt__"],
// the convention workflow.Scheduler's extractInterrupt reads back.
func InterruptCommand(nodeID string, req interrupt.Request, extra map[string]any) workflow.Command {
	slot := map[string]any{"__interrupt__": req}
	for k, v := range extra {
		slot[k] = v
	}
	return workflow.Command{
		Goto:   workflow.Interrupt(),
		Update: workflow.StateDiff{Slots: map[string]map[string]any{nodeID: slot}},
	}
}

// DoneCommand builds the Command a single-node agent returns once it has
// produced output and knows how to route next: the output envelope is
// recorded under agentID, the node's status flips to done, and execution
// continues at goto.
func DoneCommand(nodeID, agentID string, goTo workflow.Goto, output artifact.OutputEnvelope) workflow.Command {
	return workflow.Command{
		Goto: goTo,
		Update: workflow.StateDiff{
			NodeStatuses: map[string]workflow.NodeStatus{nodeID: workflow.StatusDone},
			AgentOutputs: map[string]artifact.OutputEnvelope{agentID: output},
		},
	}
}

// FailCommand marks nodeID attention-needed and records an incident-style
// message on the agentID's last output, used when a node hits a terminal
// (non-retryable) error it wants visible in the stream rather than
// propagated as a NodeError — e.g. an upstream artifact the node expected
// to resolve is missing.
func FailCommand(nodeID, agentID, summary string) workflow.Command {
	return workflow.Command{
		Goto: workflow.End(),
		Update: workflow.StateDiff{
			NodeStatuses: map[string]workflow.NodeStatus{nodeID: workflow.StatusAttention},
			AgentOutputs: map[string]artifact.OutputEnvelope{agentID: {Summary: summary}},
		},
	}
}

// RecordedChat runs one model.Chat call through the thread's Recorder (see
// workflow.ContextWithRecorder), if one is attached to ctx — recording the
// live response, replaying a prior one, or verifying the live response
// against a prior recording, depending on the scheduler's configured
// ReplayMode. nodeID keys the recording alongside the node's current retry
// attempt (workflow.AttemptFromContext), so a node's own retries each get
// a distinct slot. With no Recorder attached (ReplayModeOff, or a caller
// outside the scheduler such as a test), this is exactly model.Chat.
func RecordedChat(ctx context.Context, nodeID string, model llm.ChatModel, messages []llm.Message) (llm.ChatOut, error) {
	recorder, _ := workflow.RecorderFromContext(ctx)
	if recorder == nil || recorder.Mode() == workflow.ReplayModeOff {
		return model.Chat(ctx, messages, nil)
	}

	attempt := workflow.AttemptFromContext(ctx)
	raw, err := recorder.Do(nodeID, attempt, messages, func() (any, error) {
		return model.Chat(ctx, messages, nil)
	})
	if err != nil {
		return llm.ChatOut{}, err
	}
	var out llm.ChatOut
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.ChatOut{}, fmt.Errorf("shared: decode recorded chat response: %w", err)
	}
	return out, nil
}

// StreamedChat runs one model call, streaming token deltas to the
// scheduler's content.delta sink when all three conditions hold: no
// Recorder is active (recorded runs stay deterministic, so they take the
// single-shot RecordedChat path), the model implements
// llm.StreamingChatModel, and the node's context carries a delta publisher
// (workflow.DeltaPublisherFromContext — absent on retries and outside the
// scheduler). In every other case it is exactly RecordedChat.
func StreamedChat(ctx context.Context, nodeID string, model llm.ChatModel, messages []llm.Message) (llm.ChatOut, error) {
	recorder, _ := workflow.RecorderFromContext(ctx)
	if recorder == nil || recorder.Mode() == workflow.ReplayModeOff {
		if streamer, ok := model.(llm.StreamingChatModel); ok {
			if publish, ok := workflow.DeltaPublisherFromContext(ctx); ok {
				return streamer.ChatStream(ctx, messages, nil, publish)
			}
		}
	}
	return RecordedChat(ctx, nodeID, model, messages)
}

// MaxPreviewBytes bounds the JSON-encoded size of an OutputEnvelope's
// Preview field so streamed events stay small regardless of how large the
// full artifact is — see artifact.TruncatePreview.
const MaxPreviewBytes = artifact.MaxPreviewBytes

// TruncatePreview re-exports artifact.TruncatePreview so agent code only
// needs to import this package for its preview-building needs.
var TruncatePreview = artifact.TruncatePreview
