package shared_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/agentflow/agents/shared"
	"github.com/finresearch/agentflow/artifact"
	"github.com/finresearch/agentflow/interrupt"
	"github.com/finresearch/agentflow/llm"
	"github.com/finresearch/agentflow/workflow"
)

func artifactEnvelope() artifact.OutputEnvelope {
	return artifact.OutputEnvelope{Kind: "done", Summary: "ok"}
}

func TestThreadIDRoundTripsThroughContext(t *testing.T) {
	ctx := workflow.ContextWithThreadID(context.Background(), "thread-1")

	got, ok := shared.ThreadID(ctx)

	require.True(t, ok)
	assert.Equal(t, "thread-1", got)
}

func TestSlotAndSlotStringReadNestedState(t *testing.T) {
	state := workflow.ThreadState{Slots: map[string]map[string]any{
		"intent.resolve": {"selected_symbol": "AAPL", "confidence": 0.9},
	}}

	v, ok := shared.Slot(state, "intent.resolve", "confidence")
	require.True(t, ok)
	assert.Equal(t, 0.9, v)

	s, ok := shared.SlotString(state, "intent.resolve", "selected_symbol")
	require.True(t, ok)
	assert.Equal(t, "AAPL", s)

	_, ok = shared.SlotString(state, "intent.resolve", "confidence")
	assert.False(t, ok, "non-string value must not satisfy SlotString")

	_, ok = shared.Slot(state, "missing.node", "x")
	assert.False(t, ok)
}

func TestTickerReadsTheResolvedTickerSlot(t *testing.T) {
	state := workflow.ThreadState{Slots: map[string]map[string]any{
		shared.ResolvedTickerSlot: {shared.ResolvedTickerKey: "MSFT"},
	}}

	got, ok := shared.Ticker(state)

	require.True(t, ok)
	assert.Equal(t, "MSFT", got)
}

func TestLatestUserMessageSkipsNonUserRoles(t *testing.T) {
	state := workflow.ThreadState{Messages: []workflow.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "second"},
	}}

	got, ok := shared.LatestUserMessage(state)

	require.True(t, ok)
	assert.Equal(t, "second", got)
}

func TestLatestUserMessageMissingReturnsFalse(t *testing.T) {
	_, ok := shared.LatestUserMessage(workflow.ThreadState{Messages: []workflow.Message{{Role: "assistant", Content: "hi"}}})
	assert.False(t, ok)
}

func TestInterruptCommandCarriesRequestAndExtras(t *testing.T) {
	req := interrupt.Request{Type: "ticker_disambiguation"}

	cmd := shared.InterruptCommand("intent.resolve", req, map[string]any{"message": "what about GOOG"})

	assert.True(t, cmd.Goto.Interrupt)
	assert.Equal(t, req, cmd.Update.Slots["intent.resolve"]["__interrupt__"])
	assert.Equal(t, "what about GOOG", cmd.Update.Slots["intent.resolve"]["message"])
}

func TestStreamedChatStreamsThroughAttachedPublisher(t *testing.T) {
	model := &llm.MockChatModel{Responses: []llm.ChatOut{{Text: "steady growth ahead"}}}
	var deltas []string
	ctx := workflow.ContextWithDeltaPublisher(context.Background(), func(text string) {
		deltas = append(deltas, text)
	})

	out, err := shared.StreamedChat(ctx, "fundamental.report", model, []llm.Message{{Role: llm.RoleUser, Content: "assess"}})

	require.NoError(t, err)
	assert.Equal(t, "steady growth ahead", out.Text)
	assert.Equal(t, []string{"steady ", "growth ", "ahead"}, deltas)
}

func TestStreamedChatFallsBackToPlainChatWithoutPublisher(t *testing.T) {
	model := &llm.MockChatModel{Responses: []llm.ChatOut{{Text: "no stream"}}}

	out, err := shared.StreamedChat(context.Background(), "fundamental.report", model, nil)

	require.NoError(t, err)
	assert.Equal(t, "no stream", out.Text)
}

func TestStreamedChatPrefersRecorderOverStreaming(t *testing.T) {
	model := &llm.MockChatModel{Responses: []llm.ChatOut{{Text: "recorded run"}}}
	recorder := workflow.NewRecorder(workflow.ReplayModeRecord, nil)
	var deltas []string
	ctx := workflow.ContextWithRecorder(context.Background(), recorder)
	ctx = workflow.ContextWithDeltaPublisher(ctx, func(text string) {
		deltas = append(deltas, text)
	})

	out, err := shared.StreamedChat(ctx, "fundamental.report", model, nil)

	require.NoError(t, err)
	assert.Equal(t, "recorded run", out.Text)
	assert.Empty(t, deltas, "recorded runs stay single-shot for determinism")
	assert.Len(t, recorder.Recordings(), 1)
}

func TestDoneCommandRecordsStatusAndOutput(t *testing.T) {
	cmd := shared.DoneCommand("fundamental.report", "fundamental", workflow.To("debate.synthesize"), artifactEnvelope())

	assert.Equal(t, "debate.synthesize", cmd.Goto.To)
	assert.Equal(t, workflow.StatusDone, cmd.Update.NodeStatuses["fundamental.report"])
	assert.Equal(t, "done", cmd.Update.AgentOutputs["fundamental"].Kind)
}

func TestFailCommandMarksAttentionWithSummary(t *testing.T) {
	cmd := shared.FailCommand("fundamental.report", "fundamental", "no ticker resolved")

	assert.True(t, cmd.Goto.Terminal)
	assert.Equal(t, workflow.StatusAttention, cmd.Update.NodeStatuses["fundamental.report"])
	assert.Equal(t, "no ticker resolved", cmd.Update.AgentOutputs["fundamental"].Summary)
}
