package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/agentflow/artifact"
	"github.com/finresearch/agentflow/interrupt"
	"github.com/finresearch/agentflow/storage"
	"github.com/finresearch/agentflow/stream"
	"github.com/finresearch/agentflow/workflow"
)

func newTestScheduler(t *testing.T, g *workflow.Graph) (*workflow.Scheduler, *stream.Bus) {
	t.Helper()
	bus := stream.NewBus(64, nil)
	checkpoints := workflow.NewCheckpointStore(storage.NewMemoryBlobStore())
	sched, err := workflow.NewScheduler(g, checkpoints, bus, workflow.Options{DefaultNodeTimeout: time.Second})
	require.NoError(t, err)
	return sched, bus
}

// waitUntilIdle polls State until the thread is no longer running or the
// deadline elapses — runLoop executes in its own goroutine, so tests
// synchronize on observable state instead of sleeping a fixed duration.
func waitUntilIdle(t *testing.T, sched *workflow.Scheduler, threadID string) workflow.Thread {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		th, err := sched.State(context.Background(), threadID)
		require.NoError(t, err)
		if !th.IsRunning {
			return th
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("thread never settled")
	return workflow.Thread{}
}

func sequentialGraph(t *testing.T) *workflow.Graph {
	t.Helper()
	g := workflow.NewGraph()
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "a", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		return workflow.Command{Goto: workflow.To("b")}, nil
	}}, workflow.NodePolicy{}))
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "b", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		return workflow.Command{Goto: workflow.End()}, nil
	}}, workflow.NodePolicy{}))
	g.StartAt("a")
	return g
}

func TestStartRunsToCompletionWithGapFreeSeqIDs(t *testing.T) {
	g := sequentialGraph(t)
	sched, bus := newTestScheduler(t, g)

	_, err := sched.Start(context.Background(), "t1", "hello")
	require.NoError(t, err)

	th := waitUntilIdle(t, sched, "t1")
	assert.Equal(t, "done", th.Status)
	assert.True(t, th.Terminal)

	events := bus.History("t1", 0)
	require.NotEmpty(t, events)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.SeqID)
	}
}

func TestStartRejectsDoubleStart(t *testing.T) {
	g := workflow.NewGraph()
	blocked := make(chan struct{})
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "a", Fn: func(ctx context.Context, _ workflow.ThreadState) (workflow.Command, error) {
		<-blocked
		return workflow.Command{Goto: workflow.End()}, nil
	}}, workflow.NodePolicy{}))
	g.StartAt("a")
	sched, _ := newTestScheduler(t, g)

	_, err := sched.Start(context.Background(), "t1", "hello")
	require.NoError(t, err)

	_, err = sched.Start(context.Background(), "t1", "again")
	assert.ErrorIs(t, err, workflow.ErrThreadAlreadyRunning)

	close(blocked)
	waitUntilIdle(t, sched, "t1")
}

func interruptingGraph(t *testing.T) *workflow.Graph {
	t.Helper()
	g := workflow.NewGraph()
	req := interrupt.Request{
		Type:  "ticker_disambiguation",
		Title: "Select the intended ticker",
		Schema: interrupt.Schema{
			Type: "object",
			Properties: map[string]interrupt.PropSchema{
				"selected_symbol": {
					OneOf: []interrupt.OneOfEntry{
						{Const: "GOOG", Title: "Alphabet Class C"},
						{Const: "GOOGL", Title: "Alphabet Class A"},
					},
				},
			},
			Required: []string{"selected_symbol"},
		},
	}
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "gate", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		return workflow.Command{
			Goto:   workflow.Interrupt(),
			Update: workflow.StateDiff{Slots: map[string]map[string]any{"gate": {"__interrupt__": req}}},
		}, nil
	}}, workflow.NodePolicy{}))
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "after_gate", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		return workflow.Command{Goto: workflow.End()}, nil
	}}, workflow.NodePolicy{}))
	g.StartAt("gate")
	g.Connect("gate", "after_gate", workflow.Always)
	return g
}

func TestInterruptThenResumeContinuesSeqIDsAndAppliesPayload(t *testing.T) {
	g := interruptingGraph(t)
	sched, bus := newTestScheduler(t, g)

	_, err := sched.Start(context.Background(), "t1", "analyze GOOG")
	require.NoError(t, err)

	th := waitUntilIdle(t, sched, "t1")
	assert.Equal(t, "paused", th.Status)
	require.NotNil(t, th.PendingInterrupt)
	lastSeq := bus.LatestSeq("t1")

	_, err = sched.Resume(context.Background(), "t1", map[string]any{"selected_symbol": "GOOG"})
	require.NoError(t, err)

	th = waitUntilIdle(t, sched, "t1")
	assert.Equal(t, "done", th.Status)
	assert.Nil(t, th.PendingInterrupt)
	assert.Equal(t, "GOOG", th.State.Slots["gate"]["selected_symbol"])

	events := bus.History("t1", lastSeq)
	require.NotEmpty(t, events)
	assert.Equal(t, lastSeq+1, events[0].SeqID)
}

func TestResumeRejectsInvalidEnumValue(t *testing.T) {
	g := interruptingGraph(t)
	sched, bus := newTestScheduler(t, g)

	_, err := sched.Start(context.Background(), "t1", "analyze GOOG")
	require.NoError(t, err)
	waitUntilIdle(t, sched, "t1")
	lastSeq := bus.LatestSeq("t1")

	_, err = sched.Resume(context.Background(), "t1", map[string]any{"selected_symbol": "AAPL"})
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrInvalidResumePayload)

	th, stateErr := sched.State(context.Background(), "t1")
	require.NoError(t, stateErr)
	assert.Equal(t, "paused", th.Status)
	assert.Equal(t, lastSeq, bus.LatestSeq("t1"))
}

func TestResumeIsIdempotentAfterSuccessfulResume(t *testing.T) {
	g := interruptingGraph(t)
	sched, _ := newTestScheduler(t, g)

	_, err := sched.Start(context.Background(), "t1", "analyze GOOG")
	require.NoError(t, err)
	waitUntilIdle(t, sched, "t1")

	_, err = sched.Resume(context.Background(), "t1", map[string]any{"selected_symbol": "GOOG"})
	require.NoError(t, err)
	waitUntilIdle(t, sched, "t1")

	_, err = sched.Resume(context.Background(), "t1", map[string]any{"selected_symbol": "GOOG"})
	assert.ErrorIs(t, err, workflow.ErrNoPendingInterrupt)
}

func TestSubscribeAfterOffsetReplaysOnlyNewerEvents(t *testing.T) {
	g := sequentialGraph(t)
	sched, bus := newTestScheduler(t, g)

	_, err := sched.Start(context.Background(), "t1", "hello")
	require.NoError(t, err)
	waitUntilIdle(t, sched, "t1")

	all := bus.History("t1", 0)
	require.GreaterOrEqual(t, len(all), 2)
	cut := all[len(all)-2].SeqID

	sub, err := bus.Subscribe(context.Background(), "t1", cut)
	require.NoError(t, err)
	defer bus.Unsubscribe("t1", sub)

	first := <-sub.Events()
	assert.Equal(t, cut+1, first.SeqID)
}

func TestStateUpdatePrecedesAgentStatusDoneWithinARound(t *testing.T) {
	g := workflow.NewGraph()
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "alpha.step", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		return workflow.Command{
			Goto: workflow.End(),
			Update: workflow.StateDiff{
				NodeStatuses: map[string]workflow.NodeStatus{"alpha.step": workflow.StatusDone},
				AgentOutputs: map[string]artifact.OutputEnvelope{"alpha": {Kind: "technical.full_report", Version: "v1", Summary: "done"}},
			},
		}, nil
	}}, workflow.NodePolicy{}))
	g.StartAt("alpha.step")
	sched, bus := newTestScheduler(t, g)

	_, err := sched.Start(context.Background(), "t1", "hello")
	require.NoError(t, err)
	waitUntilIdle(t, sched, "t1")

	runningIdx, updateIdx, doneIdx := -1, -1, -1
	for i, e := range bus.History("t1", 0) {
		switch e.Type {
		case stream.EventStateUpdate:
			updateIdx = i
		case stream.EventAgentStatus:
			data, ok := e.Data.(stream.AgentStatusData)
			require.True(t, ok)
			if data.Node != "alpha.step" {
				continue
			}
			switch data.Status {
			case string(workflow.StatusRunning):
				runningIdx = i
			case string(workflow.StatusDone):
				doneIdx = i
			}
		}
	}

	require.GreaterOrEqual(t, runningIdx, 0)
	require.GreaterOrEqual(t, updateIdx, 0)
	require.GreaterOrEqual(t, doneIdx, 0)
	assert.Less(t, runningIdx, updateIdx)
	assert.Less(t, updateIdx, doneIdx)
}

func TestContentDeltasPrecedeStateUpdateAndSkipRetries(t *testing.T) {
	g := workflow.NewGraph()
	calls := 0
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "alpha.step", Fn: func(ctx context.Context, _ workflow.ThreadState) (workflow.Command, error) {
		calls++
		if publish, ok := workflow.DeltaPublisherFromContext(ctx); ok {
			publish("Hello ")
			publish("world")
		}
		if calls == 1 {
			return workflow.Command{}, &workflow.NodeError{NodeID: "alpha.step", ErrorCode: "Flaky", Message: "transient", Retryable: true}
		}
		return workflow.Command{
			Goto: workflow.End(),
			Update: workflow.StateDiff{
				AgentOutputs: map[string]artifact.OutputEnvelope{"alpha": {Kind: "technical.full_report", Version: "v1", Summary: "done"}},
			},
		}, nil
	}}, workflow.NodePolicy{RetryPolicy: workflow.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}}))
	g.StartAt("alpha.step")
	sched, bus := newTestScheduler(t, g)

	_, err := sched.Start(context.Background(), "t1", "hello")
	require.NoError(t, err)
	th := waitUntilIdle(t, sched, "t1")
	require.Equal(t, "done", th.Status)

	var deltas []string
	lastDeltaIdx, updateIdx := -1, -1
	for i, e := range bus.History("t1", 0) {
		switch e.Type {
		case stream.EventContentDelta:
			data, ok := e.Data.(stream.ContentDeltaData)
			require.True(t, ok)
			deltas = append(deltas, data.Content)
			lastDeltaIdx = i
		case stream.EventStateUpdate:
			updateIdx = i
		}
	}

	// the retried second attempt has no publisher, so the fragments appear
	// exactly once even though the node ran twice
	assert.Equal(t, []string{"Hello ", "world"}, deltas)
	require.GreaterOrEqual(t, updateIdx, 0)
	assert.Less(t, lastDeltaIdx, updateIdx)
}

func TestFanOutChildrenDisagreeingOnRouteIsFatal(t *testing.T) {
	g := workflow.NewGraph()
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "fan", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		return workflow.Command{Goto: workflow.Many("left", "right")}, nil
	}}, workflow.NodePolicy{}))
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "left", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		return workflow.Command{Goto: workflow.To("join")}, nil
	}}, workflow.NodePolicy{}))
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "right", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		return workflow.Command{Goto: workflow.End()}, nil
	}}, workflow.NodePolicy{}))
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "join", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		return workflow.Command{Goto: workflow.End()}, nil
	}}, workflow.NodePolicy{}))
	g.StartAt("fan")
	sched, bus := newTestScheduler(t, g)

	_, err := sched.Start(context.Background(), "t1", "hello")
	require.NoError(t, err)
	th := waitUntilIdle(t, sched, "t1")

	assert.Equal(t, "error", th.Status)
	var sawError bool
	for _, e := range bus.History("t1", 0) {
		if e.Type == stream.EventError {
			data, ok := e.Data.(stream.ErrorData)
			require.True(t, ok)
			assert.Contains(t, data.Message, "disagree")
			sawError = true
		}
	}
	assert.True(t, sawError)
}

// TestCheckpointPersistsReadyNodesAcrossSchedulerRestart runs a two-node
// graph to completion, checks the saved checkpoint (no ready nodes left,
// status done), then builds a fresh Scheduler over the same checkpoint
// store and checks that it reads the thread back as done.
func TestCheckpointPersistsReadyNodesAcrossSchedulerRestart(t *testing.T) {
	blobs := storage.NewMemoryBlobStore()
	checkpoints := workflow.NewCheckpointStore(blobs)

	buildGraph := func() *workflow.Graph {
		g := workflow.NewGraph()
		_ = g.Add(workflow.NodeFunc{NodeID: "a", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
			return workflow.Command{Goto: workflow.To("b")}, nil
		}}, workflow.NodePolicy{})
		_ = g.Add(workflow.NodeFunc{NodeID: "b", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
			return workflow.Command{Goto: workflow.End()}, nil
		}}, workflow.NodePolicy{})
		g.StartAt("a")
		return g
	}

	bus1 := stream.NewBus(64, nil)
	sched1, err := workflow.NewScheduler(buildGraph(), checkpoints, bus1, workflow.Options{DefaultNodeTimeout: time.Second})
	require.NoError(t, err)

	_, err = sched1.Start(context.Background(), "t1", "hello")
	require.NoError(t, err)
	waitUntilIdle(t, sched1, "t1")

	cp, err := checkpoints.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, cp.ReadyNodes)
	assert.Equal(t, "done", cp.Status)

	bus2 := stream.NewBus(64, nil)
	sched2, err := workflow.NewScheduler(buildGraph(), checkpoints, bus2, workflow.Options{DefaultNodeTimeout: time.Second})
	require.NoError(t, err)

	th, err := sched2.State(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "done", th.Status)
}
