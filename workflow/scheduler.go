package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finresearch/agentflow/boundarylog"
	"github.com/finresearch/agentflow/interrupt"
	"github.com/finresearch/agentflow/stream"
)

// StreamHandle is returned by Start/Resume: it names the thread and when
// the run began. The caller watches progress by subscribing to the event
// bus for the same thread id — Start/Resume never block on completion.
type StreamHandle struct {
	ThreadID  string
	StartedAt time.Time
}

// Options configures a Scheduler.
type Options struct {
	DefaultNodeTimeout time.Duration
	Logger             *boundarylog.Logger
	Metrics            *Metrics
	// ReplayMode governs whether node I/O recorded through a Recorder (see
	// ContextWithRecorder) is captured, replayed, or verified. Defaults to
	// ReplayModeOff — nodes that never look up a Recorder are unaffected
	// either way.
	ReplayMode ReplayMode
}

// managedThread pairs a Thread with the mutex that serializes access to
// it — the checkpoint store serializes per thread_id, and so does this.
type managedThread struct {
	mu       sync.Mutex
	thread   *Thread
	recorder *Recorder
}

// Scheduler advances threads through a compiled Graph: one round at a
// time, checkpointing after every round, emitting ordered events, and
// honoring INTERRUPT suspension and resume. A fan-out round is checkpointed
// once, after all its children have run and been merged, not after each
// child.
type Scheduler struct {
	graph       *Graph
	checkpoints *CheckpointStore
	bus         *stream.Bus
	opts        Options

	mu      sync.Mutex
	threads map[string]*managedThread
}

// NewScheduler builds a Scheduler over a compiled graph.
func NewScheduler(graph *Graph, checkpoints *CheckpointStore, bus *stream.Bus, opts Options) (*Scheduler, error) {
	if err := graph.Compile(); err != nil {
		return nil, err
	}
	if opts.DefaultNodeTimeout <= 0 {
		opts.DefaultNodeTimeout = 30 * time.Second
	}
	return &Scheduler{
		graph:       graph,
		checkpoints: checkpoints,
		bus:         bus,
		opts:        opts,
		threads:     make(map[string]*managedThread),
	}, nil
}

func (s *Scheduler) managed(threadID string) *managedThread {
	s.mu.Lock()
	defer s.mu.Unlock()
	mt, ok := s.threads[threadID]
	if !ok {
		mt = &managedThread{}
		s.threads[threadID] = mt
	}
	return mt
}

// Start begins a new run on threadID with initialMessage. Fails with
// ErrThreadAlreadyRunning if a run is already active.
func (s *Scheduler) Start(ctx context.Context, threadID, initialMessage string) (StreamHandle, error) {
	mt := s.managed(threadID)
	mt.mu.Lock()

	if mt.thread == nil {
		if cp, err := s.checkpoints.Load(ctx, threadID); err == nil {
			mt.thread = checkpointToThread(cp)
			mt.recorder = NewRecorder(s.opts.ReplayMode, cp.Recordings)
		}
	}
	if mt.thread == nil {
		mt.thread = NewThread(threadID)
	}
	if mt.recorder == nil {
		mt.recorder = NewRecorder(s.opts.ReplayMode, nil)
	}
	if mt.thread.IsRunning {
		mt.mu.Unlock()
		return StreamHandle{}, ErrThreadAlreadyRunning
	}

	mt.thread.IsRunning = true
	mt.thread.Terminal = false
	mt.thread.Status = "running"
	mt.thread.State.Messages = append(mt.thread.State.Messages, Message{
		ID:        uuid.NewString(),
		Role:      "user",
		Content:   initialMessage,
		CreatedAt: time.Now(),
	})
	mt.thread.ReadyNodes = []string{s.graph.startNode}
	startedAt := time.Now()
	mt.mu.Unlock()

	s.publishLifecycle(ctx, threadID, "running")
	go s.runLoop(context.WithoutCancel(ctx), threadID)

	return StreamHandle{ThreadID: threadID, StartedAt: startedAt}, nil
}

// Resume validates resumePayload against threadID's active interrupt and,
// on success, clears it and re-queues the owning node's successor.
func (s *Scheduler) Resume(ctx context.Context, threadID string, resumePayload map[string]any) (StreamHandle, error) {
	mt := s.managed(threadID)
	mt.mu.Lock()

	if mt.thread == nil {
		if cp, err := s.checkpoints.Load(ctx, threadID); err == nil {
			mt.thread = checkpointToThread(cp)
			mt.recorder = NewRecorder(s.opts.ReplayMode, cp.Recordings)
		}
	}
	if mt.thread == nil || mt.thread.PendingInterrupt == nil {
		mt.mu.Unlock()
		return StreamHandle{}, ErrNoPendingInterrupt
	}
	if mt.recorder == nil {
		mt.recorder = NewRecorder(s.opts.ReplayMode, nil)
	}

	req := *mt.thread.PendingInterrupt
	if err := interrupt.ValidateResume(req, resumePayload); err != nil {
		mt.mu.Unlock()
		return StreamHandle{}, fmt.Errorf("%w: %w", ErrInvalidResumePayload, err)
	}

	mt.thread.PendingInterrupt = nil
	mt.thread.IsRunning = true
	mt.thread.Status = "running"

	interruptedNode := mt.thread.ReadyNodes
	slots := map[string]map[string]any{}
	for _, nodeID := range interruptedNode {
		slots[nodeID] = resumePayload
	}
	merged, err := Merge(mt.thread.State, []StateDiff{{Slots: slots}})
	if err != nil {
		mt.mu.Unlock()
		return StreamHandle{}, err
	}
	mt.thread.State = merged

	nextReady := make([]string, 0, len(interruptedNode))
	for _, nodeID := range interruptedNode {
		if next, ok := s.graph.fallbackNext(nodeID, mt.thread.State); ok {
			nextReady = append(nextReady, next)
		}
	}
	mt.thread.ReadyNodes = nextReady
	startedAt := time.Now()
	mt.mu.Unlock()

	s.publishLifecycle(ctx, threadID, "running")
	go s.runLoop(context.WithoutCancel(ctx), threadID)

	return StreamHandle{ThreadID: threadID, StartedAt: startedAt}, nil
}

// State returns a snapshot read of threadID: messages, per-node status,
// interrupts, is_running, last_seq_id, and reference-only agent outputs.
func (s *Scheduler) State(ctx context.Context, threadID string) (Thread, error) {
	mt := s.managed(threadID)
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.thread == nil {
		cp, err := s.checkpoints.Load(ctx, threadID)
		if err != nil {
			return Thread{}, err
		}
		mt.thread = checkpointToThread(cp)
	}
	s.syncLastSeq(mt.thread)
	return *mt.thread, nil
}

// syncLastSeq pulls the thread's last_seq_id forward from the bus, the
// authoritative sequencer. Never moves it backward — after a process
// restart the bus starts empty while the checkpointed value persists.
func (s *Scheduler) syncLastSeq(t *Thread) {
	if seq := s.bus.LatestSeq(t.ThreadID); seq > t.LastSeqID {
		t.LastSeqID = seq
	}
}

// History returns threadID's messages strictly before the message with id
// before (or all messages if before is empty), newest first, bounded to
// pageSize.
func (s *Scheduler) History(ctx context.Context, threadID, before string, pageSize int) ([]Message, error) {
	th, err := s.State(ctx, threadID)
	if err != nil {
		return nil, err
	}
	msgs := th.State.Messages
	reversed := make([]Message, len(msgs))
	for i, m := range msgs {
		reversed[len(msgs)-1-i] = m
	}

	start := 0
	if before != "" {
		for i, m := range reversed {
			if m.ID == before {
				start = i + 1
				break
			}
		}
	}
	end := start + pageSize
	if pageSize <= 0 || end > len(reversed) {
		end = len(reversed)
	}
	if start > end {
		start = end
	}
	return reversed[start:end], nil
}

func (s *Scheduler) publishLifecycle(ctx context.Context, threadID, status string) {
	_, _ = s.bus.Publish(ctx, threadID, stream.EventLifecycleStatus, "scheduler", stream.LifecycleStatusData{Status: status})
}

func (s *Scheduler) publishAgentStatus(ctx context.Context, threadID, nodeID, status string) {
	_, _ = s.bus.Publish(ctx, threadID, stream.EventAgentStatus, agentOf(nodeID), stream.AgentStatusData{
		Status: status,
		Node:   nodeID,
	})
}

// agentOf extracts the owning agent namespace from a node id of the form
// "agent.node".
func agentOf(nodeID string) string {
	if i := strings.IndexByte(nodeID, '.'); i > 0 {
		return nodeID[:i]
	}
	return nodeID
}

func sortedStatusNodes(m map[string]NodeStatus) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// runLoop advances threadID one round at a time until the ready set is
// empty (END), an interrupt is raised, or a fatal error occurs.
func (s *Scheduler) runLoop(ctx context.Context, threadID string) {
	mt := s.managed(threadID)

	for {
		mt.mu.Lock()
		ready := mt.thread.ReadyNodes
		thread := mt.thread
		mt.mu.Unlock()

		if len(ready) == 0 {
			s.finish(ctx, mt, "done")
			return
		}

		for _, nodeID := range ready {
			s.publishAgentStatus(ctx, threadID, nodeID, string(StatusRunning))
		}

		diffs, routes, interrupted, fatalErr := s.executeRound(ctx, threadID, thread.State, ready, mt.recorder)

		mt.mu.Lock()
		if fatalErr != nil {
			mt.thread.IsRunning = false
			mt.thread.Terminal = true
			mt.thread.Status = "error"
			s.syncLastSeq(mt.thread)
			cp := threadToCheckpoint(mt.thread, mt.recorder)
			mt.mu.Unlock()
			_ = s.checkpoints.Save(ctx, cp)
			for _, nodeID := range ready {
				s.publishAgentStatus(ctx, threadID, nodeID, string(StatusError))
			}
			s.emitError(ctx, threadID, "", fatalErr)
			s.publishLifecycle(ctx, threadID, "error")
			return
		}

		sorted := SortByNodeID(ready, diffs)
		merged, mergeErr := Merge(mt.thread.State, sorted)
		if mergeErr != nil {
			mt.thread.IsRunning = false
			mt.thread.Terminal = true
			mt.thread.Status = "error"
			s.syncLastSeq(mt.thread)
			cp := threadToCheckpoint(mt.thread, mt.recorder)
			mt.mu.Unlock()
			_ = s.checkpoints.Save(ctx, cp)
			if s.opts.Metrics != nil {
				s.opts.Metrics.MergeConflicts.Inc()
			}
			s.emitError(ctx, threadID, "", mergeErr)
			s.publishLifecycle(ctx, threadID, "error")
			return
		}
		mt.thread.State = merged

		// state.update for an agent always precedes agent.status=done for
		// the same agent, so status events go out only after every output
		// envelope in the round.
		for _, d := range sorted {
			for _, env := range d.AgentOutputs {
				_, _ = s.bus.Publish(ctx, threadID, stream.EventStateUpdate, env.Kind, env)
			}
		}
		for _, d := range sorted {
			for _, nodeID := range sortedStatusNodes(d.NodeStatuses) {
				s.publishAgentStatus(ctx, threadID, nodeID, string(d.NodeStatuses[nodeID]))
			}
		}

		if interrupted != nil {
			mt.thread.PendingInterrupt = interrupted
			mt.thread.IsRunning = false
			mt.thread.Status = "paused"
			mt.thread.ReadyNodes = ready
			s.syncLastSeq(mt.thread)
			cp := threadToCheckpoint(mt.thread, mt.recorder)
			mt.mu.Unlock()
			_ = s.checkpoints.Save(ctx, cp)
			_, _ = s.bus.Publish(ctx, threadID, stream.EventInterruptReq, ready[0], interrupted)
			s.publishLifecycle(ctx, threadID, "paused")
			return
		}

		next, terminal, routeErr := s.nextReady(routes, ready, mt.thread.State)
		if routeErr != nil {
			mt.thread.IsRunning = false
			mt.thread.Terminal = true
			mt.thread.Status = "error"
			s.syncLastSeq(mt.thread)
			cp := threadToCheckpoint(mt.thread, mt.recorder)
			mt.mu.Unlock()
			_ = s.checkpoints.Save(ctx, cp)
			s.emitError(ctx, threadID, "", routeErr)
			s.publishLifecycle(ctx, threadID, "error")
			return
		}
		mt.thread.ReadyNodes = next
		mt.thread.CheckpointSeq++
		s.syncLastSeq(mt.thread)
		cp := threadToCheckpoint(mt.thread, mt.recorder)
		mt.mu.Unlock()

		if err := s.checkpoints.Save(ctx, cp); err != nil {
			s.emitError(ctx, threadID, "", err)
		}

		if terminal {
			s.finish(ctx, mt, "done")
			return
		}
	}
}

func (s *Scheduler) finish(ctx context.Context, mt *managedThread, status string) {
	mt.mu.Lock()
	mt.thread.IsRunning = false
	mt.thread.Terminal = true
	mt.thread.Status = status
	threadID := mt.thread.ThreadID
	s.syncLastSeq(mt.thread)
	cp := threadToCheckpoint(mt.thread, mt.recorder)
	mt.mu.Unlock()
	_ = s.checkpoints.Save(ctx, cp)
	s.publishLifecycle(ctx, threadID, status)
}

// nextReady resolves the round's routing decision from its nodes' Gotos
// (falling back to graph edges for nodes that named no successor). Every
// node in the round must resolve to the same decision: fanned-out children
// disagreeing on their join target is a graph-authoring error, reported as
// ErrGraphCompiled rather than silently resolved in favor of whichever
// child happened to be inspected first.
func (s *Scheduler) nextReady(routes map[string]Goto, ready []string, state ThreadState) ([]string, bool, error) {
	var agreedNext []string
	agreedTerminal := false

	for i, nodeID := range ready {
		g := routes[nodeID]
		var next []string
		terminal := false
		switch {
		case g.Terminal:
			terminal = true
		case len(g.Many) > 0:
			next = g.Many
		case g.To != "":
			next = []string{g.To}
		default:
			if to, ok := s.graph.fallbackNext(nodeID, state); ok {
				next = []string{to}
			} else {
				terminal = true
			}
		}

		if i == 0 {
			agreedNext, agreedTerminal = next, terminal
			continue
		}
		if terminal != agreedTerminal || !equalNodeIDs(next, agreedNext) {
			return nil, false, fmt.Errorf("%w: fan-out children disagree on routing: node %q resolved %v (terminal=%v), want %v (terminal=%v)",
				ErrGraphCompiled, nodeID, next, terminal, agreedNext, agreedTerminal)
		}
	}

	return agreedNext, agreedTerminal, nil
}

func equalNodeIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// executeRound runs every node in ready concurrently (a no-op for a
// single-node round), returning each node's merge diff and routing
// decision plus any interrupt raised. Route agreement across fanned-out
// children is checked afterwards by nextReady.
func (s *Scheduler) executeRound(ctx context.Context, threadID string, state ThreadState, ready []string, recorder *Recorder) ([]StateDiff, map[string]Goto, *interrupt.Request, error) {
	diffs := make([]StateDiff, len(ready))
	routes := make(map[string]Goto, len(ready))
	var interrupted *interrupt.Request

	var wg sync.WaitGroup
	errs := make([]error, len(ready))
	mu := sync.Mutex{}

	for i, nodeID := range ready {
		wg.Add(1)
		go func(i int, nodeID string) {
			defer wg.Done()
			cmd, err := s.executeNode(ctx, threadID, nodeID, state, recorder)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[i] = err
				return
			}
			diffs[i] = cmd.Update
			routes[nodeID] = cmd.Goto
			if cmd.Goto.Interrupt {
				if req, ok := extractInterrupt(cmd.Update, nodeID); ok {
					interrupted = req
				}
			}
		}(i, nodeID)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, nil, err
		}
	}

	return diffs, routes, interrupted, nil
}

// extractInterrupt pulls an *interrupt.Request stashed by a node at
// slots[nodeID]["__interrupt__"], the convention agents/shared's interrupt
// helper uses to carry the request alongside the routing Goto.
func extractInterrupt(diff StateDiff, nodeID string) (*interrupt.Request, bool) {
	slot, ok := diff.Slots[nodeID]
	if !ok {
		return nil, false
	}
	raw, ok := slot["__interrupt__"]
	if !ok {
		return nil, false
	}
	req, ok := raw.(interrupt.Request)
	if !ok {
		return nil, false
	}
	return &req, true
}

// executeNode runs one node under its policy's timeout and retry rules.
func (s *Scheduler) executeNode(ctx context.Context, threadID, nodeID string, state ThreadState, recorder *Recorder) (Command, error) {
	policy := s.graph.policies[nodeID]
	if policy.Timeout <= 0 {
		policy.Timeout = s.opts.DefaultNodeTimeout
	}
	retry := policy.RetryPolicy
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy
	}

	node := s.graph.nodes[nodeID]
	rng := rand.New(rand.NewSource(seedFor(threadID, nodeID)))

	if s.opts.Metrics != nil {
		s.opts.Metrics.NodesInFlight.Inc()
		defer s.opts.Metrics.NodesInFlight.Dec()
	}

	s.logBoundary(ctx, threadID, nodeID, boundarylog.CrossingNodeStart, "", state)

	var lastErr error
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		baseCtx := ContextWithAttempt(ContextWithRecorder(ContextWithThreadID(ctx, threadID), recorder), attempt)
		if attempt == 1 {
			baseCtx = ContextWithDeltaPublisher(baseCtx, func(text string) {
				_, _ = s.bus.Publish(ctx, threadID, stream.EventContentDelta, agentOf(nodeID), stream.ContentDeltaData{Content: text})
			})
		}
		nodeCtx, cancel := context.WithTimeout(baseCtx, policy.Timeout)
		start := time.Now()
		cmd, err := node.Run(nodeCtx, state)
		elapsed := time.Since(start)
		cancel()

		if s.opts.Metrics != nil {
			s.opts.Metrics.StepLatency.WithLabelValues(nodeID).Observe(elapsed.Seconds())
		}

		if err == nil {
			s.logBoundary(ctx, threadID, nodeID, boundarylog.CrossingNodeEnd, "", state)
			return cmd, nil
		}

		lastErr = err
		if nodeCtx.Err() != nil {
			lastErr = &NodeError{NodeID: nodeID, ErrorCode: "NodeTimeout", Message: "node deadline exceeded", Retryable: true, Cause: fmt.Errorf("%w: %w", ErrNodeTimeout, err)}
		}
		if !retry.isRetryable(lastErr) || attempt == retry.MaxAttempts {
			break
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.NodeRetries.WithLabelValues(nodeID).Inc()
		}
		delay := computeBackoff(retry, attempt, rng)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Command{}, ctx.Err()
		}
	}

	s.logBoundary(ctx, threadID, nodeID, boundarylog.CrossingNodeEnd, errorCodeOf(lastErr), state)
	return Command{}, lastErr
}

func errorCodeOf(err error) string {
	var ne *NodeError
	if asNodeError(err, &ne) {
		return ne.ErrorCode
	}
	return "NodeError"
}

func (s *Scheduler) logBoundary(ctx context.Context, threadID, nodeID string, crossing boundarylog.Crossing, errorCode string, state ThreadState) {
	if s.opts.Logger == nil {
		return
	}
	rec := boundarylog.Record{
		Crossing:  crossing,
		Node:      nodeID,
		ThreadID:  threadID,
		ErrorCode: errorCode,
		Timestamp: time.Now(),
	}
	if errorCode != "" {
		hash, _ := boundarylog.HashStateSnapshot(state)
		rec.Replay = &boundarylog.Replay{CurrentNode: nodeID, StateSnapshotHash: hash}
	}
	_ = s.opts.Logger.Log(ctx, rec)
}

func (s *Scheduler) emitError(ctx context.Context, threadID, nodeID string, err error) {
	_, _ = s.bus.Publish(ctx, threadID, stream.EventError, "scheduler", stream.ErrorData{
		Message:   err.Error(),
		ErrorCode: errorCodeOf(err),
		Node:      nodeID,
	})
}

func seedFor(threadID, nodeID string) int64 {
	h := int64(2166136261)
	for _, r := range threadID + "|" + nodeID {
		h = (h ^ int64(r)) * 16777619
	}
	return h
}

func threadToCheckpoint(t *Thread, recorder *Recorder) Checkpoint {
	cp := Checkpoint{
		ThreadID:      t.ThreadID,
		State:         t.State,
		LastSeqID:     t.LastSeqID,
		CheckpointSeq: t.CheckpointSeq,
		Status:        t.Status,
		ReadyNodes:    t.ReadyNodes,
		Recordings:    recorder.Recordings(),
	}
	if t.PendingInterrupt != nil {
		if raw, err := json.Marshal(t.PendingInterrupt); err == nil {
			snapshot := interruptSnapshot(raw)
			cp.Interrupt = &snapshot
		}
	}
	return cp
}

func checkpointToThread(cp Checkpoint) *Thread {
	t := NewThread(cp.ThreadID)
	t.State = cp.State
	t.LastSeqID = cp.LastSeqID
	t.CheckpointSeq = cp.CheckpointSeq
	t.Status = cp.Status
	t.Terminal = cp.Status == "done" || cp.Status == "error"
	t.ReadyNodes = cp.ReadyNodes
	if cp.Interrupt != nil {
		var req interrupt.Request
		if err := json.Unmarshal(*cp.Interrupt, &req); err == nil {
			t.PendingInterrupt = &req
		}
	}
	return t
}

