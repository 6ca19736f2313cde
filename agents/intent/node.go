package intent

import (
	"context"

	"github.com/finresearch/agentflow/agents/shared"
	"github.com/finresearch/agentflow/interrupt"
	"github.com/finresearch/agentflow/workflow"
)

// ResolveNodeID and DispatchNodeID are this subgraph's two node ids: the
// first may interrupt for disambiguation, the second fans the resolved
// symbol out to the three research agents once it has one.
const (
	ResolveNodeID  = "intent.resolve"
	DispatchNodeID = "intent.dispatch"
)

// NewResolveNode builds the entry node: it reads the thread's latest user
// message, resolves it to a ticker symbol, and either stashes the symbol
// directly or raises a disambiguation interrupt.
func NewResolveNode() workflow.Node {
	return workflow.NodeFunc{NodeID: ResolveNodeID, Fn: runResolve}
}

func runResolve(_ context.Context, state workflow.ThreadState) (workflow.Command, error) {
	message, ok := shared.LatestUserMessage(state)
	if !ok {
		return shared.FailCommand(ResolveNodeID, "intent", "no user message to resolve a ticker from"), nil
	}

	res := resolve(message)
	switch {
	case res.ambiguous():
		req := interrupt.NewEnumRequest(
			"ticker_disambiguation",
			"Select the intended ticker",
			"This request matches more than one listed share class.",
			shared.ResolvedTickerKey,
			res.Candidates,
			message,
		)
		return shared.InterruptCommand(ResolveNodeID, req, nil), nil
	case res.Symbol != "":
		return workflow.Command{
			Update: workflow.StateDiff{Slots: map[string]map[string]any{
				ResolveNodeID: {shared.ResolvedTickerKey: res.Symbol},
			}},
		}, nil
	default:
		return shared.FailCommand(ResolveNodeID, "intent", "could not identify a ticker symbol in the request"), nil
	}
}

// NewDispatchNode builds the fan-out node: once a symbol is resolved
// (directly or via interrupt resume), it routes to the three research
// agents concurrently.
func NewDispatchNode(next ...string) workflow.Node {
	return workflow.NodeFunc{NodeID: DispatchNodeID, Fn: func(_ context.Context, state workflow.ThreadState) (workflow.Command, error) {
		symbol, ok := shared.Ticker(state)
		if !ok {
			return shared.FailCommand(DispatchNodeID, "intent", "dispatch reached with no resolved ticker"), nil
		}
		return workflow.Command{
			Goto: workflow.Many(next...),
			Update: workflow.StateDiff{
				NodeStatuses: map[string]workflow.NodeStatus{DispatchNodeID: workflow.StatusDone},
				Slots: map[string]map[string]any{
					DispatchNodeID: {"ticker": symbol},
				},
			},
		}, nil
	}}
}
