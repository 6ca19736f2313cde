package debate

import (
	"context"
	"fmt"

	"github.com/finresearch/agentflow/agents/fundamental"
	"github.com/finresearch/agentflow/agents/news"
	"github.com/finresearch/agentflow/agents/shared"
	"github.com/finresearch/agentflow/agents/technical"
	"github.com/finresearch/agentflow/artifact"
	"github.com/finresearch/agentflow/contract"
	"github.com/finresearch/agentflow/workflow"
)

// NodeID and AgentID name this agent's join node and its key in
// state.agent_outputs.
const (
	NodeID  = "debate.synthesize"
	AgentID = "debate"
)

// NewNode builds the join node: it runs once all three research agents'
// fan-out children have merged into state, resolves their typed outputs,
// synthesizes one verdict, and ends the thread.
func NewNode(debatePort *artifact.DebatePort, outputPort *artifact.DebateOutputPort) workflow.Node {
	return workflow.NodeFunc{NodeID: NodeID, Fn: func(ctx context.Context, state workflow.ThreadState) (workflow.Command, error) {
		ticker, ok := shared.Ticker(state)
		if !ok {
			return shared.FailCommand(NodeID, AgentID, "debate agent reached with no resolved ticker"), nil
		}
		threadID, ok := shared.ThreadID(ctx)
		if !ok {
			return shared.FailCommand(NodeID, AgentID, "debate agent has no thread id in context"), nil
		}

		fundRef, ok := reference(state, fundamental.AgentID)
		if !ok {
			return shared.FailCommand(NodeID, AgentID, "debate agent missing fundamental reference"), nil
		}
		newsRef, ok := reference(state, news.AgentID)
		if !ok {
			return shared.FailCommand(NodeID, AgentID, "debate agent missing news reference"), nil
		}
		techRef, ok := reference(state, technical.AgentID)
		if !ok {
			return shared.FailCommand(NodeID, AgentID, "debate agent missing technical reference"), nil
		}

		inputs, err := debatePort.Resolve(ctx, fundRef, newsRef, techRef)
		if err != nil {
			return workflow.Command{}, &workflow.NodeError{NodeID: NodeID, ErrorCode: "DebateInputResolutionFailed", Message: err.Error(), Retryable: false, Cause: err}
		}

		verdict := Synthesize(ticker, inputs.Fundamental, inputs.News, inputs.Technical)

		output, err := outputPort.Publish(ctx, threadID, verdict, summaryFor(verdict))
		if err != nil {
			return workflow.Command{}, &workflow.NodeError{NodeID: NodeID, ErrorCode: "ArtifactPublishFailed", Message: err.Error(), Retryable: false, Cause: err}
		}

		cmd := shared.DoneCommand(NodeID, AgentID, workflow.End(), output)
		return cmd, nil
	}}
}

func reference(state workflow.ThreadState, agentID string) (artifact.Reference, bool) {
	env, ok := state.AgentOutputs[agentID]
	if !ok || env.Reference == nil {
		return artifact.Reference{}, false
	}
	return *env.Reference, true
}

func summaryFor(v contract.DebateVerdict) string {
	return fmt.Sprintf("Debate verdict for %s: %s (confidence %.2f)", v.Ticker, v.Outcome, v.Confidence)
}
