package technical

import (
	"context"

	"github.com/finresearch/agentflow/agents/shared"
	"github.com/finresearch/agentflow/artifact"
	"github.com/finresearch/agentflow/workflow"
)

// NodeID and AgentID name this agent's single node and its key in
// state.agent_outputs.
const (
	NodeID  = "technical.analyze"
	AgentID = "technical"
)

// NewNode builds the technical-analysis research node.
func NewNode(orch *Orchestrator, port *artifact.TechnicalPort, joinTo string) workflow.Node {
	return workflow.NodeFunc{NodeID: NodeID, Fn: func(ctx context.Context, state workflow.ThreadState) (workflow.Command, error) {
		ticker, ok := shared.Ticker(state)
		if !ok {
			return shared.FailCommand(NodeID, AgentID, "technical agent reached with no resolved ticker"), nil
		}
		threadID, ok := shared.ThreadID(ctx)
		if !ok {
			return shared.FailCommand(NodeID, AgentID, "technical agent has no thread id in context"), nil
		}

		report, summary, err := orch.Analyze(ctx, ticker)
		if err != nil {
			return workflow.Command{}, &workflow.NodeError{NodeID: NodeID, ErrorCode: "TechnicalAnalysisFailed", Message: err.Error(), Retryable: true, Cause: err}
		}

		output, err := port.Publish(ctx, threadID, report, summary)
		if err != nil {
			return workflow.Command{}, &workflow.NodeError{NodeID: NodeID, ErrorCode: "ArtifactPublishFailed", Message: err.Error(), Retryable: false, Cause: err}
		}

		return shared.DoneCommand(NodeID, AgentID, workflow.To(joinTo), output), nil
	}}
}
