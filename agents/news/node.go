package news

import (
	"context"

	"github.com/finresearch/agentflow/agents/shared"
	"github.com/finresearch/agentflow/artifact"
	"github.com/finresearch/agentflow/workflow"
)

// NodeID and AgentID name this agent's single node and its key in
// state.agent_outputs.
const (
	NodeID  = "news.scan"
	AgentID = "news"
)

// NewNode builds the news-sentiment research node.
func NewNode(orch *Orchestrator, port *artifact.NewsPort, joinTo string) workflow.Node {
	return workflow.NodeFunc{NodeID: NodeID, Fn: func(ctx context.Context, state workflow.ThreadState) (workflow.Command, error) {
		ticker, ok := shared.Ticker(state)
		if !ok {
			return shared.FailCommand(NodeID, AgentID, "news agent reached with no resolved ticker"), nil
		}
		threadID, ok := shared.ThreadID(ctx)
		if !ok {
			return shared.FailCommand(NodeID, AgentID, "news agent has no thread id in context"), nil
		}

		list, summary, err := orch.Scan(ctx, ticker)
		if err != nil {
			return workflow.Command{}, &workflow.NodeError{NodeID: NodeID, ErrorCode: "NewsScanFailed", Message: err.Error(), Retryable: true, Cause: err}
		}

		output, err := port.Publish(ctx, threadID, list, summary)
		if err != nil {
			return workflow.Command{}, &workflow.NodeError{NodeID: NodeID, ErrorCode: "ArtifactPublishFailed", Message: err.Error(), Retryable: false, Cause: err}
		}

		return shared.DoneCommand(NodeID, AgentID, workflow.To(joinTo), output), nil
	}}
}
