// Package fundamental implements the fundamental-analysis research agent:
// a single LLM-backed node that turns a resolved ticker into a
// FinancialReports artifact. The concrete financial metrics a real
// fundamental analysis would compute live with the upstream data
// providers; this agent's job is the orchestration shape: call the
// model, shape its answer into the typed contract, publish it.
package fundamental

import (
	"context"
	"fmt"
	"time"

	"github.com/finresearch/agentflow/agents/shared"
	"github.com/finresearch/agentflow/contract"
	"github.com/finresearch/agentflow/llm"
)

// Orchestrator drives one fundamental-analysis call. ModelName records
// which concrete model Model is configured with, for cost-ledger pricing
// lookups — ChatModel itself only names its vendor, not its model string.
type Orchestrator struct {
	Model     llm.ChatModel
	ModelName string
	Ledger    *llm.CostLedger
}

// Analyze asks the model to assess ticker and shapes its answer into a
// FinancialReports artifact plus a short human-readable summary.
func (o *Orchestrator) Analyze(ctx context.Context, ticker string) (contract.FinancialReports, string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a fundamental equity analyst. Assess the company's financial health in two sentences."},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Assess %s's fundamentals: profitability, leverage, and growth trend.", ticker)},
	}

	out, err := shared.StreamedChat(ctx, NodeID, o.Model, messages)
	if err != nil {
		return contract.FinancialReports{}, "", fmt.Errorf("fundamental: %s: %w", o.Model.Name(), err)
	}
	if o.Ledger != nil {
		o.Ledger.Record("fundamental", o.ModelName, out)
	}

	report := contract.FinancialReports{
		Ticker: ticker,
		AsOf:   time.Now().UTC().Format("2006-01-02"),
		Metrics: map[string]contract.TraceableField{
			"analyst_narrative": {
				Value:      out.Text,
				Provenance: "model-generated assessment, not a filed figure",
				Source:     o.Model.Name(),
				Confidence: 0.6,
			},
		},
	}
	return report, fmt.Sprintf("Fundamental analysis complete for %s.", ticker), nil
}
