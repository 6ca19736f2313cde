// Package news implements the news-sentiment research agent: a single
// LLM-backed node that turns a resolved ticker into a NewsItemsList
// artifact. Sourcing real articles lives with the upstream news clients;
// this agent shapes the model's narrative response into the typed
// contract the debate agent consumes.
package news

import (
	"context"
	"fmt"
	"strings"

	"github.com/finresearch/agentflow/agents/shared"
	"github.com/finresearch/agentflow/contract"
	"github.com/finresearch/agentflow/llm"
)

// Orchestrator drives one news-sentiment call.
type Orchestrator struct {
	Model     llm.ChatModel
	ModelName string
	Ledger    *llm.CostLedger
}

// Scan asks the model to characterize recent sentiment around ticker and
// shapes the answer into a NewsItemsList plus a short summary.
func (o *Orchestrator) Scan(ctx context.Context, ticker string) (contract.NewsItemsList, string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a markets news analyst. Summarize the prevailing news sentiment for a stock in one sentence and classify it."},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Summarize recent news sentiment for %s.", ticker)},
	}

	out, err := shared.StreamedChat(ctx, NodeID, o.Model, messages)
	if err != nil {
		return contract.NewsItemsList{}, "", fmt.Errorf("news: %s: %w", o.Model.Name(), err)
	}
	if o.Ledger != nil {
		o.Ledger.Record("news", o.ModelName, out)
	}

	relevance := 1.0
	list := contract.NewsItemsList{
		Ticker: ticker,
		NewsItems: []contract.NewsItem{
			{
				ID:        strings.ToLower(ticker) + "-sentiment-1",
				Title:     out.Text,
				Sentiment: classifySentiment(out.Text),
				Relevance: &relevance,
			},
		},
	}
	return list, fmt.Sprintf("News sentiment scan complete for %s.", ticker), nil
}

// classifySentiment does a coarse keyword pass over the model's narrative
// to pick the enum value the contract requires — a real implementation
// would source this from the model itself via structured output or a
// dedicated classifier, both out of scope here.
func classifySentiment(text string) string {
	positive := containsAny(text, "growth", "beat", "strong", "upgrade", "bullish")
	negative := containsAny(text, "miss", "weak", "downgrade", "bearish", "decline")
	switch {
	case positive && !negative:
		return "bullish"
	case negative && !positive:
		return "bearish"
	default:
		return "neutral"
	}
}

func containsAny(text string, words ...string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
