package debate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finresearch/agentflow/agents/debate"
	"github.com/finresearch/agentflow/contract"
)

func TestSynthesizeBullishPositiveYieldsBuyWithHighConfidenceAndNoDissent(t *testing.T) {
	v := debate.Synthesize("AAPL",
		contract.FinancialReports{Ticker: "AAPL"},
		contract.NewsItemsList{NewsItems: []contract.NewsItem{{Sentiment: "bullish"}}},
		contract.TechnicalFullReport{Signal: "bullish"},
	)

	assert.Equal(t, "buy", v.Outcome)
	assert.Equal(t, 1.0, v.Confidence)
	assert.Empty(t, v.Dissent)
}

func TestSynthesizeMixedSignalsYieldsHoldWithDissent(t *testing.T) {
	v := debate.Synthesize("AAPL",
		contract.FinancialReports{},
		contract.NewsItemsList{NewsItems: []contract.NewsItem{{Sentiment: "bearish"}}},
		contract.TechnicalFullReport{Signal: "bullish"},
	)

	assert.Equal(t, "hold", v.Outcome)
	assert.Equal(t, 0.5, v.Confidence)
	assert.Len(t, v.Dissent, 2)
}

func TestSynthesizeNoNewsItemsTreatsSentimentAsNeutral(t *testing.T) {
	v := debate.Synthesize("AAPL",
		contract.FinancialReports{},
		contract.NewsItemsList{},
		contract.TechnicalFullReport{Signal: "bearish"},
	)

	assert.Equal(t, "sell", v.Outcome)
	assert.Equal(t, 0.75, v.Confidence)
	assert.Empty(t, v.Dissent)
}

func TestSynthesizeRationaleCitesFundamentalNarrative(t *testing.T) {
	v := debate.Synthesize("AAPL",
		contract.FinancialReports{Metrics: map[string]contract.TraceableField{
			"analyst_narrative": {Value: "solid balance sheet"},
		}},
		contract.NewsItemsList{},
		contract.TechnicalFullReport{Signal: "neutral"},
	)

	assert.Equal(t, "hold", v.Outcome)
	assert.Contains(t, v.Detail.Rationale, "solid balance sheet")
}

func TestSynthesizeMissingNarrativeFallsBackToPlaceholder(t *testing.T) {
	v := debate.Synthesize("AAPL", contract.FinancialReports{}, contract.NewsItemsList{}, contract.TechnicalFullReport{})

	assert.Contains(t, v.Detail.Rationale, "no narrative available")
}
