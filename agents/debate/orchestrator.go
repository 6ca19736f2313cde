// Package debate implements the synthesis agent: the fan-out join that
// reads the three research agents' typed artifacts and produces one
// DebateVerdict. The decision rule below is a simple, fully deterministic
// vote over the research agents' enum calls rather than an actual
// multi-turn argument between agent personas; what matters here is that the join is
// content-addressed and so produces the same verdict artifact id across
// repeated runs of the same inputs.
package debate

import (
	"fmt"

	"github.com/finresearch/agentflow/contract"
)

// Synthesize combines the three research findings into one verdict.
// Fundamental's narrative never drives the vote (it carries no enum
// signal) but is always cited in the rationale.
func Synthesize(ticker string, fundamental contract.FinancialReports, news contract.NewsItemsList, technical contract.TechnicalFullReport) contract.DebateVerdict {
	score := 0
	switch technical.Signal {
	case "bullish":
		score++
	case "bearish":
		score--
	}

	newsSentiment := dominantSentiment(news)
	switch newsSentiment {
	case "bullish":
		score++
	case "bearish":
		score--
	}

	outcome := "hold"
	switch {
	case score > 0:
		outcome = "buy"
	case score < 0:
		outcome = "sell"
	}

	confidence := 0.5 + 0.25*float64(abs(score))
	if confidence > 1 {
		confidence = 1
	}

	var dissent []contract.DebateOpinion
	if technical.Signal != "neutral" && mapsToOutcome(technical.Signal) != outcome {
		dissent = append(dissent, contract.DebateOpinion{Agent: "technical", Stance: technical.Signal})
	}
	if newsSentiment != "neutral" && mapsToOutcome(newsSentiment) != outcome {
		dissent = append(dissent, contract.DebateOpinion{Agent: "news", Stance: newsSentiment})
	}

	return contract.DebateVerdict{
		Ticker:  ticker,
		Outcome: outcome,
		Detail: contract.DebateOutcome{
			Rationale: fmt.Sprintf(
				"Technical signal %q and news sentiment %q combine to a %s call; fundamentals: %s",
				technical.Signal, newsSentiment, outcome, fundamentalNarrative(fundamental),
			),
		},
		Confidence: confidence,
		Dissent:    dissent,
	}
}

func dominantSentiment(list contract.NewsItemsList) string {
	if len(list.NewsItems) == 0 {
		return "neutral"
	}
	return list.NewsItems[0].Sentiment
}

func fundamentalNarrative(report contract.FinancialReports) string {
	tf, ok := report.Metrics["analyst_narrative"]
	if !ok {
		return "no narrative available"
	}
	s, _ := tf.Value.(string)
	return s
}

func mapsToOutcome(signal string) string {
	switch signal {
	case "bullish":
		return "buy"
	case "bearish":
		return "sell"
	default:
		return "hold"
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
