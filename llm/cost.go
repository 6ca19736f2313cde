package llm

import (
	"fmt"
	"sync"
)

// Pricing is a model's per-million-token input/output cost in USD. The
// table covers the three vendors this system's agents actually call.
type Pricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultPricing covers the default model names each adapter falls back to.
// Unknown model names cost zero rather than failing a run over a pricing
// gap — the ledger is an observability aid, not a billing system of record.
var defaultPricing = map[string]Pricing{
	"claude-sonnet-4-5-20250929": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
}

// CostLedger accumulates USD spend per agent across every call recorded
// into it. cmd/server shares one ledger among all agent orchestrators for
// the life of the process, so its totals span every thread, not one run.
type CostLedger struct {
	mu    sync.Mutex
	spent map[string]float64 // agent id -> USD
}

// NewCostLedger returns an empty CostLedger.
func NewCostLedger() *CostLedger {
	return &CostLedger{spent: make(map[string]float64)}
}

// Record prices one ChatOut's token usage for modelName and adds it to
// agentID's running total.
func (l *CostLedger) Record(agentID, modelName string, out ChatOut) float64 {
	price, ok := defaultPricing[modelName]
	if !ok {
		return 0
	}
	cost := float64(out.InputTokens)/1_000_000*price.InputPer1M +
		float64(out.OutputTokens)/1_000_000*price.OutputPer1M

	l.mu.Lock()
	defer l.mu.Unlock()
	l.spent[agentID] += cost
	return cost
}

// Total returns agentID's accumulated spend in USD.
func (l *CostLedger) Total(agentID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent[agentID]
}

// String renders the ledger as a human-readable summary of spend per agent.
func (l *CostLedger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("cost ledger: %v", l.spent)
}
