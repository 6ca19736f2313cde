package artifact

import (
	"context"

	"github.com/finresearch/agentflow/contract"
)

// FundamentalPort is the fundamental agent's save-side facade: it owns the
// FinancialReports -> map[string]any shape conversion so the node itself
// never touches raw data maps, and assembles the OutputEnvelope (preview +
// reference) the node returns in its Command in one call.
type FundamentalPort struct {
	store *Store
}

// NewFundamentalPort builds a FundamentalPort over store.
func NewFundamentalPort(store *Store) *FundamentalPort {
	return &FundamentalPort{store: store}
}

// Publish validates and saves report under threadID, returning the
// OutputEnvelope ready to attach to state.agent_outputs["fundamental"].
func (p *FundamentalPort) Publish(ctx context.Context, threadID string, report contract.FinancialReports, summary string) (OutputEnvelope, error) {
	metrics := make(map[string]any, len(report.Metrics))
	for k, tf := range report.Metrics {
		metrics[k] = map[string]any{
			"value":      tf.Value,
			"provenance": tf.Provenance,
			"source":     tf.Source,
			"confidence": tf.Confidence,
		}
	}
	data := map[string]any{"ticker": report.Ticker, "as_of": report.AsOf, "metrics": metrics}

	env, err := p.store.Save(ctx, contract.KindFundamentalFinancialReports, contract.Version1, "fundamental", threadID, data)
	if err != nil {
		return OutputEnvelope{}, err
	}
	ref := env.ToReference()
	return OutputEnvelope{
		Kind:      env.Kind,
		Version:   env.Version,
		Summary:   summary,
		Preview:   TruncatePreview(env.Data),
		Reference: &ref,
	}, nil
}

// NewsPort is the news agent's save-side facade, mirroring FundamentalPort
// for the news.items_list kind.
type NewsPort struct {
	store *Store
}

// NewNewsPort builds a NewsPort over store.
func NewNewsPort(store *Store) *NewsPort {
	return &NewsPort{store: store}
}

// Publish validates and saves list under threadID.
func (p *NewsPort) Publish(ctx context.Context, threadID string, list contract.NewsItemsList, summary string) (OutputEnvelope, error) {
	items := make([]any, 0, len(list.NewsItems))
	for _, it := range list.NewsItems {
		m := map[string]any{
			"id":        it.ID,
			"title":     it.Title,
			"sentiment": it.Sentiment,
		}
		if it.URL != "" {
			m["url"] = it.URL
		}
		if it.Relevance != nil {
			m["relevance"] = *it.Relevance
		}
		items = append(items, m)
	}
	data := map[string]any{"ticker": list.Ticker, "news_items": items}

	env, err := p.store.Save(ctx, contract.KindNewsItemsList, contract.Version1, "news", threadID, data)
	if err != nil {
		return OutputEnvelope{}, err
	}
	ref := env.ToReference()
	return OutputEnvelope{
		Kind:      env.Kind,
		Version:   env.Version,
		Summary:   summary,
		Preview:   TruncatePreview(env.Data),
		Reference: &ref,
	}, nil
}

// TechnicalPort is the technical agent's save-side facade, mirroring
// FundamentalPort for the technical.full_report kind.
type TechnicalPort struct {
	store *Store
}

// NewTechnicalPort builds a TechnicalPort over store.
func NewTechnicalPort(store *Store) *TechnicalPort {
	return &TechnicalPort{store: store}
}

// Publish validates and saves report under threadID.
func (p *TechnicalPort) Publish(ctx context.Context, threadID string, report contract.TechnicalFullReport, summary string) (OutputEnvelope, error) {
	indicators := make(map[string]any, len(report.Indicators))
	for k, v := range report.Indicators {
		indicators[k] = v
	}
	data := map[string]any{"ticker": report.Ticker, "indicators": indicators, "signal": report.Signal}

	env, err := p.store.Save(ctx, contract.KindTechnicalFullReport, contract.Version1, "technical", threadID, data)
	if err != nil {
		return OutputEnvelope{}, err
	}
	ref := env.ToReference()
	return OutputEnvelope{
		Kind:      env.Kind,
		Version:   env.Version,
		Summary:   summary,
		Preview:   TruncatePreview(env.Data),
		Reference: &ref,
	}, nil
}

// DebateOutputPort is the debate agent's save-side facade for the terminal
// debate.verdict kind, mirroring the other producer ports.
type DebateOutputPort struct {
	store *Store
}

// NewDebateOutputPort builds a DebateOutputPort over store.
func NewDebateOutputPort(store *Store) *DebateOutputPort {
	return &DebateOutputPort{store: store}
}

// Publish validates and saves verdict under threadID.
func (p *DebateOutputPort) Publish(ctx context.Context, threadID string, verdict contract.DebateVerdict, summary string) (OutputEnvelope, error) {
	dissent := make([]any, 0, len(verdict.Dissent))
	for _, d := range verdict.Dissent {
		dissent = append(dissent, map[string]any{"agent": d.Agent, "stance": d.Stance})
	}
	data := map[string]any{
		"ticker":  verdict.Ticker,
		"outcome": verdict.Outcome,
		"detail": map[string]any{
			"target_price": verdict.Detail.TargetPrice,
			"horizon_days": verdict.Detail.HorizonDays,
			"rationale":    verdict.Detail.Rationale,
		},
		"confidence": verdict.Confidence,
		"dissent":    dissent,
	}

	env, err := p.store.Save(ctx, contract.KindDebateVerdict, contract.Version1, "debate", threadID, data)
	if err != nil {
		return OutputEnvelope{}, err
	}
	ref := env.ToReference()
	return OutputEnvelope{
		Kind:      env.Kind,
		Version:   env.Version,
		Summary:   summary,
		Preview:   TruncatePreview(env.Data),
		Reference: &ref,
	}, nil
}
