package artifact

import (
	"context"
	"fmt"

	"github.com/finresearch/agentflow/contract"
)

// DebateInputs bundles the three typed artifacts the debate agent is
// authorized to consume, resolved and validated in one call so the agent
// never touches raw envelopes or re-implements kind checking.
type DebateInputs struct {
	Fundamental contract.FinancialReports
	News        contract.NewsItemsList
	Technical   contract.TechnicalFullReport
}

// DebatePort resolves a debate agent's typed inputs from Reference pointers
// left by upstream agents, enforcing the registry's consumption
// authorization on every read.
type DebatePort struct {
	store    *Store
	registry *contract.Registry
}

// NewDebatePort builds a DebatePort over store, authorizing reads through
// registry.
func NewDebatePort(store *Store, registry *contract.Registry) *DebatePort {
	return &DebatePort{store: store, registry: registry}
}

// Resolve loads and type-asserts the three upstream references, failing
// closed if any reference's kind isn't one "debate" is authorized to
// consume from its producer.
func (p *DebatePort) Resolve(ctx context.Context, fundamental, news, technical Reference) (DebateInputs, error) {
	var out DebateInputs

	if err := p.registry.RequireConsumption("debate", "fundamental", fundamental.Kind); err != nil {
		return out, err
	}
	fr, err := p.loadTyped(ctx, fundamental)
	if err != nil {
		return out, err
	}
	typed, ok := fr.(contract.FinancialReports)
	if !ok {
		return out, fmt.Errorf("artifact: expected FinancialReports for %s, got %T", fundamental.ArtifactID, fr)
	}
	out.Fundamental = typed

	if err := p.registry.RequireConsumption("debate", "news", news.Kind); err != nil {
		return out, err
	}
	nw, err := p.loadTyped(ctx, news)
	if err != nil {
		return out, err
	}
	newsTyped, ok := nw.(contract.NewsItemsList)
	if !ok {
		return out, fmt.Errorf("artifact: expected NewsItemsList for %s, got %T", news.ArtifactID, nw)
	}
	out.News = newsTyped

	if err := p.registry.RequireConsumption("debate", "technical", technical.Kind); err != nil {
		return out, err
	}
	tech, err := p.loadTyped(ctx, technical)
	if err != nil {
		return out, err
	}
	techTyped, ok := tech.(contract.TechnicalFullReport)
	if !ok {
		return out, fmt.Errorf("artifact: expected TechnicalFullReport for %s, got %T", technical.ArtifactID, tech)
	}
	out.Technical = techTyped

	return out, nil
}

func (p *DebatePort) loadTyped(ctx context.Context, ref Reference) (any, error) {
	data, err := p.store.LoadJSON(ctx, ref.ArtifactID, ref.Kind)
	if err != nil {
		return nil, err
	}
	raw, err := canonicalJSON(data)
	if err != nil {
		return nil, err
	}
	return p.registry.Parse(ref.Kind, ref.Version, raw)
}
