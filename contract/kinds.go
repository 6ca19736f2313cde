package contract

import "fmt"

// The kind names below are the closed set of artifact kinds this system
// knows how to produce and validate. Adding a new kind means adding a new
// schema + parser + serializer here — there is no generic escape hatch.
const (
	KindFundamentalFinancialReports = "fundamental.financial_reports"
	KindNewsItemsList               = "news.items_list"
	KindTechnicalFullReport         = "technical.full_report"
	KindDebateVerdict               = "debate.verdict"

	Version1 = "v1"
)

// FinancialReports is the typed form of fundamental.financial_reports/v1.
type FinancialReports struct {
	Ticker  string                    `json:"ticker"`
	AsOf    string                    `json:"as_of"`
	Metrics map[string]TraceableField `json:"metrics"`
}

// NewsItemsList is the typed form of news.items_list/v1.
type NewsItemsList struct {
	Ticker    string     `json:"ticker,omitempty"`
	NewsItems []NewsItem `json:"news_items"`
}

// NewsItem is one article within a NewsItemsList.
type NewsItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Sentiment string   `json:"sentiment"` // enum: bullish|bearish|neutral
	URL       string   `json:"url,omitempty"`
	Relevance *float64 `json:"relevance,omitempty"`
}

// TechnicalFullReport is the typed form of technical.full_report/v1.
type TechnicalFullReport struct {
	Ticker     string             `json:"ticker"`
	Indicators map[string]float64 `json:"indicators"`
	Signal     string             `json:"signal"` // enum: bullish|bearish|neutral
}

// DebateVerdict is the typed form of debate.verdict/v1, the synthesis
// artifact produced by the debate agent.
type DebateVerdict struct {
	Ticker     string          `json:"ticker"`
	Outcome    string          `json:"outcome"` // enum: buy|sell|hold
	Detail     DebateOutcome   `json:"detail"`
	Confidence float64         `json:"confidence"`
	Dissent    []DebateOpinion `json:"dissent"`
}

// DebateOutcome is the verdict detail; it has the same shape whichever
// value DebateVerdict.Outcome takes.
type DebateOutcome struct {
	TargetPrice *float64 `json:"target_price"`
	HorizonDays *int     `json:"horizon_days"`
	Rationale   string   `json:"rationale"`
}

// DebateOpinion records one agent's dissenting stance within a verdict.
type DebateOpinion struct {
	Agent  string `json:"agent"`
	Stance string `json:"stance"`
}

// NewDefaultRegistry builds a Registry pre-populated with the closed set of
// built-in kinds and the agent consumption graph fixed by the workflow
// topology: debate reads from fundamental, news, and technical; nothing
// reads from debate (it is terminal).
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	registerFinancialReports(r)
	registerNewsItemsList(r)
	registerTechnicalFullReport(r)
	registerDebateVerdict(r)

	r.AllowConsumption("debate", "fundamental", KindFundamentalFinancialReports)
	r.AllowConsumption("debate", "news", KindNewsItemsList)
	r.AllowConsumption("debate", "technical", KindTechnicalFullReport)

	return r
}

func traceableFieldSchema() *FieldSchema {
	return &FieldSchema{Type: FieldTraceable, Required: true}
}

func registerFinancialReports(r *Registry) {
	schema := &Schema{
		Fields: map[string]*FieldSchema{
			"ticker":  {Type: FieldString, Required: true},
			"as_of":   {Type: FieldString, Required: true},
			"metrics": {Type: FieldMapping, Required: true, MapValue: traceableFieldSchema()},
		},
	}

	parser := func(data map[string]any) (any, error) {
		out := FinancialReports{
			Ticker:  data["ticker"].(string),
			AsOf:    data["as_of"].(string),
			Metrics: make(map[string]TraceableField),
		}
		metrics, _ := data["metrics"].(map[string]any)
		for k, v := range metrics {
			m := v.(map[string]any)
			conf, _ := toFloat(m["confidence"])
			out.Metrics[k] = TraceableField{
				Value:      m["value"],
				Provenance: fmt.Sprint(m["provenance"]),
				Source:     fmt.Sprint(m["source"]),
				Confidence: conf,
			}
		}
		return out, nil
	}

	serializer := func(value any) (map[string]any, error) {
		v, ok := value.(FinancialReports)
		if !ok {
			return nil, fmt.Errorf("expected FinancialReports, got %T", value)
		}
		metrics := make(map[string]any, len(v.Metrics))
		for k, tf := range v.Metrics {
			metrics[k] = map[string]any{
				"value":      tf.Value,
				"provenance": tf.Provenance,
				"source":     tf.Source,
				"confidence": tf.Confidence,
			}
		}
		return map[string]any{
			"ticker":  v.Ticker,
			"as_of":   v.AsOf,
			"metrics": metrics,
		}, nil
	}

	r.MustRegister(KindFundamentalFinancialReports, Version1, schema, parser, serializer)
}

func registerNewsItemsList(r *Registry) {
	itemSchema := &Schema{
		Fields: map[string]*FieldSchema{
			"id":        {Type: FieldString, Required: true},
			"title":     {Type: FieldString, Required: true},
			"sentiment": {Type: FieldEnum, Required: true, Enum: []string{"bullish", "bearish", "neutral"}},
			"url":       {Type: FieldString, Required: false},
			"relevance": {Type: FieldNumber, Required: false, Min: floatPtr(0), Max: floatPtr(1)},
		},
	}
	schema := &Schema{
		Fields: map[string]*FieldSchema{
			"ticker":     {Type: FieldString, Required: false, Nullable: true},
			"news_items": {Type: FieldSequence, Required: true, Element: &FieldSchema{Type: FieldObject, Required: true, Object: itemSchema}},
		},
	}

	parser := func(data map[string]any) (any, error) {
		out := NewsItemsList{}
		if t, ok := data["ticker"].(string); ok {
			out.Ticker = t
		}
		items, _ := data["news_items"].([]any)
		for _, raw := range items {
			m := raw.(map[string]any)
			item := NewsItem{
				ID:        m["id"].(string),
				Title:     m["title"].(string),
				Sentiment: m["sentiment"].(string),
			}
			if u, ok := m["url"].(string); ok {
				item.URL = u
			}
			if rel, ok := toFloat(m["relevance"]); ok {
				item.Relevance = &rel
			}
			out.NewsItems = append(out.NewsItems, item)
		}
		return out, nil
	}

	serializer := func(value any) (map[string]any, error) {
		v, ok := value.(NewsItemsList)
		if !ok {
			return nil, fmt.Errorf("expected NewsItemsList, got %T", value)
		}
		items := make([]any, 0, len(v.NewsItems))
		for _, it := range v.NewsItems {
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
		data := map[string]any{"news_items": items}
		if v.Ticker != "" {
			data["ticker"] = v.Ticker
		}
		return data, nil
	}

	r.MustRegister(KindNewsItemsList, Version1, schema, parser, serializer)
}

func registerTechnicalFullReport(r *Registry) {
	schema := &Schema{
		Fields: map[string]*FieldSchema{
			"ticker":     {Type: FieldString, Required: true},
			"indicators": {Type: FieldMapping, Required: true, MapValue: &FieldSchema{Type: FieldNumber, Required: true}},
			"signal":     {Type: FieldEnum, Required: true, Enum: []string{"bullish", "bearish", "neutral"}},
		},
	}

	parser := func(data map[string]any) (any, error) {
		out := TechnicalFullReport{
			Ticker:     data["ticker"].(string),
			Signal:     data["signal"].(string),
			Indicators: make(map[string]float64),
		}
		indicators, _ := data["indicators"].(map[string]any)
		for k, v := range indicators {
			f, _ := toFloat(v)
			out.Indicators[k] = f
		}
		return out, nil
	}

	serializer := func(value any) (map[string]any, error) {
		v, ok := value.(TechnicalFullReport)
		if !ok {
			return nil, fmt.Errorf("expected TechnicalFullReport, got %T", value)
		}
		indicators := make(map[string]any, len(v.Indicators))
		for k, f := range v.Indicators {
			indicators[k] = f
		}
		return map[string]any{
			"ticker":     v.Ticker,
			"indicators": indicators,
			"signal":     v.Signal,
		}, nil
	}

	r.MustRegister(KindTechnicalFullReport, Version1, schema, parser, serializer)
}

func registerDebateVerdict(r *Registry) {
	detailSchema := &Schema{
		Fields: map[string]*FieldSchema{
			"target_price": {Type: FieldNumber, Required: false, Nullable: true},
			"horizon_days": {Type: FieldNumber, Required: false, Nullable: true},
			"rationale":    {Type: FieldString, Required: true},
		},
	}
	opinionSchema := &Schema{
		Fields: map[string]*FieldSchema{
			"agent":  {Type: FieldString, Required: true},
			"stance": {Type: FieldString, Required: true},
		},
	}
	// outcome's three variants share one detail shape, so a plain enum plus
	// a single detail schema covers it; FieldSum is reserved for kinds whose
	// variants actually diverge in shape.
	schema := &Schema{
		Fields: map[string]*FieldSchema{
			"ticker":     {Type: FieldString, Required: true},
			"outcome":    {Type: FieldEnum, Required: true, Enum: []string{"buy", "sell", "hold"}},
			"detail":     {Type: FieldObject, Required: true, Object: detailSchema},
			"confidence": {Type: FieldNumber, Required: true, Min: floatPtr(0), Max: floatPtr(1)},
			"dissent":    {Type: FieldSequence, Required: false, Nullable: true, Element: &FieldSchema{Type: FieldObject, Required: true, Object: opinionSchema}},
		},
		Passthrough: false,
	}

	parser := func(data map[string]any) (any, error) {
		detail, _ := data["detail"].(map[string]any)
		out := DebateVerdict{
			Ticker:  data["ticker"].(string),
			Outcome: data["outcome"].(string),
		}
		if detail != nil {
			if tp, ok := toFloat(detail["target_price"]); ok {
				out.Detail.TargetPrice = &tp
			}
			if hd, ok := toFloat(detail["horizon_days"]); ok {
				days := int(hd)
				out.Detail.HorizonDays = &days
			}
			out.Detail.Rationale, _ = detail["rationale"].(string)
		}
		conf, _ := toFloat(data["confidence"])
		out.Confidence = conf
		dissent, _ := data["dissent"].([]any)
		for _, raw := range dissent {
			m := raw.(map[string]any)
			out.Dissent = append(out.Dissent, DebateOpinion{
				Agent:  m["agent"].(string),
				Stance: m["stance"].(string),
			})
		}
		return out, nil
	}

	serializer := func(value any) (map[string]any, error) {
		v, ok := value.(DebateVerdict)
		if !ok {
			return nil, fmt.Errorf("expected DebateVerdict, got %T", value)
		}
		detail := map[string]any{"rationale": v.Detail.Rationale}
		if v.Detail.TargetPrice != nil {
			detail["target_price"] = *v.Detail.TargetPrice
		} else {
			detail["target_price"] = nil
		}
		if v.Detail.HorizonDays != nil {
			detail["horizon_days"] = *v.Detail.HorizonDays
		} else {
			detail["horizon_days"] = nil
		}

		dissent := make([]any, 0, len(v.Dissent))
		for _, d := range v.Dissent {
			dissent = append(dissent, map[string]any{"agent": d.Agent, "stance": d.Stance})
		}

		return map[string]any{
			"ticker":     v.Ticker,
			"outcome":    v.Outcome,
			"detail":     detail,
			"confidence": v.Confidence,
			"dissent":    dissent,
		}, nil
	}

	r.MustRegister(KindDebateVerdict, Version1, schema, parser, serializer)
}

func floatPtr(f float64) *float64 { return &f }
