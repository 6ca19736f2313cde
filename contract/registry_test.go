package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/agentflow/contract"
)

func TestFinancialReportsRoundTrip(t *testing.T) {
	r := contract.NewDefaultRegistry()

	raw := []byte(`{
		"ticker": "ACME",
		"as_of": "2026-06-30",
		"metrics": {
			"revenue": {"value": 1000000, "provenance": "10-Q", "source": "sec-edgar", "confidence": 0.95}
		}
	}`)

	parsed, err := r.Parse(contract.KindFundamentalFinancialReports, contract.Version1, raw)
	require.NoError(t, err)

	fr, ok := parsed.(contract.FinancialReports)
	require.True(t, ok)
	assert.Equal(t, "ACME", fr.Ticker)
	assert.Equal(t, 0.95, fr.Metrics["revenue"].Confidence)

	data, err := r.Serialize(contract.KindFundamentalFinancialReports, contract.Version1, fr)
	require.NoError(t, err)
	assert.Equal(t, "ACME", data["ticker"])
}

func TestParseRejectsUnknownKind(t *testing.T) {
	r := contract.NewDefaultRegistry()
	_, err := r.Parse("nonexistent.kind", contract.Version1, []byte(`{}`))
	assert.ErrorIs(t, err, contract.ErrUnknownKind)
}

func TestParseRejectsMissingRequiredField(t *testing.T) {
	r := contract.NewDefaultRegistry()
	_, err := r.Parse(contract.KindNewsItemsList, contract.Version1, []byte(`{"ticker": "ACME"}`))
	require.Error(t, err)
	var violation *contract.SchemaViolation
	require.ErrorAs(t, err, &violation)
	assert.Contains(t, violation.Path, "news_items")
}

func TestParseRejectsEnumOutsideClosedSet(t *testing.T) {
	r := contract.NewDefaultRegistry()
	raw := []byte(`{"ticker": "ACME", "news_items": [
		{"id": "n1", "title": "x", "url": "http://example.com", "sentiment": "ecstatic", "relevance": 0.5}
	]}`)
	_, err := r.Parse(contract.KindNewsItemsList, contract.Version1, raw)
	require.Error(t, err)
	var violation *contract.SchemaViolation
	require.ErrorAs(t, err, &violation)
	assert.Contains(t, violation.Path, "sentiment")
}

func TestNewsItemsListRoundTripElidesAbsentOptionals(t *testing.T) {
	r := contract.NewDefaultRegistry()
	raw := []byte(`{"news_items": [{"id": "n1", "title": "t", "sentiment": "bullish"}]}`)

	parsed, err := r.Parse(contract.KindNewsItemsList, contract.Version1, raw)
	require.NoError(t, err)

	list, ok := parsed.(contract.NewsItemsList)
	require.True(t, ok)
	require.Len(t, list.NewsItems, 1)
	assert.Equal(t, "n1", list.NewsItems[0].ID)
	assert.Equal(t, "bullish", list.NewsItems[0].Sentiment)
	assert.Nil(t, list.NewsItems[0].Relevance)

	data, err := r.Serialize(contract.KindNewsItemsList, contract.Version1, list)
	require.NoError(t, err)
	items, ok := data["news_items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.NotContains(t, item, "url")
	assert.NotContains(t, item, "relevance")
	assert.NotContains(t, data, "ticker")
}

func TestConsumptionAuthorization(t *testing.T) {
	r := contract.NewDefaultRegistry()
	assert.NoError(t, r.RequireConsumption("debate", "fundamental", contract.KindFundamentalFinancialReports))
	err := r.RequireConsumption("debate", "fundamental", contract.KindNewsItemsList)
	assert.ErrorIs(t, err, contract.ErrUnauthorizedConsumption)
	err = r.RequireConsumption("news", "fundamental", contract.KindFundamentalFinancialReports)
	assert.ErrorIs(t, err, contract.ErrUnauthorizedConsumption)
}

func TestDebateVerdictRoundTrip(t *testing.T) {
	r := contract.NewDefaultRegistry()
	raw := []byte(`{
		"ticker": "ACME",
		"outcome": "buy",
		"detail": {"target_price": 123.45, "horizon_days": 90, "rationale": "strong fundamentals"},
		"confidence": 0.8,
		"dissent": [{"agent": "technical", "stance": "hold"}]
	}`)
	parsed, err := r.Parse(contract.KindDebateVerdict, contract.Version1, raw)
	require.NoError(t, err)

	v, ok := parsed.(contract.DebateVerdict)
	require.True(t, ok)
	assert.Equal(t, "buy", v.Outcome)
	require.NotNil(t, v.Detail.TargetPrice)
	assert.InDelta(t, 123.45, *v.Detail.TargetPrice, 0.001)
	require.Len(t, v.Dissent, 1)
	assert.Equal(t, "technical", v.Dissent[0].Agent)
}
