package interrupt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finresearch/agentflow/interrupt"
)

func tickerRequest() interrupt.Request {
	return interrupt.NewEnumRequest(
		"ticker_selection",
		"Which ticker?",
		"Multiple matches found for GOOG",
		"selected_symbol",
		[]interrupt.OneOfEntry{
			{Const: "GOOG", Title: "Alphabet Inc. Class C"},
			{Const: "GOOGL", Title: "Alphabet Inc. Class A"},
		},
		nil,
	)
}

func TestValidateResumeAcceptsEnumMember(t *testing.T) {
	req := tickerRequest()
	err := interrupt.ValidateResume(req, map[string]any{"selected_symbol": "GOOG"})
	assert.NoError(t, err)
}

func TestValidateResumeRejectsValueOutsideEnum(t *testing.T) {
	req := tickerRequest()
	err := interrupt.ValidateResume(req, map[string]any{"selected_symbol": "AAPL"})
	assert.ErrorIs(t, err, interrupt.ErrInvalidResumePayload)

	var ve *interrupt.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, "selected_symbol", ve.Loc)
}

func TestValidateResumeRejectsMissingRequiredField(t *testing.T) {
	req := tickerRequest()
	err := interrupt.ValidateResume(req, map[string]any{})
	assert.ErrorIs(t, err, interrupt.ErrInvalidResumePayload)
}

func TestSchemaCarriesCanonicalOneOfShape(t *testing.T) {
	req := tickerRequest()
	prop := req.Schema.Properties["selected_symbol"]
	assert.ElementsMatch(t, []string{"GOOG", "GOOGL"}, prop.Enum)
	assert.Len(t, prop.OneOf, 2)
	assert.Equal(t, "Alphabet Inc. Class C", prop.OneOf[0].Title)
}
