package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveFindsUnambiguousTicker(t *testing.T) {
	res := resolve("What do you think about AAPL right now?")

	assert.Equal(t, "AAPL", res.Symbol)
	assert.Empty(t, res.Candidates)
	assert.False(t, res.ambiguous())
}

func TestResolveFlagsAmbiguousShareClass(t *testing.T) {
	res := resolve("Give me a read on GOOG.")

	assert.Empty(t, res.Symbol)
	assert.Len(t, res.Candidates, 2)
	assert.True(t, res.ambiguous())
}

func TestResolveFlagsBerkshireAmbiguity(t *testing.T) {
	res := resolve("How's BRK doing?")

	assert.True(t, res.ambiguous())
	assert.Len(t, res.Candidates, 2)
}

func TestResolveReturnsEmptyResolutionWhenNoTickerFound(t *testing.T) {
	res := resolve("what is the market doing today")

	assert.Empty(t, res.Symbol)
	assert.Empty(t, res.Candidates)
	assert.False(t, res.ambiguous())
}
