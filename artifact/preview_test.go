package artifact_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finresearch/agentflow/artifact"
)

func TestTruncatePreviewReturnsSmallDataUnchanged(t *testing.T) {
	data := map[string]any{"ticker": "ACME", "signal": "bullish"}

	got := artifact.TruncatePreview(data)

	assert.Equal(t, data, got)
}

func TestTruncatePreviewReplacesOversizedDataWithStandIn(t *testing.T) {
	data := map[string]any{"narrative": strings.Repeat("a", artifact.MaxPreviewBytes*2)}

	got := artifact.TruncatePreview(data)

	assert.Equal(t, true, got["_truncated"])
	fullBytes, ok := got["_full_bytes"].(int)
	assert.True(t, ok)
	assert.Greater(t, fullBytes, artifact.MaxPreviewBytes)
}
