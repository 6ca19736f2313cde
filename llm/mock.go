package llm

import (
	"context"
	"strings"
)

// MockChatModel is a deterministic, scriptable ChatModel for agent
// orchestrator tests. No network call, no nondeterminism.
type MockChatModel struct {
	ProviderName string
	// Responses is consumed in order, one per Chat call. Reusing the last
	// entry once exhausted keeps long test sequences from needing an entry
	// per call.
	Responses []ChatOut
	calls     int
	// Err, if set, is returned instead of a response on every call.
	Err error
}

func (m *MockChatModel) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}
	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}
	idx := m.calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[idx], nil
}

// ChatStream replays the scripted response as word-sized deltas through
// onDelta before returning it whole, so streaming call paths are testable
// without a provider connection.
func (m *MockChatModel) ChatStream(ctx context.Context, messages []Message, tools []ToolSpec, onDelta func(text string)) (ChatOut, error) {
	out, err := m.Chat(ctx, messages, tools)
	if err != nil || onDelta == nil {
		return out, err
	}
	for _, chunk := range strings.SplitAfter(out.Text, " ") {
		if chunk != "" {
			onDelta(chunk)
		}
	}
	return out, nil
}

// Calls reports how many scripted Responses Chat has returned. Calls that
// return Err, a context error, or the zero ChatOut (no Responses) are not
// counted.
func (m *MockChatModel) Calls() int { return m.calls }
