// Package llm defines the ChatModel port the workflow's agent orchestrators
// call through to reach an LLM provider, and the concrete vendor adapters
// that implement it. The core only depends on this interface, never on
// a specific vendor SDK.
package llm

import "context"

// ChatModel is the provider-agnostic surface every agent orchestrator calls
// through. Implementations translate Message/ToolSpec into their vendor's
// wire format and translate the response back, including provider errors.
type ChatModel interface {
	// Chat sends messages (and optional tool specs) to the model and
	// returns its reply. Respects ctx cancellation.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)

	// Name identifies the provider for boundary logging and cost
	// attribution ("anthropic", "openai", "google").
	Name() string
}

// Message is one turn in a conversation sent to a ChatModel.
type Message struct {
	Role    string
	Content string
}

// Role constants shared across providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StreamingChatModel is implemented by adapters whose provider supports
// token streaming. ChatStream behaves like Chat but invokes onDelta with
// each text fragment as it arrives, before returning the complete ChatOut.
// Callers that don't care about deltas keep using Chat; a nil onDelta
// degrades to Chat's behavior.
type StreamingChatModel interface {
	ChatModel
	ChatStream(ctx context.Context, messages []Message, tools []ToolSpec, onDelta func(text string)) (ChatOut, error)
}

// ToolSpec describes a tool the model may choose to call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCall is a model-requested invocation of one ToolSpec.
type ToolCall struct {
	Name  string
	Input map[string]any
}

// ChatOut is a ChatModel's reply: generated text, requested tool calls, or
// both, plus the token usage the cost ledger prices.
type ChatOut struct {
	Text         string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}
