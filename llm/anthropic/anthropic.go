// Package anthropic adapts Anthropic's Messages API to llm.ChatModel. This
// system's fundamental agent uses it.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/finresearch/agentflow/llm"
)

// DefaultModel is used when NewChatModel is given an empty model name.
const DefaultModel = "claude-sonnet-4-5-20250929"

// ChatModel implements llm.ChatModel against Anthropic's Claude API.
type ChatModel struct {
	modelName string
	client    client
}

// client is the narrow seam mocked in tests instead of the full SDK.
type client interface {
	createMessage(ctx context.Context, systemPrompt string, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error)
	createMessageStream(ctx context.Context, systemPrompt string, messages []llm.Message, tools []llm.ToolSpec, onDelta func(text string)) (llm.ChatOut, error)
}

// NewChatModel builds a ChatModel authenticated with apiKey, using
// modelName (DefaultModel if empty).
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &ChatModel{modelName: modelName, client: &sdkClient{apiKey: apiKey, modelName: modelName}}
}

func (m *ChatModel) Name() string { return "anthropic" }

// Chat extracts any system message (Anthropic takes it as a separate
// parameter, not as a conversation turn) and forwards the rest.
func (m *ChatModel) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error) {
	if ctx.Err() != nil {
		return llm.ChatOut{}, ctx.Err()
	}
	systemPrompt, turns := splitSystem(messages)
	return m.client.createMessage(ctx, systemPrompt, turns, tools)
}

// ChatStream is Chat over the streaming Messages API: onDelta receives each
// text fragment as the server emits it, and the accumulated message is
// returned whole once the stream closes. A nil onDelta degrades to Chat.
func (m *ChatModel) ChatStream(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, onDelta func(text string)) (llm.ChatOut, error) {
	if ctx.Err() != nil {
		return llm.ChatOut{}, ctx.Err()
	}
	if onDelta == nil {
		return m.Chat(ctx, messages, tools)
	}
	systemPrompt, turns := splitSystem(messages)
	return m.client.createMessageStream(ctx, systemPrompt, turns, tools, onDelta)
}

func splitSystem(messages []llm.Message) (string, []llm.Message) {
	var system string
	var turns []llm.Message
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		turns = append(turns, msg)
	}
	return system, turns
}

type sdkClient struct {
	apiKey    string
	modelName string
}

func (c *sdkClient) createMessage(ctx context.Context, systemPrompt string, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error) {
	if c.apiKey == "" {
		return llm.ChatOut{}, errors.New("anthropic: API key is required")
	}

	sdk := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	resp, err := sdk.Messages.New(ctx, c.buildParams(systemPrompt, messages, tools))
	if err != nil {
		return llm.ChatOut{}, fmt.Errorf("anthropic: %w", err)
	}
	return convertResponse(resp), nil
}

func (c *sdkClient) createMessageStream(ctx context.Context, systemPrompt string, messages []llm.Message, tools []llm.ToolSpec, onDelta func(text string)) (llm.ChatOut, error) {
	if c.apiKey == "" {
		return llm.ChatOut{}, errors.New("anthropic: API key is required")
	}

	sdk := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	stream := sdk.Messages.NewStreaming(ctx, c.buildParams(systemPrompt, messages, tools))
	message := anthropicsdk.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return llm.ChatOut{}, fmt.Errorf("anthropic: accumulate stream event: %w", err)
		}
		switch eventVariant := event.AsAny().(type) {
		case anthropicsdk.ContentBlockDeltaEvent:
			switch delta := eventVariant.Delta.AsAny().(type) {
			case anthropicsdk.TextDelta:
				onDelta(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return llm.ChatOut{}, fmt.Errorf("anthropic: %w", err)
	}
	return convertResponse(&message), nil
}

func (c *sdkClient) buildParams(systemPrompt string, messages []llm.Message, tools []llm.ToolSpec) anthropicsdk.MessageNewParams {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		Messages:  convertMessages(messages),
		MaxTokens: 4096,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}
	return params
}

func convertMessages(messages []llm.Message) []anthropicsdk.MessageParam {
	out := make([]anthropicsdk.MessageParam, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case llm.RoleAssistant:
			out[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content))
		default:
			out[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content))
		}
	}
	return out
}

func convertTools(tools []llm.ToolSpec) []anthropicsdk.ToolUnionParam {
	out := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, tool := range tools {
		var properties any
		var required []string
		if tool.Schema != nil {
			properties = tool.Schema["properties"]
			if req, ok := tool.Schema["required"].([]string); ok {
				required = req
			}
		}
		out[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        tool.Name,
				Description: anthropicsdk.String(tool.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{Properties: properties, Required: required},
			},
		}
	}
	return out
}

func convertResponse(resp *anthropicsdk.Message) llm.ChatOut {
	out := llm.ChatOut{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += b.Text
		case anthropicsdk.ToolUseBlock:
			var input map[string]any
			_ = json.Unmarshal(b.Input, &input)
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{Name: b.Name, Input: input})
		}
	}
	return out
}
