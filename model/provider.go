package model

import (
	"context"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts remote chat-completion capabilities (OpenAI-compatible
// endpoints, Anthropic, Ollama, Gemini) behind termchat's own types.
//
// The interface lives in the model package so provider implementations can
// import model while the chat engine and orchestrator depend only on model.
type Provider interface {
	// Chat sends messages and streams the response back via callback.
	Chat(ctx context.Context, messages []Message, opts ChatOptions, callback StreamCallback) error

	// ChatWithTools sends messages with the declared tool catalog and streams
	// both text fragments and requested tool calls back via callback.
	ChatWithTools(ctx context.Context, messages []Message, tools []mcptypes.Tool, opts ChatOptions, callback StreamCallback) error

	// ListModels returns the models this provider offers.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the model name used for API calls.
	GetModel() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// StreamCallback is called for each chunk of a streamed response. Returning
// an error stops the stream.
type StreamCallback func(chunk string, toolCalls []ToolCall) error

// ChatOptions carries per-request generation limits.
type ChatOptions struct {
	MaxTokens int
}

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	Name     string
	Size     int64
	Provider string
}

// Collect runs a non-streamed request: it concatenates every streamed chunk
// into one string and gathers the requested tool calls.
func Collect(ctx context.Context, p Provider, messages []Message, tools []mcptypes.Tool, opts ChatOptions) (string, []ToolCall, error) {
	var content strings.Builder
	var calls []ToolCall

	callback := func(chunk string, toolCalls []ToolCall) error {
		content.WriteString(chunk)
		calls = append(calls, toolCalls...)
		return nil
	}

	var err error
	if len(tools) > 0 {
		err = p.ChatWithTools(ctx, messages, tools, opts, callback)
	} else {
		err = p.Chat(ctx, messages, opts, callback)
	}
	return content.String(), calls, err
}
