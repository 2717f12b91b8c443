package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"termchat/mcp"
	"termchat/model"
)

const (
	defaultAnthropicURL = "https://api.anthropic.com"
	// The Messages API requires max_tokens on every request.
	defaultAnthropicMaxTokens = 1024
)

// AnthropicProvider implements model.Provider using Anthropic's Messages API.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
	logger  *zap.Logger
}

// NewAnthropicProvider creates a new Anthropic provider. Empty BaseURL and
// Model fall back to https://api.anthropic.com and Claude Sonnet 4.5.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Anthropic API key is required", model.ErrCredentialMissing)
	}

	m := anthropic.ModelClaudeSonnet4_5_20250929
	if cfg.Model != "" {
		m = anthropic.Model(cfg.Model)
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		client:  &client,
		model:   m,
		baseURL: baseURL,
		logger:  cfg.logger(),
	}, nil
}

// Chat implements Provider.Chat by delegating to ChatWithTools with no tools.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, opts, callback)
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
// Tool calls are reported once the stream has completed.
func (p *AnthropicProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	anthropicMessages, system := ConvertToAnthropicMessages(messages)
	if len(tools) > 0 {
		system = append([]anthropic.TextBlockParam{{Text: toolInstructions(tools)}}, system...)
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = mcp.ToAnthropic(tools)
	}

	p.logger.Debug("streaming message",
		zap.String("model", string(p.model)),
		zap.Int("messages", len(messages)),
		zap.Int("tools", len(tools)))

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()
	msg := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return fmt.Errorf("%w: error accumulating message: %w", model.ErrRemoteCall, err)
		}

		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && callback != nil {
				if err := callback(text.Text, nil); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("%w: Anthropic streaming error: %w", model.ErrRemoteCall, err)
	}

	if callback != nil {
		if calls := p.extractToolCalls(msg.Content); len(calls) > 0 {
			return callback("", calls)
		}
	}
	return nil
}

// ListModels implements Provider.ListModels with a curated list of models
// known to the SDK version in use.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	result := make([]model.ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, model.ModelInfo{Name: string(m), Provider: string(TypeAnthropic)})
	}
	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// SetModel implements Provider.SetModel.
func (p *AnthropicProvider) SetModel(name string) {
	p.model = anthropic.Model(name)
}

// Ping implements Provider.Ping with a one-token request; the API has no
// health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: Anthropic ping failed: %w", model.ErrRemoteCall, err)
	}
	return nil
}

func (p *AnthropicProvider) extractToolCalls(content []anthropic.ContentBlockUnion) []model.ToolCall {
	var calls []model.ToolCall
	for _, block := range content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		args, err := mcp.ParseArguments(string(toolUse.Input))
		if err != nil {
			p.logger.Warn("unparseable tool input", zap.String("tool", toolUse.Name), zap.Error(err))
			args = map[string]any{}
		}
		calls = append(calls, model.ToolCall{ID: toolUse.ID, Name: toolUse.Name, Arguments: args})
	}
	return calls
}
