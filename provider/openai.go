package provider

import (
	"context"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"termchat/mcp"
	"termchat/model"
)

type openAIEndpoint struct {
	label   string
	baseURL string
	model   string
}

var openAIEndpoints = map[Type]openAIEndpoint{
	TypeOpenAI:     {"OpenAI", "https://api.openai.com/v1", "gpt-4o-mini"},
	TypeDeepSeek:   {"DeepSeek", "https://api.deepseek.com", "deepseek-chat"},
	TypeOpenRouter: {"OpenRouter", "https://openrouter.ai/api/v1", "meta-llama/llama-3.2-90b-instruct"},
}

// OpenAIProvider implements model.Provider for every OpenAI-compatible
// chat-completions endpoint.
type OpenAIProvider struct {
	client   openai.Client
	platform Type
	label    string
	model    string
	baseURL  string
	logger   *zap.Logger
}

// NewOpenAIProvider creates a provider for cfg.Type, which must be one of
// TypeOpenAI, TypeDeepSeek or TypeOpenRouter. Empty BaseURL and Model fall
// back to the platform defaults.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	endpoint, ok := openAIEndpoints[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not OpenAI-compatible", model.ErrUnknownPlatform, cfg.Type)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key is required", model.ErrCredentialMissing, endpoint.label)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = endpoint.baseURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = endpoint.model
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAIProvider{
		client:   openai.NewClient(opts...),
		platform: cfg.Type,
		label:    endpoint.label,
		model:    modelName,
		baseURL:  baseURL,
		logger:   cfg.logger(),
	}, nil
}

// Chat implements Provider.Chat by delegating to ChatWithTools with no tools.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, opts, callback)
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
// Returning an error from callback stops the stream and returns that error.
func (p *OpenAIProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(withToolInstructions(messages, tools)),
		Model:    openai.ChatModel(p.model),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if len(tools) > 0 {
		params.Tools = mcp.ToOpenAI(toWireToolNames(tools))
	}

	p.logger.Debug("streaming chat completion",
		zap.String("platform", string(p.platform)),
		zap.String("model", p.model),
		zap.Int("messages", len(messages)),
		zap.Int("tools", len(tools)))

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok && callback != nil {
			args, err := mcp.ParseArguments(tool.Arguments)
			if err != nil {
				p.logger.Warn("unparseable tool arguments",
					zap.String("tool", tool.Name), zap.Error(err))
				args = map[string]any{}
			}
			call := model.ToolCall{ID: tool.ID, Name: fromWireToolName(tool.Name), Arguments: args}
			if err := callback("", []model.ToolCall{call}); err != nil {
				return err
			}
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" && callback != nil {
			if err := callback(chunk.Choices[0].Delta.Content, nil); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("%w: %s streaming error: %w", model.ErrRemoteCall, p.label, err)
	}
	return nil
}

// ListModels implements Provider.ListModels.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list %s models: %w", model.ErrRemoteCall, p.label, err)
	}

	result := make([]model.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		result = append(result, model.ModelInfo{Name: m.ID, Provider: string(p.platform)})
	}
	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// SetModel implements Provider.SetModel.
func (p *OpenAIProvider) SetModel(model string) {
	p.model = model
}

// Platform returns the platform this provider talks to.
func (p *OpenAIProvider) Platform() Type {
	return p.platform
}

// Ping implements Provider.Ping by attempting to list models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%w: %s ping failed: %w", model.ErrRemoteCall, p.label, err)
	}
	return nil
}
