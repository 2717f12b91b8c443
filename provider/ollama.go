package provider

import (
	"context"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"termchat/mcp"
	"termchat/model"
	"termchat/ollama"
)

// OllamaProvider wraps ollama.Client to implement model.Provider.
type OllamaProvider struct {
	client *ollama.Client
	logger *zap.Logger
}

// NewOllamaProvider creates a provider for a local Ollama server. Empty
// BaseURL and Model fall back to the ollama package defaults.
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	client, err := ollama.NewClient(cfg.BaseURL, cfg.Model, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return &OllamaProvider{client: client, logger: cfg.logger()}, nil
}

// Chat implements Provider.Chat.
func (p *OllamaProvider) Chat(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, opts, callback)
}

// ChatWithTools implements Provider.ChatWithTools. Models outside the known
// tool-calling families still receive the catalog; a warning is logged.
func (p *OllamaProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	var ollamaTools []api.Tool
	if len(tools) > 0 {
		ollamaTools = mcp.ToOllama(tools)
		if !p.client.SupportsToolCalling() {
			p.logger.Warn("model may not support tool calling", zap.String("model", p.client.GetModel()))
		}
	}

	var callbackErr error
	err := p.client.Chat(ctx, ConvertToOllamaMessages(messages), ollamaTools, opts.MaxTokens,
		func(chunk string, ollamaCalls []api.ToolCall) error {
			if callback == nil {
				return nil
			}
			var calls []model.ToolCall
			for _, c := range ollamaCalls {
				calls = append(calls, mcp.FromOllama(c))
			}
			callbackErr = callback(chunk, calls)
			return callbackErr
		})
	if err != nil {
		if callbackErr != nil {
			return callbackErr
		}
		return fmt.Errorf("%w: Ollama chat failed: %w", model.ErrRemoteCall, err)
	}
	return nil
}

// ListModels implements Provider.ListModels.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrRemoteCall, err)
	}
	result := make([]model.ModelInfo, len(models))
	for i, m := range models {
		result[i] = model.ModelInfo{Name: m.Name, Size: m.Size, Provider: string(TypeOllama)}
	}
	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// SetModel implements Provider.SetModel.
func (p *OllamaProvider) SetModel(name string) {
	p.client.SetModel(name)
}

// Ping implements Provider.Ping.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: Ollama ping failed: %w", model.ErrRemoteCall, err)
	}
	return nil
}
