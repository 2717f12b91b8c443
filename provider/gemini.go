package provider

import (
	"context"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"termchat/mcp"
	"termchat/model"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider implements model.Provider using the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiProvider creates a Gemini provider. BaseURL, when set, overrides
// the API endpoint.
func NewGeminiProvider(cfg Config) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", model.ErrCredentialMissing)
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	m := cfg.Model
	if m == "" {
		m = defaultGeminiModel
	}
	return &GeminiProvider{client: client, model: m, logger: cfg.logger()}, nil
}

// Chat implements Provider.Chat.
func (p *GeminiProvider) Chat(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, opts, callback)
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
// Thought parts are not forwarded.
func (p *GeminiProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	contents, system := ConvertToGeminiContents(withToolInstructions(messages, tools))

	gc := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Tools:             mcp.ToGemini(tools),
	}
	if opts.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(opts.MaxTokens)
	}

	p.logger.Debug("streaming generate content",
		zap.String("model", p.model),
		zap.Int("messages", len(messages)),
		zap.Int("tools", len(tools)))

	for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, gc) {
		if err != nil {
			return fmt.Errorf("%w: Gemini streaming error: %w", model.ErrRemoteCall, err)
		}
		if resp == nil || callback == nil {
			continue
		}

		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			var text strings.Builder
			var calls []model.ToolCall
			for _, part := range candidate.Content.Parts {
				if part.Text != "" && !part.Thought {
					text.WriteString(part.Text)
				}
				if part.FunctionCall != nil {
					calls = append(calls, mcp.FromGemini(part.FunctionCall))
				}
			}
			if text.Len() == 0 && len(calls) == 0 {
				continue
			}
			if err := callback(text.String(), calls); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListModels implements Provider.ListModels.
func (p *GeminiProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	var result []model.ModelInfo
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list Gemini models: %w", model.ErrRemoteCall, err)
		}
		result = append(result, model.ModelInfo{
			Name:     strings.TrimPrefix(m.Name, "models/"),
			Provider: string(TypeGemini),
		})
	}
	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *GeminiProvider) GetModel() string {
	return p.model
}

// SetModel implements Provider.SetModel.
func (p *GeminiProvider) SetModel(name string) {
	p.model = name
}

// Ping implements Provider.Ping by fetching the first model.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	for _, err := range p.client.Models.All(ctx) {
		if err != nil {
			return fmt.Errorf("%w: Gemini ping failed: %w", model.ErrRemoteCall, err)
		}
		break
	}
	return nil
}
