// Package ollama wraps the Ollama API client with termchat defaults.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "llama3.1:latest"
)

type Client struct {
	client  *api.Client
	model   string
	baseURL string
}

type StreamCallback func(chunk string, toolCalls []api.ToolCall) error

// Model is a locally installed model.
type Model struct {
	Name string
	Size int64
}

func NewClient(baseURL, model string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(parsedURL, httpClient),
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Chat streams a chat request. Tools may be nil. maxTokens maps to
// num_predict; zero leaves the server default.
func (c *Client) Chat(ctx context.Context, messages []api.Message, tools []api.Tool, maxTokens int, callback StreamCallback) error {
	stream := true
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
		Stream:   &stream,
	}
	if maxTokens > 0 {
		req.Options = map[string]any{"num_predict": maxTokens}
	}

	return c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if callback == nil {
			return nil
		}
		return callback(resp.Message.Content, resp.Message.ToolCalls)
	})
}

func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]Model, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = Model{Name: m.Name, Size: m.Size}
	}
	return models, nil
}

func (c *Client) SetModel(model string) {
	c.model = model
}

func (c *Client) GetModel() string {
	return c.model
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}

// toolFamilies lists model name prefixes and whether the agent command can
// declare tools to them. The longest matching prefix wins, so
// "llama3.1" overrides "llama3".
var toolFamilies = map[string]bool{
	"qwen3":         true,
	"qwen2.5":       true,
	"qwq":           true,
	"llama3.1":      true,
	"llama3.2":      true,
	"llama3.3":      true,
	"llama4":        true,
	"mistral":       true,
	"mistral-nemo":  true,
	"mistral-small": true,
	"gpt-oss":       true,
	"command-r":     true,
	"granite3":      true,

	"llama3":      false,
	"deepseek-r1": false,
	"gemma":       false,
	"phi":         false,
	"codellama":   false,
}

// SupportsToolCalling reports whether the current model is known to accept tools.
func (c *Client) SupportsToolCalling() bool {
	return ModelSupportsToolCalling(c.model)
}

// ModelSupportsToolCalling reports whether modelName belongs to a family known
// to accept tools. Unknown families report false.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)
	best, supported := 0, false
	for prefix, tools := range toolFamilies {
		if len(prefix) > best && strings.HasPrefix(modelName, prefix) {
			best, supported = len(prefix), tools
		}
	}
	return supported
}
