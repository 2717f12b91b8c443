// Package provider implements model.Provider for each supported platform and
// resolves which platform a command talks to.
//
// Supported platforms:
//   - openai, deepseek, openrouter: OpenAI-compatible chat completions (openai-go)
//   - anthropic: Anthropic Messages API (anthropic-sdk-go)
//   - ollama: local Ollama server (ollama/api)
//   - gemini: Google Gemini API (genai)
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:    provider.TypeDeepSeek,
//	    APIKey:  key,
//	})
//	if err != nil {
//	    // handle error
//	}
//	err = p.Chat(ctx, messages, model.ChatOptions{MaxTokens: 1024}, callback)
//
// Most callers go through Resolver, which picks the platform from the stored
// settings, looks up its credential and falls back to the previous platform
// once.
package provider

import (
	"net/http"

	"go.uber.org/zap"
)

// Note: The Provider interface and StreamCallback are defined in the model package
// (model/provider.go) to avoid import cycles. This package implements model.Provider.

// Type identifies the provider implementation.
type Type string

const (
	TypeOpenAI     Type = "openai"
	TypeDeepSeek   Type = "deepseek"
	TypeOpenRouter Type = "openrouter"
	TypeAnthropic  Type = "anthropic"
	TypeOllama     Type = "ollama"
	TypeGemini     Type = "gemini"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    Type
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama

	// HTTPClient overrides the transport. Nil uses the SDK default.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
