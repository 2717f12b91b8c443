package provider

import (
	"fmt"

	"termchat/model"
)

// NewProvider creates a provider based on configuration.
//
// Returns an error wrapping model.ErrUnknownPlatform for an unknown type, and
// model.ErrCredentialMissing when a hosted platform has no API key.
func NewProvider(cfg Config) (model.Provider, error) {
	switch cfg.Type {
	case TypeOpenAI, TypeDeepSeek, TypeOpenRouter:
		return NewOpenAIProvider(cfg)
	case TypeAnthropic:
		return NewAnthropicProvider(cfg)
	case TypeOllama:
		return NewOllamaProvider(cfg)
	case TypeGemini:
		return NewGeminiProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownPlatform, cfg.Type)
	}
}

// ParseType converts a user-facing platform name to its Type.
func ParseType(name string) (Type, bool) {
	switch t := Type(name); t {
	case TypeOpenAI, TypeDeepSeek, TypeOpenRouter, TypeAnthropic, TypeOllama, TypeGemini:
		return t, true
	default:
		return "", false
	}
}
