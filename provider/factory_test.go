package provider

import (
	"errors"
	"testing"

	"termchat/model"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantErr   error
		wantModel string
	}{
		{
			name:      "ollama with defaults",
			config:    Config{Type: TypeOllama},
			wantModel: "llama3.1:latest",
		},
		{
			name:      "ollama with custom model",
			config:    Config{Type: TypeOllama, BaseURL: "http://localhost:11434", Model: "qwen2.5"},
			wantModel: "qwen2.5",
		},
		{
			name:      "openai",
			config:    Config{Type: TypeOpenAI, APIKey: "test-key"},
			wantModel: "gpt-4o-mini",
		},
		{
			name:      "deepseek",
			config:    Config{Type: TypeDeepSeek, APIKey: "test-key"},
			wantModel: "deepseek-chat",
		},
		{
			name:      "openrouter custom model",
			config:    Config{Type: TypeOpenRouter, APIKey: "test-key", Model: "qwen/qwen3-coder:free"},
			wantModel: "qwen/qwen3-coder:free",
		},
		{
			name:      "anthropic",
			config:    Config{Type: TypeAnthropic, APIKey: "test-key"},
			wantModel: "claude-sonnet-4-5-20250929",
		},
		{
			name:      "gemini",
			config:    Config{Type: TypeGemini, APIKey: "test-key"},
			wantModel: defaultGeminiModel,
		},
		{
			name:    "openai without key",
			config:  Config{Type: TypeOpenAI},
			wantErr: model.ErrCredentialMissing,
		},
		{
			name:    "anthropic without key",
			config:  Config{Type: TypeAnthropic},
			wantErr: model.ErrCredentialMissing,
		},
		{
			name:    "gemini without key",
			config:  Config{Type: TypeGemini},
			wantErr: model.ErrCredentialMissing,
		},
		{
			name:    "unknown type",
			config:  Config{Type: "mistral-cloud"},
			wantErr: model.ErrUnknownPlatform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if p != nil {
					t.Error("expected nil provider on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := p.GetModel(); got != tt.wantModel {
				t.Errorf("GetModel() = %q, want %q", got, tt.wantModel)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	for _, name := range []string{"openai", "deepseek", "openrouter", "anthropic", "ollama", "gemini"} {
		if got, ok := ParseType(name); !ok || string(got) != name {
			t.Errorf("ParseType(%q) = %q, %v", name, got, ok)
		}
	}
	if _, ok := ParseType("OpenAI"); ok {
		t.Error("ParseType must be case sensitive")
	}
}
