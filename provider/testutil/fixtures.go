package testutil

import (
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"termchat/model"
)

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		model.UserMessage("Hello, how are you?"),
		model.AssistantMessage("I'm doing well, thank you!"),
		model.UserMessage("Can you help me with a task?"),
	}
}

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{model.UserMessage(content)}
}

// TestMCPTools returns sample tool declarations for testing
func TestMCPTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        "get_weather",
			Description: "Get the current weather for a location",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "City name, e.g. Cluj-Napoca",
					},
				},
				Required: []string{"location"},
			},
		},
		{
			Name:        "power",
			Description: "Raise a number to a power",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"base": map[string]any{"type": "number"},
					"exp":  map[string]any{"type": "number"},
				},
				Required: []string{"base", "exp"},
			},
		},
	}
}

// SystemMessage returns a system message for testing
func SystemMessage(content string) model.Message {
	return model.Message{Role: model.RoleSystem, Content: content}
}
