package provider

import (
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"termchat/model"
)

// toolInstructions is the system preamble sent alongside a tool catalog.
func toolInstructions(tools []mcptypes.Tool) string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}

	return strings.Join([]string{
		"TOOLS: " + strings.Join(names, ", "),
		"",
		"When the user asks for something a tool can provide:",
		"1. Determine which tool is needed",
		"2. Check that you have every required parameter",
		"3. If yes: call the tool without explanation",
		"4. If no: ask for the missing parameter only",
		"",
		"Do not list the available tools or describe what you are about to do.",
	}, "\n")
}

// withToolInstructions prepends the tool preamble when tools are declared.
func withToolInstructions(messages []model.Message, tools []mcptypes.Tool) []model.Message {
	if len(tools) == 0 {
		return messages
	}
	out := make([]model.Message, 0, len(messages)+1)
	out = append(out, model.Message{Role: model.RoleSystem, Content: toolInstructions(tools)})
	return append(out, messages...)
}
