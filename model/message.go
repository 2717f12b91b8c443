package model

import "strings"

// Message roles understood by every provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message represents a chat message in a conversation
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a model-requested capability invocation together with its
// outcome. Result is empty until the call has been executed.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    string         `json:"result,omitempty"`
	Failed    bool           `json:"failed,omitempty"`

	done bool
}

// SetResult records a successful outcome. Only the first recorded outcome sticks.
func (c *ToolCall) SetResult(result string) {
	if c.done {
		return
	}
	c.Result = result
	c.done = true
}

// SetFailure records a failed outcome as text. Only the first recorded outcome sticks.
func (c *ToolCall) SetFailure(text string) {
	if c.done {
		return
	}
	c.Result = text
	c.Failed = true
	c.done = true
}

// Executed reports whether an outcome has been recorded.
func (c *ToolCall) Executed() bool {
	return c.done || c.Result != ""
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// IsBlank reports whether s has no visible content.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
