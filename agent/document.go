package agent

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"termchat/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DocumentMessage is one serialized final message of a run.
type DocumentMessage struct {
	Type      string             `json:"type"`
	Content   string             `json:"content"`
	ToolCalls []DocumentToolCall `json:"tool_calls"`
	Metadata  map[string]any     `json:"metadata"`
}

// DocumentToolCall is the serialized form of a tool-call record.
type DocumentToolCall struct {
	ID     string         `json:"id,omitempty"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result"`
	Failed bool           `json:"failed,omitempty"`
}

var messageTypes = map[string]string{
	model.RoleUser:      "human",
	model.RoleAssistant: "ai",
	model.RoleSystem:    "system",
	model.RoleTool:      "tool",
}

// Messages returns the final messages of run in document form.
func Messages(run *Run) []DocumentMessage {
	out := make([]DocumentMessage, 0, len(run.Final))
	for _, m := range run.Final {
		typ, ok := messageTypes[m.Role]
		if !ok {
			typ = m.Role
		}

		calls := make([]DocumentToolCall, 0, len(m.ToolCalls))
		for _, c := range m.ToolCalls {
			args := c.Arguments
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, DocumentToolCall{
				ID:     c.ID,
				Name:   c.Name,
				Args:   args,
				Result: c.Result,
				Failed: c.Failed,
			})
		}

		meta := map[string]any{
			"run_id": run.ID,
			"model":  run.Model,
			"phase":  run.Phase.String(),
		}
		if !run.StartedAt.IsZero() {
			meta["started_at"] = run.StartedAt.UTC().Format(time.RFC3339)
		}
		if !run.FinishedAt.IsZero() {
			meta["finished_at"] = run.FinishedAt.UTC().Format(time.RFC3339)
		}

		out = append(out, DocumentMessage{
			Type:      typ,
			Content:   m.Content,
			ToolCalls: calls,
			Metadata:  meta,
		})
	}
	return out
}

// Document serializes the final messages of run as an indented JSON array.
func Document(run *Run) ([]byte, error) {
	return json.MarshalIndent(Messages(run), "", "  ")
}
