// Package mcp translates tool declarations expressed as MCP tool schemas into
// the wire types of each provider SDK, and provider tool calls back into
// termchat's model.ToolCall.
package mcp

import (
	"github.com/anthropics/anthropic-sdk-go"
	jsoniter "github.com/json-iterator/go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"termchat/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ToOllama converts tool declarations to Ollama API tools.
func ToOllama(tools []mcptypes.Tool) []api.Tool {
	out := make([]api.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  ollamaParameters(t.InputSchema),
			},
		})
	}
	return out
}

func ollamaParameters(schema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       schemaType(schema),
		Required:   schema.Required,
		Properties: make(map[string]api.ToolProperty, len(schema.Properties)),
	}
	if schema.Defs != nil {
		params.Defs = schema.Defs
	}
	for name, prop := range schema.Properties {
		params.Properties[name] = ollamaProperty(prop)
	}
	return params
}

func ollamaProperty(value any) api.ToolProperty {
	var prop api.ToolProperty

	m, ok := value.(map[string]any)
	if !ok {
		// Typed property definitions are flattened through JSON
		data, err := json.Marshal(value)
		if err != nil {
			return prop
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return prop
		}
	}

	switch t := m["type"].(type) {
	case string:
		prop.Type = api.PropertyType{t}
	case []string:
		prop.Type = api.PropertyType(t)
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
		prop.Type = api.PropertyType(types)
	}

	if desc, ok := m["description"].(string); ok {
		prop.Description = desc
	}
	if enum, ok := m["enum"].([]any); ok {
		prop.Enum = enum
	}
	if items, ok := m["items"]; ok {
		prop.Items = items
	}
	if anyOf, ok := m["anyOf"].([]any); ok {
		prop.AnyOf = make([]api.ToolProperty, 0, len(anyOf))
		for _, item := range anyOf {
			prop.AnyOf = append(prop.AnyOf, ollamaProperty(item))
		}
	}
	return prop
}

// FromOllama converts an Ollama tool call.
func FromOllama(call api.ToolCall) model.ToolCall {
	args := map[string]any(call.Function.Arguments)
	if args == nil {
		args = map[string]any{}
	}
	return model.ToolCall{Name: call.Function.Name, Arguments: args}
}

// ToOpenAI converts tool declarations to OpenAI chat-completion tools. The
// same format serves every OpenAI-compatible platform.
func ToOpenAI(tools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(jsonSchema(t.InputSchema)),
		})
	}
	return out
}

// ToAnthropic converts tool declarations to Anthropic tool params.
func ToAnthropic(tools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		input := anthropic.ToolInputSchemaParam{Properties: t.InputSchema.Properties}
		if len(t.InputSchema.Required) > 0 {
			input.Required = t.InputSchema.Required
		}
		if t.InputSchema.Defs != nil {
			input.ExtraFields = map[string]any{"$defs": t.InputSchema.Defs}
		}
		out[i] = anthropic.ToolUnionParamOfTool(input, t.Name)
		if t.Description != "" {
			out[i].OfTool.Description = anthropic.String(t.Description)
		}
	}
	return out
}

// ToGemini converts tool declarations to a single Gemini tool carrying one
// function declaration per entry.
func ToGemini(tools []mcptypes.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		data, err := json.Marshal(jsonSchema(t.InputSchema))
		if err == nil {
			var schema genai.Schema
			if err := json.Unmarshal(data, &schema); err == nil {
				decl.Parameters = &schema
			}
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// FromGemini converts a Gemini function call.
func FromGemini(call *genai.FunctionCall) model.ToolCall {
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	return model.ToolCall{ID: call.ID, Name: call.Name, Arguments: args}
}

// ParseArguments decodes a JSON-encoded argument object as sent by the
// OpenAI and Anthropic streams. Empty input yields an empty map.
func ParseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

func jsonSchema(schema mcptypes.ToolInputSchema) map[string]any {
	props := schema.Properties
	if props == nil {
		props = map[string]any{}
	}
	m := map[string]any{
		"type":       schemaType(schema),
		"properties": props,
	}
	if len(schema.Required) > 0 {
		m["required"] = schema.Required
	}
	if schema.Defs != nil {
		m["$defs"] = schema.Defs
	}
	return m
}

func schemaType(schema mcptypes.ToolInputSchema) string {
	if schema.Type == "" {
		return "object"
	}
	return schema.Type
}
