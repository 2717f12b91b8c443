package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ArgumentProblem is one argument that does not fit its tool schema.
type ArgumentProblem struct {
	Field       string
	Description string
	Reason      string
}

func (p ArgumentProblem) String() string {
	if p.Description == "" {
		return p.Field + ": " + p.Reason
	}
	return fmt.Sprintf("%s (%s): %s", p.Field, p.Description, p.Reason)
}

// ArgumentError lists every problem found in one set of call arguments,
// missing fields first, then mistyped ones by field name.
type ArgumentError struct {
	Problems []ArgumentProblem
}

func (e *ArgumentError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return strings.Join(parts, "; ")
}

// property is the part of a JSON schema property the checks read.
type property struct {
	kind        string
	description string
}

func readProperty(definition any) property {
	switch def := definition.(type) {
	case map[string]any:
		kind, _ := def["type"].(string)
		desc, _ := def["description"].(string)
		return property{kind: kind, description: desc}
	case map[string]string:
		return property{kind: def["type"], description: def["description"]}
	}
	return property{}
}

var kindChecks = map[string]func(any) bool{
	"string":  func(v any) bool { _, ok := v.(string); return ok },
	"number":  isNumber,
	"integer": isInteger,
	"boolean": func(v any) bool { _, ok := v.(bool); return ok },
	"object":  func(v any) bool { _, ok := v.(map[string]any); return ok },
	"array":   func(v any) bool { _, ok := v.([]any); return ok },
	"null":    func(v any) bool { return v == nil },
}

// ValidateArguments checks args against schema. Required fields must be
// present and declared properties must hold their declared primitive type;
// undeclared or untyped arguments pass through. A non-nil result is an
// *ArgumentError.
func ValidateArguments(args map[string]any, schema mcptypes.ToolInputSchema) error {
	var problems []ArgumentProblem

	for _, field := range schema.Required {
		if _, ok := args[field]; !ok {
			problems = append(problems, ArgumentProblem{
				Field:       field,
				Description: readProperty(schema.Properties[field]).description,
				Reason:      "required but missing",
			})
		}
	}

	fields := make([]string, 0, len(args))
	for field := range args {
		if _, declared := schema.Properties[field]; declared {
			fields = append(fields, field)
		}
	}
	slices.Sort(fields)

	for _, field := range fields {
		prop := readProperty(schema.Properties[field])
		if prop.kind == "" {
			continue
		}
		check, known := kindChecks[prop.kind]
		reason := ""
		switch {
		case !known:
			reason = fmt.Sprintf("schema declares unsupported type %q", prop.kind)
		case !check(args[field]):
			reason = fmt.Sprintf("want %s, got %T", prop.kind, args[field])
		default:
			continue
		}
		problems = append(problems, ArgumentProblem{Field: field, Description: prop.description, Reason: reason})
	}

	if len(problems) == 0 {
		return nil
	}
	return &ArgumentError{Problems: problems}
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return float64(v) == math.Trunc(float64(v))
	case float64:
		return v == math.Trunc(v)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}
