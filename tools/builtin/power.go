package builtin

import (
	"context"
	"fmt"
	"math"
	"strconv"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Power raises base to exp.
type Power struct{}

func (Power) Schema() mcptypes.ToolInputSchema {
	return mcptypes.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"base": property("number", "The base"),
			"exp":  property("number", "The exponent"),
		},
		Required: []string{"base", "exp"},
	}
}

func (Power) Call(_ context.Context, args map[string]any) (string, error) {
	base, err := numberArg(args, "base")
	if err != nil {
		return "", err
	}
	exp, err := numberArg(args, "exp")
	if err != nil {
		return "", err
	}
	v := math.Pow(base, exp)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%v^%v has no finite result", base, exp)
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}
