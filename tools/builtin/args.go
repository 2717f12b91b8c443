// Package builtin provides the capabilities shipped with termchat and the
// reference table that binds catalog import paths to them.
package builtin

import (
	"encoding/json"
	"fmt"

	"termchat/model"
)

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing argument %q", model.ErrValidation, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %q must be a string, got %T", model.ErrValidation, key, v)
	}
	return s, nil
}

func optionalStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func numberArg(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: missing argument %q", model.ErrValidation, key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("%w: argument %q must be a number, got %T", model.ErrValidation, key, v)
}

func boolArg(args map[string]any, key string, fallback bool) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: argument %q must be a boolean, got %T", model.ErrValidation, key, v)
	}
	return b, nil
}

func property(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}
