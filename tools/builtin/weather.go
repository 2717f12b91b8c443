package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultWeatherURL is the current-conditions endpoint of weatherapi.com.
	DefaultWeatherURL = "http://api.weatherapi.com/v1/current.json"

	weatherTimeout = 10 * time.Second
)

// Weather looks up current conditions for a location and returns the full
// response re-encoded as YAML, keys in the order the service sent them.
type Weather struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// Schema implements tools.Capability.
func (w *Weather) Schema() mcptypes.ToolInputSchema {
	return mcptypes.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"location": property("string", "City name, postal code or coordinates"),
		},
		Required: []string{"location"},
	}
}

// Call implements tools.Capability.
func (w *Weather) Call(ctx context.Context, args map[string]any) (string, error) {
	location, err := stringArg(args, "location")
	if err != nil {
		return "", err
	}
	if w.APIKey == "" {
		return "", fmt.Errorf("weather API key is not configured")
	}

	base := w.BaseURL
	if base == "" {
		base = DefaultWeatherURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid weather URL: %w", err)
	}
	q := u.Query()
	q.Set("key", w.APIKey)
	q.Set("q", location)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build weather request: %w", err)
	}

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: weatherTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error fetching weather: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error fetching weather: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("error fetching weather: unexpected status %s", resp.Status)
	}

	out, err := jsonToYAML(body)
	if err != nil {
		return "", fmt.Errorf("unexpected weather response: %w", err)
	}
	return out, nil
}

// jsonToYAML re-encodes a JSON document as block-style YAML, keeping the
// key order of every object.
func jsonToYAML(data []byte) (string, error) {
	iter := jsoniter.ParseBytes(jsoniter.ConfigCompatibleWithStandardLibrary, data)
	root := jsonNode(iter)
	if iter.Error != nil && iter.Error != io.EOF {
		return "", iter.Error
	}
	if root == nil {
		return "", fmt.Errorf("empty document")
	}

	out, err := yaml.Marshal(root)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func jsonNode(iter *jsoniter.Iterator) *yaml.Node {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: field}
			val := jsonNode(it)
			if val == nil {
				return false
			}
			n.Content = append(n.Content, key, val)
			return true
		})
		return n
	case jsoniter.ArrayValue:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			val := jsonNode(it)
			if val == nil {
				return false
			}
			n.Content = append(n.Content, val)
			return true
		})
		return n
	case jsoniter.StringValue:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: iter.ReadString()}
	case jsoniter.NumberValue:
		num := string(iter.ReadNumber())
		tag := "!!int"
		if strings.ContainsAny(num, ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: num}
	case jsoniter.BoolValue:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(iter.ReadBool())}
	case jsoniter.NilValue:
		iter.ReadNil()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	default:
		if iter.Error == nil {
			iter.ReportError("jsonNode", "invalid JSON value")
		}
		return nil
	}
}
