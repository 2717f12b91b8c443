package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"termchat/model"
	"termchat/provider/testutil"
)

func sseServer(t *testing.T, events []string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if gotBody != nil {
			_ = json.Unmarshal(body, gotBody)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func chunk(delta string, finish string) string {
	fr := "null"
	if finish != "" {
		fr = fmt.Sprintf("%q", finish)
	}
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"deepseek-chat","choices":[{"index":0,"delta":%s,"finish_reason":%s}]}`, delta, fr)
}

func TestOpenAIProviderStreamsText(t *testing.T) {
	var body map[string]any
	srv := sseServer(t, []string{
		chunk(`{"role":"assistant","content":"Hello, "}`, ""),
		chunk(`{"content":"world"}`, ""),
		chunk(`{}`, "stop"),
	}, &body)
	defer srv.Close()

	p, err := NewOpenAIProvider(Config{Type: TypeDeepSeek, BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}

	var text string
	err = p.Chat(context.Background(), testutil.SingleUserMessage("hi"), model.ChatOptions{MaxTokens: 256},
		func(c string, calls []model.ToolCall) error {
			text += c
			return nil
		})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if text != "Hello, world" {
		t.Errorf("expected streamed text, got %q", text)
	}
	if body["model"] != "deepseek-chat" {
		t.Errorf("expected default deepseek model, got %v", body["model"])
	}
	if body["max_tokens"] != float64(256) {
		t.Errorf("expected max_tokens 256, got %v", body["max_tokens"])
	}
	if _, ok := body["tools"]; ok {
		t.Error("no tools expected in a plain chat request")
	}
}

func TestOpenAIProviderToolCalls(t *testing.T) {
	var body map[string]any
	srv := sseServer(t, []string{
		chunk(`{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_weather","arguments":""}}]}`, ""),
		chunk(`{"tool_calls":[{"index":0,"function":{"arguments":"{\"location\":"}}]}`, ""),
		chunk(`{"tool_calls":[{"index":0,"function":{"arguments":"\"Cluj\"}"}}]}`, ""),
		chunk(`{"tool_calls":[{"index":1,"id":"call_2","type":"function","function":{"name":"power","arguments":"{\"base\":3,\"exp\":6}"}}]}`, ""),
		chunk(`{}`, "tool_calls"),
	}, &body)
	defer srv.Close()

	p, err := NewOpenAIProvider(Config{Type: TypeOpenAI, BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}

	_, calls, err := model.Collect(context.Background(), p, testutil.SingleUserMessage("weather?"), testutil.TestMCPTools(), model.ChatOptions{})
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 tool calls, got %+v", calls)
	}
	if calls[0].Name != "get_weather" || calls[0].Arguments["location"] != "Cluj" {
		t.Errorf("unexpected first call %+v", calls[0])
	}
	if calls[1].Name != "power" || calls[1].Arguments["exp"] != float64(6) {
		t.Errorf("unexpected second call %+v", calls[1])
	}

	tools, ok := body["tools"].([]any)
	if !ok || len(tools) != 2 {
		t.Errorf("expected two declared tools, got %v", body["tools"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("expected tool preamble plus user message, got %d messages", len(msgs))
	}
}

func TestOpenAIProviderCallbackStops(t *testing.T) {
	srv := sseServer(t, []string{
		chunk(`{"content":"Hello, the wea"}`, ""),
		chunk(`{"content":"ther is"}`, ""),
	}, nil)
	defer srv.Close()

	p, err := NewOpenAIProvider(Config{Type: TypeOpenAI, BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}

	stop := errors.New("stop")
	var got string
	err = p.Chat(context.Background(), testutil.SingleUserMessage("hi"), model.ChatOptions{}, func(c string, _ []model.ToolCall) error {
		got += c
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if got != "Hello, the wea" {
		t.Errorf("expected stream to stop after the first chunk, got %q", got)
	}
}

func TestOpenAIProviderRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(Config{Type: TypeOpenAI, BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	err = p.Chat(context.Background(), testutil.SingleUserMessage("hi"), model.ChatOptions{}, func(string, []model.ToolCall) error { return nil })
	if !errors.Is(err, model.ErrRemoteCall) {
		t.Errorf("expected ErrRemoteCall, got %v", err)
	}
}
