package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"termchat/model"
)

func TestRunLogRecordAndRecent(t *testing.T) {
	rl, err := NewRunLog(t.TempDir())
	if err != nil {
		t.Fatalf("NewRunLog failed: %v", err)
	}
	defer rl.Close()

	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	first := RunRecord{
		ID:           "run-1",
		Conversation: "weather",
		Platform:     "deepseek",
		Model:        "deepseek-chat",
		Input:        "What is the weather in Cluj-Napoca?",
		Output:       "It is sunny.",
		Status:       "done",
		StartedAt:    start,
		FinishedAt:   start.Add(2 * time.Second),
		ToolCalls: []model.ToolCall{
			{Name: "get_weather", Arguments: map[string]any{"location": "Cluj-Napoca"}, Result: "current: sunny"},
			{Name: "power", Arguments: map[string]any{"base": 3.0, "exp": 6.0}, Result: "729"},
		},
	}
	second := RunRecord{
		ID:         "run-2",
		Input:      "hello",
		Status:     "failed",
		StartedAt:  start.Add(time.Minute),
		FinishedAt: start.Add(time.Minute),
	}

	for _, rec := range []RunRecord{first, second} {
		if err := rl.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%s) failed: %v", rec.ID, err)
		}
	}

	runs, err := rl.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-2" {
		t.Errorf("expected newest run first, got %s", runs[0].ID)
	}
	if len(runs[0].ToolCalls) != 0 {
		t.Errorf("expected no tool calls for run-2, got %d", len(runs[0].ToolCalls))
	}

	got := runs[1]
	if diff := cmp.Diff(first, got, cmpopts.IgnoreUnexported(model.ToolCall{})); diff != "" {
		t.Errorf("run-1 mismatch (-want +got):\n%s", diff)
	}
}

func TestRunLogRecordReplacesToolCalls(t *testing.T) {
	rl, err := NewRunLog(t.TempDir())
	if err != nil {
		t.Fatalf("NewRunLog failed: %v", err)
	}
	defer rl.Close()

	ctx := context.Background()
	rec := RunRecord{
		ID:        "run-1",
		Input:     "x",
		Status:    "done",
		StartedAt: time.Now(),
		ToolCalls: []model.ToolCall{{Name: "a", Arguments: map[string]any{}}, {Name: "b", Arguments: map[string]any{}}},
	}
	if err := rl.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.ToolCalls = rec.ToolCalls[:1]
	if err := rl.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}

	runs, err := rl.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || len(runs[0].ToolCalls) != 1 {
		t.Fatalf("expected one run with one tool call, got %+v", runs)
	}
}
