package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"termchat/model"
)

func TestSearch(t *testing.T) {
	s, _ := newTestStore(t)
	mustCreate(t, s, "travel", "math")

	travel, _ := s.Get("travel")
	travel.Messages = append(travel.Messages,
		model.Message{Role: model.RoleSystem, Content: "weather assistant"},
		model.UserMessage("What is the Weather in Cluj?"),
		model.AssistantMessage("The weather is sunny."),
	)
	math, _ := s.Get("math")
	math.Messages = append(math.Messages, model.UserMessage("3^6"), model.AssistantMessage("729"))

	tests := []struct {
		name  string
		query string
		want  []string // conversation:index
	}{
		{"empty query", "", nil},
		{"blank query", "   ", nil},
		{"case insensitive skips system", "WEATHER", []string{"travel:1", "travel:2"}},
		{"single hit", "729", []string{"math:1"}},
		{"no hit", "tokyo", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := s.Search(tt.query)
			if len(matches) != len(tt.want) {
				t.Fatalf("expected %d matches, got %d: %+v", len(tt.want), len(matches), matches)
			}
			for i, m := range matches {
				got := m.Conversation + ":" + string(rune('0'+m.MessageIndex))
				if got != tt.want[i] {
					t.Errorf("match %d = %s, want %s", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestPreview(t *testing.T) {
	short := "the weather is sunny"
	if got := preview(short, "sunny"); got != short {
		t.Errorf("short content should be returned as is, got %q", got)
	}

	long := strings.Repeat("lorem ipsum ", 30) + "needle " + strings.Repeat("dolor sit ", 30)
	got := preview(long, "needle")
	if !strings.Contains(got, "needle") {
		t.Errorf("preview %q does not contain the match", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipses on both sides, got %q", got)
	}
}

func TestExport(t *testing.T) {
	s, _ := newTestStore(t)
	mustCreate(t, s, "trip plans")
	conv, _ := s.Get("trip plans")
	conv.Messages = append(conv.Messages, model.UserMessage("hello"))

	dir := t.TempDir()
	path := DefaultExportPath(dir, "trip plans", time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC))
	if filepath.Base(path) != "termchat-trip-plans-20250301-093000.json" {
		t.Errorf("unexpected export filename %q", filepath.Base(path))
	}

	if err := s.Export("trip plans", path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var exported ExportedConversation
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if exported.Name != "trip plans" || len(exported.Messages) != 1 {
		t.Errorf("unexpected export contents: %+v", exported)
	}

	if err := s.Export("missing", path); err == nil {
		t.Error("expected error exporting a missing conversation")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"simple", "simple"},
		{"a/b:c", "a-b-c"},
		{"  spaced name ", "spaced-name"},
		{"...", "conversation"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLock(t *testing.T) {
	dir := t.TempDir()

	locked, _, err := CheckLock(dir)
	if err != nil || locked {
		t.Fatalf("expected no lock, got locked=%v err=%v", locked, err)
	}

	if err := Lock(dir); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	// Our own PID never counts as a foreign lock
	locked, pid, err := CheckLock(dir)
	if err != nil || locked || pid != os.Getpid() {
		t.Errorf("own lock: locked=%v pid=%d err=%v", locked, pid, err)
	}

	if err := os.WriteFile(filepath.Join(dir, lockFileName), []byte("garbage"), 0600); err != nil {
		t.Fatal(err)
	}
	if locked, _, _ := CheckLock(dir); locked {
		t.Error("garbage lock file must be treated as stale")
	}

	if err := Unlock(dir); err != nil {
		t.Errorf("Unlock failed: %v", err)
	}
	if err := Unlock(dir); err != nil {
		t.Errorf("second Unlock should be a no-op, got %v", err)
	}
}
