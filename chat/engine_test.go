package chat

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"termchat/model"
	"termchat/provider/testutil"
	"termchat/storage"
)

func newStore(t *testing.T, names ...string) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "conversations.json"), storage.Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for _, n := range names {
		if err := s.Create(n); err != nil {
			t.Fatalf("Create(%q) failed: %v", n, err)
		}
	}
	return s
}

func reload(t *testing.T, s *storage.Store, name string) []model.Message {
	t.Helper()
	fresh, err := storage.Open(s.Path(), storage.Options{})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	conv, err := fresh.Get(name)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", name, err)
	}
	return conv.Messages
}

func TestSendStreamsAndPersists(t *testing.T) {
	s := newStore(t, "trip")
	p := testutil.StreamingProvider("Hello", ", ", "world")
	var out bytes.Buffer
	e := NewEngine(s, p, Options{Out: &out})

	reply, err := e.Send(context.Background(), "trip", "hi", 256)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if reply != "Hello, world" {
		t.Errorf("reply = %q", reply)
	}
	if out.String() != "Hello, world" {
		t.Errorf("echoed = %q", out.String())
	}

	msgs := reload(t, s, "trip")
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[0].Content != "hi" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != model.RoleAssistant || msgs[1].Content != "Hello, world" {
		t.Errorf("second message = %+v", msgs[1])
	}

	reqs := p.Requests()
	if len(reqs) != 1 || reqs[0].Options.MaxTokens != 256 {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
}

func TestSendSendsFullHistory(t *testing.T) {
	s := newStore(t, "trip")
	p := testutil.StreamingProvider("ok")
	e := NewEngine(s, p, Options{})

	for _, text := range []string{"one", "two"} {
		if _, err := e.Send(context.Background(), "trip", text, 100); err != nil {
			t.Fatalf("Send(%q) failed: %v", text, err)
		}
	}

	reqs := p.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	// user, assistant, user
	if got := len(reqs[1].Messages); got != 3 {
		t.Errorf("second request carried %d messages, want 3", got)
	}
}

func TestSendKeepsPartialOnInterrupt(t *testing.T) {
	s := newStore(t, "trip")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := testutil.NewMockProvider("mock")
	p.ChatFunc = func(ctx context.Context, _ []model.Message, _ model.ChatOptions, cb model.StreamCallback) error {
		for _, c := range []string{"Hello", ", the wea"} {
			if err := cb(c, nil); err != nil {
				return err
			}
		}
		cancel()
		return ctx.Err()
	}

	var out bytes.Buffer
	e := NewEngine(s, p, Options{Out: &out})
	reply, err := e.Send(ctx, "trip", "What's the weather?", 100)
	if !errors.Is(err, model.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if reply != "Hello, the wea" {
		t.Errorf("partial reply = %q", reply)
	}

	msgs := reload(t, s, "trip")
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].Content != "Hello, the wea" {
		t.Errorf("stored partial = %q", msgs[1].Content)
	}
}

func TestSendRemoteFailure(t *testing.T) {
	tests := []struct {
		name      string
		chunks    []string
		wantCount int
	}{
		{name: "nothing received", wantCount: 1},
		{name: "blank received", chunks: []string{"  ", "\n"}, wantCount: 1},
		{name: "partial received", chunks: []string{"Par", "tial"}, wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, "c")
			p := testutil.NewMockProvider("mock")
			p.ChatFunc = func(_ context.Context, _ []model.Message, _ model.ChatOptions, cb model.StreamCallback) error {
				for _, c := range tt.chunks {
					if err := cb(c, nil); err != nil {
						return err
					}
				}
				return errors.New("connection reset")
			}

			e := NewEngine(s, p, Options{})
			_, err := e.Send(context.Background(), "c", "hi", 10)
			if !errors.Is(err, model.ErrRemoteCall) {
				t.Fatalf("expected ErrRemoteCall, got %v", err)
			}
			if errors.Is(err, model.ErrInterrupted) {
				t.Error("remote failure must not read as an interruption")
			}

			msgs := reload(t, s, "c")
			if len(msgs) != tt.wantCount {
				t.Fatalf("stored %d messages, want %d", len(msgs), tt.wantCount)
			}
			if msgs[0].Content != "hi" {
				t.Errorf("user message lost: %+v", msgs[0])
			}
		})
	}
}

func TestSendUnknownConversation(t *testing.T) {
	s := newStore(t)
	e := NewEngine(s, testutil.StreamingProvider("x"), Options{})
	if _, err := e.Send(context.Background(), "missing", "hi", 10); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerateTitle(t *testing.T) {
	s := newStore(t)
	p := testutil.StreamingProvider(`"Weather In `, `Cluj-Napoca."`)
	var out bytes.Buffer
	e := NewEngine(s, p, Options{Out: &out})

	title, err := e.GenerateTitle(context.Background(), "What's the weather in Cluj-Napoca?")
	if err != nil {
		t.Fatalf("GenerateTitle failed: %v", err)
	}
	if title != "weather_in_cluj-napoca" {
		t.Errorf("title = %q", title)
	}
	if out.Len() != 0 {
		t.Errorf("title generation must not echo, got %q", out.String())
	}

	reqs := p.Requests()
	if len(reqs) != 1 || len(reqs[0].Messages) != 1 {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
	prompt := reqs[0].Messages[0].Content
	if !strings.Contains(prompt, "(3-5 words)") || !strings.Contains(prompt, `"What's the weather in Cluj-Napoca?"`) {
		t.Errorf("unexpected prompt: %q", prompt)
	}
}

func TestGenerateTitleErrors(t *testing.T) {
	s := newStore(t)

	e := NewEngine(s, testutil.StreamingProvider("x"), Options{})
	if _, err := e.GenerateTitle(context.Background(), "   "); !errors.Is(err, model.ErrValidation) {
		t.Errorf("blank text: expected ErrValidation, got %v", err)
	}

	e = NewEngine(s, testutil.StreamingProvider(" \"\" "), Options{})
	if _, err := e.GenerateTitle(context.Background(), "hello"); !errors.Is(err, model.ErrValidation) {
		t.Errorf("empty title: expected ErrValidation, got %v", err)
	}

	p := testutil.NewMockProvider("mock")
	p.ChatFunc = func(context.Context, []model.Message, model.ChatOptions, model.StreamCallback) error {
		return errors.New("boom")
	}
	e = NewEngine(s, p, Options{})
	if _, err := e.GenerateTitle(context.Background(), "hello"); !errors.Is(err, model.ErrRemoteCall) {
		t.Errorf("provider failure: expected ErrRemoteCall, got %v", err)
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Trip Planning", "trip_planning"},
		{"  \"Paris Weekend Ideas.\"  ", "paris_weekend_ideas"},
		{"'Go  generics\tprimer!'", "go_generics_primer"},
		{"already_normal", "already_normal"},
		{"\"\"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeTitle(tt.in); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
