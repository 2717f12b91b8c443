package agent

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"termchat/model"
	"termchat/provider/testutil"
	"termchat/storage"
	"termchat/tools"
	"termchat/tools/builtin"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWeather struct {
	delay time.Duration
	calls atomic.Int32
}

func (w *fakeWeather) Schema() mcptypes.ToolInputSchema {
	return mcptypes.ToolInputSchema{
		Type:       "object",
		Properties: map[string]any{"location": map[string]any{"type": "string"}},
		Required:   []string{"location"},
	}
}

func (w *fakeWeather) Call(ctx context.Context, args map[string]any) (string, error) {
	w.calls.Add(1)
	select {
	case <-time.After(w.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "Sunny, 21.5C in " + args["location"].(string), nil
}

func newInvoker(t *testing.T, weather *fakeWeather) *tools.Invoker {
	t.Helper()
	descs := []tools.Descriptor{
		{Name: "weather", Description: "Current weather for a location", ImportPath: "weather"},
		{Name: "power", Description: "Raise base to exp", ImportPath: builtin.RefPower},
	}
	reg := tools.NewRegistry(descs, tools.StaticResolver{
		"weather":        weather,
		builtin.RefPower: builtin.Power{},
	}, nil)
	require.Empty(t, reg.Rejected())
	return tools.NewInvoker(reg, tools.InvokerOptions{})
}

// scriptedProvider answers the first pass with calls and the second with answer.
func scriptedProvider(calls []model.ToolCall, answer string) *testutil.MockProvider {
	p := testutil.NewMockProvider("mock-model")
	p.ChatWithToolsFunc = func(_ context.Context, _ []model.Message, _ []mcptypes.Tool, _ model.ChatOptions, cb model.StreamCallback) error {
		if err := cb("Let me check.", nil); err != nil {
			return err
		}
		return cb("", calls)
	}
	p.ChatFunc = func(_ context.Context, _ []model.Message, _ model.ChatOptions, cb model.StreamCallback) error {
		return cb(answer, nil)
	}
	return p
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestRunExecutesToolsInDeclarationOrder(t *testing.T) {
	weather := &fakeWeather{delay: 30 * time.Millisecond}
	calls := []model.ToolCall{
		{ID: "call_1", Name: "weather", Arguments: map[string]any{"location": "Cluj-Napoca"}},
		{ID: "call_2", Name: "power", Arguments: map[string]any{"base": float64(3), "exp": float64(6)}},
	}
	p := scriptedProvider(calls, "It is sunny in Cluj-Napoca and 3^6 is 729.")

	o := New(p, newInvoker(t, weather), Options{
		MaxTokens: 512,
		Now:       fixedClock(),
		NewID:     func() string { return "run-1" },
	})
	run, err := o.Run(context.Background(), "Weather in Cluj-Napoca and 3 to the 6th?")
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, run.Phase)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "mock-model", run.Model)

	require.Len(t, run.ToolCalls, 2)
	assert.Equal(t, "weather", run.ToolCalls[0].Name)
	assert.Equal(t, "Sunny, 21.5C in Cluj-Napoca", run.ToolCalls[0].Result)
	assert.Equal(t, "power", run.ToolCalls[1].Name)
	assert.Equal(t, "729", run.ToolCalls[1].Result)
	assert.EqualValues(t, 1, weather.calls.Load())

	w := strings.Index(run.Prompt, "weather returned: Sunny")
	pw := strings.Index(run.Prompt, "power returned: 729")
	require.NotEqual(t, -1, w, run.Prompt)
	require.NotEqual(t, -1, pw, run.Prompt)
	assert.Less(t, w, pw)
	assert.True(t, strings.HasPrefix(run.Prompt, "Weather in Cluj-Napoca and 3 to the 6th?"))
	assert.Contains(t, run.Prompt, "Tool results:")
	assert.Contains(t, run.Prompt, "using only these tool results")

	require.Len(t, run.Final, 1)
	final := run.Final[0]
	assert.Equal(t, model.RoleAssistant, final.Role)
	assert.Equal(t, "It is sunny in Cluj-Napoca and 3^6 is 729.", final.Content)
	require.Len(t, final.ToolCalls, 2)
	assert.Equal(t, "weather", final.ToolCalls[0].Name)
	assert.NotEmpty(t, final.ToolCalls[0].Result)
	assert.Equal(t, "729", final.ToolCalls[1].Result)

	require.Len(t, run.FirstPass, 1)
	assert.Equal(t, "Let me check.", run.FirstPass[0].Content)
	require.Len(t, run.FirstPass[0].ToolCalls, 2)
	assert.Equal(t, "Sunny, 21.5C in Cluj-Napoca", run.FirstPass[0].ToolCalls[0].Result)
	assert.Equal(t, "729", run.FirstPass[0].ToolCalls[1].Result)

	reqs := p.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[0].Tools, 2)
	assert.Equal(t, "weather", reqs[0].Tools[0].Name)
	assert.Equal(t, "power", reqs[0].Tools[1].Name)
	assert.Empty(t, reqs[1].Tools, "second pass must not declare tools")
	assert.Equal(t, run.Prompt, reqs[1].Messages[0].Content)
	assert.Equal(t, 512, reqs[1].Options.MaxTokens)
}

func TestRunMissingToolStillCompletes(t *testing.T) {
	calls := []model.ToolCall{{Name: "translate", Arguments: map[string]any{"text": "hi"}}}
	p := scriptedProvider(calls, "I could not translate that.")

	o := New(p, newInvoker(t, &fakeWeather{}), Options{})
	run, err := o.Run(context.Background(), "Translate hi")
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, run.Phase)
	require.Len(t, run.Final[0].ToolCalls, 1)
	rec := run.Final[0].ToolCalls[0]
	assert.True(t, rec.Failed)
	assert.Contains(t, rec.Result, "no matching tool")
	assert.Contains(t, run.Prompt, `translate returned: no matching tool "translate"`)
}

func TestRunWithoutToolCallsRunsSecondPass(t *testing.T) {
	p := scriptedProvider(nil, "Hello there.")
	o := New(p, newInvoker(t, &fakeWeather{}), Options{})

	run, err := o.Run(context.Background(), "Say hello")
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, run.Phase)
	assert.Empty(t, run.ToolCalls)
	assert.Empty(t, run.Final[0].ToolCalls)
	assert.Len(t, p.Requests(), 2)
	assert.Contains(t, run.Prompt, "Tool results:\n\n")
}

func TestRunManyCallsBoundedWorkers(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := funcCap(func(ctx context.Context, args map[string]any) (string, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return args["id"].(string), nil
	})
	reg := tools.NewRegistry([]tools.Descriptor{{Name: "slow", ImportPath: "slow"}},
		tools.StaticResolver{"slow": slow}, nil)

	var calls []model.ToolCall
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, id := range ids {
		calls = append(calls, model.ToolCall{Name: "slow", Arguments: map[string]any{"id": id}})
	}

	o := New(scriptedProvider(calls, "done"), tools.NewInvoker(reg, tools.InvokerOptions{}), Options{Workers: 2})
	run, err := o.Run(context.Background(), "go")
	require.NoError(t, err)

	require.Len(t, run.ToolCalls, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, run.ToolCalls[i].Result)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunModelFailures(t *testing.T) {
	t.Run("first pass", func(t *testing.T) {
		p := testutil.NewMockProvider("m")
		p.ChatWithToolsFunc = func(context.Context, []model.Message, []mcptypes.Tool, model.ChatOptions, model.StreamCallback) error {
			return errors.New("401 unauthorized")
		}
		run, err := New(p, newInvoker(t, &fakeWeather{}), Options{}).Run(context.Background(), "hi")
		require.ErrorIs(t, err, model.ErrRemoteCall)
		assert.Equal(t, PhaseAwaitingFirstPass, run.Phase)
	})

	t.Run("second pass", func(t *testing.T) {
		p := scriptedProvider(nil, "")
		p.ChatFunc = func(context.Context, []model.Message, model.ChatOptions, model.StreamCallback) error {
			return errors.New("connection reset")
		}
		run, err := New(p, newInvoker(t, &fakeWeather{}), Options{}).Run(context.Background(), "hi")
		require.ErrorIs(t, err, model.ErrRemoteCall)
		assert.Equal(t, PhaseAwaitingSecondPass, run.Phase)
		assert.Empty(t, run.Final)
	})

	t.Run("blank input", func(t *testing.T) {
		p := testutil.NewMockProvider("m")
		_, err := New(p, newInvoker(t, &fakeWeather{}), Options{}).Run(context.Background(), "  ")
		require.ErrorIs(t, err, model.ErrValidation)
		assert.Empty(t, p.Requests())
	})
}

func TestRunAppendToAndRecord(t *testing.T) {
	calls := []model.ToolCall{{Name: "power", Arguments: map[string]any{"base": 2, "exp": 10}}}
	o := New(scriptedProvider(calls, "1024"), newInvoker(t, &fakeWeather{}), Options{
		Now:   fixedClock(),
		NewID: func() string { return "run-7" },
	})
	run, err := o.Run(context.Background(), "2^10?")
	require.NoError(t, err)

	conv := &storage.Conversation{}
	run.AppendTo(conv)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "2^10?", conv.Messages[0].Content)
	assert.Equal(t, "1024", conv.Messages[1].Content)
	require.Len(t, conv.Messages[1].ToolCalls, 1)
	assert.Equal(t, "1024", conv.Messages[1].ToolCalls[0].Result)

	rec := run.Record("maths", "ollama", nil)
	assert.Equal(t, "run-7", rec.ID)
	assert.Equal(t, "maths", rec.Conversation)
	assert.Equal(t, "ollama", rec.Platform)
	assert.Equal(t, "done", rec.Status)
	assert.Equal(t, "1024", rec.Output)
	assert.True(t, rec.FinishedAt.After(rec.StartedAt))
	require.Len(t, rec.ToolCalls, 1)

	// Each copy owns its arguments.
	conv.Messages[1].ToolCalls[0].Arguments["base"] = 3
	rec.ToolCalls[0].Arguments["exp"] = 4
	assert.Equal(t, 2, run.ToolCalls[0].Arguments["base"])
	assert.Equal(t, 10, run.ToolCalls[0].Arguments["exp"])
	assert.Equal(t, 2, run.Final[0].ToolCalls[0].Arguments["base"])
	assert.Equal(t, 2, run.FirstPass[0].ToolCalls[0].Arguments["base"])

	failed := run.Record("maths", "ollama", errors.New("boom"))
	assert.Equal(t, "failed: boom", failed.Status)
}

func TestGroundingPrompt(t *testing.T) {
	var a, b model.ToolCall
	a.Name = "weather"
	a.SetResult("sunny")
	b.Name = "power"
	b.SetResult("8")

	got := GroundingPrompt("question", []model.ToolCall{a, b})
	want := "question\n\nTool results:\nweather returned: sunny\npower returned: 8\n\n" + groundingInstruction
	assert.Equal(t, want, got)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "awaiting_first_pass", PhaseAwaitingFirstPass.String())
	assert.Equal(t, "executing_tools", PhaseExecutingTools.String())
	assert.Equal(t, "awaiting_second_pass", PhaseAwaitingSecondPass.String())
	assert.Equal(t, "done", PhaseDone.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}

type funcCap func(ctx context.Context, args map[string]any) (string, error)

func (f funcCap) Schema() mcptypes.ToolInputSchema { return mcptypes.ToolInputSchema{Type: "object"} }

func (f funcCap) Call(ctx context.Context, args map[string]any) (string, error) { return f(ctx, args) }
