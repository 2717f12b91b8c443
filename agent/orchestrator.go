// Package agent drives one tool-augmented exchange: a first model pass with
// the tool catalog declared, execution of every requested call, and a
// grounded second pass whose answer carries the full tool-call record.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"termchat/model"
	"termchat/storage"
	"termchat/tools"
)

// DefaultWorkers bounds how many tool calls run at once.
const DefaultWorkers = 4

// Phase is the position of a run in the two-pass cycle.
type Phase int

const (
	PhaseAwaitingFirstPass Phase = iota
	PhaseExecutingTools
	PhaseAwaitingSecondPass
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingFirstPass:
		return "awaiting_first_pass"
	case PhaseExecutingTools:
		return "executing_tools"
	case PhaseAwaitingSecondPass:
		return "awaiting_second_pass"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Run is the state of one exchange. It is filled in as the run advances;
// a failed run keeps the phase it failed in.
type Run struct {
	ID    string
	Input string
	Model string
	Phase Phase

	// FirstPass holds the messages returned while tools were declared.
	FirstPass []model.Message
	// ToolCalls is every requested call in declaration order, with results.
	ToolCalls []model.ToolCall
	// Prompt is the grounding prompt sent in the second pass.
	Prompt string
	// Final holds the user-facing answer messages.
	Final []model.Message

	StartedAt  time.Time
	FinishedAt time.Time
}

// Answer returns the concatenated content of the final messages.
func (r *Run) Answer() string {
	parts := make([]string, 0, len(r.Final))
	for _, m := range r.Final {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// Options configures an Orchestrator.
type Options struct {
	// Workers bounds concurrent tool execution; zero uses DefaultWorkers.
	Workers   int
	MaxTokens int
	Logger    *zap.Logger

	Now   func() time.Time
	NewID func() string
}

// Orchestrator runs exchanges against one provider and one tool invoker.
type Orchestrator struct {
	provider  model.Provider
	invoker   *tools.Invoker
	workers   int
	maxTokens int
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// New creates an orchestrator.
func New(provider model.Provider, invoker *tools.Invoker, opts Options) *Orchestrator {
	o := &Orchestrator{
		provider:  provider,
		invoker:   invoker,
		workers:   opts.Workers,
		maxTokens: opts.MaxTokens,
		logger:    opts.Logger,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if o.workers <= 0 {
		o.workers = DefaultWorkers
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o
}

// Run executes the full cycle for input. Tool failures end up as result
// text on their record; only model failures abort the run. The returned Run
// is non-nil even on error and shows how far the exchange got.
func (o *Orchestrator) Run(ctx context.Context, input string) (*Run, error) {
	run := &Run{
		ID:        o.newID(),
		Input:     input,
		Model:     o.provider.GetModel(),
		Phase:     PhaseAwaitingFirstPass,
		StartedAt: o.now(),
	}
	if model.IsBlank(input) {
		return run, fmt.Errorf("agent input: %w", model.ErrValidation)
	}
	logger := o.logger.With(zap.String("run", run.ID))
	opts := model.ChatOptions{MaxTokens: o.maxTokens}

	catalog := o.invoker.Registry().Catalog()
	content, calls, err := model.Collect(ctx, o.provider, []model.Message{model.UserMessage(input)}, catalog, opts)
	if err != nil {
		return run, fmt.Errorf("first pass: %w", classify(ctx, err))
	}
	run.FirstPass = []model.Message{{Role: model.RoleAssistant, Content: content, ToolCalls: calls}}
	logger.Debug("first pass complete",
		zap.Int("tools_declared", len(catalog)),
		zap.Int("tool_calls", len(calls)))

	run.Phase = PhaseExecutingTools
	run.ToolCalls = o.executeAll(ctx, run.FirstPass)

	run.Phase = PhaseAwaitingSecondPass
	run.Prompt = GroundingPrompt(input, run.ToolCalls)
	answer, _, err := model.Collect(ctx, o.provider, []model.Message{model.UserMessage(run.Prompt)}, nil, opts)
	if err != nil {
		return run, fmt.Errorf("second pass: %w", classify(ctx, err))
	}

	final := model.AssistantMessage(answer)
	run.Final = []model.Message{final}
	for i := range run.Final {
		if run.Final[i].Role == model.RoleAssistant {
			run.Final[i].ToolCalls = cloneCalls(run.ToolCalls)
		}
	}

	run.Phase = PhaseDone
	run.FinishedAt = o.now()
	logger.Info("agent run complete",
		zap.Int("tool_calls", len(run.ToolCalls)),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
	return run, nil
}

// executeAll runs every call found in msgs in place, at most o.workers at a
// time, and returns a copy of the executed calls in declaration order.
func (o *Orchestrator) executeAll(ctx context.Context, msgs []model.Message) []model.ToolCall {
	var pending []*model.ToolCall
	for i := range msgs {
		for j := range msgs[i].ToolCalls {
			pending = append(pending, &msgs[i].ToolCalls[j])
		}
	}
	if len(pending) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, call := range pending {
		g.Go(func() error {
			o.invoker.Execute(gctx, call)
			return nil
		})
	}
	// Execute never fails, so neither does the group.
	_ = g.Wait()

	calls := make([]model.ToolCall, len(pending))
	for i, call := range pending {
		calls[i] = cloneCall(*call)
	}
	return calls
}

const groundingInstruction = "Answer the request above using only these tool results. " +
	"If they do not contain what is needed, say so instead of making anything up."

// GroundingPrompt builds the second-pass prompt: the original input, one
// "<name> returned: <result>" line per call, and the instruction to rely on
// those results alone.
func GroundingPrompt(input string, calls []model.ToolCall) string {
	var b strings.Builder
	b.WriteString(input)
	b.WriteString("\n\nTool results:\n")
	for _, c := range calls {
		fmt.Fprintf(&b, "%s returned: %s\n", c.Name, c.Result)
	}
	b.WriteString("\n")
	b.WriteString(groundingInstruction)
	return b.String()
}

// AppendTo adds the user input and the final answer to conv.
func (r *Run) AppendTo(conv *storage.Conversation) {
	conv.Messages = append(conv.Messages, model.UserMessage(r.Input))
	conv.Messages = append(conv.Messages, cloneMessages(r.Final)...)
}

// Record converts the run into a run log entry.
func (r *Run) Record(conversation, platform string, runErr error) storage.RunRecord {
	status := r.Phase.String()
	if runErr != nil {
		status = "failed: " + runErr.Error()
	}
	finished := r.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	return storage.RunRecord{
		ID:           r.ID,
		Conversation: conversation,
		Platform:     platform,
		Model:        r.Model,
		Input:        r.Input,
		Output:       r.Answer(),
		Status:       status,
		StartedAt:    r.StartedAt,
		FinishedAt:   finished,
		ToolCalls:    cloneCalls(r.ToolCalls),
	}
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrInterrupted), errors.Is(err, model.ErrRemoteCall):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", model.ErrInterrupted, err)
	default:
		return fmt.Errorf("%w: %w", model.ErrRemoteCall, err)
	}
}

func cloneCalls(calls []model.ToolCall) []model.ToolCall {
	if calls == nil {
		return nil
	}
	out := make([]model.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = cloneCall(c)
	}
	return out
}

func cloneCall(c model.ToolCall) model.ToolCall {
	if c.Arguments != nil {
		args := make(map[string]any, len(c.Arguments))
		for k, v := range c.Arguments {
			args[k] = v
		}
		c.Arguments = args
	}
	return c
}

func cloneMessages(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		out[i].ToolCalls = cloneCalls(m.ToolCalls)
	}
	return out
}
