package tools

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"termchat/model"
)

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	// Timeout bounds a single capability call. Zero means unbounded.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Invoker executes model-requested tool calls against a Registry.
type Invoker struct {
	registry *Registry
	timeout  time.Duration
	logger   *zap.Logger
}

// NewInvoker creates an invoker over reg.
func NewInvoker(reg *Registry, opts InvokerOptions) *Invoker {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{registry: reg, timeout: opts.Timeout, logger: logger}
}

// Registry returns the registry calls are resolved against.
func (inv *Invoker) Registry() *Registry { return inv.registry }

// Execute runs call and records its outcome on it. Every failure mode ends up
// as result text; Execute never fails. A call that already carries an
// outcome is left untouched.
func (inv *Invoker) Execute(ctx context.Context, call *model.ToolCall) {
	if call.Executed() {
		return
	}

	tool, ok := inv.registry.Get(call.Name)
	if !ok {
		inv.logger.Warn("tool not found", zap.String("tool", call.Name))
		call.SetFailure(fmt.Sprintf("no matching tool %q: no result produced", call.Name))
		return
	}

	if err := ValidateArguments(call.Arguments, tool.Capability.Schema()); err != nil {
		inv.logger.Debug("rejected tool arguments", zap.String("tool", call.Name), zap.Error(err))
		call.SetFailure("Error: invalid arguments: " + err.Error())
		return
	}

	start := time.Now()
	result, err := inv.call(ctx, tool, call.Arguments)
	if err != nil {
		inv.logger.Warn("tool call failed",
			zap.String("tool", call.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		call.SetFailure("Error: " + err.Error())
		return
	}

	inv.logger.Debug("tool call finished",
		zap.String("tool", call.Name),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("result_len", len(result)))
	call.SetResult(result)
}

type callOutcome struct {
	result string
	err    error
}

func (inv *Invoker) call(ctx context.Context, tool *Tool, args map[string]any) (string, error) {
	if inv.timeout <= 0 {
		return safeCall(ctx, tool.Capability, args)
	}

	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	done := make(chan callOutcome, 1)
	go func() {
		result, err := safeCall(ctx, tool.Capability, args)
		done <- callOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("tool %q timed out after %s", tool.Name, inv.timeout)
		}
		return "", fmt.Errorf("tool %q: %w", tool.Name, ctx.Err())
	}
}

func safeCall(ctx context.Context, c Capability, args map[string]any) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", model.ErrCapability, r)
		}
	}()
	return c.Call(ctx, args)
}
