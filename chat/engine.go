// Package chat runs single conversational turns against a model provider and
// keeps the conversation store in step with what was actually received.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"termchat/model"
	"termchat/storage"
)

// Engine sends user turns for stored conversations.
type Engine struct {
	store    *storage.Store
	provider model.Provider
	out      io.Writer
	logger   *zap.Logger
}

// Options configures an Engine.
type Options struct {
	// Out receives every streamed chunk as it arrives. Nil discards output.
	Out    io.Writer
	Logger *zap.Logger
}

// NewEngine creates an engine for the given store and provider.
func NewEngine(store *storage.Store, provider model.Provider, opts Options) *Engine {
	e := &Engine{store: store, provider: provider, out: opts.Out, logger: opts.Logger}
	if e.out == nil {
		e.out = io.Discard
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Provider returns the provider requests are sent to.
func (e *Engine) Provider() model.Provider {
	return e.provider
}

// Send appends text as a user message to the named conversation, streams the
// reply to the engine's writer and appends it as an assistant message.
//
// When the context is cancelled or the provider fails mid-stream, whatever
// was received so far is kept as the assistant message (unless blank), the
// store is saved, and an error wrapping model.ErrInterrupted or
// model.ErrRemoteCall is returned together with the partial reply.
func (e *Engine) Send(ctx context.Context, name, text string, maxTokens int) (string, error) {
	conv, err := e.store.Get(name)
	if err != nil {
		return "", err
	}

	conv.Messages = append(conv.Messages, model.UserMessage(text))

	var reply strings.Builder
	start := time.Now()
	err = e.provider.Chat(ctx, conv.Messages, model.ChatOptions{MaxTokens: maxTokens},
		func(chunk string, _ []model.ToolCall) error {
			reply.WriteString(chunk)
			_, werr := io.WriteString(e.out, chunk)
			return werr
		})

	content := reply.String()
	if err == nil || !model.IsBlank(content) {
		conv.Messages = append(conv.Messages, model.AssistantMessage(content))
	}
	if saveErr := e.store.Save(); saveErr != nil {
		return content, errors.Join(err, saveErr)
	}

	if err != nil {
		e.logger.Warn("turn ended early",
			zap.String("conversation", name),
			zap.Int("received", len(content)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return content, classify(ctx, err)
	}

	e.logger.Debug("turn complete",
		zap.String("conversation", name),
		zap.Int("chars", len(content)),
		zap.Duration("elapsed", time.Since(start)))
	return content, nil
}

// classify maps a streaming failure onto the error taxonomy.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrInterrupted):
		return err
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", model.ErrInterrupted, err)
	case errors.Is(err, model.ErrRemoteCall):
		return err
	default:
		return fmt.Errorf("%w: %w", model.ErrRemoteCall, err)
	}
}

const titlePrompt = "Generate a short, descriptive title (3-5 words) for this conversation based on the following text:\n\"%s\"\nReply with only the title."

// GenerateTitle asks the provider for a short title describing text and
// returns it normalized for use as a conversation name. Nothing is written
// to the engine's output.
func (e *Engine) GenerateTitle(ctx context.Context, text string) (string, error) {
	if model.IsBlank(text) {
		return "", fmt.Errorf("cannot title empty text: %w", model.ErrValidation)
	}

	msgs := []model.Message{model.UserMessage(fmt.Sprintf(titlePrompt, text))}
	raw, _, err := model.Collect(ctx, e.provider, msgs, nil, model.ChatOptions{MaxTokens: 20})
	if err != nil {
		return "", classify(ctx, err)
	}

	title := NormalizeTitle(raw)
	if title == "" {
		return "", fmt.Errorf("provider returned an empty title: %w", model.ErrValidation)
	}
	e.logger.Debug("generated title", zap.String("raw", raw), zap.String("title", title))
	return title, nil
}

// NormalizeTitle lowercases title, joins its words with underscores and
// strips surrounding quotes and trailing punctuation.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Trim(title, "\"'`")
	title = strings.TrimRight(title, ".!?,;:")
	title = strings.Trim(title, "\"'` ")
	return strings.ToLower(strings.Join(strings.Fields(title), "_"))
}
