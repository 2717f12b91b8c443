package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"termchat/chat"
	"termchat/model"
	"termchat/storage"
	"termchat/ui"
)

const interruptedNotice = "\n[Interrupted — partial response saved]"

// sendOnce sends message to name, or to a new conversation named after the
// message when name is empty.
func (a *App) sendOnce(ctx context.Context, name, message string) error {
	engine, err := a.engine()
	if err != nil {
		return err
	}

	if name == "" {
		title, err := engine.GenerateTitle(ctx, message)
		if err != nil {
			return fmt.Errorf("failed to generate a conversation name: %w", err)
		}
		name, err = a.store.CreateUnique(title)
		if err != nil {
			return err
		}
		a.printf("Created new conversation '%s' (alias generated).", name)
	}

	err = a.turn(ctx, engine, name, message)
	if errors.Is(err, model.ErrInterrupted) {
		return nil
	}
	return err
}

// turn streams one reply. Interrupts and remote failures are reported here;
// whatever arrived before them is already saved by the engine.
func (a *App) turn(ctx context.Context, engine *chat.Engine, name, text string) error {
	turnCtx, stop := a.interruptible(ctx)
	defer stop()

	_, err := engine.Send(turnCtx, name, text, a.store.MaxTokens())
	fmt.Fprintln(a.Out)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrInterrupted):
		a.printf(interruptedNotice)
	default:
		a.logger.Warn("turn failed", zap.String("conversation", name), zap.Error(err))
	}
	return err
}

func (a *App) interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.Interruptible == nil {
		return context.WithCancel(ctx)
	}
	return a.Interruptible(ctx)
}

// interactive runs the You:/Assistant: loop on name until exit, quit or end
// of input.
func (a *App) interactive(ctx context.Context, name string, temporary bool) error {
	conv, err := a.store.Get(name)
	if err != nil {
		return a.outcome(name, err)
	}

	label := name
	if temporary {
		label = "new/temporary"
	}
	a.printf("Platform: %s | Active: %s | Max tokens: %d", a.store.Platform(), label, a.store.MaxTokens())
	a.printf("Type 'exit' or Ctrl+C to quit.\n")

	if n := len(conv.Messages); n > 0 {
		show, err := a.prompter.Confirm(fmt.Sprintf("Do you want to see previous messages (%d)?", n))
		switch {
		case errors.Is(err, ui.ErrQuit), errors.Is(err, io.EOF):
			a.printf("\nExiting.")
			return nil
		case err != nil:
			return err
		case show:
			ui.DisplayMessages(a.Out, conv.Messages, ui.RenderOptions{})
		}
	}

	engine, err := a.engine()
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			a.printf("\nExiting.")
			return nil
		}
		text, err := a.prompter.ReadLine("You: ")
		if errors.Is(err, io.EOF) {
			a.printf("\nExiting.")
			return nil
		}
		if err != nil {
			return err
		}
		if ui.IsQuit(text) {
			return nil
		}
		if text == "" {
			continue
		}

		a.printf("%s", ui.LightSeparator())
		fmt.Fprint(a.Out, ui.RoleLabel(model.RoleAssistant)+" ")
		err = a.turn(ctx, engine, name, text)
		switch {
		case err == nil:
			a.printf("%s", ui.LightSeparator())
		case errors.Is(err, model.ErrInterrupted):
		case errors.Is(err, model.ErrRemoteCall):
			a.warnf("%v", err)
		default:
			return err
		}
	}
}

// temporaryChat runs an unnamed conversation, then discards it or saves it
// under a typed or generated name.
func (a *App) temporaryChat(ctx context.Context) error {
	t, err := a.store.CreateTemporary()
	if err != nil {
		return err
	}
	a.printf("Starting new temporary conversation. You can set the name after exiting.")

	if err := a.interactive(ctx, t.Name, true); err != nil {
		if derr := a.store.Discard(t); derr != nil {
			a.logger.Warn("failed to discard temporary conversation", zap.Error(derr))
		}
		return err
	}

	conv, err := a.store.Get(t.Name)
	if err != nil {
		return err
	}
	if len(conv.Messages) == 0 {
		if err := a.store.Discard(t); err != nil {
			return err
		}
		a.printf("Temporary conversation discarded (empty).")
		return nil
	}

	save, err := a.prompter.Confirm("Do you want to save this conversation?")
	if err != nil && !errors.Is(err, ui.ErrQuit) && !errors.Is(err, io.EOF) {
		return err
	}
	if !save {
		a.printf("Discarding temporary conversation.")
		return a.store.Discard(t)
	}

	for {
		name, err := a.adoptName(ctx, t)
		if err != nil {
			return err
		}
		err = a.store.Adopt(t, name)
		if errors.Is(err, model.ErrConflict) {
			a.printf("A conversation named '%s' already exists.", name)
			continue
		}
		if err != nil {
			return err
		}
		a.printf("Conversation saved as '%s'", name)
		return nil
	}
}

// adoptName asks for the name of a temporary conversation. An empty answer
// generates one from the last message; end of input keeps the temporary
// name so nothing is lost.
func (a *App) adoptName(ctx context.Context, t *storage.Temporary) (string, error) {
	name, err := a.prompter.ReadLine("Enter a name for this conversation (leave empty to generate alias): ")
	if errors.Is(err, io.EOF) {
		return t.Name, nil
	}
	if err != nil {
		return "", err
	}
	if name != "" {
		return name, nil
	}

	last, err := a.store.LastMessage(t.Name)
	if err != nil {
		return "", err
	}
	engine, err := a.engine()
	if err != nil {
		return "", err
	}
	title, err := engine.GenerateTitle(ctx, last)
	if err != nil {
		a.warnf("Could not generate a name: %v", err)
		return t.Name, nil
	}
	return title, nil
}
