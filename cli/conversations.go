package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"termchat/model"
	"termchat/storage"
	"termchat/ui"
)

func newCreateCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create [NAME]",
		Short: "Create a conversation and start chatting",
		Long: `Create a named conversation, make it active and start an interactive chat.

Without a name a temporary conversation is started; when you exit you can
save it under a name of your choice or a generated one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.temporaryChat(cmd.Context())
			}
			name := args[0]
			if a.store.Exists(name) {
				a.printf("Conversation '%s' already exists.", name)
				return nil
			}
			if err := a.store.Create(name); err != nil {
				return a.outcome(name, err)
			}
			return a.interactive(cmd.Context(), name, false)
		},
	}
}

func newSelectCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "select NAME",
		Short: "Make a conversation active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Select(args[0]); err != nil {
				return a.outcome(args[0], err)
			}
			a.printf("Active conversation set to: %s", args[0])
			return nil
		},
	}
}

func newListCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries := a.store.List()
			if len(summaries) == 0 {
				a.printf("No conversations found.")
				return nil
			}
			for _, s := range summaries {
				a.printf("%s", ui.FormatSummary(s, ui.DefaultWidth/2))
			}
			return nil
		},
	}
}

func newShowCommand(a *App) *cobra.Command {
	var (
		render bool
		clip   bool
	)
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Show the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := a.store.Get(args[0])
			if err != nil {
				return a.outcome(args[0], err)
			}
			if len(conv.Messages) == 0 {
				a.printf("Conversation '%s' has no messages.", args[0])
				return nil
			}
			ui.DisplayMessages(a.Out, conv.Messages, ui.RenderOptions{Markdown: render})
			if clip {
				if err := ui.CopyMessages(conv.Messages); err != nil {
					a.warnf("%v", err)
					return nil
				}
				a.printf("Copied %d messages to the clipboard.", len(conv.Messages))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&render, "markdown", false, "render message content as markdown")
	cmd.Flags().BoolVar(&clip, "copy", false, "also copy the conversation to the clipboard")
	return cmd
}

func newDeleteCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			wasActive := a.store.Active() == name
			fromHistory := false
			for _, n := range a.store.History() {
				if n != name {
					fromHistory = true
				}
			}

			active, err := a.store.Delete(name)
			if err != nil {
				return a.outcome(name, err)
			}
			switch {
			case !wasActive:
				a.printf("Deleted conversation '%s'", name)
			case active == "":
				a.printf("Deleted '%s'. No remaining conversations.", name)
			case fromHistory:
				a.printf("Deleted '%s'. Switched to previous conversation '%s'.", name, active)
			default:
				a.printf("Deleted '%s'. Switched to another conversation '%s'.", name, active)
			}
			return nil
		},
	}
}

func newRenameCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename OLD [NEW]",
		Short: "Rename a conversation",
		Long: `Rename a conversation. Without NEW a name is generated from the last
message of the conversation.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, newName := args[0], ""
			if len(args) == 2 {
				newName = args[1]
			}

			conv, err := a.store.Get(old)
			if err != nil {
				return a.outcome(old, err)
			}
			if newName == "" && len(conv.Messages) == 0 {
				a.printf("Cannot generate alias for empty conversation.")
				return nil
			}

			title := func(text string) (string, error) {
				engine, err := a.engine()
				if err != nil {
					return "", err
				}
				name, err := engine.GenerateTitle(cmd.Context(), text)
				if err != nil {
					return "", err
				}
				a.printf("Generated alias: %s", name)
				newName = name
				return name, nil
			}

			renamed, err := a.store.Rename(old, newName, title)
			if errors.Is(err, model.ErrConflict) {
				a.printf("A conversation named '%s' already exists.", newName)
				return nil
			}
			if err != nil {
				return a.outcome(old, err)
			}
			a.printf("Renamed '%s' → '%s'", old, renamed)
			return nil
		},
	}
}

func newCloneCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clone NEW SOURCE",
		Short: "Copy a conversation under a new name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			newName, source := args[0], args[1]
			err := a.store.Clone(source, newName)
			switch {
			case errors.Is(err, model.ErrNotFound):
				return a.outcome(source, err)
			case err != nil:
				return a.outcome(newName, err)
			}
			a.printf("Created new conversation '%s' from '%s'", newName, source)
			return nil
		},
	}
}

func newInfoCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the active conversation, platform and limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			active := a.store.Active()
			label := active
			if label == "" {
				label = "(none)"
			}
			a.printf("Active conversation: %s", label)
			a.printf("Platform: %s", a.store.Platform())
			if prev := a.store.PreviousPlatform(); prev != "" {
				a.printf("Previous platform: %s", prev)
			}
			a.printf("Max tokens: %d", a.store.MaxTokens())
			a.printf("Total conversations: %d", a.store.Len())
			if conv, err := a.store.Get(active); err == nil {
				a.printf("Messages in active conversation: %d", len(conv.Messages))
			}
			a.printf("Data directory: %s", a.cfg.DataDir())
			return nil
		},
	}
}

func newSearchCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Search message content across all conversations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matches := a.store.Search(args[0])
			if len(matches) == 0 {
				a.printf("No messages matching '%s'.", args[0])
				return nil
			}
			for _, m := range matches {
				a.printf("%s", ui.FormatMatch(m, ui.DefaultWidth))
			}
			a.printf("%d matches", len(matches))
			return nil
		},
	}
}

func newExportCommand(a *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export NAME",
		Short: "Write a conversation to a standalone JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			path := output
			if path == "" {
				dir, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get working directory: %w", err)
				}
				path = storage.DefaultExportPath(dir, name, time.Now())
			}
			if err := a.store.Export(name, path); err != nil {
				return a.outcome(name, err)
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			a.printf("Exported '%s' to %s", name, abs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default ./termchat-NAME-TIMESTAMP.json)")
	return cmd
}
