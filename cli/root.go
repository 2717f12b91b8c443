package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"termchat/model"
	"termchat/storage"
)

type rootFlags struct {
	message    string
	platform   string
	maxTokens  int
	selectName string
}

// NewRootCommand builds the command tree bound to a.
func NewRootCommand(a *App) *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:   "termchat [message]",
		Short: "Terminal chat client with persistent, named conversations",
		Long: `termchat streams replies from a chat-completion provider and keeps every
conversation on disk under a name.

Run with a message to send it once, or with no arguments to continue the
active conversation interactively.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			if cmd.Parent() == nil {
				return nil
			}
			return a.applyConfig(cmd, flags, false)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			message := flags.message
			if message == "" && len(args) > 0 {
				message = args[0]
			}
			return a.runRoot(cmd, flags, message)
		},
	}

	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	root.PersistentFlags().StringVarP(&flags.platform, "platform", "p", "", "platform to use (e.g. deepseek, openai, anthropic, ollama)")
	root.PersistentFlags().IntVarP(&flags.maxTokens, "max-tokens", "t", 0, fmt.Sprintf("max tokens for model output (default %d)", storage.DefaultMaxTokens))
	root.Flags().StringVarP(&flags.message, "message", "m", "", "message to send (alternative to the positional argument)")
	root.Flags().StringVarP(&flags.selectName, "select", "s", "", "select a conversation by name")

	root.AddCommand(
		newCreateCommand(a),
		newSelectCommand(a),
		newListCommand(a),
		newShowCommand(a),
		newDeleteCommand(a),
		newRenameCommand(a),
		newCloneCommand(a),
		newInfoCommand(a),
		newSearchCommand(a),
		newExportCommand(a),
		newModelsCommand(a),
		newAgentCommand(a),
		newRunsCommand(a),
		newKeyCommand(a),
	)
	return root
}

// Run executes the command line args against a and releases the data
// directory afterwards.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.close()
	root := NewRootCommand(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *App) runRoot(cmd *cobra.Command, flags rootFlags, message string) error {
	f := cmd.Flags()
	configOnly := message == "" &&
		(f.Changed("platform") || f.Changed("max-tokens") || f.Changed("select"))
	if configOnly {
		if err := a.applyConfig(cmd, flags, true); err != nil {
			return err
		}
		if f.Changed("select") {
			if err := a.store.Select(flags.selectName); err != nil {
				a.printf("No conversation named '%s' to select.", flags.selectName)
			} else {
				a.printf("Active conversation set to: %s", flags.selectName)
			}
		}
		a.printf("Configuration updated. Exiting.")
		return nil
	}

	if err := a.applyConfig(cmd, flags, false); err != nil {
		return err
	}
	ctx := cmd.Context()

	if flags.selectName != "" {
		if err := a.store.Select(flags.selectName); err != nil {
			return a.outcome(flags.selectName, err)
		}
	}

	if message != "" {
		return a.sendOnce(ctx, flags.selectName, message)
	}

	name, _, err := a.store.ActiveConversation()
	if err != nil {
		a.printf("No active conversation. Use 'termchat create' or --select to begin. Use -h for help.")
		return nil
	}
	return a.interactive(ctx, name, false)
}

// applyConfig stores the persistent -p/-t flags. verbose reports each
// change, as the configuration-only invocation does.
func (a *App) applyConfig(cmd *cobra.Command, flags rootFlags, verbose bool) error {
	f := cmd.Flags()
	if f.Changed("platform") {
		profiles, err := a.cfg.Profiles()
		if err != nil {
			return err
		}
		if _, ok := profiles[flags.platform]; !ok {
			known := make([]string, 0, len(profiles))
			for name := range profiles {
				known = append(known, name)
			}
			slices.Sort(known)
			return fmt.Errorf("%w: unknown platform '%s'. Must be one of: %s",
				model.ErrUnknownPlatform, flags.platform, strings.Join(known, ", "))
		}
		if err := a.store.SetPlatform(flags.platform); err != nil {
			return err
		}
		if verbose {
			a.printf("Platform set to: %s", flags.platform)
		}
	}
	if f.Changed("max-tokens") {
		if err := a.store.SetMaxTokens(flags.maxTokens); err != nil {
			return err
		}
		if verbose {
			a.printf("Max tokens set to: %d", flags.maxTokens)
		}
	}
	return nil
}
