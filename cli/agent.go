package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"termchat/agent"
	"termchat/model"
	"termchat/storage"
	"termchat/ui"
)

func newAgentCommand(a *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "agent MESSAGE",
		Short: "Answer a request using the tool catalog",
		Long: `Send MESSAGE with the tool catalog declared, run every tool the model asks
for, then ask again with the tool results and print the run as JSON.

The exchange is appended to the active conversation when there is one and
recorded in the run log.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}

			runCtx, stop := a.interruptible(ctx)
			run, runErr := orch.Run(runCtx, args[0])
			stop()

			active, conv, convErr := a.store.ActiveConversation()
			if runErr == nil && convErr == nil {
				run.AppendTo(conv)
				if err := a.store.Save(); err != nil {
					return err
				}
			}
			a.record(cmd, run, active, runErr)

			if runErr != nil {
				if errors.Is(runErr, model.ErrValidation) {
					a.printf("Nothing to send.")
					return nil
				}
				if errors.Is(runErr, model.ErrInterrupted) {
					a.printf("\n[Interrupted — run recorded as %s]", run.Phase)
					return nil
				}
				return runErr
			}

			doc, err := agent.Document(run)
			if err != nil {
				return err
			}
			if output == "" {
				fmt.Fprintln(a.Out, string(doc))
				return nil
			}
			if err := os.WriteFile(output, append(doc, '\n'), 0600); err != nil {
				return fmt.Errorf("failed to write run document: %w", err)
			}
			a.printf("%s %s", ui.RoleLabel(model.RoleAssistant), run.Answer())
			a.printf("Run document written to %s", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the run document to FILE instead of stdout")
	return cmd
}

// record writes run to the run log. Failures to record are logged only.
func (a *App) record(cmd *cobra.Command, run *agent.Run, conversation string, runErr error) {
	if model.IsBlank(run.Input) {
		return
	}
	runs, err := storage.OpenRunLog(a.cfg.RunLogPath())
	if err != nil {
		a.logger.Warn("failed to open run log", zap.Error(err))
		return
	}
	defer runs.Close()

	platform := ""
	if a.resolved != nil {
		platform = a.resolved.Platform
	}
	if err := runs.Record(cmd.Context(), run.Record(conversation, platform, runErr)); err != nil {
		a.logger.Warn("failed to record run", zap.String("run", run.ID), zap.Error(err))
	}
}

func newRunsCommand(a *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent agent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.OpenRunLog(a.cfg.RunLogPath())
			if err != nil {
				return err
			}
			defer runs.Close()

			records, err := runs.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				a.printf("No agent runs recorded.")
				return nil
			}
			for _, rec := range records {
				a.printf("%s", formatRun(rec))
				for _, call := range rec.ToolCalls {
					a.printf("    %s", ui.FormatToolCall(call, ui.DefaultWidth-4))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}

func formatRun(rec storage.RunRecord) string {
	id := rec.ID
	if len(id) > 8 {
		id = id[:8]
	}
	where := rec.Conversation
	if where == "" {
		where = "-"
	}
	head := fmt.Sprintf("%s  %s  %s/%s  %s  %s",
		id,
		rec.StartedAt.Local().Format(time.DateTime),
		rec.Platform, rec.Model,
		where,
		rec.Status)
	return head + "\n    " + ui.Truncate(strings.Join(strings.Fields(rec.Input), " "), ui.DefaultWidth-4)
}

func newModelsCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models offered by the current platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.resolveProvider()
			if err != nil {
				return err
			}
			models, err := res.Provider.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("%w: %w", model.ErrRemoteCall, err)
			}

			current := res.Provider.GetModel()
			a.printf("Platform: %s", res.Platform)
			for _, m := range models {
				marker := "  "
				if m.Name == current {
					marker = ui.SelectedStyle.Render("* ")
				}
				a.printf("%s%s", marker, m.Name)
			}
			return nil
		},
	}
}

func newKeyCommand(a *App) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "key NAME [API_KEY]",
		Short: "Store an API key in credentials.toml",
		Long: `Store the API key for a platform (or "weather" for the weather tool) in
credentials.toml inside the data directory. Stored keys take precedence over
environment variables. Without API_KEY the key is read from standard input.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			creds := a.cfg.Credentials

			if remove {
				creds.Delete(name)
				if err := creds.Save(a.cfg.DataDir()); err != nil {
					return err
				}
				a.printf("Removed API key for '%s'", name)
				return nil
			}

			key := ""
			if len(args) == 2 {
				key = args[1]
			} else {
				var err error
				key, err = a.prompter.ReadLine(fmt.Sprintf("API key for '%s': ", name))
				if err != nil {
					return err
				}
			}
			if key == "" {
				a.printf("No key given; nothing changed.")
				return nil
			}

			creds.Set(name, key)
			if err := creds.Save(a.cfg.DataDir()); err != nil {
				return err
			}
			a.printf("Saved API key for '%s'", name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "delete", false, "remove the stored key instead")
	return cmd
}
