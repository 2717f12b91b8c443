// Package cli implements the termchat command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"termchat/agent"
	"termchat/chat"
	"termchat/config"
	"termchat/model"
	"termchat/provider"
	"termchat/storage"
	"termchat/tools"
	"termchat/tools/builtin"
	"termchat/ui"
)

// App holds the process-wide dependencies of one invocation.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// ConfigDir overrides ~/.config/termchat.
	ConfigDir string
	Getenv    func(string) string
	// Factory builds providers; nil uses provider.NewProvider.
	Factory    func(provider.Config) (model.Provider, error)
	HTTPClient *http.Client

	// Interruptible scopes Ctrl+C to one streamed reply. Outside a reply
	// the default signal behavior applies.
	Interruptible func(context.Context) (context.Context, context.CancelFunc)

	cfg      *config.Config
	logger   *zap.Logger
	store    *storage.Store
	prompter *ui.Prompter
	locked   bool

	resolved *provider.Resolution
}

// NewApp returns an App wired to the process stdio and environment.
func NewApp() *App {
	return &App{
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
		Getenv: os.Getenv,

		Interruptible: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	app := NewApp()
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(app.Err, ui.ErrorStyle.Render("Error: ")+err.Error())
		return 1
	}
	return 0
}

// open loads configuration and the conversation store.
func (a *App) open() error {
	if a.Getenv == nil {
		a.Getenv = os.Getenv
	}
	cfg, err := config.Load(config.Options{ConfigDir: a.ConfigDir, Getenv: a.Getenv})
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := config.NewLogger(cfg.DataDir(), a.Getenv)
	if err != nil {
		return err
	}
	a.logger = logger

	if running, pid, err := storage.CheckLock(cfg.DataDir()); err != nil {
		a.logger.Warn("failed to check instance lock", zap.Error(err))
	} else if running {
		a.warnf("Another termchat instance (PID %d) is using %s. Changes may be overwritten.", pid, cfg.DataDir())
	}
	if err := storage.Lock(cfg.DataDir()); err != nil {
		a.logger.Warn("failed to lock data directory", zap.Error(err))
	} else {
		a.locked = true
	}

	store, err := storage.Open(cfg.ConversationsPath(), storage.Options{
		Logger:          logger.Named("storage"),
		DefaultPlatform: cfg.DefaultPlatform,
	})
	if err != nil {
		return err
	}
	a.store = store
	a.prompter = ui.NewPrompter(a.In, a.Out)
	return nil
}

func (a *App) close() {
	if a.cfg != nil && a.locked {
		if err := storage.Unlock(a.cfg.DataDir()); err != nil {
			a.logger.Warn("failed to unlock data directory", zap.Error(err))
		}
		a.locked = false
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// resolveProvider resolves the stored platform once per invocation. A fallback to
// the previous platform is reported, and the platform that resolved is
// recorded for the next run.
func (a *App) resolveProvider() (*provider.Resolution, error) {
	if a.resolved != nil {
		return a.resolved, nil
	}

	profiles, err := a.cfg.Profiles()
	if err != nil {
		return nil, err
	}
	resolver := &provider.Resolver{
		Profiles:   profiles,
		Keys:       a.cfg.KeyLookup(),
		HTTPClient: a.HTTPClient,
		Logger:     a.logger.Named("provider"),
		Factory:    a.Factory,
	}

	res, err := resolver.Resolve(a.store.Platform(), a.store.PreviousPlatform())
	if err != nil {
		return nil, err
	}
	if res.FellBack {
		a.warnf("%v", res.Cause)
		a.warnf("Reverting to previous platform '%s'.", res.Platform)
		if err := a.store.SetPlatform(res.Platform); err != nil {
			return nil, err
		}
	}
	if err := a.store.SetPreviousPlatform(res.Platform); err != nil {
		return nil, err
	}
	a.resolved = res
	return res, nil
}

func (a *App) engine() (*chat.Engine, error) {
	res, err := a.resolveProvider()
	if err != nil {
		return nil, err
	}
	return chat.NewEngine(a.store, res.Provider, chat.Options{
		Out:    a.Out,
		Logger: a.logger.Named("chat"),
	}), nil
}

// orchestrator builds the tool registry from the catalog file and an
// orchestrator over the resolved provider.
func (a *App) orchestrator() (*agent.Orchestrator, error) {
	res, err := a.resolveProvider()
	if err != nil {
		return nil, err
	}

	path := a.cfg.ToolCatalogPath()
	if _, err := config.WriteFileIfMissing(path, builtin.DefaultCatalog); err != nil {
		return nil, err
	}
	descs, err := tools.LoadDescriptors(path)
	if err != nil {
		return nil, err
	}

	resolver := builtin.Resolver(builtin.Options{
		WeatherAPIKey:  a.cfg.WeatherAPIKey(),
		WeatherBaseURL: a.cfg.Tools.WeatherURL,
		HTTPClient:     a.HTTPClient,
	})
	reg := tools.NewRegistry(descs, resolver, a.logger.Named("tools"))
	for _, r := range reg.Rejected() {
		a.warnf("Skipping tool '%s' (%s): %s", r.Descriptor.Name, r.Descriptor.ImportPath, r.Reason)
	}

	invoker := tools.NewInvoker(reg, tools.InvokerOptions{
		Timeout: a.cfg.Tools.Timeout,
		Logger:  a.logger.Named("invoker"),
	})
	return agent.New(res.Provider, invoker, agent.Options{
		Workers:   a.cfg.Agent.Workers,
		MaxTokens: a.store.MaxTokens(),
		Logger:    a.logger.Named("agent"),
	}), nil
}

// outcome prints store errors that describe a user-facing result rather
// than a failure of the program. It returns err unchanged otherwise.
func (a *App) outcome(name string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrNotFound):
		a.printf("%s", ui.NotFound(name, a.store.Names()))
	case errors.Is(err, model.ErrConflict):
		a.printf("A conversation named '%s' already exists.", name)
	case errors.Is(err, model.ErrValidation):
		a.printf("%v", err)
	default:
		return err
	}
	return nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format+"\n", args...)
}

func (a *App) warnf(format string, args ...any) {
	fmt.Fprintln(a.Err, ui.ErrorStyle.Render("Warning: ")+fmt.Sprintf(format, args...))
}
