package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/swissarmyhammer/swissarmyhammer/internal/abort"
	"github.com/swissarmyhammer/swissarmyhammer/internal/config"
	"github.com/swissarmyhammer/swissarmyhammer/internal/logger"
	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/claude"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/issues"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/mcpserver"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/memo"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/plugins"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/prompt"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/ratelimit"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/resolver"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/template"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/watcher"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/workflow"
)

var serveLog = logger.New("cmd:serve")

// exitAbort is called when Server.Run reports an abort-triggered error.
// Overridden by tests so that path can be exercised without actually
// terminating the process.
var exitAbort = func() { os.Exit(2) }

func newServeCommand() *cobra.Command {
	var claudeCommand string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), claudeCommand, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&claudeCommand, "claude-command", "claude", "external Claude executor binary invoked once per prompt action")
	return cmd
}

// promptResolverAdapter bridges pkg/resolver's Library to
// workflow.PromptResolver, keeping pkg/workflow free of any import on
// pkg/prompt or pkg/resolver.
type promptResolverAdapter struct {
	library *prompt.Library
}

func (a *promptResolverAdapter) ResolvePrompt(name string) (string, []template.Argument, error) {
	p, err := a.library.Get(name)
	if err != nil {
		return "", nil, err
	}
	args := make([]template.Argument, 0, len(p.Arguments))
	for _, arg := range p.Arguments {
		ta := template.Argument{Name: arg.Name, Required: arg.Required}
		if arg.HasDefault {
			d := arg.Default
			ta.Default = &d
		}
		args = append(args, ta)
	}
	return p.Template, args, nil
}

func runServe(ctx context.Context, claudeCommand string, stdin io.Reader, stdout io.Writer) error {
	env := config.LoadEnv()
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	closeLog := redirectLogToFile(env)
	defer closeLog()

	promptResolver := resolver.New()
	if err := promptResolver.Load(resolver.Builtins(), env.Home, cwd); err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}

	engine := plugins.NewRegistry().CreateParser()

	issueStore, err := issues.New(filepath.Join(cwd, "issues"))
	if err != nil {
		return fmt.Errorf("opening issue store: %w", err)
	}

	memosDir := env.MemosDir
	if memosDir == "" {
		memosDir = filepath.Join(env.UserConfigDir(), "memos")
	}
	memoStore, err := memo.New(memosDir)
	if err != nil {
		return fmt.Errorf("opening memo store: %w", err)
	}

	limiter := ratelimit.New(ratelimit.DefaultConfig())

	workflowLoader := workflow.NewFileLoader(env.Home, cwd)
	executor := &workflow.Executor{
		Prompts:  &promptResolverAdapter{library: promptResolver.Library},
		Template: engine,
		Claude:   claude.NewCLIExecutor(claudeCommand),
		Loader:   workflowLoader,
		Abort:    abort.Detect,
		Metrics:  workflow.NewMetrics(),
	}

	promptDirs := []string{
		filepath.Join(env.Home, ".swissarmyhammer", "prompts"),
		filepath.Join(cwd, ".swissarmyhammer", "prompts"),
	}

	var fileWatcher *watcher.Watcher
	var server *mcpserver.Server
	server = mcpserver.New(mcpserver.Config{
		Name:     "swissarmyhammer",
		Version:  version,
		Resolver: promptResolver,
		Template: engine,
		Limiter:  limiter,
		OnInitialized: func() {
			fileWatcher = startPromptWatcher(ctx, promptResolver, env, cwd, promptDirs, server.NotifyPromptsChanged)
		},
	})
	mcpserver.RegisterIssueTools(server, issueStore)
	mcpserver.RegisterMemoTools(server, memoStore)
	mcpserver.RegisterWorkflowTools(server, executor, workflowLoader)
	mcpserver.RegisterSearchTools(server)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer func() {
		if fileWatcher != nil {
			fileWatcher.Stop()
		}
	}()

	runErr := server.Run(ctx, stdin, stdout)
	if runErr != nil {
		if swerr.Is(runErr, swerr.KindActionAbort) {
			serveLog.Printf("aborting: %v", runErr)
			exitAbort()
		}
		return runErr
	}
	return nil
}

// startPromptWatcher subscribes to the user and local prompt directories,
// reloading the resolver's library and pushing notifications/prompts/list_changed
// on every debounced batch of changes, per the lifecycle spec §4.9 describes
// for the point after notifications/initialized.
func startPromptWatcher(ctx context.Context, r *resolver.Resolver, env *config.Env, cwd string, dirs []string, notify func()) *watcher.Watcher {
	w, err := watcher.New(watcher.DefaultConfig(), func(paths []string) error {
		fresh := resolver.New()
		if err := fresh.Load(resolver.Builtins(), env.Home, cwd); err != nil {
			return err
		}
		r.Library.Replace(fresh.Library.List())
		notify()
		return nil
	}, func(message string) {
		serveLog.Printf("watcher error: %s", message)
	})
	if err != nil {
		serveLog.Printf("failed to start prompt watcher: %v", err)
		return nil
	}
	if err := w.Start(ctx, dirs); err != nil {
		serveLog.Printf("failed to watch prompt directories: %v", err)
		return nil
	}
	return w
}

// redirectLogToFile sends internal/logger output to $HOME/.swissarmyhammer/mcp.log
// when stderr is not a terminal, per the directory layout's rolling log file.
// Returns a cleanup func that restores stderr; safe to call even when no
// redirection happened.
func redirectLogToFile(env *config.Env) func() {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return func() {}
	}
	logPath := filepath.Join(env.UserConfigDir(), "mcp.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return func() {}
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return func() {}
	}
	original := os.Stderr
	os.Stderr = f
	return func() {
		os.Stderr = original
		_ = f.Close()
	}
}
