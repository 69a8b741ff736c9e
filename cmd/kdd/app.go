package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/kdd/config"
	"github.com/c360studio/kdd/history"
	"github.com/c360studio/kdd/report"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	logLevel    string
	logFormat   string
	specsDir    string
	projectRoot string
	format      string

	logger *slog.Logger
	cfg    *config.Config
	// workDir overrides the project config search start, for tests.
	workDir string
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, logger: slog.Default()}
}

func rootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Spec traceability and readiness verification",
		Long: `kdd checks that the specs of a knowledge-driven project are ready for
implementation.

It provides:
- An eight-gate readiness pipeline per Value Unit (check)
- Value Unit completeness, rule coverage and code mapping reports
- A spec linter for frontmatter, structure, semantics and domains (validate)
- Entity index generation, domain map validation and a file watcher
- An MCP server exposing the engine as tools`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogger()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "text", "Log format (text, json)")
	pf.StringVar(&a.specsDir, "specs", "", "Specs directory (overrides specs_dir)")
	pf.StringVar(&a.projectRoot, "project-root", "", "Project root (overrides project_root)")
	pf.StringVarP(&a.format, "format", "f", "console", "Output format (console, json, github)")

	cmd.AddCommand(
		checkCmd(a),
		statusCmd(a),
		coverageCmd(a),
		mappingCmd(a),
		validateCmd(a),
		indexCmd(a),
		domainsCmd(a),
		watchCmd(a),
		historyCmd(a),
		mcpCmd(a),
		configCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(a.stdout, "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

func (a *app) setupLogger() error {
	var level slog.Level
	switch strings.ToLower(a.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning", "":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return usagef("unknown log level %q", a.logLevel)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(a.logFormat) {
	case "text", "":
		handler = slog.NewTextHandler(a.stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(a.stderr, opts)
	default:
		return usagef("unknown log format %q", a.logFormat)
	}
	a.logger = slog.New(handler)
	return nil
}

// config loads the layered configuration once, with flag overrides.
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	overrides := &config.Config{SpecsDir: a.specsDir, ProjectRoot: a.projectRoot}
	loader := config.NewLoader(a.logger)
	if a.workDir != "" {
		loader.WithWorkDir(a.workDir)
	}
	cfg, err := loader.Load(overrides)
	if err != nil {
		return nil, usagef("load config: %v", err)
	}
	if info, err := os.Stat(cfg.SpecsPath()); err != nil || !info.IsDir() {
		return nil, usagef("specs directory not found: %s", cfg.SpecsPath())
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) outputFormat() (report.Format, error) {
	f, err := report.ParseFormat(a.format)
	if err != nil {
		return "", usageError{err: err}
	}
	return f, nil
}

// openHistory opens the run history database named by the config.
func (a *app) openHistory(cfg *config.Config) (*history.Store, error) {
	return history.Open(cfg.Path(cfg.History.Path), a.logger)
}

// signalContext is cancelled on SIGINT/SIGTERM and, when timeout is positive,
// after timeout.
func signalContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}

// failIf turns a failed report into exit status 1.
func failIf(failed bool) error {
	if failed {
		return exitError{code: exitFailed}
	}
	return nil
}
