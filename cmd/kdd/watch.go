package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/kdd/config"
	"github.com/c360studio/kdd/gate"
	"github.com/c360studio/kdd/report"
	"github.com/c360studio/kdd/uv"
	"github.com/c360studio/kdd/watch"
)

type watchFlags struct {
	all      bool
	gate     int
	full     bool
	verbose  bool
	debounce time.Duration
}

func watchCmd(a *app) *cobra.Command {
	var f watchFlags
	cmd := &cobra.Command{
		Use:   "watch [UV-ID]",
		Short: "Re-run the readiness gates whenever specs change",
		Long: `Watch the specs tree and re-run the gates for one Value Unit, or every
Value Unit with --all, after each burst of changes. Runs are quick (no
type-check or tests) unless --full is given. Stop with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return a.runWatch(cmd, id, f)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.all, "all", false, "Check every Value Unit")
	fl.IntVarP(&f.gate, "gate", "g", 0, "Run only this gate (1-8)")
	fl.BoolVar(&f.full, "full", false, "Also run the type-check and tests")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "List passing gate items too")
	fl.DurationVar(&f.debounce, "debounce", watch.DefaultDebounce, "Quiet period before a re-run")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, id string, f watchFlags) error {
	switch {
	case id == "" && !f.all:
		return usagef("specify a Value Unit ID or --all")
	case id != "" && f.all:
		return usagef("a Value Unit ID and --all are mutually exclusive")
	case f.gate < 0 || f.gate > 8:
		return usagef("gate %d: %v", f.gate, gate.ErrUnknownGate)
	}
	format, err := a.outputFormat()
	if err != nil {
		return err
	}
	cfg, err := a.config()
	if err != nil {
		return err
	}

	if f.debounce <= 0 {
		return usagef("debounce must be positive")
	}
	w, err := watch.New(cfg.SpecsPath(), watch.Config{Debounce: f.debounce}, a.logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context(), 0)
	defer cancel()

	check := func(ctx context.Context) {
		if err := a.watchRun(ctx, cfg, id, f, format); err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
		}
	}
	check(ctx)
	fmt.Fprintf(a.stdout, "\nWatching %s for changes (Ctrl-C to stop)\n", cfg.SpecsPath())

	return w.Run(ctx, func(ctx context.Context, b watch.Batch) {
		a.logger.Info("Specs changed", slog.Int("files", len(b.Changes)))
		fmt.Fprintf(a.stdout, "\n[%s] changed: %s\n", b.At.Format("15:04:05"), strings.Join(b.Paths(), ", "))
		check(ctx)
	})
}

// watchRun builds a fresh pipeline so every run sees the current tree.
func (a *app) watchRun(ctx context.Context, cfg *config.Config, id string, f watchFlags, format report.Format) error {
	opts := cfg.GateOptions(a.logger)
	opts.Quick = !f.full
	p := gate.NewPipeline(opts, a.logger)

	units, err := uv.NewParser(a.logger).Select(p.Resolver(), id)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return errors.New("no value units found")
	}
	results, err := p.RunAll(ctx, units, f.gate)
	if err != nil {
		return err
	}
	if cfg.History.Enabled {
		a.recordRuns(ctx, results)
	}
	return report.Pipeline(a.stdout, results, format, f.verbose)
}
