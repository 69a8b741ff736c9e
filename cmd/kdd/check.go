package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/kdd/gate"
	"github.com/c360studio/kdd/report"
	"github.com/c360studio/kdd/uv"
)

type checkFlags struct {
	all           bool
	gate          int
	quick         bool
	skipTypecheck bool
	verbose       bool
	record        bool
	metricsFile   string
	timeout       time.Duration
}

func checkCmd(a *app) *cobra.Command {
	var f checkFlags
	cmd := &cobra.Command{
		Use:   "check [UV-ID]",
		Short: "Run the readiness gates for a Value Unit",
		Long: `Run the eight readiness gates (capture, domain, behavior, experience,
verification, physical, code, evidence) for one Value Unit or, with --all,
for every Value Unit in name order.

Exit status is 0 when every result passes or warns, 1 when any gate fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return a.runCheck(cmd, id, f)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.all, "all", false, "Check every Value Unit")
	fl.IntVarP(&f.gate, "gate", "g", 0, "Run only this gate (1-8)")
	fl.BoolVarP(&f.quick, "quick", "q", false, "Skip the type-check and test execution")
	fl.BoolVar(&f.skipTypecheck, "skip-typecheck", false, "Skip the type-check only")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "List passing gate items too")
	fl.BoolVar(&f.record, "record", false, "Record runs in the history database")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	fl.DurationVar(&f.timeout, "timeout", 0, "Bound each external command (overrides pipeline.timeout)")
	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, id string, f checkFlags) error {
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

	opts := cfg.GateOptions(a.logger)
	opts.Quick = f.quick
	opts.SkipTypecheck = f.skipTypecheck
	if f.timeout > 0 {
		opts.Timeout = f.timeout
	}
	p := gate.NewPipeline(opts, a.logger)

	units, err := uv.NewParser(a.logger).Select(p.Resolver(), id)
	if errors.Is(err, uv.ErrNotFound) {
		return usageError{err: err}
	}
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return usagef("no value units found under %s", cfg.SpecsPath())
	}

	ctx, cancel := signalContext(cmd.Context(), 0)
	defer cancel()
	results, err := p.RunAll(ctx, units, f.gate)
	if err != nil {
		return err
	}

	if f.record || cfg.History.Enabled {
		a.recordRuns(cmd.Context(), results)
	}
	metricsFile := f.metricsFile
	if metricsFile == "" {
		metricsFile = cfg.Metrics.Textfile
	}
	if metricsFile != "" {
		if err := p.Metrics().WriteTextfile(cfg.Path(metricsFile)); err != nil {
			a.logger.Warn("Failed to write metrics", slog.String("error", err.Error()))
		}
	}

	if err := report.Pipeline(a.stdout, results, format, f.verbose); err != nil {
		return err
	}
	if format == report.FormatGitHub {
		if path := os.Getenv("GITHUB_STEP_SUMMARY"); path != "" {
			if err := report.WriteStepSummary(path, results); err != nil {
				a.logger.Warn("Failed to write step summary", slog.String("error", err.Error()))
			}
		}
	}
	return failIf(report.ExitCode(results) != 0)
}

// recordRuns stores results in the history database. A failure is logged
// and never changes the exit status.
func (a *app) recordRuns(ctx context.Context, results []*gate.PipelineResult) {
	store, err := a.openHistory(a.cfg)
	if err != nil {
		a.logger.Warn("Failed to open history", slog.String("error", err.Error()))
		return
	}
	defer store.Close()
	for _, r := range results {
		if err := store.Record(ctx, r); err != nil {
			a.logger.Warn("Failed to record run", slog.String("run_id", r.RunID), slog.String("error", err.Error()))
		}
	}
}
