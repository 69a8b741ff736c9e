package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/c360studio/kdd/codemap"
	"github.com/c360studio/kdd/coverage"
	"github.com/c360studio/kdd/report"
	"github.com/c360studio/kdd/resolver"
	"github.com/c360studio/kdd/uv"
)

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [UV-ID]",
		Short: "Show what exists for the artifacts of each Value Unit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}

			res := resolver.New(cfg.SpecsPath(), a.logger)
			units, err := uv.NewParser(a.logger).Select(res, id)
			if errors.Is(err, uv.ErrNotFound) {
				return usageError{err: err}
			}
			if err != nil {
				return err
			}

			mapper := codemap.NewMapper(cfg.ProjectRoot, cfg.CodeOptions(a.logger))
			statuses := make([]*coverage.UnitStatus, len(units))
			for i, v := range units {
				statuses[i] = coverage.Status(v, res, mapper)
			}
			return report.Status(a.stdout, statuses, format)
		},
	}
}

func coverageCmd(a *app) *cobra.Command {
	var (
		reqs      bool
		threshold int
	)
	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Report which business rules are referenced by command specs",
		Long: `Report which BR/RUL rule specs are linked from at least one CMD spec.
Exit status is 1 when coverage is below the threshold.

With --reqs, report instead which requirement criteria have a matching test
file under code.req_tests_dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			res := resolver.New(cfg.SpecsPath(), a.logger)

			if reqs {
				r, err := coverage.Requirements(res, cfg.Path(cfg.Code.ReqTestsDir))
				if err != nil {
					return err
				}
				if err := report.RequirementCoverage(a.stdout, r, format); err != nil {
					return err
				}
				return failIf(!r.Pass())
			}

			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.Coverage.Threshold
			}
			if threshold < 0 || threshold > 100 {
				return usagef("threshold must be between 0 and 100")
			}
			r, err := coverage.Rules(res, threshold)
			if err != nil {
				return err
			}
			if err := report.RuleCoverage(a.stdout, r, format); err != nil {
				return err
			}
			return failIf(!r.Pass)
		},
	}
	cmd.Flags().BoolVar(&reqs, "reqs", false, "Report requirement test coverage instead")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Minimum rule coverage percent (overrides coverage.threshold)")
	return cmd
}

func mappingCmd(a *app) *cobra.Command {
	var missing bool
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Map CMD/QRY specs to their use-case code and tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			res := resolver.New(cfg.SpecsPath(), a.logger)
			mapper := codemap.NewMapper(cfg.ProjectRoot, cfg.CodeOptions(a.logger))
			m := report.NewMappingReport(mapper.Report(res), missing)
			if err := report.Mapping(a.stdout, m, format); err != nil {
				return err
			}
			return failIf(!m.Pass())
		},
	}
	cmd.Flags().BoolVar(&missing, "missing", false, "List only specs without code")
	return cmd
}
