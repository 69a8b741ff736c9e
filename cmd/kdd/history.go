package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/kdd/history"
	"github.com/c360studio/kdd/mcpserver"
	"github.com/c360studio/kdd/report"
)

func historyCmd(a *app) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history [UV-ID]",
		Short: "List recorded pipeline runs",
		Long: `List recorded check runs, newest first. With a Value Unit ID only its runs
are listed; with --run the gate results of one run are shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			if limit < 0 {
				return usagef("limit must not be negative")
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			store, err := a.openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if runID != "" {
				run, err := store.Get(cmd.Context(), runID)
				if errors.Is(err, history.ErrNotFound) {
					return usagef("run %s: %v", runID, err)
				}
				if err != nil {
					return err
				}
				return report.History(a.stdout, []history.Run{*run}, format)
			}

			uvID := ""
			if len(args) == 1 {
				uvID = args[0]
			}
			runs, err := store.List(cmd.Context(), uvID, limit)
			if err != nil {
				return err
			}
			return report.History(a.stdout, runs, format)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "Maximum number of runs")
	cmd.Flags().StringVar(&runID, "run", "", "Show the gate results of one run")
	return cmd
}

func mcpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the engine as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			deps := mcpserver.Deps{Config: cfg, Logger: a.logger}
			if cfg.History.Enabled {
				store, err := a.openHistory(cfg)
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer store.Close()
				deps.History = store
			}
			return mcpserver.Serve(deps, Version)
		},
	}
}
