package main

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/kdd/domain"
	"github.com/c360studio/kdd/index"
)

func indexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Generate _index.json and _index.md in the specs root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			idx := index.NewBuilder(a.logger).
				WithCustomEntities(cfg.Validator.CustomEntities...).
				WithIgnoreTerms(cfg.Validator.IgnoreTerms...).
				Build(cfg.SpecsPath())
			if err := idx.WriteFiles(time.Now()); err != nil {
				return err
			}
			a.logger.Info("Index written", slog.Int("entries", idx.Len()))

			byType := idx.ByType()
			types := make([]string, 0, len(byType))
			for t := range byType {
				types = append(types, string(t))
			}
			sort.Strings(types)

			fmt.Fprintf(a.stdout, "Indexed %d entities in %s\n", idx.Len(), cfg.SpecsPath())
			for _, t := range types {
				fmt.Fprintf(a.stdout, "  %-12s %d\n", t, len(byType[index.Type(t)]))
			}
			return nil
		},
	}
}

func domainsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "Validate domain manifests, dependencies and exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			issues, dctx := domain.ValidateStructure(cfg.SpecsPath(), a.logger)
			if !dctx.Layout.Enabled {
				fmt.Fprintln(a.stdout, "Single-domain layout: no domains/ directory to validate")
				return nil
			}
			for _, id := range dctx.Domains.IDs() {
				issues = append(issues, dctx.CompletenessIssues(id)...)
			}

			fmt.Fprint(a.stdout, dctx.Summary())
			failed := false
			if len(issues) > 0 {
				fmt.Fprint(a.stdout, "\n## Issues\n")
			}
			for _, i := range issues {
				fmt.Fprintf(a.stdout, "- [%s] %s: %s\n", i.Level, i.Rule, i.Message)
				if i.Level == domain.LevelError {
					failed = true
				}
			}
			return failIf(failed)
		},
	}
}
