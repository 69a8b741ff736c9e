package main

import (
	"errors"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/c360studio/kdd/config"
	"github.com/c360studio/kdd/report"
	"github.com/c360studio/kdd/validator"
)

type validateFlags struct {
	level            string
	fix              bool
	domain           string
	verbose          bool
	minLevel         string
	warningsAsErrors bool
}

func validateCmd(a *app) *cobra.Command {
	var f validateFlags
	cmd := &cobra.Command{
		Use:   "validate [paths...]",
		Short: "Lint spec files",
		Long: `Lint spec files at four levels: frontmatter, structure, semantics and
domain. Without paths the whole specs tree is checked.

Exit status is 1 when any error is reported, or any warning with
--warnings-as-errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, args, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.level, "level", "l", "all", "Checks to run (frontmatter, structure, semantics, domain, all)")
	fl.BoolVar(&f.fix, "fix", false, "Rewrite unambiguous entity mentions as wiki-links")
	fl.StringVarP(&f.domain, "domain", "d", "", "Only check files of this domain")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Include suggestions in console output")
	fl.StringVar(&f.minLevel, "min-level", "", "Lowest severity to report (overrides validator.min_level)")
	fl.BoolVar(&f.warningsAsErrors, "warnings-as-errors", false, "Fail on warnings")
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, args []string, f validateFlags) error {
	format, err := a.outputFormat()
	if err != nil {
		return err
	}
	level, err := validator.ParseLevel(f.level)
	if err != nil {
		return usageError{err: err}
	}
	cfg, err := a.config()
	if err != nil {
		return err
	}

	opts, err := cfg.ValidatorOptions(a.logger)
	if err != nil {
		return usagef("validator.min_level: %v", err)
	}
	if f.minLevel != "" {
		if opts.MinLevel, err = validator.ParseSeverity(f.minLevel); err != nil {
			return usageError{err: err}
		}
	}
	opts.Level = level
	opts.Fix = f.fix
	opts.Domain = f.domain
	for _, p := range args {
		if !filepath.IsAbs(p) && a.workDir != "" {
			p = filepath.Join(a.workDir, p)
		}
		opts.Paths = append(opts.Paths, p)
	}

	ctx, cancel := signalContext(cmd.Context(), 0)
	defer cancel()
	r, err := validator.New(opts).Run(ctx)
	switch {
	case errors.Is(err, validator.ErrNoFiles), errors.Is(err, fs.ErrNotExist):
		return usageError{err: err}
	case err != nil:
		return err
	}

	if format == report.FormatGitHub {
		annotateFromRoot(r, cfg)
	}
	if err := report.Validation(a.stdout, r, format, f.verbose); err != nil {
		return err
	}
	return failIf(r.Failed(f.warningsAsErrors || cfg.Validator.WarningsAsErrors))
}

// annotateFromRoot rewrites specs-relative file names so workflow
// annotations resolve from the repository root.
func annotateFromRoot(r *validator.Report, cfg *config.Config) {
	prefix, err := filepath.Rel(cfg.ProjectRoot, cfg.SpecsPath())
	if err != nil || prefix == "." {
		return
	}
	prefix = filepath.ToSlash(prefix)
	for i := range r.Files {
		file := r.Files[i].File
		if file == validator.DomainsFile || filepath.IsAbs(file) {
			continue
		}
		file = path.Join(prefix, file)
		r.Files[i].File = file
		for j := range r.Files[i].Results {
			r.Files[i].Results[j].File = file
		}
	}
}
