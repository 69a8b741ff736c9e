package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/kdd/domain"
	"github.com/c360studio/kdd/index"
	"github.com/c360studio/kdd/resolver"
	"github.com/c360studio/kdd/spec"
)

// Level selects which checks run.
type Level string

// Validation levels.
const (
	LevelFrontmatter Level = "frontmatter"
	LevelStructure   Level = "structure"
	LevelSemantics   Level = "semantics"
	LevelDomain      Level = "domain"
	LevelAll         Level = "all"
)

// ParseLevel validates a level name; "" means all.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LevelAll, nil
	case LevelFrontmatter, LevelStructure, LevelSemantics, LevelDomain, LevelAll:
		return l, nil
	default:
		return "", fmt.Errorf("unknown validation level %q", s)
	}
}

func (l Level) includes(other Level) bool { return l == LevelAll || l == other }

// ErrNoFiles is returned when no spec file matches the requested paths.
var ErrNoFiles = errors.New("no spec files found")

// DefaultIgnorePaths skips templates, generated files and tool folders.
var DefaultIgnorePaths = []string{"**/node_modules/**", "**/.obsidian/**", "**/TEMPLATE*.md", "**/_*.md"}

// Options configure a validation run.
type Options struct {
	SpecsDir string
	// Paths limits the run to these files or directories. Empty means the
	// whole specs tree.
	Paths []string
	Level Level
	// Domain limits the file scan to one domain of a multi-domain tree.
	Domain string
	Fix    bool

	// IgnoreRules are doublestar patterns matched against rule names, e.g.
	// "structure/*".
	IgnoreRules []string
	// IgnorePaths are doublestar patterns matched against paths relative to
	// SpecsDir.
	IgnorePaths []string
	MinLevel    Severity

	CustomEntities []string
	IgnoreTerms    []string

	Logger *slog.Logger
}

// Validator lints spec files.
type Validator struct {
	opts      Options
	schemas   map[spec.DocType]Schema
	templates map[spec.DocType]Template
	logger    *slog.Logger
}

// New creates a validator with the default schemas and templates.
func New(opts Options) *Validator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Level == "" {
		opts.Level = LevelAll
	}
	if opts.MinLevel == "" {
		opts.MinLevel = SeverityInfo
	}
	return &Validator{
		opts:      opts,
		schemas:   DefaultSchemas(),
		templates: DefaultTemplates(),
		logger:    logger,
	}
}

// Run validates every selected file. Parse failures are reported as results;
// the returned error covers only an empty selection or cancellation.
func (v *Validator) Run(ctx context.Context) (*Report, error) {
	files, err := v.files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	report := &Report{}
	var domains *domain.Context
	if v.opts.Level.includes(LevelDomain) {
		issues, dctx := domain.ValidateStructure(v.opts.SpecsDir, v.logger)
		if dctx.Layout.Enabled {
			domains = dctx
			results := make([]Result, 0, len(issues))
			for _, i := range issues {
				results = append(results, fromIssue(DomainsFile, i))
			}
			for _, id := range dctx.Domains.IDs() {
				for _, i := range dctx.CompletenessIssues(id) {
					results = append(results, fromIssue(DomainsFile, i))
				}
			}
			report.add(DomainsFile, v.filter(DomainsFile, results))
		}
	}

	var sem *semantics
	if v.opts.Level.includes(LevelSemantics) {
		idx := index.NewBuilder(v.logger).
			WithCustomEntities(v.opts.CustomEntities...).
			WithIgnoreTerms(v.opts.IgnoreTerms...).
			Build(v.opts.SpecsDir)
		sem = newSemantics(idx, resolver.New(v.opts.SpecsDir, v.logger), v.opts.SpecsDir, v.opts.Fix)
		v.logger.Debug("Entity index built", slog.Int("entries", idx.Len()))
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("validate specs: %w", err)
		}
		rel := v.rel(path)
		results := v.checkFile(path, sem, domains)
		report.FilesChecked++
		for _, r := range results {
			if r.Rule == "semantics/auto-fixed" {
				report.Fixed++
			}
		}
		report.add(rel, v.filter(rel, results))
	}
	report.sort()

	v.logger.Info("Validation complete",
		slog.Int("files", report.FilesChecked),
		slog.Int("errors", report.Errors()),
		slog.Int("warnings", report.Warnings()))
	return report, nil
}

func (v *Validator) checkFile(path string, sem *semantics, domains *domain.Context) []Result {
	doc, err := spec.Load(path)
	if err != nil {
		v.logger.Debug("Spec parse failed", slog.String("path", path), slog.String("error", err.Error()))
		return []Result{{Level: SeverityError, Rule: "parse", Message: fmt.Sprintf("Could not parse file: %v", err)}}
	}

	var results []Result
	if v.opts.Level.includes(LevelFrontmatter) {
		results = append(results, checkFrontmatter(doc, v.schemas)...)
	}
	if v.opts.Level.includes(LevelStructure) {
		results = append(results, checkStructure(doc, v.templates)...)
		results = append(results, checkReadiness(doc)...)
	}
	if sem != nil {
		results = append(results, sem.check(doc)...)
	}
	if domains != nil {
		for _, i := range domains.ReferenceIssues(doc) {
			results = append(results, fromIssue("", i))
		}
	}
	return results
}

// filter applies the minimum level and the ignore-rule patterns.
func (v *Validator) filter(file string, results []Result) []Result {
	out := results[:0]
	for _, r := range results {
		if !r.Level.AtLeast(v.opts.MinLevel) || matchAny(v.opts.IgnoreRules, r.Rule) {
			continue
		}
		r.File = file
		out = append(out, r)
	}
	return out
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (v *Validator) rel(path string) string {
	rel, err := filepath.Rel(v.opts.SpecsDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// files lists the markdown files to validate, sorted.
func (v *Validator) files() ([]string, error) {
	roots := v.opts.Paths
	if len(roots) == 0 {
		root := v.opts.SpecsDir
		if v.opts.Domain != "" {
			root = filepath.Join(v.opts.SpecsDir, "domains", v.opts.Domain)
		}
		roots = []string{root}
	}

	seen := map[string]bool{}
	var files []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		var found []string
		if info.IsDir() {
			matches, err := doublestar.Glob(os.DirFS(root), "**/*.md")
			if err != nil {
				return nil, fmt.Errorf("glob specs: %w", err)
			}
			for _, m := range matches {
				found = append(found, filepath.Join(root, filepath.FromSlash(m)))
			}
		} else {
			found = []string{root}
		}
		for _, f := range found {
			if seen[f] || v.ignored(f) {
				continue
			}
			seen[f] = true
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (v *Validator) ignored(path string) bool {
	patterns := v.opts.IgnorePaths
	if patterns == nil {
		patterns = DefaultIgnorePaths
	}
	return matchAny(patterns, v.rel(path))
}
