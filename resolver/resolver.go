// Package resolver maps artifact IDs such as CMD-023 or BR-PAY-001 to the spec
// files that define them.
package resolver

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/kdd/spec"
)

// Spec tree directories, relative to a specs root (or a domain root).
const (
	DirValueUnits   = "00-requirements/value-units"
	DirObjectives   = "00-requirements/objectives"
	DirReleases     = "00-requirements/releases"
	DirEntities     = "01-domain/entities"
	DirEvents       = "01-domain/events"
	DirRules        = "01-domain/rules"
	DirCommands     = "02-behavior/commands"
	DirQueries      = "02-behavior/queries"
	DirUseCases     = "02-behavior/use-cases"
	DirProcesses    = "02-behavior/processes"
	DirExperience   = "03-experience"
	DirShared       = "03-experience/shared"
	DirRequirements = "04-verification/criteria"
)

// SharedRoot is the folder of cross-cutting specs in a multi-domain tree.
const SharedRoot = "_shared"

// sharedDirs hold shared specs that carry no numbered subtree.
var sharedDirs = []string{"policies", "nfr"}

// prefixDirs is the fixed prefix → directory table.
var prefixDirs = map[string]string{
	"CMD":    DirCommands,
	"QRY":    DirQueries,
	"UC":     DirUseCases,
	"BR":     DirRules,
	"RUL":    DirRules,
	"EVT":    DirEvents,
	"ENT":    DirEntities,
	"REQ":    DirRequirements,
	"PRC":    DirProcesses,
	"PROC":   DirProcesses,
	"UI":     DirExperience,
	"VIEW":   DirExperience,
	"MODAL":  DirExperience,
	"FLOW":   DirExperience,
	"LAYOUT": DirShared,
	"OBJ":    DirObjectives,
	"UV":     DirValueUnits,
	"REL":    DirReleases,
}

var uiPrefixes = map[string]bool{"UI": true, "VIEW": true, "LAYOUT": true, "MODAL": true, "FLOW": true}

var alphaPrefix = regexp.MustCompile(`^([A-Za-z]+)`)

// Prefix returns the upper-cased leading letter run of id, or "".
func Prefix(id string) string {
	m := alphaPrefix.FindStringSubmatch(id)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// DirForPrefix returns the directory mapped to prefix.
func DirForPrefix(prefix string) (string, bool) {
	d, ok := prefixDirs[strings.ToUpper(prefix)]
	return d, ok
}

// IsUIPrefix reports whether prefix belongs to the experience layer.
func IsUIPrefix(prefix string) bool {
	return uiPrefixes[strings.ToUpper(prefix)]
}

// StripFragment drops a trailing #fragment.
func StripFragment(id string) string {
	base, _, _ := strings.Cut(id, "#")
	return base
}

// Resolver looks artifact IDs up on disk. It holds no cache; every call
// reads the filesystem.
type Resolver struct {
	specsDir string
	logger   *slog.Logger
}

// New creates a Resolver rooted at specsDir.
func New(specsDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{specsDir: specsDir, logger: logger}
}

// SpecsDir returns the specs root.
func (r *Resolver) SpecsDir() string { return r.specsDir }

// Domains lists the domain folders of a multi-domain tree, sorted. It is
// empty for the monolithic layout.
func (r *Resolver) Domains() []string {
	entries, err := os.ReadDir(filepath.Join(r.specsDir, "domains"))
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") && !strings.HasPrefix(e.Name(), "_") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// roots returns the directories that carry the numbered subtree: the specs
// root first, then every domain folder.
func (r *Resolver) roots() []string {
	roots := []string{r.specsDir}
	for _, d := range r.Domains() {
		roots = append(roots, filepath.Join(r.specsDir, "domains", d))
	}
	return roots
}

// Resolve returns the spec file for artifactID. A "domain::" qualifier
// restricts the search to that domain. "_shared::" looks in the shared
// folder first and then everywhere else. The boolean is false when nothing
// matches; a missing spec is not an error.
func (r *Resolver) Resolve(artifactID string) (string, bool) {
	id := strings.TrimSpace(StripFragment(artifactID))
	if id == "" {
		return "", false
	}
	if d, target, ok := strings.Cut(id, "::"); ok {
		id = strings.TrimSpace(target)
		if d != SharedRoot {
			return r.resolveIn(filepath.Join(r.specsDir, "domains", d), id)
		}
		if path, ok := r.resolveShared(id); ok {
			return path, true
		}
	}
	for _, root := range r.roots() {
		if path, ok := r.resolveIn(root, id); ok {
			return path, true
		}
	}
	r.logger.Debug("Spec not resolved", slog.String("id", artifactID))
	return "", false
}

// resolveShared searches the numbered subtree of the shared folder, then its
// policies and nfr folders by file name prefix.
func (r *Resolver) resolveShared(id string) (string, bool) {
	root := filepath.Join(r.specsDir, SharedRoot)
	if path, ok := r.resolveIn(root, id); ok {
		return path, true
	}
	if id == "" || strings.ContainsAny(id, "*?[]{}\\/") {
		return "", false
	}
	for _, d := range sharedDirs {
		if path, ok := globFirst(filepath.Join(root, d), "**/"+id+"*.md"); ok {
			return path, true
		}
	}
	return "", false
}

func (r *Resolver) resolveIn(root, id string) (string, bool) {
	if strings.ContainsAny(id, "*?[]{}\\/") {
		return "", false
	}
	prefix := Prefix(id)
	dir, known := prefixDirs[prefix]
	if !known {
		return entityByName(filepath.Join(root, DirEntities), id)
	}
	if path, ok := globFirst(filepath.Join(root, dir), id+"*.md"); ok {
		return path, true
	}
	if uiPrefixes[prefix] {
		return globFirst(filepath.Join(root, DirExperience), "**/"+id+"*.md")
	}
	return "", false
}

// ResolveAll resolves every id; unresolved IDs map to "".
func (r *Resolver) ResolveAll(ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		path, _ := r.Resolve(id)
		out[id] = path
	}
	return out
}

// entityByName returns the first entity file, in name order, whose
// normalized basename contains the normalized name.
func entityByName(dir, name string) (string, bool) {
	want := spec.Normalize(name)
	if want == "" {
		return "", false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".md")
		if strings.Contains(spec.Normalize(base), want) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}

// globFirst returns the first match of pattern under dir in sorted order.
func globFirst(dir, pattern string) (string, bool) {
	matches := glob(dir, pattern)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

func glob(dir, pattern string) []string {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Join(dir, filepath.FromSlash(m)))
	}
	return out
}

// FindAll lists files matching pattern inside dir of every root, sorted.
func (r *Resolver) FindAll(dir, pattern string) []string {
	var out []string
	for _, root := range r.roots() {
		out = append(out, glob(filepath.Join(root, dir), pattern)...)
	}
	sort.Strings(out)
	return out
}

// CommandSpecs lists every CMD-*.md file.
func (r *Resolver) CommandSpecs() []string { return r.FindAll(DirCommands, "CMD-*.md") }

// QuerySpecs lists every QRY-*.md file.
func (r *Resolver) QuerySpecs() []string { return r.FindAll(DirQueries, "QRY-*.md") }

// RuleSpecs lists every BR-*.md and RUL-*.md file.
func (r *Resolver) RuleSpecs() []string {
	out := append(r.FindAll(DirRules, "BR-*.md"), r.FindAll(DirRules, "RUL-*.md")...)
	sort.Strings(out)
	return out
}

// RequirementSpecs lists every REQ-*.md file.
func (r *Resolver) RequirementSpecs() []string {
	return r.FindAll(DirRequirements, "REQ-*.md")
}

// ValueUnits lists every UV-*.md file.
func (r *Resolver) ValueUnits() []string { return r.FindAll(DirValueUnits, "UV-*.md") }
