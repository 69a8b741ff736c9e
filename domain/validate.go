package domain

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/c360studio/kdd/spec"
)

// Level is the severity of an Issue.
type Level string

// Severities.
const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Issue is one domain validation finding.
type Issue struct {
	Level      Level  `json:"level"`
	Rule       string `json:"rule"`
	Message    string `json:"message"`
	Line       int    `json:"line,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Context is the loaded domain state shared by per-file checks.
type Context struct {
	Layout   Layout
	Domains  *Set
	SpecsDir string
}

// ValidateStructure loads every domain and checks manifests, dependencies
// and exports.
func ValidateStructure(specsDir string, logger *slog.Logger) ([]Issue, *Context) {
	layout := Detect(specsDir)
	ctx := &Context{
		Layout:   layout,
		Domains:  LoadAll(layout.DomainsPath, logger),
		SpecsDir: specsDir,
	}
	return ctx.StructureIssues(), ctx
}

// StructureIssues checks manifests, the dependency graph and exports.
func (c *Context) StructureIssues() []Issue {
	var issues []Issue
	c.Domains.Each(func(d *Domain) {
		if d.ParseError != "" {
			issues = append(issues, Issue{
				Level:   LevelError,
				Rule:    "domain/manifest-error",
				Message: fmt.Sprintf("Domain '%s': %s", d.ID, d.ParseError),
			})
		}
	})

	deps := ValidateDependencies(c.Domains)
	for _, e := range deps.Errors {
		issues = append(issues, Issue{Level: LevelError, Rule: "domain/dependency-error", Message: e})
	}
	for _, w := range deps.Warnings {
		issues = append(issues, Issue{Level: LevelWarning, Rule: "domain/dependency-warning", Message: w})
	}

	c.Domains.Each(func(d *Domain) {
		for _, m := range ValidateExports(d) {
			issues = append(issues, Issue{
				Level:      LevelError,
				Rule:       "domain/missing-export",
				Message:    fmt.Sprintf("Domain '%s' exports %s '%s' but it doesn't exist", d.ID, m.Type, m.Artifact),
				Suggestion: "Create the file or remove from exports in " + ManifestFile,
			})
		}
	})
	return issues
}

// Reference is a parsed wiki-link target.
type Reference struct {
	Domain   string
	Target   string
	Explicit bool
	Raw      string
}

var qualifiedRef = regexp.MustCompile(`(?i)^([a-z_][a-z0-9_-]*)::(.+)$`)

// ParseReference splits "domain::Target". Unqualified targets have an
// empty Domain.
func ParseReference(target string) Reference {
	if m := qualifiedRef.FindStringSubmatch(target); m != nil {
		return Reference{Domain: m[1], Target: m[2], Explicit: true, Raw: target}
	}
	return Reference{Target: target, Raw: target}
}

var domainPathPrefix = regexp.MustCompile(`^domains/([^/]+)/`)

// FromPath returns the domain a spec file belongs to, Shared for files
// under _shared/, or "" for the monolithic layout.
func FromPath(path, specsDir string) string {
	rel, err := filepath.Rel(specsDir, path)
	if err != nil {
		return ""
	}
	rel = filepath.ToSlash(rel)
	if m := domainPathPrefix.FindStringSubmatch(rel); m != nil {
		return m[1]
	}
	if strings.HasPrefix(rel, Shared+"/") {
		return Shared
	}
	return ""
}

// ReferenceIssues checks every explicit domain::target link in doc against
// the domain graph.
func (c *Context) ReferenceIssues(doc *spec.Document) []Issue {
	fileDomain := FromPath(doc.Path, c.SpecsDir)
	if fileDomain == "" {
		return nil
	}
	var manifest *Manifest
	if d, ok := c.Domains.Get(fileDomain); ok {
		manifest = d.Manifest
	}

	var issues []Issue
	for _, link := range doc.Links {
		ref := ParseReference(link.Target)
		if !ref.Explicit {
			continue
		}
		if ref.Domain != Shared && !c.Domains.Has(ref.Domain) {
			issues = append(issues, Issue{
				Level:      LevelError,
				Rule:       "domain/invalid-reference",
				Message:    fmt.Sprintf("Reference to non-existent domain '%s' in [[%s]]", ref.Domain, link.Target),
				Line:       link.Line,
				Suggestion: "Available domains: " + strings.Join(c.Domains.IDs(), ", "),
			})
			continue
		}
		if manifest == nil || ref.Domain == fileDomain || ref.Domain == Shared {
			continue
		}

		var dep *Dependency
		for i := range manifest.Dependencies {
			if manifest.Dependencies[i].Domain == ref.Domain {
				dep = &manifest.Dependencies[i]
				break
			}
		}
		if dep == nil {
			issues = append(issues, Issue{
				Level:      LevelWarning,
				Rule:       "domain/undeclared-dependency",
				Message:    fmt.Sprintf("Reference to '%s::%s' but domain '%s' is not declared in dependencies", ref.Domain, ref.Target, ref.Domain),
				Line:       link.Line,
				Suggestion: fmt.Sprintf("Add '%s' to dependencies in %s", ref.Domain, ManifestFile),
			})
		} else if dep.Imports != nil && !dep.Imports.Contains(ref.Target) {
			issues = append(issues, Issue{
				Level:      LevelInfo,
				Rule:       "domain/undeclared-import",
				Message:    fmt.Sprintf("Using '%s' from domain '%s' but it's not in the imports list", ref.Target, ref.Domain),
				Line:       link.Line,
				Suggestion: fmt.Sprintf("Consider adding '%s' to imports.%s in %s", ref.Target, importCategory(ref.Target), ManifestFile),
			})
		}

		if target, ok := c.Domains.Get(ref.Domain); ok && target.Manifest != nil {
			exports := target.Manifest.Exports.All()
			if len(exports) > 0 && !target.Manifest.Exports.Contains(ref.Target) {
				issues = append(issues, Issue{
					Level:      LevelWarning,
					Rule:       "domain/not-exported",
					Message:    fmt.Sprintf("'%s' is not in the exports of domain '%s'", ref.Target, ref.Domain),
					Line:       link.Line,
					Suggestion: fmt.Sprintf("Either add '%s' to exports in %s/%s or use a different artifact", ref.Target, ref.Domain, ManifestFile),
				})
			}
		}
	}
	return issues
}

func importCategory(artifact string) string {
	switch {
	case strings.HasPrefix(artifact, "EVT-"):
		return "events"
	case strings.HasPrefix(artifact, "CMD-"):
		return "commands"
	case strings.HasPrefix(artifact, "QRY-"):
		return "queries"
	default:
		return "entities"
	}
}

// CompletenessIssues reports thin or deprecated manifests for one domain.
func (c *Context) CompletenessIssues(domainID string) []Issue {
	d, ok := c.Domains.Get(domainID)
	if !ok {
		return []Issue{{Level: LevelError, Rule: "domain/not-found", Message: fmt.Sprintf("Domain '%s' not found", domainID)}}
	}
	if d.Manifest == nil {
		return []Issue{{
			Level:      LevelError,
			Rule:       "domain/no-manifest",
			Message:    fmt.Sprintf("Domain '%s' is missing %s", domainID, ManifestFile),
			Suggestion: fmt.Sprintf("Create %s/%s", domainID, ManifestFile),
		}}
	}

	var issues []Issue
	if len(strings.TrimSpace(d.Manifest.Domain.Description)) < 10 {
		issues = append(issues, Issue{
			Level:      LevelWarning,
			Rule:       "domain/incomplete-description",
			Message:    fmt.Sprintf("Domain '%s' has a very short or missing description", domainID),
			Suggestion: "Add a meaningful description to the domain manifest",
		})
	}
	if d.Manifest.Domain.Status == StatusDeprecated {
		issues = append(issues, Issue{
			Level:      LevelInfo,
			Rule:       "domain/deprecated",
			Message:    fmt.Sprintf("Domain '%s' is marked as deprecated", domainID),
			Suggestion: "Consider adding migration notes or a replacement domain reference",
		})
	}
	return issues
}

// Summary renders the domain map as markdown.
func (c *Context) Summary() string {
	var b strings.Builder
	b.WriteString("# Domain Map Summary\n\n")

	var statusOrder []string
	byStatus := map[string][]string{}
	c.Domains.Each(func(d *Domain) {
		status := "unknown"
		if d.Manifest != nil {
			status = string(d.Manifest.Domain.Status)
		}
		if _, seen := byStatus[status]; !seen {
			statusOrder = append(statusOrder, status)
		}
		byStatus[status] = append(byStatus[status], d.ID)
	})

	b.WriteString("## Domains by Status\n")
	for _, s := range statusOrder {
		fmt.Fprintf(&b, "- **%s**: %s\n", s, strings.Join(byStatus[s], ", "))
	}
	b.WriteString("\n## Dependencies\n")
	c.Domains.Each(func(d *Domain) {
		if d.Manifest == nil || len(d.Manifest.Dependencies) == 0 {
			fmt.Fprintf(&b, "- %s: (no dependencies)\n", d.ID)
			return
		}
		deps := make([]string, len(d.Manifest.Dependencies))
		for i, dep := range d.Manifest.Dependencies {
			deps[i] = fmt.Sprintf("%s (%s)", dep.Domain, dep.Type)
		}
		fmt.Fprintf(&b, "- %s → %s\n", d.ID, strings.Join(deps, ", "))
	})
	return b.String()
}
