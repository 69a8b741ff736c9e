package domain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/kdd/spec"
)

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func manifest(id string, deps ...Dependency) *Domain {
	return &Domain{
		ID: id,
		Manifest: &Manifest{
			Domain:       Meta{ID: id, Name: id, Description: "A domain for tests", Status: StatusActive},
			Dependencies: deps,
		},
	}
}

func TestValidateDependenciesCycle(t *testing.T) {
	set := NewSet(
		manifest("a", Dependency{Domain: "b", Type: DependencyRequired}),
		manifest("b", Dependency{Domain: "c", Type: DependencyRequired}),
		manifest("c", Dependency{Domain: "a", Type: DependencyOptional}),
	)

	res := ValidateDependencies(set)

	assert.False(t, res.Valid)
	require.Len(t, res.Cycles, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, res.Cycles[0])
	assert.Equal(t, []string{"Circular dependency detected: a → b → c → a"}, res.Errors)
}

func TestValidateDependenciesCore(t *testing.T) {
	set := NewSet(
		manifest("core", Dependency{Domain: "billing", Type: DependencyOptional}),
		manifest("billing", Dependency{Domain: "core", Type: DependencyRequired}),
	)

	res := ValidateDependencies(set)

	assert.Contains(t, res.Errors, "Domain 'core' should not have any dependencies.")
}

func TestValidateDependenciesMissingTargets(t *testing.T) {
	set := NewSet(
		manifest("billing",
			Dependency{Domain: "ghost", Type: DependencyRequired},
			Dependency{Domain: "phantom", Type: DependencyEventOnly},
			Dependency{Domain: Shared, Type: DependencyRequired},
		),
	)

	res := ValidateDependencies(set)

	assert.Equal(t, []string{"Domain 'billing' requires non-existent domain 'ghost'"}, res.Errors)
	assert.Equal(t, []string{"Domain 'billing' depends on non-existent domain 'phantom'"}, res.Warnings)
	assert.Empty(t, res.Cycles)
}

func TestValidateDependenciesValid(t *testing.T) {
	set := NewSet(
		manifest("core"),
		manifest("billing", Dependency{Domain: "core", Type: DependencyRequired}),
	)
	res := ValidateDependencies(set)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

const billingManifest = `domain:
  id: billing
  name: Billing
  description: Invoices and payments
  status: active
exports:
  entities: [Invoice]
  commands: [CMD-100]
`

func TestLoad(t *testing.T) {
	root := t.TempDir()
	write(t, root, "domains/billing/_manifest.yaml", billingManifest)
	write(t, root, "domains/wrong/_manifest.yaml", strings.Replace(billingManifest, "id: billing", "id: other", 1))
	write(t, root, "domains/bad/_manifest.yaml", "domain:\n  id: Bad_ID\n  name: Bad\n  description: x\n  status: retired\n")
	write(t, root, "domains/broken/_manifest.yaml", "domain: [\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "domains/empty"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "domains/_archive"), 0755))

	layout := Detect(root)
	assert.True(t, layout.Enabled)
	assert.Equal(t, []string{"bad", "billing", "broken", "empty", "wrong"}, layout.Domains)

	set := LoadAll(layout.DomainsPath, nil)
	require.Equal(t, 5, set.Len())

	billing, _ := set.Get("billing")
	require.NotNil(t, billing.Manifest)
	assert.Empty(t, billing.ParseError)
	assert.Equal(t, []string{"Invoice"}, billing.Manifest.Exports.Entities)

	wrong, _ := set.Get("wrong")
	assert.NotNil(t, wrong.Manifest)
	assert.Equal(t, "Domain ID 'other' does not match folder name 'wrong'", wrong.ParseError)

	bad, _ := set.Get("bad")
	assert.Nil(t, bad.Manifest)
	assert.Contains(t, bad.ParseError, "Invalid manifest schema: domain.id: Domain ID must be kebab-case")
	assert.Contains(t, bad.ParseError, "domain.status: Invalid enum value")

	broken, _ := set.Get("broken")
	assert.True(t, strings.HasPrefix(broken.ParseError, "Failed to parse manifest: "))

	empty, _ := set.Get("empty")
	assert.Equal(t, "Missing _manifest.yaml in domain 'empty'", empty.ParseError)
}

func TestReadManifestMissing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), ManifestFile))
	assert.ErrorIs(t, err, ErrManifestMissing)
}

func TestDetectMonolithic(t *testing.T) {
	layout := Detect(t.TempDir())
	assert.False(t, layout.Enabled)
	assert.Empty(t, layout.Domains)
}

func TestValidateExports(t *testing.T) {
	root := t.TempDir()
	write(t, root, "domains/billing/_manifest.yaml", billingManifest+"  events: [EVT-Invoice-Issued]\n  queries: [QRY-200]\n")
	write(t, root, "domains/billing/01-domain/entities/Invoice.md", "# Invoice\n")
	write(t, root, "domains/billing/02-behavior/commands/CMD-100-IssueInvoice.md", "# CMD-100: IssueInvoice\n")

	d := Load(filepath.Join(root, "domains/billing"))
	require.NotNil(t, d.Manifest, d.ParseError)

	missing := ValidateExports(d)
	assert.Equal(t, []MissingExport{
		{Domain: "billing", Artifact: "EVT-Invoice-Issued", Type: "event"},
		{Domain: "billing", Artifact: "QRY-200", Type: "query"},
	}, missing)

	issues, _ := ValidateStructure(root, nil)
	var rules []string
	for _, is := range issues {
		rules = append(rules, is.Rule)
		if is.Rule == "domain/missing-export" {
			assert.Equal(t, LevelError, is.Level)
		}
	}
	assert.Contains(t, rules, "domain/missing-export")
	assert.Contains(t, issues, Issue{
		Level:      LevelError,
		Rule:       "domain/missing-export",
		Message:    "Domain 'billing' exports query 'QRY-200' but it doesn't exist",
		Suggestion: "Create the file or remove from exports in _manifest.yaml",
	})
}

func TestParseReference(t *testing.T) {
	ref := ParseReference("billing::Invoice")
	assert.Equal(t, Reference{Domain: "billing", Target: "Invoice", Explicit: true, Raw: "billing::Invoice"}, ref)

	ref = ParseReference("_shared::XP-001")
	assert.Equal(t, Shared, ref.Domain)

	ref = ParseReference("Invoice")
	assert.False(t, ref.Explicit)
	assert.Empty(t, ref.Domain)
}

func TestFromPath(t *testing.T) {
	specs := "/repo/specs"
	assert.Equal(t, "billing", FromPath("/repo/specs/domains/billing/01-domain/entities/Invoice.md", specs))
	assert.Equal(t, Shared, FromPath("/repo/specs/_shared/policies/POL-1.md", specs))
	assert.Equal(t, "", FromPath("/repo/specs/01-domain/entities/Invoice.md", specs))
}

func refTree(t *testing.T, sessionsManifest string) (string, *Context) {
	t.Helper()
	root := t.TempDir()
	write(t, root, "domains/billing/_manifest.yaml", billingManifest)
	write(t, root, "domains/sessions/_manifest.yaml", sessionsManifest)
	_, ctx := ValidateStructure(root, nil)
	return root, ctx
}

const sessionsNoDeps = `domain:
  id: sessions
  name: Sessions
  description: User sessions and login
  status: active
`

func TestReferenceIssuesUndeclaredDependency(t *testing.T) {
	root, ctx := refTree(t, sessionsNoDeps)
	path := write(t, root, "domains/sessions/02-behavior/use-cases/UC-001-Login.md", "# UC-001: Login\n\nBills go to [[billing::Invoice]].\n")
	doc, err := spec.Load(path)
	require.NoError(t, err)

	issues := ctx.ReferenceIssues(doc)

	require.Len(t, issues, 1)
	assert.Equal(t, LevelWarning, issues[0].Level)
	assert.Equal(t, "domain/undeclared-dependency", issues[0].Rule)
	assert.Equal(t, "Reference to 'billing::Invoice' but domain 'billing' is not declared in dependencies", issues[0].Message)
	assert.Equal(t, 3, issues[0].Line)
}

func TestReferenceIssues(t *testing.T) {
	withDep := sessionsNoDeps + `dependencies:
  - domain: billing
    type: required
    imports:
      entities: [Customer]
`
	root, ctx := refTree(t, withDep)
	path := write(t, root, "domains/sessions/01-domain/entities/Session.md", `# Session

- [[billing::Invoice]]
- [[billing::Payment]]
- [[ghost::Thing]]
- [[sessions::Session]]
- [[_shared::POL-001]]
- [[Invoice]]
`)
	doc, err := spec.Load(path)
	require.NoError(t, err)

	issues := ctx.ReferenceIssues(doc)

	type brief struct {
		rule string
		line int
	}
	var got []brief
	for _, is := range issues {
		got = append(got, brief{is.Rule, is.Line})
	}
	assert.Equal(t, []brief{
		{"domain/undeclared-import", 3},
		{"domain/undeclared-import", 4},
		{"domain/not-exported", 4},
		{"domain/invalid-reference", 5},
	}, got)
	assert.Equal(t, "Available domains: billing, sessions", issues[3].Suggestion)
}

func TestReferenceIssuesMonolithicFile(t *testing.T) {
	_, ctx := refTree(t, sessionsNoDeps)
	doc, err := spec.Parse(filepath.Join(ctx.SpecsDir, "01-domain/entities/X.md"), []byte("[[billing::Invoice]]\n"))
	require.NoError(t, err)
	assert.Empty(t, ctx.ReferenceIssues(doc))
}

func TestCompletenessIssues(t *testing.T) {
	short := &Domain{ID: "legacy", Manifest: &Manifest{Domain: Meta{ID: "legacy", Name: "L", Description: "old", Status: StatusDeprecated}}}
	ctx := &Context{Domains: NewSet(short, &Domain{ID: "bare", ParseError: "missing"})}

	issues := ctx.CompletenessIssues("legacy")
	require.Len(t, issues, 2)
	assert.Equal(t, "domain/incomplete-description", issues[0].Rule)
	assert.Equal(t, LevelWarning, issues[0].Level)
	assert.Equal(t, "domain/deprecated", issues[1].Rule)
	assert.Equal(t, LevelInfo, issues[1].Level)

	assert.Equal(t, "domain/no-manifest", ctx.CompletenessIssues("bare")[0].Rule)
	assert.Equal(t, "domain/not-found", ctx.CompletenessIssues("nope")[0].Rule)
}

func TestSummary(t *testing.T) {
	ctx := &Context{Domains: NewSet(
		manifest("core"),
		manifest("billing", Dependency{Domain: "core", Type: DependencyRequired}, Dependency{Domain: "sessions", Type: DependencyEventOnly}),
		&Domain{ID: "draft"},
	)}

	want := `# Domain Map Summary

## Domains by Status
- **active**: billing, core
- **unknown**: draft

## Dependencies
- billing → core (required), sessions (event-only)
- core: (no dependencies)
- draft: (no dependencies)
`
	assert.Equal(t, want, ctx.Summary())
}
