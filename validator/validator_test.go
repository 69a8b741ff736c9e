package validator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/kdd/spec"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func parse(t *testing.T, path, content string) *spec.Document {
	t.Helper()
	doc, err := spec.Parse(path, []byte(content))
	require.NoError(t, err)
	return doc
}

func rulesOf(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Rule
	}
	return out
}

func byRule(results []Result, rule string) []Result {
	var out []Result
	for _, r := range results {
		if r.Rule == rule {
			out = append(out, r)
		}
	}
	return out
}

func TestSchemaCheck(t *testing.T) {
	schema := DefaultSchemas()[spec.TypeUseCase]

	tests := []struct {
		name string
		fm   map[string]any
		want map[string]bool // field -> hard
	}{
		{
			name: "valid",
			fm:   map[string]any{"id": "UC-001", "actor": "Customer", "version": 2, "status": "draft"},
			want: map[string]bool{},
		},
		{
			name: "missing required actor",
			fm:   map[string]any{"id": "UC-001"},
			want: map[string]bool{"actor": true},
		},
		{
			name: "soft violations",
			fm:   map[string]any{"id": "UC1", "actor": "Customer", "version": 0, "status": "wip"},
			want: map[string]bool{"id": false, "version": false, "status": false},
		},
		{
			name: "wrong types",
			fm:   map[string]any{"id": "UC-001", "actor": "Customer", "version": "one", "tags": "core"},
			want: map[string]bool{"version": true, "tags": true},
		},
		{
			name: "empty required string",
			fm:   map[string]any{"id": "UC-001", "actor": "  "},
			want: map[string]bool{"actor": true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := map[string]bool{}
			for _, issue := range schema.Check(tt.fm) {
				got[issue.Field] = issue.Hard
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckFrontmatter(t *testing.T) {
	schemas := DefaultSchemas()

	t.Run("missing frontmatter on typed doc", func(t *testing.T) {
		doc := parse(t, "specs/02-behavior/use-cases/UC-001-Pay.md", "# UC-001: Pay\n")
		results := checkFrontmatter(doc, schemas)
		require.Len(t, results, 1)
		assert.Equal(t, "frontmatter/missing", results[0].Rule)
		assert.Equal(t, SeverityWarning, results[0].Level)
	})

	t.Run("unknown doc without frontmatter", func(t *testing.T) {
		doc := parse(t, "specs/notes.md", "# Notes\n")
		assert.Empty(t, checkFrontmatter(doc, schemas))
	})

	t.Run("required field is an error", func(t *testing.T) {
		doc := parse(t, "specs/02-behavior/use-cases/UC-001-Pay.md", "---\nid: UC-001\n---\n# UC-001: Pay\n")
		results := checkFrontmatter(doc, schemas)
		actor := byRule(results, "frontmatter/actor")
		require.Len(t, actor, 1)
		assert.Equal(t, SeverityError, actor[0].Level)
		assert.Equal(t, 1, actor[0].Line)
		assert.Equal(t, "Name the primary actor of the use case", actor[0].Suggestion)
	})

	t.Run("id mismatch", func(t *testing.T) {
		doc := parse(t, "specs/02-behavior/use-cases/UC-002-Pay.md", "---\nid: UC-001\nactor: Customer\n---\n# UC-002: Pay\n")
		assert.Equal(t, []string{"frontmatter/id-mismatch"}, rulesOf(checkFrontmatter(doc, schemas)))
	})

	t.Run("requirement source", func(t *testing.T) {
		doc := parse(t, "specs/04-verification/criteria/REQ-001-Pay.md", "---\nid: REQ-001\nsource: checkout\n---\n# Requirements\n")
		assert.Equal(t, []string{"frontmatter/invalid-source"}, rulesOf(checkFrontmatter(doc, schemas)))
	})

	t.Run("entity without kind", func(t *testing.T) {
		doc := parse(t, "specs/01-domain/entities/Order.md", "---\ntags: [core]\n---\n# Order\n")
		results := checkFrontmatter(doc, schemas)
		require.Len(t, results, 1)
		assert.Equal(t, "frontmatter/missing-entity-kind", results[0].Rule)
		assert.Equal(t, SeverityInfo, results[0].Level)
	})
}

const useCaseBody = `---
id: UC-001
actor: Customer
---
# Pay an order

## Description

## Actors
Customer

## Preconditions
None.

## Main Flow
1. Pay.

## Postconditions
Paid.
`

func TestCheckStructure(t *testing.T) {
	templates := DefaultTemplates()

	t.Run("h1 format and empty section", func(t *testing.T) {
		doc := parse(t, "specs/02-behavior/use-cases/UC-001-Pay.md", useCaseBody)
		results := checkStructure(doc, templates)
		assert.Equal(t, []string{"structure/h1-format", "structure/empty-section"}, rulesOf(results))
		assert.Equal(t, 5, results[0].Line)
		assert.Equal(t, 7, results[1].Line)
		assert.Contains(t, results[1].Message, "Description")
	})

	t.Run("missing section and alternatives", func(t *testing.T) {
		content := "# UC-001: Pagar\n\n## Descripción\nPago.\n\n## Actores\nCliente\n\n## Precondiciones\nNada.\n\n## Flujo Principal\n1. Pagar.\n"
		doc := parse(t, "specs/02-behavior/use-cases/UC-001-Pay.md", content)
		results := checkStructure(doc, templates)
		require.Len(t, results, 1)
		assert.Equal(t, "structure/missing-section", results[0].Rule)
		assert.Equal(t, SeverityError, results[0].Level)
		assert.Contains(t, results[0].Message, "Postconditions")
	})

	t.Run("missing h1 and multiple h1", func(t *testing.T) {
		doc := parse(t, "specs/02-behavior/commands/CMD-001-Pay.md", "## Input\nx\n")
		assert.Equal(t, []string{"structure/missing-h1"}, rulesOf(checkStructure(doc, templates)))

		doc = parse(t, "specs/02-behavior/commands/CMD-001-Pay.md", "# CMD-001: Pay\nx\n# Again\ny\n")
		assert.Equal(t, []string{"structure/multiple-h1"}, rulesOf(checkStructure(doc, templates)))
	})

	t.Run("prefix section", func(t *testing.T) {
		doc := parse(t, "specs/04-verification/criteria/REQ-001-Pay.md", "# Requirements: Pay\n\n## REQ-001.1: Card\nGiven.\n")
		assert.Empty(t, checkStructure(doc, templates))
	})

	t.Run("unknown type is skipped", func(t *testing.T) {
		doc := parse(t, "specs/notes.md", "# A\n# B\n")
		assert.Empty(t, checkStructure(doc, templates))
	})
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    []string
	}{
		{
			name:    "draft is ignored",
			path:    "UV-001-Pay.md",
			content: "---\nstatus: draft\n---\n# UV-001: Pay\n",
			want:    nil,
		},
		{
			name:    "value unit in review",
			path:    "UV-001-Pay.md",
			content: "---\nstatus: review\n---\n# UV-001: Pay\n\n## Alcance\n- [[UC-001]]\n",
			want: []string{
				"readiness/missing-owner",
				"readiness/uv-missing-inputs",
				"readiness/uv-missing-outputs",
				"readiness/uv-missing-exit-criteria",
				"readiness/uv-missing-scope",
			},
		},
		{
			name: "complete value unit",
			path: "UV-001-Pay.md",
			content: "---\nstatus: approved\nowner: Payments\n---\n# UV-001: Pay\n\n## Inputs\nx\n## Outputs\ny\n" +
				"## Criterios de salida\nz\n## Alcance\n[[UC-001]] [[REQ-001]] [[UI-Checkout]] [[CMD-001]]\n",
			want: nil,
		},
		{
			name:    "objective format",
			path:    "OBJ-001-Pay.md",
			content: "---\nstatus: review\nowner: PM\n---\n# OBJ-001\n\n## Objetivo\nPay faster.\n\n## Criterios de éxito\nx\n",
			want:    []string{"readiness/objective-format", "readiness/objective-missing-links"},
		},
		{
			name:    "objective as user story",
			path:    "OBJ-001-Pay.md",
			content: "---\nstatus: review\nowner: PM\n---\n# OBJ-001\n\n## Objetivo\nComo cliente, quiero pagar, para recibir mi pedido.\n\n## Criterios de exito\nx\n\nSee [[UV-001]].\n",
			want:    nil,
		},
		{
			name:    "requirement without gherkin",
			path:    "REQ-001-Pay.md",
			content: "---\nstatus: proposed\nsource: UC-001\n---\n# Requirements\n",
			want:    []string{"readiness/req-missing-gherkin"},
		},
		{
			name:    "command sections",
			path:    "CMD-001-Pay.md",
			content: "---\nstatus: review\n---\n# CMD-001\n## Entrada\nx\n",
			want:    []string{"readiness/command-missing-output"},
		},
		{
			name:    "ui states",
			path:    "UI-Checkout.md",
			content: "---\nstatus: review\n---\n# UI-Checkout\n[[QRY-001]]\n## Loading\n## Vacío\n## Error\n",
			want:    []string{"readiness/ui-missing-states"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, filepath.Join("specs", tt.path), tt.content)
			got := rulesOf(checkReadiness(doc))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, similarity("pedido", "pedido"), 1e-9)
	assert.InDelta(t, 1-1.0/7, similarity("pedidoo", "pedido"), 1e-9)
	assert.InDelta(t, 0.0, similarity("abc", "xyz"), 1e-9)
	assert.Equal(t, 3, levenshtein([]rune("kitten"), []rune("sitting")))
}

// semanticsTree lays out a small monolithic specs tree and returns the
// specs directory and the use case path.
func semanticsTree(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	specs := filepath.Join(root, "specs")
	writeFile(t, specs, "01-domain/entities/Pedido.md", "---\nkind: entity\n---\n# Pedido\n\n## Description\nAn order.\n\n## Attributes\nid\n")
	writeFile(t, specs, "01-domain/events/EVT-Pedido-Creado.md", "---\nkind: event\n---\n# EVT-Pedido-Creado\n\n## Description\nCreated.\n\n## Payload\n{}\n")
	uc := writeFile(t, specs, "02-behavior/use-cases/UC-001-Crear-Pedido.md", `---
id: UC-001
actor: Cliente
---
# UC-001: Crear Pedido

## Description
El cliente crea un pedido y se emite [[EVT-Pedido-Creado]].
Ver [[Pedidoo]] y [[Fantasma]].
Emite EVT-Desconocido.

`+"```text\npedido\n```\n"+`| pedido |
`)
	writeFile(t, specs, "04-verification/criteria/REQ-001-Pedidos.md", `---
id: REQ-001
source: UC-001
---
# Requirements: Pedidos

## REQ-001.1: Alta
Ver UC-001 y UC-009. Cumple REQ-001.1 y REQ-001.7. Aplica RUL-PED-001.
`)
	writeFile(t, specs, "_index.md", "# generated\n")
	return specs, uc
}

func TestSemantics(t *testing.T) {
	specs, uc := semanticsTree(t)
	v := New(Options{SpecsDir: specs, Level: LevelSemantics})

	report, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.FilesChecked, "_index.md is ignored by default")

	results := map[string][]Result{}
	for _, f := range report.Files {
		results[f.File] = f.Results
	}

	ucResults := results["02-behavior/use-cases/UC-001-Crear-Pedido.md"]
	broken := byRule(ucResults, "semantics/broken-link")
	require.Len(t, broken, 2)
	assert.Equal(t, 9, broken[0].Line)
	assert.Equal(t, 5, broken[0].Column)
	assert.Contains(t, broken[0].Suggestion, "[[Pedido]]")

	unlinked := byRule(ucResults, "semantics/unlinked-entity")
	require.Len(t, unlinked, 1)
	assert.Equal(t, 8, unlinked[0].Line)
	assert.Contains(t, unlinked[0].Message, "[[Pedido]]")

	events := byRule(ucResults, "semantics/undefined-event")
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Message, "EVT-Desconocido")

	caps := byRule(ucResults, "semantics/entity-capitalization")
	require.Len(t, caps, 1)
	assert.Equal(t, 8, caps[0].Line)

	reqResults := results["04-verification/criteria/REQ-001-Pedidos.md"]
	ucs := byRule(reqResults, "semantics/undefined-uc")
	require.Len(t, ucs, 1)
	assert.Contains(t, ucs[0].Message, "UC-009")
	reqs := byRule(reqResults, "semantics/undefined-requirement")
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Message, "REQ-001.7")
	rules := byRule(reqResults, "semantics/undefined-rule")
	require.Len(t, rules, 1)
	assert.Contains(t, rules[0].Suggestion, "RUL-PED.md")

	raw, err := os.ReadFile(uc)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "[[Pedido]]", "no fix without the fix option")
}

func TestSemanticsFix(t *testing.T) {
	specs, uc := semanticsTree(t)
	v := New(Options{SpecsDir: specs, Level: LevelSemantics, Fix: true, Paths: []string{uc}})

	report, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesChecked)
	assert.Equal(t, 1, report.Fixed)

	raw, err := os.ReadFile(uc)
	require.NoError(t, err)
	content := string(raw)
	assert.True(t, strings.HasPrefix(content, "---\nid: UC-001\nactor: Cliente\n---\n"))
	assert.Contains(t, content, "El cliente crea un [[Pedido]] y se emite [[EVT-Pedido-Creado]].")
	assert.Contains(t, content, "```text\npedido\n```")
}

func TestRunFilters(t *testing.T) {
	specs, _ := semanticsTree(t)

	t.Run("min level", func(t *testing.T) {
		report, err := New(Options{SpecsDir: specs, MinLevel: SeverityWarning}).Run(context.Background())
		require.NoError(t, err)
		for _, r := range report.All() {
			assert.NotEqual(t, SeverityInfo, r.Level, r.Rule)
		}
	})

	t.Run("ignore rules", func(t *testing.T) {
		report, err := New(Options{SpecsDir: specs, IgnoreRules: []string{"semantics/*", "structure/*"}}).Run(context.Background())
		require.NoError(t, err)
		for _, r := range report.All() {
			assert.False(t, strings.HasPrefix(r.Rule, "semantics/"), r.Rule)
			assert.False(t, strings.HasPrefix(r.Rule, "structure/"), r.Rule)
		}
	})

	t.Run("ignore paths", func(t *testing.T) {
		report, err := New(Options{SpecsDir: specs, IgnorePaths: []string{"01-domain/**", "**/_*.md"}}).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, report.FilesChecked)
	})
}

func TestRunParseErrorAndEmpty(t *testing.T) {
	root := t.TempDir()
	specs := filepath.Join(root, "specs")
	writeFile(t, specs, "02-behavior/use-cases/UC-001-Bad.md", "---\nid: [\n---\n# UC-001: Bad\n")

	report, err := New(Options{SpecsDir: specs, Level: LevelFrontmatter}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "parse", report.Files[0].Results[0].Rule)
	assert.True(t, report.Failed(false))

	empty := filepath.Join(root, "empty")
	require.NoError(t, os.MkdirAll(empty, 0755))
	_, err = New(Options{SpecsDir: empty}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestRunCancelled(t *testing.T) {
	specs, _ := semanticsTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{SpecsDir: specs}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDomainLevel(t *testing.T) {
	root := t.TempDir()
	specs := filepath.Join(root, "specs")
	writeFile(t, specs, "domains/billing/_manifest.yaml", "domain:\n  id: billing\n  name: Billing\n  description: Invoices and payments\n  status: active\n")
	writeFile(t, specs, "domains/billing/01-domain/entities/Invoice.md", "---\nkind: entity\n---\n# Invoice\n\nSee [[ghost::Thing]].\n")

	report, err := New(Options{SpecsDir: specs, Level: LevelDomain}).Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.Files)

	var fileRules []string
	for _, f := range report.Files {
		if f.File == "domains/billing/01-domain/entities/Invoice.md" {
			fileRules = rulesOf(f.Results)
		}
	}
	assert.NotEmpty(t, fileRules)
	for _, r := range fileRules {
		assert.True(t, strings.HasPrefix(r, "domain/"), r)
	}
}

func TestParseLevelAndSeverity(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelAll, l)
	l, err = ParseLevel("Semantics")
	require.NoError(t, err)
	assert.Equal(t, LevelSemantics, l)
	_, err = ParseLevel("bogus")
	assert.Error(t, err)

	s, err := ParseSeverity("WARNING")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, s)
	assert.True(t, SeverityError.AtLeast(SeverityWarning))
	assert.False(t, SeverityInfo.AtLeast(SeverityWarning))
}
