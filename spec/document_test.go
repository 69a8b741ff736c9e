package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WithFrontmatter(t *testing.T) {
	content := `---
id: UV-004
kind: value-unit
title: Checkout
tags:
  - billing
---
# UV-004: Checkout

## Alcance

- [[CMD-023-TerminateChallenge]]
- [[Order|the order]] and [[billing::Invoice]]
`
	doc, err := Parse("specs/00-requirements/value-units/UV-004.md", []byte(content))
	require.NoError(t, err)

	assert.True(t, doc.HasFrontmatter())
	assert.Equal(t, "UV-004", doc.String("id"))
	assert.Equal(t, []string{"billing"}, doc.Strings("tags"))
	assert.Equal(t, TypeValueUnit, doc.Type)
	assert.Equal(t, 8, doc.BodyLine)

	require.Len(t, doc.Headings, 2)
	assert.Equal(t, Heading{Level: 1, Text: "UV-004: Checkout", Line: 8}, doc.Headings[0])
	assert.Equal(t, Heading{Level: 2, Text: "Alcance", Line: 10}, doc.Headings[1])

	require.Len(t, doc.Links, 3)
	assert.Equal(t, "CMD-023-TerminateChallenge", doc.Links[0].Target)
	assert.Equal(t, 12, doc.Links[0].Line)
	assert.Equal(t, "Order", doc.Links[1].Target)
	assert.Equal(t, "the order", doc.Links[1].Display)
	assert.Equal(t, 2, doc.Links[1].Start)
	assert.Equal(t, "billing::Invoice", doc.Links[2].Target)
	assert.Equal(t, 13, doc.Links[2].Line)
}

func TestParse_NoFrontmatter(t *testing.T) {
	content := "# Order\n\nAn order.\n"
	doc, err := Parse("specs/01-domain/entities/Order.md", []byte(content))
	require.NoError(t, err)

	assert.False(t, doc.HasFrontmatter())
	assert.Equal(t, 1, doc.BodyLine)
	assert.Equal(t, content, doc.Body)
	assert.Equal(t, TypeEntity, doc.Type)
	h1, ok := doc.H1()
	require.True(t, ok)
	assert.Equal(t, "Order", h1.Text)
}

func TestParse_UnclosedFrontmatterIsBody(t *testing.T) {
	doc, err := Parse("x.md", []byte("---\nid: X\n# Title\n"))
	require.NoError(t, err)
	assert.False(t, doc.HasFrontmatter())
	assert.Len(t, doc.Headings, 1)
}

func TestParse_InvalidFrontmatter(t *testing.T) {
	_, err := Parse("bad.md", []byte("---\nid: [unclosed\n---\n# Bad\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse frontmatter")
}

func TestParse_IgnoresHeadingsInFences(t *testing.T) {
	content := "# Real\n\n```gherkin\n# comment inside code\nGiven x\n```\n\n## Also real ##\n"
	doc, err := Parse("REQ-001.md", []byte(content))
	require.NoError(t, err)

	require.Len(t, doc.Headings, 2)
	assert.Equal(t, "Real", doc.Headings[0].Text)
	assert.Equal(t, "Also real", doc.Headings[1].Text)
	assert.Equal(t, 8, doc.Headings[1].Line)
}

func TestLoad_StripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Order.md")
	require.NoError(t, os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, []byte("---\nid: ENT-1\n---\n# Order\n")...), 0644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ENT-1", doc.String("id"))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.md"))
	assert.Error(t, err)
}

func TestDocument_SectionContent(t *testing.T) {
	content := `# CMD-001: CreateOrder

## Input

| Field | Type |
|---|---|
| name | string |

### Notes

Nested.

## Errors

None.
`
	doc, err := Parse("CMD-001.md", []byte(content))
	require.NoError(t, err)

	body, ok := doc.SectionContent("input", "entrada")
	require.True(t, ok)
	assert.Contains(t, body, "| name | string |")
	assert.Contains(t, body, "Nested.")
	assert.NotContains(t, body, "None.")

	_, ok = doc.SectionContent("precondiciones")
	assert.False(t, ok)
	assert.True(t, doc.HasHeading("ERRORS"))
}

func TestDocument_Sections(t *testing.T) {
	content := "---\nid: UV-1\n---\nintro\n## Alcance\nline a\n### Implementado\n- [[CMD-001]]\n"
	doc, err := Parse("UV-1.md", []byte(content))
	require.NoError(t, err)

	sections := doc.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, "Alcance", sections[0].Heading)
	assert.Equal(t, 2, sections[0].Level)
	assert.Equal(t, 6, sections[0].StartLine)
	assert.Equal(t, []string{"line a"}, sections[0].Lines)
	assert.Equal(t, "Implementado", sections[1].Heading)
	assert.Equal(t, 8, sections[1].StartLine)
	assert.Equal(t, "- [[CMD-001]]", sections[1].Body()[:13])
}

func TestLinkTargets(t *testing.T) {
	targets := LinkTargets("see [[BR-PAY-001]] and\n[[CMD-002|create]]")
	assert.Equal(t, []string{"BR-PAY-001", "CMD-002"}, targets)
}
