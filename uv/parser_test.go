package uv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/kdd/resolver"
	"github.com/c360studio/kdd/spec"
)

func parse(t *testing.T, content string) *ValueUnit {
	t.Helper()
	doc, err := spec.Parse("UV-004.md", []byte(content))
	require.NoError(t, err)
	return NewParser(nil).Parse(doc)
}

func ids(refs []ArtifactRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.ID)
	}
	return out
}

const trackedUV = `---
id: UV-004
title: Checkout
---
# UV-004: Checkout

## Objetivo

See [[OBJ-001]].

## Alcance

### Implementado

- [[CMD-023]]
- ~~[[CMD-024]]~~ moved out
- [ ] [[QRY-002]]

### Por implementar

- [[UI-Checkout]]
- [x] [[REQ-010#REQ-010.2]]

### Fuera de alcance

- [[CMD-030]]
- [[CMD-030]]

## Trazabilidad

- [[BR-PAY-001]]
`

func TestParseTracked(t *testing.T) {
	v := parse(t, trackedUV)

	assert.Equal(t, "UV-004", v.ID)
	assert.Equal(t, "Checkout", v.Title)
	assert.Equal(t, []string{"CMD-023", "REQ-010"}, ids(v.Artifacts.Implemented))
	assert.Equal(t, []string{"QRY-002", "UI-Checkout"}, ids(v.Artifacts.Pending))
	assert.Equal(t, []string{"CMD-024", "CMD-030"}, ids(v.Artifacts.Deferred))
	assert.Equal(t, []string{"QRY-002", "UI-Checkout", "CMD-023", "REQ-010", "CMD-024", "CMD-030"}, ids(v.All))

	req := v.Artifacts.Implemented[1]
	assert.Equal(t, "REQ-010#REQ-010.2", req.FullTarget)
	assert.Equal(t, "REQ", req.Prefix)
	assert.Equal(t, 22, req.Line)

	first := v.Artifacts.Implemented[0]
	assert.Equal(t, 15, first.Line)
	assert.Equal(t, "CMD", first.Prefix)
}

func TestStrikethroughWinsOverSection(t *testing.T) {
	v := parse(t, `# UV
## Scope
### Implemented
- ~~[x] [[CMD-001]]~~
### Pending
- ~~[[CMD-002]]~~
`)
	assert.Empty(t, v.Artifacts.Implemented)
	assert.Empty(t, v.Artifacts.Pending)
	assert.Equal(t, []string{"CMD-001", "CMD-002"}, ids(v.Artifacts.Deferred))
}

func TestParseTrackedIgnoresOtherLevelTwoSections(t *testing.T) {
	v := parse(t, `# UV
## Context
- [[ENT-Ignored]]
## Scope
### Pending
- [[CMD-001]]
## Notes
### Implemented
- [[CMD-099]]
`)
	assert.Equal(t, []string{"CMD-001"}, ids(v.All))
}

func TestParseTrackedOutOfScopeHeading(t *testing.T) {
	v := parse(t, `# UV
## Scope
### Implemented
- [[CMD-001]]
## Out of scope
- [[CMD-002]]
`)
	assert.Equal(t, []string{"CMD-001"}, ids(v.Artifacts.Implemented))
	assert.Equal(t, []string{"CMD-002"}, ids(v.Artifacts.Deferred))
}

func TestParseFlat(t *testing.T) {
	v := parse(t, `---
id: UV-001
---
# UV-001: Onboarding

## Alcance

- [[CMD-001]]
- [ ] [[CMD-002]]
- ~~[[CMD-003]]~~
- [[Pedido#Estados]] and [[CMD-001]] again

## Trazabilidad

- [[CMD-001]]
- [[CMD-002]]
- [[REQ-001]]
`)
	assert.Equal(t, "UV-001: Onboarding", v.Title)
	assert.Equal(t, []string{"CMD-001", "Pedido", "REQ-001"}, ids(v.Artifacts.Implemented))
	assert.Equal(t, []string{"CMD-002"}, ids(v.Artifacts.Pending))
	assert.Equal(t, []string{"CMD-003"}, ids(v.Artifacts.Deferred))

	entity := v.Artifacts.Implemented[1]
	assert.Equal(t, "Pedido#Estados", entity.FullTarget)
	assert.Equal(t, "PEDIDO", entity.Prefix)
}

func TestParseWithoutScope(t *testing.T) {
	v := parse(t, "# UV\n\nNo links here.\n")
	assert.Empty(t, v.All)
	assert.NotNil(t, v.All)
}

func TestParseDomainQualifiedPrefix(t *testing.T) {
	v := parse(t, "## Scope\n- [[billing::CMD-100]]\n")
	require.Len(t, v.All, 1)
	assert.Equal(t, "billing::CMD-100", v.All[0].ID)
	assert.Equal(t, "CMD", v.All[0].Prefix)
}

func TestStats(t *testing.T) {
	tests := []struct {
		name string
		v    ValueUnit
		want int
	}{
		{"empty is complete", ValueUnit{}, 100},
		{"deferred excluded", ValueUnit{Artifacts: Artifacts{
			Implemented: make([]ArtifactRef, 2),
			Pending:     make([]ArtifactRef, 1),
			Deferred:    make([]ArtifactRef, 5),
		}}, 67},
		{"only pending", ValueUnit{Artifacts: Artifacts{Pending: make([]ArtifactRef, 3)}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Stats().Completion)
		})
	}
}

func TestParseAllAndLocate(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, resolver.DirValueUnits)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UV-002-B.md"), []byte("---\nid: UV-002\n---\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UV-001-A.md"), []byte("---\nid: UV-001\n---\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UV-003-Bad.md"), []byte("---\nid: [\n---\n"), 0644))

	res := resolver.New(root, nil)
	all := NewParser(nil).ParseAll(res)
	require.Len(t, all, 3)
	assert.Equal(t, "UV-001", all[0].ID)
	assert.Empty(t, all[0].LoadError)
	assert.Equal(t, "UV-003", all[2].ID)
	assert.Equal(t, filepath.Join(dir, "UV-003-Bad.md"), all[2].Path)
	assert.Contains(t, all[2].LoadError, "load value unit")

	path, err := Locate(res, "UV-002")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "UV-002-B.md"), path)

	_, err = Locate(res, "UV-404")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Locate(res, "CMD-001")
	assert.ErrorIs(t, err, ErrNotFound)

	p := NewParser(nil)
	one, err := p.Select(res, "UV-002")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "UV-002", one[0].ID)

	every, err := p.Select(res, "")
	require.NoError(t, err)
	assert.Len(t, every, 3)

	_, err = p.Select(res, "UV-003")
	assert.Error(t, err)

	_, err = p.Select(res, "UV-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnloaded(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		wantID string
	}{
		{"numbered name", "/specs/UV-012-Broken.md", "UV-012"},
		{"bare id", "/specs/UV-7.md", "UV-7"},
		{"no id", "/specs/Draft.md", "Draft"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := unloaded(tt.path, errors.New("bad yaml"))
			assert.Equal(t, tt.wantID, v.ID)
			assert.Equal(t, tt.path, v.Path)
			assert.Equal(t, "bad yaml", v.LoadError)
			assert.Empty(t, v.All)
		})
	}
}
