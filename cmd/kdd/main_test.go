package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const checkoutUV = `---
id: UV-004
kind: value-unit
title: Checkout
status: draft
owner: payments-team
---
# UV-004: Checkout

## Objetivo

Let customers pay.

## Inputs

Cart.

## Outputs

Receipt.

## Criterios de salida

Paid orders.

## Alcance

- [[CMD-023]]
`

const terminateSpec = `---
id: CMD-023
---
# CMD-023: TerminateChallenge

## Rules Validated

- [[BR-PAY-001]]
`

// newProject writes a minimal specs tree and isolates the user config.
func newProject(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()
	writeFile(t, root, "specs/00-requirements/value-units/UV-004-Checkout.md", checkoutUV)
	writeFile(t, root, "specs/02-behavior/commands/CMD-023-TerminateChallenge.md", terminateSpec)
	return root
}

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, workDir string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)
	a.workDir = workDir
	code := execute(a, args)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestVersion(t *testing.T) {
	r := run(t, t.TempDir(), "version")
	assert.Equal(t, exitOK, r.code)
	assert.Equal(t, "kdd version "+Version+" (build: "+BuildTime+")\n", r.stdout)
}

func TestUsageErrors(t *testing.T) {
	root := newProject(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no target", []string{"check"}, "specify a Value Unit ID or --all"},
		{"id and all", []string{"check", "UV-004", "--all"}, "mutually exclusive"},
		{"bad gate", []string{"check", "UV-004", "--gate", "9"}, "unknown gate"},
		{"unknown uv", []string{"check", "UV-404"}, "UV-404"},
		{"unknown format", []string{"status", "-f", "yaml"}, "yaml"},
		{"unknown flag", []string{"check", "--bogus"}, "bogus"},
		{"bad level", []string{"validate", "--level", "everything"}, "everything"},
		{"bad log level", []string{"--log-level", "loud", "version"}, "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, root, tt.args...)
			assert.Equal(t, exitUsage, r.code, r.stderr)
			assert.Contains(t, r.stderr, tt.want)
			assert.Contains(t, r.stderr, "Run 'kdd --help' for usage.")
		})
	}
}

func TestMissingSpecsDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	r := run(t, t.TempDir(), "status")
	assert.Equal(t, exitUsage, r.code)
	assert.Contains(t, r.stderr, "specs directory not found")
}

func TestCheck(t *testing.T) {
	root := newProject(t)

	r := run(t, root, "check", "UV-004", "--quick", "--gate", "1")
	assert.Equal(t, exitOK, r.code, r.stdout+r.stderr)
	assert.Contains(t, r.stdout, "Pipeline Check: UV-004")
	assert.Contains(t, r.stdout, "Gate 1: Capture")
	assert.NotContains(t, r.stdout, "Frontmatter field: id")

	r = run(t, root, "check", "UV-004", "--quick", "--gate", "1", "--verbose")
	assert.Equal(t, exitOK, r.code, r.stdout+r.stderr)
	assert.Contains(t, r.stdout, "Frontmatter field: id")

	r = run(t, root, "check", "UV-004", "--quick")
	assert.Equal(t, exitFailed, r.code, r.stdout+r.stderr)
	assert.Contains(t, r.stdout, "Gate 6: Physical")
}

func TestCheckAllMalformedUnit(t *testing.T) {
	root := newProject(t)
	writeFile(t, root, "specs/00-requirements/value-units/UV-005-Bad.md", "---\nid: [\n---\n# UV-005: Bad\n")

	tests := []struct {
		name string
		args []string
	}{
		{"capture gate", []string{"check", "--all", "--quick", "--gate", "1"}},
		{"other gate", []string{"check", "--all", "--quick", "--gate", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, root, tt.args...)
			assert.Equal(t, exitFailed, r.code, r.stdout+r.stderr)
			assert.Contains(t, r.stdout, "Pipeline Check: UV-005")
			assert.Contains(t, r.stdout, "UV file could not be parsed")
		})
	}
}

func TestCheckRecordAndHistory(t *testing.T) {
	root := newProject(t)

	r := run(t, root, "check", "--all", "--quick", "--gate", "1", "--record")
	require.Equal(t, exitOK, r.code, r.stdout+r.stderr)
	assert.FileExists(t, filepath.Join(root, ".kdd", "history.db"))

	r = run(t, root, "history", "-f", "json")
	require.Equal(t, exitOK, r.code, r.stderr)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "UV-004", runs[0]["uvId"])

	r = run(t, root, "history", "--run", "missing")
	assert.Equal(t, exitUsage, r.code)
}

func TestCheckMetricsFile(t *testing.T) {
	root := newProject(t)
	r := run(t, root, "check", "UV-004", "--quick", "--gate", "1", "--metrics-file", "out/kdd.prom")
	require.Equal(t, exitOK, r.code, r.stderr)

	data, err := os.ReadFile(filepath.Join(root, "out", "kdd.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "kdd_")
}

func TestStatus(t *testing.T) {
	root := newProject(t)
	r := run(t, root, "status", "UV-004")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "UV-004: Checkout")
}

func TestValidate(t *testing.T) {
	root := newProject(t)
	writeFile(t, root, "specs/02-behavior/use-cases/UC-001-Bad.md", "---\nid: [\n---\n# UC-001: Bad\n")

	r := run(t, root, "validate", "--level", "frontmatter")
	assert.Equal(t, exitFailed, r.code, r.stdout+r.stderr)
	assert.Contains(t, r.stdout, "UC-001-Bad.md")

	r = run(t, root, "validate", "--level", "frontmatter", "-f", "github")
	assert.Equal(t, exitFailed, r.code)
	assert.Contains(t, r.stdout, "::error file=specs/02-behavior/use-cases/UC-001-Bad.md")

	r = run(t, root, "validate", "specs/00-requirements")
	assert.NotEqual(t, exitUsage, r.code, r.stderr)

	r = run(t, root, "validate", "specs/nowhere")
	assert.Equal(t, exitUsage, r.code)
}

func TestIndex(t *testing.T) {
	root := newProject(t)
	writeFile(t, root, "specs/01-domain/entities/Order.md", "---\nkind: entity\n---\n# Order\n")

	r := run(t, root, "index")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Indexed")
	assert.FileExists(t, filepath.Join(root, "specs", "_index.json"))
	assert.FileExists(t, filepath.Join(root, "specs", "_index.md"))
}

func TestDomains(t *testing.T) {
	root := newProject(t)

	r := run(t, root, "domains")
	assert.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stdout, "Single-domain layout")

	writeFile(t, root, "specs/domains/sales/_manifest.yaml", `domain:
  id: sales
  name: Sales
  description: Orders and quotes
  status: active
dependencies:
  - domain: billing
    type: required
`)
	r = run(t, root, "domains")
	assert.Equal(t, exitFailed, r.code)
	assert.Contains(t, r.stdout, "# Domain Map Summary")
	assert.Contains(t, r.stdout, "Domain 'sales' requires non-existent domain 'billing'")
}

func TestConfigInitAndShow(t *testing.T) {
	root := newProject(t)

	r := run(t, root, "config", "init")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, filepath.Join(root, "kdd.yaml"))

	r = run(t, root, "config", "init")
	assert.Equal(t, exitUsage, r.code)
	assert.Contains(t, r.stderr, "--force")

	r = run(t, root, "config", "init", "--force")
	assert.Equal(t, exitOK, r.code)

	r = run(t, root, "config", "show")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "# source: "+filepath.Join(root, "kdd.yaml"))
	assert.Contains(t, r.stdout, "specs_dir: specs")
}
