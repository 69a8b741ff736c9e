package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/kdd/gate"
	"github.com/c360studio/kdd/history"
)

func sampleRuns() []history.Run {
	return []history.Run{
		{ID: "0b7f3c1e-aaaa", UVID: "UV-001", Status: gate.StatusFail, DurationMs: 12,
			StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			Gates:     []history.GateRun{{Gate: 2, Name: "Domain", Status: gate.StatusFail, Summary: "1 missing"}}},
		{ID: "run-2", UVID: "UV-002", Status: gate.StatusPass, DurationMs: 7,
			StartedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
}

func TestHistoryConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, History(&buf, sampleRuns(), FormatConsole))
	out := buf.String()
	assert.Contains(t, out, "Run History")
	assert.Contains(t, out, "UV-001")
	assert.Contains(t, out, "0b7f3c1e")
	assert.NotContains(t, out, "0b7f3c1e-aaaa")
	assert.Contains(t, out, "Gate 2: Domain 1 missing")

	buf.Reset()
	require.NoError(t, History(&buf, nil, FormatConsole))
	assert.Contains(t, buf.String(), "No runs recorded")
}

func TestHistoryJSONAndGitHub(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, History(&buf, nil, FormatJSON))
	var got []history.Run
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Empty(t, got)

	buf.Reset()
	require.NoError(t, History(&buf, sampleRuns(), FormatGitHub))
	assert.Contains(t, buf.String(), "| 2026-03-01T10:00:00Z | UV-001 | :x: FAIL | 12ms |")
}
