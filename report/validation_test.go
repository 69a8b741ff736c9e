package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/kdd/validator"
)

func sampleValidation() *validator.Report {
	return &validator.Report{
		FilesChecked: 3,
		Files: []validator.FileReport{
			{File: "02-behavior/use-cases/UC-001-Pay.md", Results: []validator.Result{
				{Level: validator.SeverityError, Rule: "frontmatter/actor", Message: `"actor": required field is missing`, Line: 1},
				{Level: validator.SeverityWarning, Rule: "semantics/broken-link", Message: "Link [[Ordr]] does not match any known artifact", Line: 9, Column: 5, Suggestion: "Did you mean [[Order]]?"},
			}},
			{File: "01-domain/entities/Order.md", Results: []validator.Result{
				{Level: validator.SeverityInfo, Rule: "semantics/unlinked-entity", Message: `"payment" should link to [[Payment]]`, Line: 7},
			}},
		},
	}
}

func TestValidationConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Validation(&buf, sampleValidation(), FormatConsole, false))
	out := buf.String()

	assert.Contains(t, out, "02-behavior/use-cases/UC-001-Pay.md")
	assert.Contains(t, out, `✗ "actor": required field is missing:1 [frontmatter/actor]`)
	assert.Contains(t, out, "⚠ Link [[Ordr]] does not match any known artifact:9")
	assert.NotContains(t, out, "Order.md", "a file with only info results is hidden")
	assert.NotContains(t, out, "Did you mean")
	assert.Contains(t, out, "3 files, 1 errors, 1 warnings")
	assert.NotContains(t, out, "\x1b[")

	buf.Reset()
	require.NoError(t, Validation(&buf, sampleValidation(), FormatConsole, true))
	out = buf.String()
	assert.Contains(t, out, "ℹ \"payment\" should link to [[Payment]]:7")
	assert.Contains(t, out, "Did you mean [[Order]]?")
}

func TestValidationJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Validation(&buf, sampleValidation(), FormatJSON, false))

	var got struct {
		FilesChecked int                           `json:"filesChecked"`
		Errors       int                           `json:"errors"`
		Results      map[string][]validator.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 3, got.FilesChecked)
	assert.Equal(t, 1, got.Errors)
	require.Len(t, got.Results["02-behavior/use-cases/UC-001-Pay.md"], 2)
	assert.Equal(t, 5, got.Results["02-behavior/use-cases/UC-001-Pay.md"][1].Column)
}

func TestValidationGitHub(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Validation(&buf, sampleValidation(), FormatGitHub, false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 4)
	assert.Equal(t, `::error file=02-behavior/use-cases/UC-001-Pay.md,line=1::[frontmatter/actor] "actor": required field is missing`, lines[0])
	assert.Equal(t, "::warning file=02-behavior/use-cases/UC-001-Pay.md,line=9,col=5::[semantics/broken-link] Link [[Ordr]] does not match any known artifact%0ADid you mean [[Order]]?", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "::notice file=01-domain/entities/Order.md,line=7::"))
	assert.Equal(t, "3 files, 1 errors, 1 warnings", lines[3])
}
