package codemap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/kdd/resolver"
)

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConventionFileName(t *testing.T) {
	tests := []struct {
		name     string
		verbs    map[string]string
		entities map[string]string
		action   string
		want     string
	}{
		{"default verb", nil, nil, "CreateOrder", "create-order.use-case.ts"},
		{"multi-word entity", nil, nil, "TerminateChallengeRun", "terminate-challengerun.use-case.ts"},
		{"unknown verb lowercased", nil, nil, "ArchiveOrder", "archive-order.use-case.ts"},
		{"single word", nil, nil, "Checkout", "checkout.use-case.ts"},
		{"verb override", map[string]string{"Start": "iniciar"}, nil, "StartSession", "iniciar-session.use-case.ts"},
		{"entity override", nil, map[string]string{"OrderLine": "order-line"}, "UpdateOrderLine", "update-order-line.use-case.ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewConvention(tt.verbs, tt.entities).FileName(tt.action))
		})
	}
}

func TestSplitPascal(t *testing.T) {
	assert.Equal(t, []string{"Create", "Order", "Line"}, SplitPascal("CreateOrderLine"))
	assert.Equal(t, []string{"Get", "HTTPStatus"}, SplitPascal("GetHTTPStatus"))
	assert.Nil(t, SplitPascal(""))
}

func TestTestPath(t *testing.T) {
	assert.Equal(t, "/p/create-order.use-case.test.ts", TestPath("/p/create-order.use-case.ts"))
}

const cmdSpec = `---
id: CMD-023
title: Terminate challenge
---
# CMD-023: TerminateChallenge

## Input

| Field | Type | Required | Validation |
|-------|------|----------|------------|
| ` + "`challengeId`" + ` | ` + "`uuid`" + ` | Yes | must exist |
| reason | string | No | |

## Preconditions

- Challenge is active
- User is the owner

## Rules Validated

- [[BR-CHAL-001]]
- [[RUL-CHAL-002|Owner only]]
- [[Challenge]]

## Events Generated

- [[EVT-Challenge-Terminated]]
- ` + "`EVT-Challenge-Archived`" + `

## Possible Errors

| Code | Condition | Message |
|------|-----------|---------|
| CHAL_NOT_FOUND | missing | "Challenge not found" |
`

func TestParseCommand(t *testing.T) {
	root := t.TempDir()
	path := write(t, root, "02-behavior/commands/CMD-023-TerminateChallenge.md", cmdSpec)

	cmd, err := ParseCommand(path)
	require.NoError(t, err)

	assert.Equal(t, "CMD-023", cmd.ID)
	assert.Equal(t, "TerminateChallenge", cmd.ActionName)
	assert.Equal(t, "Challenge", cmd.EntityName)
	require.Len(t, cmd.Inputs, 2)
	assert.Equal(t, Input{Name: "challengeId", Type: "uuid", Required: true, Validation: "must exist"}, cmd.Inputs[0])
	assert.False(t, cmd.Inputs[1].Required)
	assert.Equal(t, []string{"Challenge is active", "User is the owner"}, cmd.Preconditions)
	assert.Equal(t, []string{"BR-CHAL-001", "RUL-CHAL-002"}, cmd.RulesReferenced)
	assert.Equal(t, []string{"EVT-Challenge-Terminated", "EVT-Challenge-Archived"}, cmd.EventsGenerated)
	require.Len(t, cmd.Errors, 1)
	assert.Equal(t, Error{Code: "CHAL_NOT_FOUND", Condition: "missing", Message: "Challenge not found"}, cmd.Errors[0])
}

func TestParseCommandRejectsOtherTypes(t *testing.T) {
	root := t.TempDir()
	path := write(t, root, "01-domain/entities/Challenge.md", "# Challenge\n")

	_, err := ParseCommand(path)
	assert.True(t, errors.Is(err, ErrNotCommand))
}

func TestDeriveNamesWithoutColon(t *testing.T) {
	action, entity := deriveNames("CMD-007 CancelBooking")
	assert.Equal(t, "CancelBooking", action)
	assert.Equal(t, "Booking", entity)
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	ucDir := "src/application/use-cases"
	tagged := write(t, root, ucDir+"/terminate-challenge.use-case.ts", "// Implements cmd-023\nexport {}\n")
	override := write(t, root, ucDir+"/list-orders.use-case.ts", "export {}\n")
	write(t, root, ucDir+"/terminate-challenge.use-case.test.ts", "// CMD-099\n")
	write(t, root, ucDir+"/orphan.use-case.ts", "export {}\n")

	m := NewMapper(root, Options{Overrides: map[string]string{"list-orders": "QRY-001"}})
	mapping := m.Scan()

	assert.Equal(t, Mapping{"CMD-023": tagged, "QRY-001": override}, mapping)
}

func TestScanMissingDir(t *testing.T) {
	m := NewMapper(t.TempDir(), Options{})
	assert.Empty(t, m.Scan())
}

func TestLocate(t *testing.T) {
	root := t.TempDir()
	specs := filepath.Join(root, "specs")
	write(t, specs, "02-behavior/commands/CMD-023-TerminateChallenge.md", cmdSpec)
	write(t, specs, "02-behavior/queries/QRY-001-ListOrders.md", "# QRY-001: ListOrders\n")
	write(t, specs, "01-domain/entities/Challenge.md", "# Challenge\n")
	res := resolver.New(specs, nil)
	m := NewMapper(root, Options{})

	path, ok := m.Locate("CMD-023", Mapping{}, res)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src/application/use-cases/terminate-challenge.use-case.ts"), path)

	path, ok = m.Locate("QRY-001", Mapping{"QRY-001": "/mapped.use-case.ts"}, res)
	require.True(t, ok)
	assert.Equal(t, "/mapped.use-case.ts", path)

	_, ok = m.Locate("CMD-404", Mapping{}, res)
	assert.False(t, ok)
}

func TestReport(t *testing.T) {
	root := t.TempDir()
	specs := filepath.Join(root, "specs")
	write(t, specs, "02-behavior/commands/CMD-023-TerminateChallenge.md", cmdSpec)
	write(t, specs, "02-behavior/queries/QRY-001-ListOrders.md", "# QRY-001: ListOrders\n")
	write(t, root, "src/application/use-cases/list-orders.use-case.ts", "export {}\n")
	write(t, root, "src/application/use-cases/list-orders.use-case.test.ts", "")

	entries := NewMapper(root, Options{}).Report(resolver.New(specs, nil))
	require.Len(t, entries, 2)

	assert.Equal(t, "CMD-023", entries[0].ID)
	assert.False(t, entries[0].HasCode)
	assert.Equal(t, "src/application/use-cases/terminate-challenge.use-case.ts", entries[0].CodeFile)

	assert.Equal(t, "QRY-001", entries[1].ID)
	assert.True(t, entries[1].HasCode)
	assert.True(t, entries[1].HasTest)
	assert.Equal(t, "specs/02-behavior/queries/QRY-001-ListOrders.md", entries[1].SpecFile)
}
