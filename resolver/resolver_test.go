package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("# x\n"), 0644))
	return path
}

func TestResolveKnownPrefixes(t *testing.T) {
	root := t.TempDir()
	cmd := touch(t, root, "02-behavior/commands/CMD-023-CreateOrder.md")
	br := touch(t, root, "01-domain/rules/BR-PAY-001-Minimum.md")
	rul := touch(t, root, "01-domain/rules/RUL-PED-002.md")
	uv := touch(t, root, "00-requirements/value-units/UV-004-Checkout.md")
	layout := touch(t, root, "03-experience/shared/LAYOUT-Main.md")
	nested := touch(t, root, "03-experience/orders/VIEW-OrderList.md")
	req := touch(t, root, "04-verification/criteria/REQ-010-Orders.md")

	r := New(root, nil)
	tests := []struct {
		id   string
		want string
	}{
		{"CMD-023", cmd},
		{"BR-PAY-001", br},
		{"RUL-PED-002", rul},
		{"UV-004", uv},
		{"LAYOUT-Main", layout},
		{"VIEW-OrderList", nested},
		{"REQ-010#REQ-010.1", req},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := r.Resolve(tt.id)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveMissing(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "02-behavior/commands/CMD-001-Create.md")

	r := New(root, nil)
	for _, id := range []string{"CMD-002", "QRY-001", "BR-X-001", "", "#frag", "CMD-*"} {
		got, ok := r.Resolve(id)
		assert.False(t, ok, id)
		assert.Empty(t, got, id)
	}
}

func TestResolveFirstSortedMatch(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "02-behavior/commands/CMD-001-Zeta.md")
	first := touch(t, root, "02-behavior/commands/CMD-001-Alpha.md")

	got, ok := New(root, nil).Resolve("CMD-001")
	require.True(t, ok)
	assert.Equal(t, first, got)
}

func TestResolveEntityName(t *testing.T) {
	root := t.TempDir()
	order := touch(t, root, "01-domain/entities/Pedido.md")
	touch(t, root, "01-domain/entities/Cliente.md")

	r := New(root, nil)

	got, ok := r.Resolve("pedido#Estados")
	require.True(t, ok)
	assert.Equal(t, order, got)

	_, ok = r.Resolve("Factura")
	assert.False(t, ok)
}

func TestResolveMultiDomain(t *testing.T) {
	root := t.TempDir()
	billing := touch(t, root, "domains/billing/02-behavior/commands/CMD-100-Invoice.md")
	touch(t, root, "domains/sessions/01-domain/entities/Invoice.md")
	core := touch(t, root, "domains/core/01-domain/entities/Invoice.md")

	r := New(root, nil)
	assert.Equal(t, []string{"billing", "core", "sessions"}, r.Domains())

	got, ok := r.Resolve("CMD-100")
	require.True(t, ok)
	assert.Equal(t, billing, got)

	got, ok = r.Resolve("core::Invoice")
	require.True(t, ok)
	assert.Equal(t, core, got)

	_, ok = r.Resolve("billing::Invoice")
	assert.False(t, ok)
}

func TestFindAll(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "02-behavior/commands/CMD-002.md")
	touch(t, root, "02-behavior/commands/CMD-001.md")
	touch(t, root, "02-behavior/commands/_template.md")
	touch(t, root, "01-domain/rules/BR-A-001.md")
	touch(t, root, "01-domain/rules/RUL-B-001.md")
	touch(t, root, "00-requirements/value-units/UV-001.md")

	r := New(root, nil)
	cmds := r.CommandSpecs()
	require.Len(t, cmds, 2)
	assert.Equal(t, "CMD-001.md", filepath.Base(cmds[0]))

	assert.Len(t, r.RuleSpecs(), 2)
	assert.Len(t, r.ValueUnits(), 1)
	assert.Empty(t, r.QuerySpecs())
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "CMD", Prefix("CMD-023"))
	assert.Equal(t, "UV", Prefix("uv-004"))
	assert.Equal(t, "", Prefix("123"))

	dir, ok := DirForPrefix("layout")
	assert.True(t, ok)
	assert.Equal(t, DirShared, dir)
	assert.True(t, IsUIPrefix("modal"))
	assert.False(t, IsUIPrefix("CMD"))
}

func TestResolveQualified(t *testing.T) {
	root := t.TempDir()
	plain := touch(t, root, "02-behavior/commands/CMD-001-Create.md")
	policy := touch(t, root, "_shared/policies/POL-001-Retention.md")
	nfr := touch(t, root, "_shared/nfr/NFR-002-Latency.md")
	sharedRule := touch(t, root, "_shared/01-domain/rules/BR-SEC-001.md")
	sales := touch(t, root, "domains/sales/02-behavior/commands/CMD-002-Quote.md")
	touch(t, root, "domains/billing/01-domain/entities/Invoice.md")

	r := New(root, nil)
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"shared policy", "_shared::POL-001", policy},
		{"shared nfr", "_shared::NFR-002", nfr},
		{"shared numbered dir", "_shared::BR-SEC-001", sharedRule},
		{"shared falls back to root", "_shared::CMD-001", plain},
		{"shared falls back to domains", "_shared::CMD-002", sales},
		{"domain qualified", "sales::CMD-002", sales},
		{"domain qualified with fragment", "sales::CMD-002#step", sales},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.id)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, id := range []string{"sales::CMD-001", "billing::CMD-002", "_shared::POL-404", "nowhere::CMD-001"} {
		got, ok := r.Resolve(id)
		assert.False(t, ok, id)
		assert.Empty(t, got, id)
	}
}
