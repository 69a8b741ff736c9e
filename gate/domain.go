package gate

import (
	"context"
	"fmt"

	"github.com/c360studio/kdd/uv"
)

var domainPrefixes = []string{"ENT", "EVT", "BR", "RUL"}

// domainGate checks that every referenced entity, event and rule has a spec.
type domainGate struct{ *env }

func (domainGate) Number() int  { return 2 }
func (domainGate) Name() string { return "Domain" }

func (g domainGate) Check(_ context.Context, v *uv.ValueUnit) (Result, error) {
	refs := v.WithPrefix(domainPrefixes...)
	if len(refs) == 0 {
		return single(2, g.Name(), StatusWarn, Item{
			Description: "No domain artifacts referenced",
			Detail:      "UV has no ENT/EVT/BR/RUL references",
		}, "No domain artifacts to verify"), nil
	}

	items := make([]Item, 0, len(refs))
	for _, ref := range refs {
		it := Item{Description: ref.ID + " spec exists", ArtifactID: ref.ID}
		if path, ok := g.resolver.Resolve(ref.ID); ok {
			it.Status = StatusPass
			it.Detail = g.rel(path)
			it.FilePath = path
		} else {
			it.Status = StatusFail
			it.Detail = fmt.Sprintf("Spec file not found for %q", ref.ID)
		}
		items = append(items, it)
	}

	fail, _ := countItems(items)
	summary := fmt.Sprintf("All %d domain specs exist", len(refs))
	if fail > 0 {
		summary = fmt.Sprintf("%d/%d domain specs missing", fail, len(refs))
	}
	return Result{Gate: 2, Name: g.Name(), Status: rollup(items), Items: items, Summary: summary}, nil
}
