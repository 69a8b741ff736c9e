package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/kdd/coverage"
	"github.com/c360studio/kdd/uv"
)

var behaviorPrefixes = []string{"CMD", "QRY", "UC"}

// Rule coverage thresholds, in percent.
const (
	coveragePass = 95
	coverageWarn = 80
)

// behaviorGate checks that commands, queries and use cases have specs and
// that the rules the UV names are referenced from at least one command.
type behaviorGate struct{ *env }

func (behaviorGate) Number() int  { return 3 }
func (behaviorGate) Name() string { return "Behavior" }

func (g behaviorGate) Check(_ context.Context, v *uv.ValueUnit) (Result, error) {
	refs := v.WithPrefix(behaviorPrefixes...)
	if len(refs) == 0 {
		return single(3, g.Name(), StatusWarn, Item{
			Description: "No behavior artifacts referenced",
			Detail:      "UV has no CMD/QRY/UC references",
		}, "No behavior artifacts to verify"), nil
	}

	var items []Item
	for _, ref := range refs {
		it := Item{Description: ref.ID + " spec exists", ArtifactID: ref.ID}
		if path, ok := g.resolver.Resolve(ref.ID); ok {
			it.Status = StatusPass
			it.Detail = g.rel(path)
			it.FilePath = path
		} else {
			it.Status = StatusFail
			it.Detail = fmt.Sprintf("Spec not found for %q", ref.ID)
		}
		items = append(items, it)
	}

	if rules := v.WithPrefix("BR", "RUL"); len(rules) > 0 {
		referenced, err := coverage.RuleReferences(g.resolver)
		if err != nil {
			return Result{}, err
		}
		covered := 0
		for _, r := range rules {
			id := coverage.RuleID(r.ID)
			if id == "" {
				id = strings.ToUpper(r.ID)
			}
			it := Item{
				Description: fmt.Sprintf("BR coverage: %s referenced in CMD specs", r.ID),
				ArtifactID:  r.ID,
				Status:      StatusWarn,
				Detail:      "Not referenced in any CMD spec",
			}
			if len(referenced[id]) > 0 {
				covered++
				it.Status = StatusPass
				it.Detail = "Referenced in at least one CMD"
			}
			items = append(items, it)
		}

		pct := coverage.Percent(covered, len(rules))
		agg := Item{
			Description: fmt.Sprintf("BR coverage: %d%%", pct),
			Detail:      fmt.Sprintf("%d/%d BRs referenced in CMD specs", covered, len(rules)),
		}
		switch {
		case pct >= coveragePass:
			agg.Status = StatusPass
		case pct >= coverageWarn:
			agg.Status = StatusWarn
		default:
			agg.Status = StatusFail
		}
		items = append(items, agg)
	}

	fail, warn := countItems(items)
	summary := withWarnings("All behavior specs exist", warn)
	if fail > 0 {
		summary = fmt.Sprintf("%d checks failed", fail)
	}
	return Result{Gate: 3, Name: g.Name(), Status: rollup(items), Items: items, Summary: summary}, nil
}
