package gate

import (
	"context"
	"fmt"

	"github.com/c360studio/kdd/spec"
	"github.com/c360studio/kdd/uv"
)

var uiPrefixes = []string{"UI", "VIEW", "LAYOUT", "MODAL", "FLOW"}

// uiStates are the four states every UI spec documents. Names match headings
// or body text after normalization, so accents are optional.
var uiStates = [][]string{
	{"loading", "cargando"},
	{"empty", "vacio", "sin datos"},
	{"error"},
	{"success", "default", "exito", "por defecto", "datos"},
}

// experienceGate checks UI specs and their documented states.
type experienceGate struct{ *env }

func (experienceGate) Number() int  { return 4 }
func (experienceGate) Name() string { return "Experience" }

func (g experienceGate) Check(_ context.Context, v *uv.ValueUnit) (Result, error) {
	refs := v.WithPrefix(uiPrefixes...)
	if len(refs) == 0 {
		return single(4, g.Name(), StatusWarn, Item{
			Description: "No UI artifacts referenced",
			Detail:      "UV has no UI/VIEW/LAYOUT/MODAL references",
		}, "No UI artifacts to verify"), nil
	}

	var items []Item
	for _, ref := range refs {
		path, ok := g.resolver.Resolve(ref.ID)
		if !ok {
			items = append(items, unresolved(ref))
			continue
		}
		items = append(items, Item{
			Description: ref.ID + " spec exists",
			Status:      StatusPass,
			ArtifactID:  ref.ID,
			FilePath:    path,
		})

		doc, err := spec.Load(path)
		if err != nil {
			return Result{}, fmt.Errorf("load UI spec %s: %w", ref.ID, err)
		}
		for _, names := range uiStates {
			it := Item{
				Description: fmt.Sprintf("%s: state %q documented", ref.ID, names[0]),
				Status:      StatusPass,
				ArtifactID:  ref.ID,
				FilePath:    path,
			}
			if !doc.HasHeading(names...) && !spec.ContainsAny(doc.Body, names...) {
				it.Status = StatusWarn
				it.Detail = fmt.Sprintf("State %q not found in spec", names[0])
			}
			items = append(items, it)
		}
	}

	fail, warn := countItems(items)
	summary := withWarnings("UI specs checked", warn)
	if fail > 0 {
		summary = fmt.Sprintf("%d UI checks failed", fail)
	}
	return Result{Gate: 4, Name: g.Name(), Status: rollup(items), Items: items, Summary: summary}, nil
}

// unresolved is the item for a spec that could not be found: skipped when the
// UV defers the artifact, failed otherwise.
func unresolved(ref uv.ArtifactRef) Item {
	it := Item{Description: ref.ID + " spec exists", ArtifactID: ref.ID}
	if ref.Status == uv.StatusDeferred {
		it.Status = StatusSkip
		it.Detail = "Deferred"
	} else {
		it.Status = StatusFail
		it.Detail = fmt.Sprintf("Spec not found for %q", ref.ID)
	}
	return it
}
