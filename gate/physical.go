package gate

import (
	"context"
	"fmt"
	"os"

	"github.com/c360studio/kdd/uv"
)

var codePrefixes = []string{"CMD", "QRY"}

// physicalGate checks that every non-deferred command and query has a
// use-case file.
type physicalGate struct{ *env }

func (physicalGate) Number() int  { return 6 }
func (physicalGate) Name() string { return "Physical" }

func (g physicalGate) Check(_ context.Context, v *uv.ValueUnit) (Result, error) {
	refs := v.WithPrefix(codePrefixes...)
	if len(refs) == 0 {
		return single(6, g.Name(), StatusWarn, Item{
			Description: "No CMD/QRY artifacts referenced",
		}, "No code artifacts to verify"), nil
	}

	mapping := g.mapper.Scan()
	var items []Item
	for _, ref := range refs {
		if ref.Status == uv.StatusDeferred {
			items = append(items, Item{
				Description: ref.ID + " code file",
				Status:      StatusSkip,
				Detail:      "Deferred",
				ArtifactID:  ref.ID,
			})
			continue
		}
		path, ok := g.mapper.Locate(ref.ID, mapping, g.resolver)
		if !ok {
			items = append(items, Item{
				Description: ref.ID + " code file",
				Status:      StatusFail,
				Detail:      "Cannot determine expected file path",
				ArtifactID:  ref.ID,
			})
			continue
		}
		items = append(items, existenceItem(ref.ID+" code file exists", ref.ID, path, g.rel(path)))
	}

	fail, _ := countItems(items)
	summary := "All code files exist"
	if fail > 0 {
		summary = fmt.Sprintf("%d code files missing", fail)
	}
	return Result{Gate: 6, Name: g.Name(), Status: rollup(items), Items: items, Summary: summary}, nil
}

// existenceItem passes when path is a regular file and fails with the
// expected location otherwise.
func existenceItem(desc, id, path, shown string) Item {
	it := Item{Description: desc, ArtifactID: id, FilePath: path, Status: StatusPass, Detail: shown}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		it.Status = StatusFail
		it.Detail = "Expected: " + shown
	}
	return it
}
