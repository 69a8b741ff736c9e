package gate

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/c360studio/kdd/uv"
)

var gherkinBlock = regexp.MustCompile("```gherkin\\s*\\n([\\s\\S]*?)```")

// verificationGate checks that requirement specs carry Gherkin criteria.
type verificationGate struct{ *env }

func (verificationGate) Number() int  { return 5 }
func (verificationGate) Name() string { return "Verification" }

func (g verificationGate) Check(_ context.Context, v *uv.ValueUnit) (Result, error) {
	refs := v.WithPrefix("REQ")
	if len(refs) == 0 {
		return single(5, g.Name(), StatusWarn, Item{
			Description: "No REQ artifacts referenced",
			Detail:      "UV has no REQ references, verification criteria not tracked",
		}, "No REQ artifacts to verify."), nil
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

		content, err := os.ReadFile(path)
		if err != nil {
			return Result{}, fmt.Errorf("read requirement %s: %w", ref.ID, err)
		}
		it := Item{
			Description: ref.ID + " has Gherkin criteria",
			Status:      StatusPass,
			ArtifactID:  ref.ID,
			FilePath:    path,
		}
		if n := CountGherkin(string(content)); n > 0 {
			it.Detail = fmt.Sprintf("%d Gherkin block(s) found", n)
		} else {
			it.Status = StatusFail
			it.Detail = "No ```gherkin blocks found"
		}
		items = append(items, it)
	}

	fail, _ := countItems(items)
	summary := fmt.Sprintf("All %d REQ specs have Gherkin criteria", len(refs))
	if fail > 0 {
		summary = fmt.Sprintf("%d REQ checks failed", fail)
	}
	return Result{Gate: 5, Name: g.Name(), Status: rollup(items), Items: items, Summary: summary}, nil
}

// CountGherkin returns the number of ```gherkin fenced blocks in content.
func CountGherkin(content string) int {
	return len(gherkinBlock.FindAllStringIndex(content, -1))
}
