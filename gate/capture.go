package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/kdd/spec"
	"github.com/c360studio/kdd/uv"
)

var captureFields = []string{"id", "kind", "title", "status", "owner"}

// captureSections lists the accepted heading names per required section.
var captureSections = [][]string{
	{"objetivo", "objective"},
	{"alcance", "scope"},
	{"inputs", "entradas"},
	{"outputs", "salidas"},
	{"criterios de salida", "criterios de exito", "definition of done", "exit criteria"},
}

// captureGate checks the UV document itself: frontmatter, sections and at
// least one artifact reference.
type captureGate struct{ *env }

func (captureGate) Number() int  { return 1 }
func (captureGate) Name() string { return "Capture" }

// loadFailure is the capture result for a UV file that cannot be parsed.
func loadFailure(path, detail string) Result {
	return Result{
		Gate:    1,
		Name:    captureGate{}.Name(),
		Status:  StatusFail,
		Items:   []Item{{Description: "Could not load UV file", Status: StatusFail, Detail: detail, FilePath: path}},
		Summary: "UV file could not be parsed",
	}
}

func (g captureGate) Check(_ context.Context, v *uv.ValueUnit) (Result, error) {
	doc, err := spec.Load(v.Path)
	if err != nil {
		g.logger.Debug("Cannot load value unit", slog.String("path", v.Path), slog.String("error", err.Error()))
		return loadFailure(v.Path, err.Error()), nil
	}

	var items []Item
	for _, field := range captureFields {
		val, ok := doc.Frontmatter[field]
		it := Item{Description: "Frontmatter field: " + field, Status: StatusPass, FilePath: v.Path}
		if !ok || val == nil {
			it.Status = StatusFail
			it.Detail = fmt.Sprintf("Missing %q in frontmatter", field)
		}
		items = append(items, it)
	}

	for _, names := range captureSections {
		it := Item{Description: "Section: " + names[0], Status: StatusPass, FilePath: v.Path}
		if !doc.HasHeading(names...) {
			it.Status = StatusFail
			it.Detail = "Missing section matching: " + strings.Join(names, " / ")
		}
		items = append(items, it)
	}

	refs := Item{Description: "Has artifact references", Status: StatusPass, FilePath: v.Path}
	if n := len(v.All); n > 0 {
		refs.Detail = fmt.Sprintf("%d artifacts found", n)
	} else {
		refs.Status = StatusFail
		refs.Detail = "No wiki-link references to specs found"
	}
	items = append(items, refs)

	fail, _ := countItems(items)
	summary := fmt.Sprintf("All %d checks passed", len(items))
	if fail > 0 {
		summary = fmt.Sprintf("%d/%d checks failed", fail, len(items))
	}
	return Result{Gate: 1, Name: g.Name(), Status: rollup(items), Items: items, Summary: summary}, nil
}
