package gate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/kdd/codemap"
	"github.com/c360studio/kdd/uv"
)

var reqBaseID = regexp.MustCompile(`(?i)^(REQ-\d+)`)

// evidenceGate checks that tests exist and, outside quick mode, pass.
type evidenceGate struct{ *env }

func (evidenceGate) Number() int  { return 8 }
func (evidenceGate) Name() string { return "Evidence" }

func (g evidenceGate) Check(ctx context.Context, v *uv.ValueUnit) (Result, error) {
	var testable []uv.ArtifactRef
	for _, ref := range v.WithPrefix(codePrefixes...) {
		if ref.Status != uv.StatusDeferred {
			testable = append(testable, ref)
		}
	}
	if len(testable) == 0 {
		return single(8, g.Name(), StatusWarn, Item{
			Description: "No testable artifacts",
		}, "No testable artifacts to verify"), nil
	}

	mapping := g.mapper.Scan()
	var items []Item
	for _, ref := range testable {
		code, ok := g.mapper.Locate(ref.ID, mapping, g.resolver)
		if !ok {
			items = append(items, Item{
				Description: ref.ID + " test file",
				Status:      StatusFail,
				Detail:      "Cannot determine code file path",
				ArtifactID:  ref.ID,
			})
			continue
		}
		test := codemap.TestPath(code)
		items = append(items, existenceItem(ref.ID+" test file exists", ref.ID, test, g.rel(test)))
	}

	for _, ref := range v.WithPrefix("REQ") {
		m := reqBaseID.FindStringSubmatch(ref.ID)
		if m == nil {
			continue
		}
		items = append(items, g.reqTestItem(ref.ID, m[1]))
	}

	if !g.opts.Quick {
		if files := passingTests(items); len(files) > 0 {
			item, err := g.execute(ctx, files)
			if err != nil {
				return Result{}, err
			}
			items = append(items, item)
		}
	}

	fail, warn := countItems(items)
	summary := withWarnings("Tests checked", warn)
	if fail > 0 {
		summary = fmt.Sprintf("%d test checks failed", fail)
	}
	return Result{Gate: 8, Name: g.Name(), Status: rollup(items), Items: items, Summary: summary}, nil
}

// reqTestItem looks for <reqID>*.test.ts in the requirement tests directory.
func (g evidenceGate) reqTestItem(artifactID, reqID string) Item {
	dir := g.reqTestsPath()
	pattern := reqID + "*.test.ts"
	var matches []string
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		matches, _ = doublestar.Glob(os.DirFS(dir), pattern)
		sort.Strings(matches)
	}
	if len(matches) == 0 {
		return Item{
			Description: artifactID + " req test exists",
			Status:      StatusWarn,
			Detail:      fmt.Sprintf("No test file matching %s in %s/", pattern, strings.TrimSuffix(g.opts.ReqTestsDir, "/")),
			ArtifactID:  artifactID,
		}
	}
	path := filepath.Join(dir, filepath.FromSlash(matches[0]))
	return Item{
		Description: artifactID + " req test exists",
		Status:      StatusPass,
		Detail:      g.rel(path),
		ArtifactID:  artifactID,
		FilePath:    path,
	}
}

func passingTests(items []Item) []string {
	var files []string
	for _, it := range items {
		if it.Status == StatusPass && strings.HasSuffix(it.FilePath, ".test.ts") {
			files = append(files, it.FilePath)
		}
	}
	return files
}

func (g evidenceGate) execute(ctx context.Context, files []string) (Item, error) {
	const desc = "Test execution"
	res, err := g.runner.Run(ctx, g.opts.TestCommand, files...)
	switch {
	case err != nil && ctx.Err() != nil:
		return Item{}, err
	case err != nil:
		return Item{Description: desc, Status: StatusFail, Detail: "Error running tests: " + err.Error()}, nil
	case res.TimedOut:
		return Item{Description: desc, Status: StatusFail, Detail: "timed out after " + g.runner.Timeout().String()}, nil
	case res.ExitCode != 0:
		return Item{Description: desc, Status: StatusFail, Detail: fmt.Sprintf("Tests failed (exit code %d)", res.ExitCode)}, nil
	default:
		return Item{Description: desc, Status: StatusPass, Detail: "All tests passed"}, nil
	}
}
