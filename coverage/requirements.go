package coverage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/kdd/resolver"
	"github.com/c360studio/kdd/spec"
)

var (
	reqInTestName  = regexp.MustCompile(`(REQ-\d{3}\.\d+|REQ-\d{3})`)
	reqDocID       = regexp.MustCompile(`^(REQ-\d+)`)
	subRequirement = regexp.MustCompile(`^(REQ-\d+\.\d+)\b`)
)

// Criterion is one requirement (or sub-requirement) that needs a test.
type Criterion struct {
	ID       string `json:"id"`
	SpecFile string `json:"specFile"`
	TestFile string `json:"testFile,omitempty"`
}

// RequirementReport is the REQ → test file coverage of the tree.
type RequirementReport struct {
	TestsDir string      `json:"testsDir"`
	Total    int         `json:"total"`
	Covered  []Criterion `json:"covered"`
	Missing  []Criterion `json:"missing"`
	Percent  int         `json:"coveragePercent"`
}

// Pass reports whether every criterion has a test.
func (r *RequirementReport) Pass() bool { return len(r.Missing) == 0 }

// Requirements matches the criteria of every REQ spec against the *.test.ts
// files under testsDir. A REQ document with "## REQ-NNN.M" headings
// contributes one criterion per sub-requirement, otherwise one for itself.
func Requirements(res *resolver.Resolver, testsDir string) (*RequirementReport, error) {
	tests, err := testFiles(testsDir)
	if err != nil {
		return nil, err
	}

	r := &RequirementReport{TestsDir: testsDir, Covered: []Criterion{}, Missing: []Criterion{}}
	seen := map[string]bool{}
	for _, specPath := range res.RequirementSpecs() {
		ids, err := criteriaIn(specPath)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			c := Criterion{ID: id, SpecFile: specPath}
			if test, ok := tests[id]; ok {
				c.TestFile = test
				r.Covered = append(r.Covered, c)
			} else {
				r.Missing = append(r.Missing, c)
			}
		}
	}
	sort.Slice(r.Missing, func(i, j int) bool { return r.Missing[i].ID < r.Missing[j].ID })
	r.Total = len(r.Covered) + len(r.Missing)
	r.Percent = Percent(len(r.Covered), r.Total)
	return r, nil
}

func criteriaIn(specPath string) ([]string, error) {
	doc, err := spec.Load(specPath)
	if err != nil {
		return nil, fmt.Errorf("load requirement spec: %w", err)
	}
	var ids []string
	for _, h := range doc.Headings {
		if h.Level != 2 {
			continue
		}
		if m := subRequirement.FindStringSubmatch(h.Text); m != nil {
			ids = append(ids, m[1])
		}
	}
	if len(ids) > 0 {
		return ids, nil
	}
	base := strings.TrimSuffix(filepath.Base(specPath), ".md")
	if m := reqDocID.FindStringSubmatch(base); m != nil {
		return []string{m[1]}, nil
	}
	return nil, nil
}

// testFiles maps each REQ ID named by a test file to the first such file.
// A missing directory has no tests.
func testFiles(dir string) (map[string]string, error) {
	out := map[string]string{}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return out, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.test.ts")
	if err != nil {
		return nil, fmt.Errorf("list requirement tests: %w", err)
	}
	sort.Strings(matches)
	for _, m := range matches {
		id := reqInTestName.FindString(path.Base(m))
		if id == "" {
			continue
		}
		if _, ok := out[id]; !ok {
			out[id] = filepath.Join(dir, filepath.FromSlash(m))
		}
	}
	return out, nil
}
