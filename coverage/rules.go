// Package coverage measures how far the spec tree is backed by other specs,
// code and tests.
package coverage

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/c360studio/kdd/resolver"
	"github.com/c360studio/kdd/spec"
)

// DefaultThreshold is the rule coverage percentage required to pass.
const DefaultThreshold = 95

var (
	// ruleWithNumber stops at the first numeric segment, so a file named
	// BR-PAY-001-DailyLimit and a link to BR-PAY-001 share an ID.
	ruleWithNumber = regexp.MustCompile(`(?i)^((?:BR|RUL)-(?:[A-Z0-9]+-)*?\d+)`)
	ruleAny        = regexp.MustCompile(`(?i)^((?:BR|RUL)-[\w-]+)`)
	commandID      = regexp.MustCompile(`(?i)^((?:CMD|QRY)-\d+)`)
)

// RuleID returns the canonical uppercase rule ID a link target or file name
// starts with, or "" when it is not a rule reference.
func RuleID(s string) string {
	s = strings.TrimSpace(resolver.StripFragment(s))
	if m := ruleWithNumber.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := ruleAny.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// RuleReferences maps each rule ID linked from a command spec to the IDs of
// the commands linking it, in file order.
func RuleReferences(res *resolver.Resolver) (map[string][]string, error) {
	refs := map[string][]string{}
	for _, path := range res.CommandSpecs() {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read command spec: %w", err)
		}
		cmd := specID(path, commandID)
		for _, target := range spec.LinkTargets(string(content)) {
			id := RuleID(target)
			if id == "" {
				continue
			}
			if cmds := refs[id]; len(cmds) > 0 && cmds[len(cmds)-1] == cmd {
				continue
			}
			refs[id] = append(refs[id], cmd)
		}
	}
	return refs, nil
}

// RuleReport is the BR/RUL → CMD coverage of the whole tree.
type RuleReport struct {
	Total          int                 `json:"total"`
	Covered        int                 `json:"covered"`
	Uncovered      int                 `json:"uncovered"`
	Percent        int                 `json:"coveragePercent"`
	Threshold      int                 `json:"threshold"`
	Pass           bool                `json:"pass"`
	CoveredRules   []string            `json:"coveredRules"`
	UncoveredRules []string            `json:"uncoveredRules"`
	CoverageMap    map[string][]string `json:"coverageMap"`
}

// Rules checks every rule spec against the links of every command spec.
// A tree without rules is fully covered.
func Rules(res *resolver.Resolver, threshold int) (*RuleReport, error) {
	refs, err := RuleReferences(res)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var ids []string
	for _, path := range res.RuleSpecs() {
		id := RuleID(strings.TrimSuffix(filepath.Base(path), ".md"))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)

	r := &RuleReport{
		Total:          len(ids),
		Threshold:      threshold,
		CoveredRules:   []string{},
		UncoveredRules: []string{},
		CoverageMap:    map[string][]string{},
	}
	for _, id := range ids {
		if cmds, ok := refs[id]; ok {
			r.CoveredRules = append(r.CoveredRules, id)
			r.CoverageMap[id] = cmds
		} else {
			r.UncoveredRules = append(r.UncoveredRules, id)
		}
	}
	r.Covered = len(r.CoveredRules)
	r.Uncovered = len(r.UncoveredRules)
	r.Percent = Percent(r.Covered, r.Total)
	r.Pass = r.Percent >= threshold
	return r, nil
}

// Percent returns part/total as a rounded percentage, 100 when total is 0.
func Percent(part, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}

func specID(path string, pattern *regexp.Regexp) string {
	base := strings.TrimSuffix(filepath.Base(path), ".md")
	if m := pattern.FindStringSubmatch(base); m != nil {
		return strings.ToUpper(m[1])
	}
	return base
}
