package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/c360studio/kdd/domain"
	"github.com/c360studio/kdd/index"
	"github.com/c360studio/kdd/resolver"
	"github.com/c360studio/kdd/spec"
)

const (
	maxUnlinked       = 20
	maxFixes          = 10
	maxCapitalization = 10
	maxSuggestions    = 3
	minSimilarity     = 0.5
	minFuzzyPattern   = 4
)

var (
	eventMention       = regexp.MustCompile(`EVT-[A-Za-z-]+`)
	useCaseMention     = regexp.MustCompile(`UC-\d{3}`)
	ruleMention        = regexp.MustCompile(`RUL-[A-Z]+-\d{3}`)
	ruleParent         = regexp.MustCompile(`^(RUL-[A-Z]+)-\d{3}$`)
	requirementMention = regexp.MustCompile(`REQ-\d{3}\.\d+`)
	inlineCode         = regexp.MustCompile("`[^`]*`")
)

type span struct{ start, end int }

func (s span) overlaps(o span) bool { return s.start < o.end && o.start < s.end }

type fix struct {
	line        int // file line, 1-based
	start, end  int
	replacement string
}

// semantics checks links and entity mentions against the index. One value is
// used per run; compiled term patterns are cached across files.
type semantics struct {
	idx      *index.Index
	res      *resolver.Resolver
	specsDir string
	fix      bool

	names    []string
	patterns map[string]*regexp.Regexp
	lower    map[string]*regexp.Regexp
}

func newSemantics(idx *index.Index, res *resolver.Resolver, specsDir string, fix bool) *semantics {
	s := &semantics{idx: idx, res: res, specsDir: specsDir, fix: fix, patterns: map[string]*regexp.Regexp{}, lower: map[string]*regexp.Regexp{}}
	for _, e := range idx.Entries() {
		s.names = append(s.names, e.Name)
	}
	return s
}

func (s *semantics) pattern(term string) *regexp.Regexp {
	re, ok := s.patterns[term]
	if !ok {
		re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		s.patterns[term] = re
	}
	return re
}

// lowerPattern matches the lowercase form of name, case-sensitively.
func (s *semantics) lowerPattern(name string) *regexp.Regexp {
	lower := strings.ToLower(name)
	re, ok := s.lower[lower]
	if !ok {
		re = regexp.MustCompile(`\b` + regexp.QuoteMeta(lower) + `\b`)
		s.lower[lower] = re
	}
	return re
}

func (s *semantics) rel(path string) string {
	rel, err := filepath.Rel(s.specsDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// check runs every semantic rule and, when fixing, rewrites the file.
func (s *semantics) check(doc *spec.Document) []Result {
	results := s.brokenLinks(doc)

	unlinked, fixes := s.unlinkedMentions(doc)
	results = append(results, unlinked...)
	if s.fix && len(fixes) > 0 {
		if err := applyFixes(doc, fixes); err != nil {
			results = append(results, Result{
				Level:   SeverityError,
				Rule:    "semantics/fix-failed",
				Message: fmt.Sprintf("Could not apply link fixes: %v", err),
			})
		} else {
			results = append(results, Result{
				Level:   SeverityInfo,
				Rule:    "semantics/auto-fixed",
				Message: fmt.Sprintf("Applied %d link fixes", len(fixes)),
			})
		}
	}

	results = append(results, s.crossReferences(doc)...)
	return append(results, s.capitalization(doc)...)
}

func (s *semantics) resolves(target, currentDomain string) bool {
	if _, ok := s.idx.FindReference(target, currentDomain); ok {
		return true
	}
	if s.res != nil {
		if _, ok := s.res.Resolve(target); ok {
			return true
		}
	}
	return false
}

func (s *semantics) brokenLinks(doc *spec.Document) []Result {
	var results []Result
	current := domain.FromPath(doc.Path, s.specsDir)
	for _, l := range doc.Links {
		if s.resolves(l.Target, current) {
			continue
		}
		suggestion := "Check that the artifact exists or create its spec file"
		if similar := s.similar(l.Target); len(similar) > 0 {
			quoted := make([]string, len(similar))
			for i, n := range similar {
				quoted[i] = "[[" + n + "]]"
			}
			suggestion = "Did you mean " + strings.Join(quoted, ", ") + "?"
		}
		results = append(results, Result{
			Level:      SeverityWarning,
			Rule:       "semantics/broken-link",
			Message:    fmt.Sprintf("Link [[%s]] does not match any known artifact", l.Target),
			Line:       l.Line,
			Column:     l.Start + 1,
			Suggestion: suggestion,
		})
	}
	return results
}

// similar returns up to three entry names close to target: fuzzy
// subsequence matches first, then names with an edit ratio above 0.5.
func (s *semantics) similar(target string) []string {
	target = resolver.StripFragment(target)
	if _, t, ok := strings.Cut(target, "::"); ok {
		target = t
	}
	var out []string
	seen := map[string]bool{}
	add := func(name string) bool {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
		return len(out) >= maxSuggestions
	}

	if len(target) >= minFuzzyPattern {
		for _, m := range fuzzy.Find(target, s.names) {
			if add(m.Str) {
				return out
			}
		}
	}

	type scored struct {
		name  string
		ratio float64
	}
	var candidates []scored
	norm := spec.Normalize(target)
	for _, n := range s.names {
		if r := similarity(norm, spec.Normalize(n)); r > minSimilarity {
			candidates = append(candidates, scored{n, r})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].ratio > candidates[j].ratio })
	for _, c := range candidates {
		if add(c.name) {
			break
		}
	}
	return out
}

// similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// proseLines yields body lines outside fenced code, tables and headings.
func proseLines(doc *spec.Document, fn func(lineNo int, line string)) {
	lines := doc.Lines()
	inFence := false
	for i := doc.BodyLine - 1; i < len(lines); i++ {
		if i < 0 {
			continue
		}
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence || strings.HasPrefix(trimmed, "|") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fn(i+1, lines[i])
	}
}

// protected returns the spans of wiki-links and inline code on a line.
func protected(line string) []span {
	var spans []span
	for _, l := range spec.LinksInLine(line) {
		spans = append(spans, span{l.Start, l.End})
	}
	for _, m := range inlineCode.FindAllStringIndex(line, -1) {
		spans = append(spans, span{m[0], m[1]})
	}
	return spans
}

func overlapsAny(s span, spans []span) bool {
	for _, o := range spans {
		if s.overlaps(o) {
			return true
		}
	}
	return false
}

// unlinkedMentions finds plain-text mentions of indexed terms, longest term
// first so a span is claimed by the most specific entry.
func (s *semantics) unlinkedMentions(doc *spec.Document) ([]Result, []fix) {
	rel := s.rel(doc.Path)
	linked := map[string]bool{}
	for _, l := range doc.Links {
		linked[spec.Normalize(l.Target)] = true
		if l.Display != "" {
			linked[spec.Normalize(l.Display)] = true
		}
	}

	var (
		results []Result
		fixes   []fix
	)
	terms := s.idx.SortedTerms()
	proseLines(doc, func(lineNo int, line string) {
		claimed := protected(line)
		normLine := spec.Normalize(line)
		for _, term := range terms {
			if !strings.Contains(normLine, term) {
				continue
			}
			entry, ok := s.idx.Term(term)
			if !ok || entry.Path == rel {
				continue
			}
			for _, m := range s.pattern(term).FindAllStringIndex(line, -1) {
				sp := span{m[0], m[1]}
				found := line[sp.start:sp.end]
				if overlapsAny(sp, claimed) || linked[spec.Normalize(found)] {
					continue
				}
				claimed = append(claimed, sp)
				linked[spec.Normalize(found)] = true

				results = append(results, Result{
					Level:      SeverityInfo,
					Rule:       "semantics/unlinked-entity",
					Message:    fmt.Sprintf("%q should link to [[%s]]", found, entry.Name),
					Line:       lineNo,
					Column:     sp.start + 1,
					Suggestion: fmt.Sprintf("Replace with [[%s]]", entry.Name),
				})
				fixes = append(fixes, fix{line: lineNo, start: sp.start, end: sp.end, replacement: "[[" + entry.Name + "]]"})
			}
		}
	})

	if len(results) > maxUnlinked {
		results = results[:maxUnlinked]
	}
	if len(fixes) > maxFixes {
		fixes = fixes[:maxFixes]
	}
	return results, fixes
}

// applyFixes edits the raw file back to front so earlier offsets stay valid,
// leaving the frontmatter untouched.
func applyFixes(doc *spec.Document, fixes []fix) error {
	sorted := append([]fix(nil), fixes...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].line != sorted[j].line {
			return sorted[i].line > sorted[j].line
		}
		return sorted[i].start > sorted[j].start
	})

	lines := doc.Lines()
	for _, f := range sorted {
		i := f.line - 1
		if i < 0 || i >= len(lines) || f.end > len(lines[i]) {
			continue
		}
		l := lines[i]
		lines[i] = l[:f.start] + f.replacement + l[f.end:]
	}

	info, err := os.Stat(doc.Path)
	if err != nil {
		return fmt.Errorf("stat spec: %w", err)
	}
	if err := os.WriteFile(doc.Path, []byte(strings.Join(lines, "\n")), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write spec: %w", err)
	}
	return nil
}

func uniqueMatches(re *regexp.Regexp, text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range re.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func (s *semantics) known(id string) bool {
	if _, ok := s.idx.Find(id); ok {
		return true
	}
	return false
}

func (s *semantics) crossReferences(doc *spec.Document) []Result {
	var results []Result
	body := doc.Body

	switch doc.Type {
	case spec.TypeUseCase:
		for _, evt := range uniqueMatches(eventMention, body) {
			evt = strings.TrimRight(evt, "-")
			if s.known(evt) {
				continue
			}
			results = append(results, Result{
				Level:      SeverityWarning,
				Rule:       "semantics/undefined-event",
				Message:    fmt.Sprintf("Event %q has no definition", evt),
				Suggestion: fmt.Sprintf("Create %s.md under the events directory", evt),
			})
		}
	case spec.TypeRequirement:
		for _, uc := range uniqueMatches(useCaseMention, body) {
			if s.known(uc) || s.resolves(uc, "") {
				continue
			}
			results = append(results, Result{
				Level:      SeverityWarning,
				Rule:       "semantics/undefined-uc",
				Message:    fmt.Sprintf("Use case %q has no definition", uc),
				Suggestion: fmt.Sprintf("Check that %s-*.md exists under the use-cases directory", uc),
			})
		}
	}

	for _, rule := range uniqueMatches(ruleMention, body) {
		if s.known(rule) {
			continue
		}
		suggestion := "Consider documenting it under the rules directory"
		if m := ruleParent.FindStringSubmatch(rule); m != nil {
			suggestion = fmt.Sprintf("Document it as a \"## %s: Title\" section in %s.md", rule, m[1])
		}
		results = append(results, Result{
			Level:      SeverityInfo,
			Rule:       "semantics/undefined-rule",
			Message:    fmt.Sprintf("Rule %q is not defined explicitly", rule),
			Suggestion: suggestion,
		})
	}

	for _, req := range uniqueMatches(requirementMention, body) {
		if s.known(req) {
			continue
		}
		parent, _, _ := strings.Cut(req, ".")
		results = append(results, Result{
			Level:      SeverityInfo,
			Rule:       "semantics/undefined-requirement",
			Message:    fmt.Sprintf("Requirement %q is not defined", req),
			Suggestion: fmt.Sprintf("Document it as a \"## %s: Title\" section in %s-*.md", req, parent),
		})
	}
	return results
}

// capitalization flags lowercase mentions of entity names.
func (s *semantics) capitalization(doc *spec.Document) []Result {
	var entities []*index.Entry
	for _, e := range s.idx.Entries() {
		if e.Type == index.TypeEntity && !e.IsSubEntity() && len(e.Name) > 2 && e.Name != strings.ToLower(e.Name) {
			entities = append(entities, e)
		}
	}
	if len(entities) == 0 {
		return nil
	}

	var results []Result
	reported := map[string]bool{}
	proseLines(doc, func(lineNo int, line string) {
		if strings.HasPrefix(strings.TrimSpace(line), "---") {
			return
		}
		claimed := protected(line)
		for _, e := range entities {
			for _, m := range s.lowerPattern(e.Name).FindAllStringIndex(line, -1) {
				found := line[m[0]:m[1]]
				if overlapsAny(span{m[0], m[1]}, claimed) {
					continue
				}
				key := fmt.Sprintf("%s:%d", e.Name, lineNo)
				if reported[key] {
					continue
				}
				reported[key] = true
				results = append(results, Result{
					Level:      SeverityInfo,
					Rule:       "semantics/entity-capitalization",
					Message:    fmt.Sprintf("%q should be capitalized as %q", found, e.Name),
					Line:       lineNo,
					Column:     m[0] + 1,
					Suggestion: fmt.Sprintf("Domain entities start with a capital letter: %q", e.Name),
				})
			}
		}
	})
	if len(results) > maxCapitalization {
		results = results[:maxCapitalization]
	}
	return results
}
