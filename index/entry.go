// Package index builds the in-memory entity index: every known spec artifact,
// its aliases, and the normalized terms that refer to it.
package index

import (
	"sort"
	"strings"

	"github.com/c360studio/kdd/spec"
)

// Type is the artifact category an entry was indexed under.
type Type string

// Entry types.
const (
	TypeEntity      Type = "entity"
	TypeEvent       Type = "event"
	TypeRule        Type = "rule"
	TypeUseCase     Type = "use-case"
	TypeRequirement Type = "requirement"
	TypeProcess     Type = "process"
	TypeOther       Type = "other"
)

// Subtype marks entries extracted from a sub-heading of another document.
type Subtype string

// Subtypes.
const (
	SubtypeRule        Subtype = "individual-rule"
	SubtypeRequirement Subtype = "individual-requirement"
)

// Entry is one resolvable spec artifact or sub-artifact.
type Entry struct {
	Name        string   `json:"name"`
	ID          string   `json:"id,omitempty"`
	Aliases     []string `json:"aliases"`
	Type        Type     `json:"type"`
	Subtype     Subtype  `json:"subtype,omitempty"`
	Path        string   `json:"path"`
	Line        int      `json:"line,omitempty"`
	ParentID    string   `json:"parentId,omitempty"`
	SearchTerms []string `json:"searchTerms"`
	Domain      string   `json:"domain,omitempty"`
}

// IsSubEntity reports whether the entry came from a sub-heading.
func (e *Entry) IsSubEntity() bool {
	return e.Subtype != ""
}

// minTermLength drops terms of two characters or fewer.
const minTermLength = 3

// buildTerms normalizes, de-duplicates and filters candidate terms while
// keeping first-seen order.
func buildTerms(candidates ...string) []string {
	seen := make(map[string]bool, len(candidates))
	terms := make([]string, 0, len(candidates))
	for _, c := range candidates {
		t := spec.Normalize(c)
		if len(t) < minTermLength || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	return terms
}

// pluralForms returns naive singular and plural variants of name.
func pluralForms(name string) (singular, plural string) {
	singular = strings.TrimSuffix(name, "s")
	plural = name
	if !strings.HasSuffix(name, "s") {
		plural = name + "s"
	}
	return singular, plural
}

// sortLongestFirst orders terms by descending length, ties alphabetically.
func sortLongestFirst(terms []string) {
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
}
