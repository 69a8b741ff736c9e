package index

import (
	"strings"

	"github.com/c360studio/kdd/spec"
)

// Index is a read-only lookup structure once built.
type Index struct {
	specsDir     string
	entries      []*Entry
	byTerm       map[string]*Entry
	byDomainTerm map[string]*Entry
	sortedTerms  []string
	multiDomain  bool
}

func newIndex(specsDir string) *Index {
	return &Index{
		specsDir:     specsDir,
		byTerm:       map[string]*Entry{},
		byDomainTerm: map[string]*Entry{},
	}
}

// add registers e under each of its terms; the first entry to claim a term keeps it.
func (idx *Index) add(e *Entry) bool {
	if len(e.SearchTerms) == 0 {
		return false
	}
	idx.entries = append(idx.entries, e)
	for _, t := range e.SearchTerms {
		if _, taken := idx.byTerm[t]; !taken {
			idx.byTerm[t] = e
		}
		if idx.multiDomain && e.Domain != "" {
			key := DomainKey(e.Domain, t)
			if _, taken := idx.byDomainTerm[key]; !taken {
				idx.byDomainTerm[key] = e
			}
		}
	}
	return true
}

func (idx *Index) finish() {
	idx.sortedTerms = make([]string, 0, len(idx.byTerm))
	for t := range idx.byTerm {
		idx.sortedTerms = append(idx.sortedTerms, t)
	}
	sortLongestFirst(idx.sortedTerms)
}

// DomainKey builds the domain-qualified lookup key for a normalized term.
func DomainKey(domain, term string) string {
	return domain + "::" + term
}

// SpecsDir returns the root the index was built from.
func (idx *Index) SpecsDir() string { return idx.specsDir }

// MultiDomain reports whether the tree used the domains/ layout.
func (idx *Index) MultiDomain() bool { return idx.multiDomain }

// Len returns the number of entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Entries returns every entry in scan order.
func (idx *Index) Entries() []*Entry { return idx.entries }

// SortedTerms returns all terms, longest first.
func (idx *Index) SortedTerms() []string { return idx.sortedTerms }

// Term returns the entry registered for an already-normalized term.
func (idx *Index) Term(term string) (*Entry, bool) {
	e, ok := idx.byTerm[term]
	return e, ok
}

// Find looks text up after normalization.
func (idx *Index) Find(text string) (*Entry, bool) {
	return idx.Term(spec.Normalize(text))
}

// FindInDomain looks up a term qualified by domain.
func (idx *Index) FindInDomain(domain, term string) (*Entry, bool) {
	e, ok := idx.byDomainTerm[DomainKey(domain, spec.Normalize(term))]
	return e, ok
}

// FindWithFallback tries the current domain, then core, then the global table.
func (idx *Index) FindWithFallback(term, currentDomain string) (*Entry, bool) {
	if currentDomain != "" {
		if e, ok := idx.FindInDomain(currentDomain, term); ok {
			return e, true
		}
	}
	if e, ok := idx.FindInDomain("core", term); ok {
		return e, true
	}
	return idx.Find(term)
}

// FindReference resolves a wiki-link target, honouring a domain::target
// qualifier and a #fragment suffix.
func (idx *Index) FindReference(target, currentDomain string) (*Entry, bool) {
	if base, fragment, ok := strings.Cut(target, "#"); ok {
		target = base
		if target == "" {
			target = fragment
		}
	}
	if d, t, ok := strings.Cut(target, "::"); ok && d != "" {
		return idx.FindInDomain(d, t)
	}
	return idx.FindWithFallback(target, currentDomain)
}

// Search returns entries with a term that contains, or is contained in, text.
func (idx *Index) Search(text string) []*Entry {
	n := spec.Normalize(text)
	if n == "" {
		return nil
	}
	var out []*Entry
	for _, e := range idx.entries {
		for _, t := range e.SearchTerms {
			if strings.Contains(t, n) || strings.Contains(n, t) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// InDomain returns all entries owned by domain.
func (idx *Index) InDomain(domain string) []*Entry {
	var out []*Entry
	for _, e := range idx.entries {
		if e.Domain == domain {
			out = append(out, e)
		}
	}
	return out
}

// ByType groups entries by type.
func (idx *Index) ByType() map[Type][]*Entry {
	out := map[Type][]*Entry{}
	for _, e := range idx.entries {
		out[e.Type] = append(out[e.Type], e)
	}
	return out
}
