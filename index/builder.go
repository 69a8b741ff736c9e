package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/c360studio/kdd/spec"
)

type scanDir struct {
	dir string
	typ Type
}

// monolithicDirs are scanned relative to the specs root. The unnumbered
// entries cover the legacy layout.
var monolithicDirs = []scanDir{
	{"01-domain/entities", TypeEntity},
	{"01-domain/events", TypeEvent},
	{"01-domain/rules", TypeRule},
	{"02-behavior/use-cases", TypeUseCase},
	{"02-behavior/processes", TypeProcess},
	{"04-verification/criteria", TypeRequirement},
	{"domain/entities", TypeEntity},
	{"domain/events", TypeEvent},
	{"domain/rules", TypeRule},
	{"behavior/use-cases", TypeUseCase},
	{"behavior/requirements", TypeRequirement},
	{"behavior/processes", TypeProcess},
}

// domainDirs are scanned relative to each specs/domains/<id> folder.
var domainDirs = []scanDir{
	{"01-domain/entities", TypeEntity},
	{"01-domain/events", TypeEvent},
	{"01-domain/rules", TypeRule},
	{"02-behavior/use-cases", TypeUseCase},
	{"02-behavior/processes", TypeProcess},
	{"02-behavior/commands", TypeOther},
	{"02-behavior/queries", TypeOther},
	{"04-verification/criteria", TypeRequirement},
}

var sharedDirs = []scanDir{
	{"policies", TypeOther},
	{"nfr", TypeRequirement},
}

// SharedDomain is the pseudo-domain holding cross-cutting policies and NFRs.
const SharedDomain = "_shared"

var (
	h1IDPrefix         = regexp.MustCompile(`^(UC|REQ|EVT|RUL|PRC|CMD|QRY)-\d{3}:\s*`)
	useCaseID          = regexp.MustCompile(`^(UC-\d{3})`)
	subRulePattern     = regexp.MustCompile(`^##\s+(RUL-[A-Z]+-\d{3}):\s*(.+)$`)
	subRequirementLine = regexp.MustCompile(`^##\s+(REQ-\d{3}\.\d+):\s*(.+)$`)
)

// Builder scans a specs tree into an Index. A Builder holds no state between
// builds; each Build call starts from an empty index.
type Builder struct {
	logger         *slog.Logger
	customEntities []string
	ignoreTerms    map[string]bool
}

// NewBuilder creates a Builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger, ignoreTerms: map[string]bool{}}
}

// WithCustomEntities adds names that are indexed as type "other" without a backing file.
func (b *Builder) WithCustomEntities(names ...string) *Builder {
	b.customEntities = append(b.customEntities, names...)
	return b
}

// WithIgnoreTerms removes the given terms from every entry.
func (b *Builder) WithIgnoreTerms(terms ...string) *Builder {
	for _, t := range terms {
		b.ignoreTerms[spec.Normalize(t)] = true
	}
	return b
}

// Build indexes specsDir. Unreadable files are skipped and missing
// directories are not an error.
func (b *Builder) Build(specsDir string) *Index {
	idx := newIndex(specsDir)

	domainsDir := filepath.Join(specsDir, "domains")
	if info, err := os.Stat(domainsDir); err == nil && info.IsDir() {
		idx.multiDomain = true
		for _, d := range listDomainDirs(domainsDir) {
			root := filepath.Join(domainsDir, d)
			for _, sd := range domainDirs {
				b.scan(idx, filepath.Join(root, sd.dir), sd.typ, d)
			}
		}
		shared := filepath.Join(specsDir, SharedDomain)
		for _, sd := range sharedDirs {
			b.scan(idx, filepath.Join(shared, sd.dir), sd.typ, SharedDomain)
		}
	} else {
		for _, sd := range monolithicDirs {
			b.scan(idx, filepath.Join(specsDir, sd.dir), sd.typ, "")
		}
	}

	for _, name := range b.customEntities {
		b.add(idx, &Entry{
			Name:        name,
			Aliases:     []string{},
			Type:        TypeOther,
			SearchTerms: buildTerms(name),
		})
	}

	idx.finish()
	b.logger.Debug("Entity index built",
		slog.String("specs_dir", specsDir),
		slog.Int("entries", len(idx.entries)),
		slog.Bool("multi_domain", idx.multiDomain))
	return idx
}

// listDomainDirs returns domain folder names, skipping hidden and underscore-prefixed ones.
func listDomainDirs(domainsDir string) []string {
	entries, err := os.ReadDir(domainsDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (b *Builder) scan(idx *Index, dir string, typ Type, domain string) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, "_") {
			continue
		}
		path := filepath.Join(dir, name)
		doc, err := spec.Load(path)
		if err != nil {
			b.logger.Debug("Skipping unreadable spec", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		rel := relPath(idx.specsDir, path)
		entry := fileEntry(doc, typ, rel, domain)
		if !b.add(idx, entry) {
			continue
		}
		for _, sub := range subEntries(doc, typ, rel, entry) {
			b.add(idx, sub)
		}
	}
}

func (b *Builder) add(idx *Index, e *Entry) bool {
	if len(b.ignoreTerms) > 0 {
		kept := e.SearchTerms[:0]
		for _, t := range e.SearchTerms {
			if !b.ignoreTerms[t] {
				kept = append(kept, t)
			}
		}
		e.SearchTerms = kept
	}
	return idx.add(e)
}

func fileEntry(doc *spec.Document, typ Type, rel, domain string) *Entry {
	fileName := strings.TrimSuffix(filepath.Base(doc.Path), ".md")
	name := fileName
	if h1, ok := doc.H1(); ok {
		name = strings.TrimSpace(h1IDPrefix.ReplaceAllString(h1.Text, ""))
	}

	aliases := doc.Strings("aliases")
	switch {
	case typ == TypeEvent && strings.HasPrefix(fileName, "EVT-"):
		aliases = append(aliases, fileName)
	case typ == TypeRule && strings.HasPrefix(fileName, "RUL-"):
		aliases = append(aliases, fileName)
	case typ == TypeUseCase:
		if m := useCaseID.FindStringSubmatch(fileName); m != nil {
			aliases = append(aliases, m[1])
		}
	}
	if aliases == nil {
		aliases = []string{}
	}

	candidates := append([]string{name, fileName}, aliases...)
	if typ == TypeEntity {
		singular, plural := pluralForms(name)
		candidates = append(candidates, singular, plural)
	}

	return &Entry{
		Name:        name,
		ID:          doc.String("id"),
		Aliases:     aliases,
		Type:        typ,
		Path:        rel,
		SearchTerms: buildTerms(candidates...),
		Domain:      domain,
	}
}

// subEntries extracts "## RUL-X-NNN: title" and "## REQ-NNN.M: title"
// headings from rule and requirement documents.
func subEntries(doc *spec.Document, typ Type, rel string, parent *Entry) []*Entry {
	var pattern *regexp.Regexp
	var subtype Subtype
	switch typ {
	case TypeRule:
		pattern, subtype = subRulePattern, SubtypeRule
	case TypeRequirement:
		pattern, subtype = subRequirementLine, SubtypeRequirement
	default:
		return nil
	}

	var subs []*Entry
	for i, line := range doc.Lines() {
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, title := m[1], strings.TrimSpace(m[2])
		subs = append(subs, &Entry{
			Name:        title,
			ID:          id,
			Aliases:     []string{id},
			Type:        typ,
			Subtype:     subtype,
			Path:        rel,
			Line:        i + 1,
			ParentID:    parent.Name,
			SearchTerms: buildTerms(id, title),
			Domain:      parent.Domain,
		})
	}
	return subs
}

func relPath(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
