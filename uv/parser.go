package uv

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/c360studio/kdd/resolver"
	"github.com/c360studio/kdd/spec"
)

var sectionPatterns = []struct {
	status   Status
	patterns []*regexp.Regexp
}{
	{StatusImplemented, []*regexp.Regexp{
		regexp.MustCompile(`^implementado$`),
		regexp.MustCompile(`^implemented$`),
		regexp.MustCompile(`^dominio\b`),
		regexp.MustCompile(`^ya\s+validados?$`),
		regexp.MustCompile(`^validados?\s*\(`),
	}},
	{StatusPending, []*regexp.Regexp{
		regexp.MustCompile(`^por\s+implementar$`),
		regexp.MustCompile(`^pending$`),
	}},
	{StatusDeferred, []*regexp.Regexp{
		regexp.MustCompile(`^fuera\s+de\s+alcance`),
		regexp.MustCompile(`^out\s+of\s+scope`),
		regexp.MustCompile(`^deferred$`),
	}},
}

var (
	strikethrough = regexp.MustCompile(`~~.+~~`)
	checkedBox    = regexp.MustCompile(`(?i)\[x\]`)
	uncheckedBox  = regexp.MustCompile(`\[\s\]`)
)

// classify maps a heading to a status, or "" when it is not a tracking heading.
func classify(heading string) Status {
	n := spec.Normalize(heading)
	for _, sp := range sectionPatterns {
		for _, p := range sp.patterns {
			if p.MatchString(n) {
				return sp.status
			}
		}
	}
	return ""
}

// lineStatus applies inline marker precedence: strikethrough, checked box,
// unchecked box, then the section status, then pending.
func lineStatus(line string, section Status) Status {
	switch {
	case strikethrough.MatchString(line):
		return StatusDeferred
	case checkedBox.MatchString(line):
		return StatusImplemented
	case uncheckedBox.MatchString(line):
		return StatusPending
	case section != "":
		return section
	default:
		return StatusPending
	}
}

func isScopeHeading(heading string) bool {
	return spec.ContainsAny(heading, "alcance", "scope")
}

func isTraceabilityHeading(heading string) bool {
	return spec.ContainsAny(heading, "trazabilidad", "traceability")
}

// Parser reads Value Unit documents.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseFile loads and parses the UV at path.
func (p *Parser) ParseFile(path string) (*ValueUnit, error) {
	doc, err := spec.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load value unit: %w", err)
	}
	return p.Parse(doc), nil
}

// Parse extracts the artifact graph from doc.
//
// A document that has any level 3+ tracking heading ("Implemented",
// "Por implementar", "Out of scope"...) is read in tracked mode: only the
// subtree of the level 2 scope heading counts and each link takes its status
// from its line markers or its tracking section. Otherwise the document is
// read in flat mode: links under the scope heading default to implemented and
// links under the traceability heading are added as implemented when not
// already present.
func (p *Parser) Parse(doc *spec.Document) *ValueUnit {
	v := &ValueUnit{
		ID:          doc.String("id"),
		Title:       doc.String("title"),
		Path:        doc.Path,
		Frontmatter: doc.Frontmatter,
	}
	if v.Title == "" {
		if h1, ok := doc.H1(); ok {
			v.Title = h1.Text
		}
	}

	sections := doc.Sections()
	tracked := false
	for _, s := range sections {
		if s.Level >= 3 && classify(s.Heading) != "" {
			tracked = true
			break
		}
	}

	if tracked {
		p.parseTracked(v, sections)
	} else {
		p.parseFlat(v, sections)
	}

	v.All = make([]ArtifactRef, 0, len(v.Artifacts.Pending)+len(v.Artifacts.Implemented)+len(v.Artifacts.Deferred))
	v.All = append(v.All, v.Artifacts.Pending...)
	v.All = append(v.All, v.Artifacts.Implemented...)
	v.All = append(v.All, v.Artifacts.Deferred...)

	p.logger.Debug("Parsed value unit",
		slog.String("id", v.ID),
		slog.Bool("tracked", tracked),
		slog.Int("artifacts", len(v.All)))
	return v
}

func (p *Parser) parseTracked(v *ValueUnit, sections []spec.Section) {
	var (
		inScope       bool
		sawScope      bool
		trackedInside bool
		current       Status
	)
	for _, s := range sections {
		if s.Level == 2 {
			inScope = isScopeHeading(s.Heading)
			current = ""
			if inScope {
				sawScope = true
				// "## Out of scope" reads as a deferred tracking section.
				current = classify(s.Heading)
			}
		}
		if !inScope {
			continue
		}
		if s.Level >= 3 {
			if c := classify(s.Heading); c != "" {
				current = c
				trackedInside = true
			}
		}
		collect(v, s, func(line string) Status { return lineStatus(line, current) })
	}

	if !trackedInside {
		p.logger.Warn("Value unit has tracking headings outside its scope section; artifacts there are ignored",
			slog.String("path", v.Path),
			slog.Bool("scope_heading_found", sawScope))
	}
}

func (p *Parser) parseFlat(v *ValueUnit, sections []spec.Section) {
	for _, s := range sections {
		if s.Level <= 2 && classify(s.Heading) != "" {
			p.logger.Warn("Value unit classifies a top-level heading but has no tracking subsections; reading it as a flat list",
				slog.String("path", v.Path),
				slog.String("heading", s.Heading))
			break
		}
	}

	for _, s := range sections {
		if isScopeHeading(s.Heading) && classify(s.Heading) != StatusDeferred {
			collect(v, s, func(line string) Status { return lineStatus(line, StatusImplemented) })
			break
		}
	}

	for _, s := range sections {
		if !isTraceabilityHeading(s.Heading) {
			continue
		}
		for i, line := range s.Lines {
			for _, l := range spec.LinksInLine(line) {
				ref := newRef(l.Target, StatusImplemented, s.StartLine+i)
				if ref.ID == "" || v.Artifacts.has(ref.ID) {
					continue
				}
				v.Artifacts.add(ref)
			}
		}
		break
	}
}

// collect adds every wiki-link of section s with the status chosen for its line.
func collect(v *ValueUnit, s spec.Section, status func(line string) Status) {
	for i, line := range s.Lines {
		for _, l := range spec.LinksInLine(line) {
			ref := newRef(l.Target, status(line), s.StartLine+i)
			if ref.ID == "" {
				continue
			}
			v.Artifacts.add(ref)
		}
	}
}

func newRef(target string, status Status, line int) ArtifactRef {
	id := strings.TrimSpace(resolver.StripFragment(target))
	local := id
	if _, after, ok := strings.Cut(id, "::"); ok {
		local = after
	}
	return ArtifactRef{
		ID:         id,
		Prefix:     resolver.Prefix(local),
		FullTarget: target,
		Status:     status,
		Line:       line,
	}
}

// ParseAll parses every UV file of the tree in name order. A file that fails
// to load is kept as a unit with LoadError set so callers can report it.
func (p *Parser) ParseAll(res *resolver.Resolver) []*ValueUnit {
	var out []*ValueUnit
	for _, path := range res.ValueUnits() {
		v, err := p.ParseFile(path)
		if err != nil {
			p.logger.Warn("Cannot parse value unit", slog.String("path", path), slog.String("error", err.Error()))
			v = unloaded(path, err)
		}
		out = append(out, v)
	}
	return out
}

var uvIDPattern = regexp.MustCompile(`^UV-\d+`)

// unloaded builds the placeholder for a UV file that could not be parsed.
// The ID comes from the file name.
func unloaded(path string, err error) *ValueUnit {
	name := strings.TrimSuffix(filepath.Base(path), ".md")
	id := uvIDPattern.FindString(name)
	if id == "" {
		id = name
	}
	return &ValueUnit{ID: id, Title: name, Path: path, LoadError: err.Error()}
}

// Select parses the Value Unit with the given ID, or every Value Unit when id
// is empty. An unknown ID wraps ErrNotFound.
func (p *Parser) Select(res *resolver.Resolver, id string) ([]*ValueUnit, error) {
	if id == "" {
		return p.ParseAll(res), nil
	}
	path, err := Locate(res, id)
	if err != nil {
		return nil, err
	}
	v, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return []*ValueUnit{v}, nil
}
