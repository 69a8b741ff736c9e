// Package spec loads KDD markdown spec files: YAML frontmatter, headings with
// line numbers, wiki-links with positions and the inferred document type.
package spec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"
)

// Heading is an ATX heading found outside fenced code.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Line  int    `json:"line"`
}

// WikiLink is one [[target]] or [[target|display]] occurrence.
// Start and End are byte offsets within the line.
type WikiLink struct {
	Target  string `json:"target"`
	Display string `json:"display,omitempty"`
	Line    int    `json:"line"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// Document is a parsed spec file. All line numbers are 1-based and refer to
// the file as stored on disk, frontmatter included.
type Document struct {
	Path        string
	Frontmatter map[string]any
	Raw         string
	Body        string
	// BodyLine is the file line on which Body starts.
	BodyLine int
	Headings []Heading
	Links    []WikiLink
	Type     DocType
}

var (
	headingPattern  = regexp.MustCompile(`^(#{1,6})[ \t]+(.+)$`)
	wikiLinkPattern = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)
	closingHashes   = regexp.MustCompile(`\s+#+\s*$`)
)

// Load reads and parses the file at path. A UTF-8 or UTF-16 byte order mark
// is honoured and removed.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spec: %w", err)
	}
	defer f.Close()

	decoder := xunicode.BOMOverride(xunicode.UTF8.NewDecoder())
	content, err := io.ReadAll(transform.NewReader(f, decoder))
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	return Parse(path, content)
}

// Parse parses content as a spec document stored at path.
func Parse(path string, content []byte) (*Document, error) {
	raw := string(bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n")))
	doc := &Document{
		Path:        path,
		Raw:         raw,
		Frontmatter: map[string]any{},
		BodyLine:    1,
	}

	lines := strings.Split(raw, "\n")
	fmLines, bodyStart, ok := splitFrontmatter(lines)
	if ok {
		if err := yaml.Unmarshal([]byte(strings.Join(fmLines, "\n")), &doc.Frontmatter); err != nil {
			return nil, fmt.Errorf("parse frontmatter in %s: %w", path, err)
		}
		if doc.Frontmatter == nil {
			doc.Frontmatter = map[string]any{}
		}
		doc.BodyLine = bodyStart + 1
	}
	doc.Body = strings.Join(lines[bodyStart:], "\n")

	inFence := false
	for i := bodyStart; i < len(lines); i++ {
		line := lines[i]
		if isFence(line) {
			inFence = !inFence
			continue
		}
		if !inFence {
			if h, ok := parseHeading(line); ok {
				h.Line = i + 1
				doc.Headings = append(doc.Headings, h)
			}
		}
		for _, l := range LinksInLine(line) {
			l.Line = i + 1
			doc.Links = append(doc.Links, l)
		}
	}

	doc.Type = InferType(path, doc.Frontmatter)
	return doc, nil
}

// splitFrontmatter returns the YAML lines and the index of the first body
// line. The block must open on the first line and close with "---" or "...".
func splitFrontmatter(lines []string) ([]string, int, bool) {
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t") != "---" {
		return nil, 0, false
	}
	for i := 1; i < len(lines); i++ {
		trimmed := strings.TrimRight(lines[i], " \t")
		if trimmed == "---" || trimmed == "..." {
			return lines[1:i], i + 1, true
		}
	}
	return nil, 0, false
}

func isFence(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

func parseHeading(line string) (Heading, bool) {
	m := headingPattern.FindStringSubmatch(line)
	if m == nil {
		return Heading{}, false
	}
	text := closingHashes.ReplaceAllString(m[2], "")
	text = strings.NewReplacer("`", "", "**", "", "__", "").Replace(text)
	return Heading{Level: len(m[1]), Text: strings.TrimSpace(text)}, true
}

// LinksInLine extracts wiki-links from a single line. Line is left zero.
func LinksInLine(line string) []WikiLink {
	matches := wikiLinkPattern.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return nil
	}
	links := make([]WikiLink, 0, len(matches))
	for _, m := range matches {
		link := WikiLink{
			Target: strings.TrimSpace(line[m[2]:m[3]]),
			Start:  m[0],
			End:    m[1],
		}
		if m[4] >= 0 {
			link.Display = strings.TrimSpace(line[m[4]:m[5]])
		}
		links = append(links, link)
	}
	return links
}

// LinkTargets returns the targets of every wiki-link in text, in order.
func LinkTargets(text string) []string {
	var targets []string
	for _, line := range strings.Split(text, "\n") {
		for _, l := range LinksInLine(line) {
			targets = append(targets, l.Target)
		}
	}
	return targets
}

// HasFrontmatter reports whether the document carried a non-empty frontmatter block.
func (d *Document) HasFrontmatter() bool {
	return len(d.Frontmatter) > 0
}

// String returns a frontmatter value as a string, or "" when it is absent
// or not a scalar.
func (d *Document) String(key string) string {
	switch v := d.Frontmatter[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case int, int64, float64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// Strings returns a frontmatter list value as strings.
func (d *Document) Strings(key string) []string {
	return stringSlice(d.Frontmatter[key])
}

// H1 returns the first level-1 heading.
func (d *Document) H1() (Heading, bool) {
	for _, h := range d.Headings {
		if h.Level == 1 {
			return h, true
		}
	}
	return Heading{}, false
}

// Lines returns the raw file split into lines; index i holds file line i+1.
func (d *Document) Lines() []string {
	return strings.Split(d.Raw, "\n")
}

// HasHeading reports whether any heading contains one of names after normalization.
func (d *Document) HasHeading(names ...string) bool {
	for _, h := range d.Headings {
		if ContainsAny(h.Text, names...) {
			return true
		}
	}
	return false
}

// SectionContent returns the text under the first heading containing one of
// names, up to the next heading of the same or higher level.
func (d *Document) SectionContent(names ...string) (string, bool) {
	lines := d.Lines()
	for i, h := range d.Headings {
		if !ContainsAny(h.Text, names...) {
			continue
		}
		end := len(lines)
		for _, next := range d.Headings[i+1:] {
			if next.Level <= h.Level {
				end = next.Line - 1
				break
			}
		}
		return strings.TrimSpace(strings.Join(lines[h.Line:end], "\n")), true
	}
	return "", false
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
