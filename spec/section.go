package spec

import "strings"

// Section is a heading plus the lines that follow it up to the next heading
// of any level.
type Section struct {
	Heading string
	Level   int
	// Lines holds the body; Lines[i] is file line StartLine+i.
	Lines     []string
	StartLine int
}

// Body returns the section body as a single string.
func (s Section) Body() string {
	return strings.Join(s.Lines, "\n")
}

// Sections splits the document body at every heading outside fenced code.
// Text before the first heading is not part of any section.
func (d *Document) Sections() []Section {
	lines := d.Lines()
	var (
		sections []Section
		current  *Section
		inFence  bool
	)
	for i := d.BodyLine - 1; i < len(lines); i++ {
		line := lines[i]
		if isFence(line) {
			inFence = !inFence
		} else if !inFence {
			if h, ok := parseHeading(line); ok {
				if current != nil {
					sections = append(sections, *current)
				}
				current = &Section{Heading: h.Text, Level: h.Level, StartLine: i + 2}
				continue
			}
		}
		if current != nil {
			current.Lines = append(current.Lines, line)
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}
