package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Snapshot is the on-disk form written to _index.json.
type Snapshot struct {
	GeneratedAt   time.Time      `json:"generatedAt"`
	MultiDomain   bool           `json:"multiDomain"`
	TotalEntities int            `json:"totalEntities"`
	ByType        map[string]int `json:"byType"`
	Entities      []*Entry       `json:"entities"`
}

// Snapshot captures the index contents; counts key on subtype when present.
func (idx *Index) Snapshot(now time.Time) Snapshot {
	byType := map[string]int{}
	for _, e := range idx.entries {
		byType[countKey(e)]++
	}
	return Snapshot{
		GeneratedAt:   now.UTC(),
		MultiDomain:   idx.multiDomain,
		TotalEntities: len(idx.entries),
		ByType:        byType,
		Entities:      idx.entries,
	}
}

func countKey(e *Entry) string {
	if e.Subtype != "" {
		return string(e.Subtype)
	}
	return string(e.Type)
}

// WriteFiles writes _index.json and _index.md into the specs root.
func (idx *Index) WriteFiles(now time.Time) error {
	data, err := json.MarshalIndent(idx.Snapshot(now), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(idx.specsDir, "_index.json"), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write _index.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(idx.specsDir, "_index.md"), []byte(idx.Markdown(now)), 0644); err != nil {
		return fmt.Errorf("write _index.md: %w", err)
	}
	return nil
}

// Markdown renders the index as human-readable tables.
func (idx *Index) Markdown(now time.Time) string {
	snap := idx.Snapshot(now)
	var b strings.Builder

	b.WriteString("# KDD Entity Index\n\n")
	b.WriteString("> Generated file. Do not edit by hand.\n")
	fmt.Fprintf(&b, "> Last updated: %s\n\n", snap.GeneratedAt.Format(time.RFC3339))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- **Total entities**: %d\n", snap.TotalEntities)
	fmt.Fprintf(&b, "- Domain entities: %d\n", snap.ByType[string(TypeEntity)])
	fmt.Fprintf(&b, "- Events: %d\n", snap.ByType[string(TypeEvent)])
	fmt.Fprintf(&b, "- Rules: %d groups, %d individual\n", snap.ByType[string(TypeRule)], snap.ByType[string(SubtypeRule)])
	fmt.Fprintf(&b, "- Use cases: %d\n", snap.ByType[string(TypeUseCase)])
	fmt.Fprintf(&b, "- Requirements: %d groups, %d individual\n", snap.ByType[string(TypeRequirement)], snap.ByType[string(SubtypeRequirement)])
	fmt.Fprintf(&b, "- Processes: %d\n\n", snap.ByType[string(TypeProcess)])

	sections := []struct {
		title  string
		filter func(*Entry) bool
	}{
		{"Domain Entities", func(e *Entry) bool { return e.Type == TypeEntity }},
		{"Events", func(e *Entry) bool { return e.Type == TypeEvent }},
		{"Rule Groups", func(e *Entry) bool { return e.Type == TypeRule && !e.IsSubEntity() }},
		{"Individual Rules", func(e *Entry) bool { return e.Subtype == SubtypeRule }},
		{"Use Cases", func(e *Entry) bool { return e.Type == TypeUseCase }},
		{"Requirements", func(e *Entry) bool { return e.Type == TypeRequirement && !e.IsSubEntity() }},
		{"Individual Requirements", func(e *Entry) bool { return e.Subtype == SubtypeRequirement }},
		{"Processes", func(e *Entry) bool { return e.Type == TypeProcess }},
		{"Other", func(e *Entry) bool { return e.Type == TypeOther }},
	}
	for _, s := range sections {
		var rows []*Entry
		for _, e := range idx.entries {
			if s.filter(e) {
				rows = append(rows, e)
			}
		}
		if len(rows) == 0 {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool { return sortKey(rows[i]) < sortKey(rows[j]) })

		fmt.Fprintf(&b, "---\n\n## %s\n\n", s.title)
		b.WriteString("| Name | ID / Aliases | Location |\n")
		b.WriteString("|------|--------------|----------|\n")
		for _, e := range rows {
			ids := strings.Join(e.Aliases, ", ")
			if ids == "" {
				ids = "-"
			}
			loc := e.Path
			if e.Line > 0 {
				loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
			}
			if e.Domain != "" {
				loc = e.Domain + " · " + loc
			}
			fmt.Fprintf(&b, "| **%s** | %s | `%s` |\n", e.Name, ids, loc)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func sortKey(e *Entry) string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}
