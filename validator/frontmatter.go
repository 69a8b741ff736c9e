package validator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/c360studio/kdd/spec"
)

var useCaseSource = regexp.MustCompile(`^UC-\d{3}`)

var fieldHints = map[string]string{
	"id":     "Use the ID format of the document type: UC-001, REQ-001, EVT-xxx...",
	"status": "Valid values: draft, review, proposed, approved, deprecated",
	"tags":   "tags must be a list of strings, e.g. tags: [entity, core]",
	"actor":  "Name the primary actor of the use case",
	"kind":   "Use the literal kind of the document type",
}

// checkFrontmatter validates the frontmatter against the schema of the
// document type and applies the type specific rules.
func checkFrontmatter(doc *spec.Document, schemas map[spec.DocType]Schema) []Result {
	if !doc.HasFrontmatter() {
		if doc.Type == spec.TypeUnknown {
			return nil
		}
		return []Result{{
			Level:      SeverityWarning,
			Rule:       "frontmatter/missing",
			Message:    fmt.Sprintf("File of type %q has no frontmatter", doc.Type),
			Suggestion: "Add a YAML block at the top of the file with the required fields",
		}}
	}

	var results []Result
	schema := schemas[doc.Type]
	for _, issue := range schema.Check(doc.Frontmatter) {
		level := SeverityWarning
		if issue.Hard {
			level = SeverityError
		}
		results = append(results, Result{
			Level:      level,
			Rule:       "frontmatter/" + issue.Field,
			Message:    issue.Message,
			Line:       1,
			Suggestion: hintFor(schema, issue.Field),
		})
	}
	return append(results, typeSpecific(doc)...)
}

func hintFor(schema Schema, field string) string {
	for _, f := range schema {
		if f.Name == field && f.Description != "" {
			return f.Description
		}
	}
	return fieldHints[field]
}

func typeSpecific(doc *spec.Document) []Result {
	var results []Result
	switch doc.Type {
	case spec.TypeUseCase:
		name := strings.TrimSuffix(filepath.Base(doc.Path), ".md")
		if id := doc.String("id"); id != "" && !strings.HasPrefix(name, id) {
			results = append(results, Result{
				Level:      SeverityWarning,
				Rule:       "frontmatter/id-mismatch",
				Message:    fmt.Sprintf("ID %q does not match the file name %q", id, name),
				Suggestion: "The file name should start with the document ID",
			})
		}
	case spec.TypeRequirement:
		if src := doc.String("source"); src != "" && !useCaseSource.MatchString(src) {
			results = append(results, Result{
				Level:      SeverityWarning,
				Rule:       "frontmatter/invalid-source",
				Message:    fmt.Sprintf("Source %q does not reference a use case", src),
				Suggestion: "source must reference an existing UC-XXX",
			})
		}
	case spec.TypeEntity, spec.TypeEvent:
		kind := string(doc.Type)
		if doc.String("kind") != kind && !containsString(doc.Strings("tags"), kind) {
			results = append(results, Result{
				Level:      SeverityInfo,
				Rule:       fmt.Sprintf("frontmatter/missing-%s-kind", kind),
				Message:    fmt.Sprintf("%s specs should declare kind: %s (or the %q tag)", titleCase(kind), kind, kind),
				Suggestion: fmt.Sprintf("Add \"kind: %s\" to the frontmatter", kind),
			})
		}
	}
	return results
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
