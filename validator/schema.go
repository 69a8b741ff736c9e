package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/c360studio/kdd/spec"
)

// FieldType is the type tag of a frontmatter field.
type FieldType string

// Field types.
const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "boolean"
	FieldArray  FieldType = "array"
	FieldDate   FieldType = "date"
)

// Field describes one frontmatter key.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Pattern applies to string values.
	Pattern *regexp.Regexp
	// Enum lists the allowed string values.
	Enum []string
	// Contains is a value an array must hold.
	Contains string
	// Positive requires a numeric value greater than zero.
	Positive    bool
	Description string
}

// Schema is the frontmatter description of a document type. Keys not listed
// are allowed.
type Schema []Field

// FieldIssue is one schema violation.
type FieldIssue struct {
	Field   string
	Message string
	// Hard marks a missing required field or a wrong type.
	Hard bool
}

// Check interprets the schema against a frontmatter map.
func (s Schema) Check(fm map[string]any) []FieldIssue {
	var issues []FieldIssue
	for _, f := range s {
		v, ok := fm[f.Name]
		if !ok || v == nil {
			if f.Required {
				issues = append(issues, FieldIssue{f.Name, fmt.Sprintf("%q: required field is missing", f.Name), true})
			}
			continue
		}
		if msg, hard := f.check(v); msg != "" {
			issues = append(issues, FieldIssue{f.Name, fmt.Sprintf("%q: %s", f.Name, msg), hard})
		}
	}
	return issues
}

func (f Field) typeOf(v any) FieldType {
	switch vv := v.(type) {
	case string:
		if f.Type == FieldDate {
			return FieldDate
		}
		return FieldString
	case time.Time:
		return FieldDate
	case int, int64, uint64:
		if f.Type == FieldNumber {
			return FieldNumber
		}
		return FieldInt
	case float64:
		if f.Type == FieldInt && vv == float64(int64(vv)) {
			return FieldInt
		}
		return FieldNumber
	case bool:
		return FieldBool
	case []any, []string:
		return FieldArray
	default:
		return "object"
	}
}

// check returns a message for a violation and whether it is hard: a wrong
// type or an empty required value.
func (f Field) check(v any) (string, bool) {
	got := f.typeOf(v)
	want := f.Type
	if want == "" {
		want = FieldString
	}
	if got != want {
		return fmt.Sprintf("expected %s, got %s", want, got), true
	}

	switch want {
	case FieldString:
		s := v.(string)
		if f.Required && strings.TrimSpace(s) == "" {
			return "must not be empty", true
		}
		if len(f.Enum) > 0 && !containsString(f.Enum, s) {
			return "invalid value, allowed: " + strings.Join(f.Enum, ", "), false
		}
		if f.Pattern != nil && !f.Pattern.MatchString(s) {
			return "invalid format", false
		}
	case FieldInt, FieldNumber:
		if f.Positive && toFloat(v) <= 0 {
			return "must be greater than zero", false
		}
	case FieldArray:
		items, ok := arrayStrings(v)
		if !ok {
			return "expected an array of strings", true
		}
		if f.Contains != "" && !containsString(items, f.Contains) {
			return fmt.Sprintf("must contain %q", f.Contains), false
		}
	}
	return "", false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func arrayStrings(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var (
	statusField = Field{Name: "status", Type: FieldString, Enum: []string{"draft", "review", "proposed", "approved", "deprecated"}}
	tagsField   = Field{Name: "tags", Type: FieldArray}
	domainField = Field{Name: "domain", Type: FieldString}
)

func kindField(values ...string) Field {
	return Field{Name: "kind", Type: FieldString, Enum: values}
}

func idField(pattern string, required bool) Field {
	return Field{Name: "id", Type: FieldString, Required: required, Pattern: regexp.MustCompile(pattern)}
}

// DefaultSchemas returns the frontmatter schema of each document type.
// Types without an entry accept any frontmatter.
func DefaultSchemas() map[spec.DocType]Schema {
	return map[spec.DocType]Schema{
		spec.TypeUseCase: {
			idField(`^UC-\d{3}`, true),
			{Name: "version", Type: FieldInt, Positive: true},
			statusField,
			{Name: "actor", Type: FieldString, Required: true, Description: "Name the primary actor of the use case"},
			domainField,
			tagsField,
		},
		spec.TypeRequirement: {
			idField(`^REQ-\d{3}`, true),
			kindField("requirement", "requirements"),
			statusField,
			{Name: "source", Type: FieldString},
			domainField,
			tagsField,
		},
		spec.TypeEntity: {
			kindField("entity"),
			{Name: "aliases", Type: FieldArray},
			tagsField,
		},
		spec.TypeEvent: {
			kindField("event"),
			tagsField,
			{Name: "source", Type: FieldString},
		},
		spec.TypeRule: {
			kindField("rule", "rules"),
			{Name: "entity", Type: FieldString},
			domainField,
			tagsField,
		},
		spec.TypeProcess: {
			idField(`^PRC-\d{3}`, false),
			kindField("process"),
			statusField,
			domainField,
			tagsField,
		},
		spec.TypePRD: {
			idField(`^PRD-`, false),
			kindField("prd"),
			statusField,
			{Name: "owner", Type: FieldString},
			{Name: "stakeholders", Type: FieldArray},
			{Name: "related", Type: FieldArray},
			{Name: "success_metrics", Type: FieldArray},
			{Name: "release_criteria", Type: FieldArray},
		},
		spec.TypeStory: {
			idField(`^(US-|STORY-)`, false),
			kindField("story"),
			statusField,
			{Name: "related", Type: FieldArray},
		},
		spec.TypeNFR: {
			idField(`^NFR-`, false),
			kindField("nfr"),
			statusField,
		},
		spec.TypeADR: {
			idField(`^ADR-\d{4}`, false),
			kindField("adr"),
			statusField,
		},
		spec.TypeValueUnit: {
			idField(`^UV-\d{3}`, false),
			kindField("value-unit"),
			statusField,
			{Name: "owner", Type: FieldString},
		},
		spec.TypeCommand: {
			idField(`^CMD-\d{3}`, false),
			kindField("command"),
			statusField,
		},
		spec.TypeQuery: {
			idField(`^QRY-\d{3}`, false),
			kindField("query"),
			statusField,
		},
	}
}
