package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360studio/kdd/spec"
)

// SectionRequirement defines an expected section.
type SectionRequirement struct {
	Name     string // Canonical heading text
	Level    int
	Required bool
	// Alternatives are accepted heading patterns.
	Alternatives []*regexp.Regexp
	Description  string // Used as the suggestion when missing
}

// Template is the expected outline of a document type.
type Template struct {
	RequiresH1 bool
	H1Pattern  *regexp.Regexp
	Sections   []SectionRequirement
}

func alt(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func section(name string, required bool, alternatives ...string) SectionRequirement {
	return SectionRequirement{Name: name, Level: 2, Required: required, Alternatives: alt(alternatives...)}
}

// DefaultTemplates returns the structure template of each document type.
// Types without an entry only get the common checks.
func DefaultTemplates() map[spec.DocType]Template {
	return map[spec.DocType]Template{
		spec.TypeUseCase: {
			RequiresH1: true,
			H1Pattern:  regexp.MustCompile(`^UC-\d{3}:\s*.+`),
			Sections: []SectionRequirement{
				section("Description", true, `(?i)^Descripci[oó]n`),
				section("Actors", true, `(?i)^(Actor(es)?|Actores)`),
				section("Triggers", false, `(?i)^(Trigger(s)?|Disparadores)`),
				section("Preconditions", true, `(?i)^Precondicion(es)?`),
				section("Main Flow", true, `(?i)^(Flujo Principal|Happy Path)`),
				section("Extensions", false, `(?i)^(Extensiones|Flujos Alternativos|Alternative)`),
				section("Minimal Guarantees", false, `(?i)^Garant[ií]as M[ií]nimas`),
				section("Postconditions", true, `(?i)^Postcondicion(es)?`),
				section("Business Rules", false, `(?i)^Reglas de Negocio`),
				section("Test Scenarios", false, `(?i)^(Escenarios|Test Cases|Escenarios de Prueba)`),
			},
		},
		spec.TypeRequirement: {
			RequiresH1: true,
			H1Pattern:  regexp.MustCompile(`(?i)^(Requirements|Requisitos)`),
			Sections: []SectionRequirement{
				section("Requirements Summary", false, `(?i)^(Resumen|Summary|Resumen de Requisitos)`),
				{
					Name: "REQ-", Level: 2, Required: true,
					Alternatives: alt(`^REQ-\d{3}\.\d+`),
					Description:  "At least one individual requirement (REQ-XXX.X)",
				},
				section("Traceability Matrix", false, `(?i)^(Matriz|Traceability|Matriz de Trazabilidad)`),
			},
		},
		spec.TypeEntity: {
			Sections: []SectionRequirement{
				section("Description", true, `(?i)^Descripci[oó]n`),
				section("Attributes", true, `(?i)^Atributos`),
				section("Relations", false, `(?i)^Relaciones`),
				section("Lifecycle", false, `(?i)^(Ciclo de Vida|State|Estados)`),
				section("Invariants", false, `(?i)^(Invariantes|Constraints)`),
			},
		},
		spec.TypeEvent: {
			Sections: []SectionRequirement{
				section("Description", true, `(?i)^Descripci[oó]n`),
				section("Emitter", false, `(?i)^(Emisor|Source)`),
				section("Payload", true),
				section("Example", false, `(?i)^Ejemplo`),
				section("Subscribers", false, `(?i)^(Suscriptores|Consumers)`),
			},
		},
		spec.TypeRule: {
			RequiresH1: true,
			H1Pattern:  regexp.MustCompile(`(?i)^(Rules|Reglas)`),
			Sections: []SectionRequirement{{
				Name: "RUL-", Level: 2, Required: true,
				Alternatives: alt(`^RUL-[A-Z]+-\d{3}`),
				Description:  "At least one individual rule (RUL-XXX-NNN)",
			}},
		},
		spec.TypeProcess: {
			RequiresH1: true,
			H1Pattern:  regexp.MustCompile(`^PRC-\d{3}`),
			Sections: []SectionRequirement{
				section("Description", false, `(?i)^Descripci[oó]n`),
				section("Diagram", false, `(?i)^Diagrama`),
				section("Steps", false, `(?i)^Pasos`),
			},
		},
		spec.TypePRD: {
			RequiresH1: true,
			Sections: []SectionRequirement{
				section("Problem", true, `(?i)^Problema`),
				section("Users", false, `(?i)^(Usuarios|Jobs)`),
				section("Scope", true, `(?i)^Alcance`),
				section("Requirements", false, `(?i)^(Requisitos|Requisitos funcionales)`),
				section("NFRs", false, `(?i)^Non.?Functional`),
				section("Metrics", false, `(?i)^(M[eé]tricas|Success)`),
			},
		},
		spec.TypeStory: {
			Sections: []SectionRequirement{
				section("Acceptance Criteria", false, `(?i)^(Criterios|Criterios de aceptaci[oó]n)`),
			},
		},
		spec.TypeNFR: {
			RequiresH1: true,
			Sections: []SectionRequirement{
				section("Goal", false, `(?i)^(Objetivo|Target)`),
				section("SLI", false),
				section("SLO", false),
				section("Strategies", false, `(?i)^Estrategias`),
			},
		},
		spec.TypeADR: {
			RequiresH1: true,
			Sections: []SectionRequirement{
				section("Context", true, `(?i)^Contexto`),
				section("Decision", true, `(?i)^Decisi[oó]n`),
				section("Consequences", true, `(?i)^Consecuencias`),
			},
		},
		spec.TypeCommand: {
			RequiresH1: true,
			H1Pattern:  regexp.MustCompile(`^CMD-\d{3}`),
		},
		spec.TypeQuery: {
			RequiresH1: true,
			H1Pattern:  regexp.MustCompile(`^QRY-\d{3}`),
		},
		spec.TypeValueUnit: {
			RequiresH1: true,
			H1Pattern:  regexp.MustCompile(`^UV-\d{3}`),
			Sections: []SectionRequirement{
				section("Scope", true, `(?i)^(Alcance|Scope)`),
			},
		},
	}
}

// checkStructure validates headings against the document type template and
// applies the checks common to every document.
func checkStructure(doc *spec.Document, templates map[spec.DocType]Template) []Result {
	if doc.Type == spec.TypeUnknown {
		return nil
	}
	var results []Result
	tmpl := templates[doc.Type]

	if tmpl.RequiresH1 {
		h1, ok := doc.H1()
		switch {
		case !ok:
			results = append(results, Result{
				Level:      SeverityError,
				Rule:       "structure/missing-h1",
				Message:    "The document must have an H1 title",
				Suggestion: "Add a top-level # title at the start of the document",
			})
		case tmpl.H1Pattern != nil && !tmpl.H1Pattern.MatchString(h1.Text):
			results = append(results, Result{
				Level:      SeverityWarning,
				Rule:       "structure/h1-format",
				Message:    fmt.Sprintf("Title %q does not follow the expected format", h1.Text),
				Line:       h1.Line,
				Suggestion: "Expected format: " + tmpl.H1Pattern.String(),
			})
		}
	}

	for _, req := range tmpl.Sections {
		if !req.Required || findSection(doc.Headings, req) {
			continue
		}
		suggestion := req.Description
		if suggestion == "" {
			suggestion = fmt.Sprintf("Add a %s %s section", strings.Repeat("#", req.Level), req.Name)
		}
		results = append(results, Result{
			Level:      SeverityError,
			Rule:       "structure/missing-section",
			Message:    fmt.Sprintf("Missing required section %q", req.Name),
			Suggestion: suggestion,
		})
	}

	return append(results, commonStructure(doc)...)
}

// findSection matches by normalized name, then alternatives, then by prefix
// for names ending in "-".
func findSection(headings []spec.Heading, req SectionRequirement) bool {
	want := normalizeHeading(req.Name)
	for _, h := range headings {
		if h.Level == req.Level && normalizeHeading(h.Text) == want {
			return true
		}
	}
	for _, re := range req.Alternatives {
		for _, h := range headings {
			if h.Level == req.Level && re.MatchString(h.Text) {
				return true
			}
		}
	}
	if strings.HasSuffix(req.Name, "-") {
		for _, h := range headings {
			if h.Level == req.Level && strings.HasPrefix(h.Text, req.Name) {
				return true
			}
		}
	}
	return false
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

func normalizeHeading(s string) string {
	return strings.TrimSpace(nonWord.ReplaceAllString(spec.Normalize(s), ""))
}

func commonStructure(doc *spec.Document) []Result {
	var results []Result
	h1s := 0
	for _, h := range doc.Headings {
		if h.Level == 1 {
			h1s++
		}
	}
	if h1s > 1 {
		results = append(results, Result{
			Level:      SeverityWarning,
			Rule:       "structure/multiple-h1",
			Message:    fmt.Sprintf("The document has %d H1 titles, it should have one", h1s),
			Suggestion: "Use ## for the main sections",
		})
	}
	return append(results, emptySections(doc)...)
}

// emptySections flags a heading followed by a same-or-higher level heading
// with no content lines in between. Nested headings and comments do not
// count as content.
func emptySections(doc *spec.Document) []Result {
	var results []Result
	lines := doc.Lines()
	for i := 0; i+1 < len(doc.Headings); i++ {
		cur, next := doc.Headings[i], doc.Headings[i+1]
		if next.Level > cur.Level {
			continue
		}
		content := 0
		for n := cur.Line; n < next.Line-1 && n < len(lines); n++ {
			line := strings.TrimSpace(lines[n])
			if line != "" && !strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "<!--") {
				content++
			}
		}
		if content == 0 {
			results = append(results, Result{
				Level:      SeverityWarning,
				Rule:       "structure/empty-section",
				Message:    fmt.Sprintf("Section %q appears to be empty", cur.Text),
				Line:       cur.Line,
				Suggestion: "Add content or remove the section",
			})
		}
	}
	return results
}
