package validator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/c360studio/kdd/spec"
)

// readyStatuses trigger the definition-of-ready checks.
var readyStatuses = map[string]bool{"review": true, "approved": true, "proposed": true}

type readiness string

const (
	readyObjective   readiness = "objective"
	readyValueUnit   readiness = "value-unit"
	readyRelease     readiness = "release"
	readyUseCase     readiness = "use-case"
	readyRequirement readiness = "requirement"
	readyCommand     readiness = "command"
	readyQuery       readiness = "query"
	readyUI          readiness = "ui"
)

var (
	userStoryFormat = regexp.MustCompile(`(?i)como\s+.+\bquiero\b.+\bpara\b|as\s+an?\s+.+\bi\s+want\b.+\bso\s+that\b`)
	nonAlnum        = regexp.MustCompile(`[^a-z0-9]+`)
)

var uiStates = [][]string{
	{"loading", "carga"},
	{"empty", "vacio", "sin datos"},
	{"error"},
	{"success", "exito", "default", "normal"},
}

var (
	exitCriteriaNames = []string{"Criterios de salida", "Criterios de exito", "Exit criteria", "Success criteria"}
	inputNames        = []string{"Input", "Inputs", "Entrada", "Entradas"}
	outputNames       = []string{"Output", "Outputs", "Salida", "Salidas"}
)

func readinessCategory(doc *spec.Document) (readiness, bool) {
	name := filepath.Base(doc.Path)
	kind := strings.ToLower(doc.String("kind"))
	switch {
	case strings.HasPrefix(name, "OBJ-") || kind == "objective":
		return readyObjective, true
	case strings.HasPrefix(name, "UV-") || kind == "value-unit":
		return readyValueUnit, true
	case strings.HasPrefix(name, "REL-") || kind == "release":
		return readyRelease, true
	case strings.HasPrefix(name, "UC-") || doc.Type == spec.TypeUseCase:
		return readyUseCase, true
	case strings.HasPrefix(name, "REQ-") || doc.Type == spec.TypeRequirement:
		return readyRequirement, true
	case strings.HasPrefix(name, "CMD-") || kind == "command":
		return readyCommand, true
	case strings.HasPrefix(name, "QRY-") || kind == "query":
		return readyQuery, true
	case strings.HasPrefix(name, "UI-") || strings.HasPrefix(kind, "ui-"):
		return readyUI, true
	}
	return "", false
}

func readyWarning(rule, message, suggestion string) Result {
	return Result{Level: SeverityWarning, Rule: "readiness/" + rule, Message: message, Suggestion: suggestion}
}

// checkReadiness applies the definition of ready to documents whose status
// is review, proposed or approved.
func checkReadiness(doc *spec.Document) []Result {
	status := strings.ToLower(doc.String("status"))
	if !readyStatuses[status] {
		return nil
	}
	cat, ok := readinessCategory(doc)
	if !ok {
		return nil
	}

	var results []Result
	switch cat {
	case readyObjective, readyValueUnit, readyRelease:
		if strings.TrimSpace(doc.String("owner")) == "" {
			r := readyWarning("missing-owner", `The "owner" field is required to move to review/approved`,
				`Add "owner: name or role" to the frontmatter`)
			r.Line = 1
			results = append(results, r)
		}
	}

	switch cat {
	case readyObjective:
		results = append(results, readyObjectiveChecks(doc)...)
	case readyValueUnit:
		results = append(results, readyValueUnitChecks(doc)...)
	case readyRelease:
		results = append(results, readyReleaseChecks(doc)...)
	case readyUseCase:
		if !hasLinkPrefix(doc, "REQ-") {
			results = append(results, readyWarning("uc-missing-req",
				"A UC in review/approved must reference at least one REQ", ""))
		}
	case readyRequirement:
		if !strings.Contains(doc.Raw, "```gherkin") {
			results = append(results, readyWarning("req-missing-gherkin",
				"A REQ in review/approved needs at least one Gherkin example", ""))
		}
		if !useCaseSource.MatchString(doc.String("source")) && !hasLinkPrefix(doc, "UC-") {
			results = append(results, readyWarning("req-missing-uc",
				"A REQ in review/approved must reference its source UC", ""))
		}
	case readyCommand, readyQuery:
		label := strings.ToUpper(string(cat))
		if !hasExactHeading(doc, inputNames...) {
			results = append(results, readyWarning(string(cat)+"-missing-input",
				fmt.Sprintf(`%s in review/approved needs an "Input" section`, label), ""))
		}
		if !hasExactHeading(doc, outputNames...) {
			results = append(results, readyWarning(string(cat)+"-missing-output",
				fmt.Sprintf(`%s in review/approved needs an "Output" section`, label), ""))
		}
	case readyUI:
		results = append(results, readyUIChecks(doc)...)
	}
	return results
}

func readyObjectiveChecks(doc *spec.Document) []Result {
	var results []Result
	goal, ok := exactSectionContent(doc, "Objetivo", "Goal")
	switch {
	case !ok || strings.TrimSpace(goal) == "":
		results = append(results, readyWarning("objective-missing-goal",
			`An OBJ in review/approved needs a "Goal" section`, ""))
	case !userStoryFormat.MatchString(goal):
		results = append(results, readyWarning("objective-format",
			`The goal must follow the "As X, I want Y, so that Z" format`,
			"Rewrite the goal as a user story"))
	}
	if !hasLinkPrefix(doc, "UC-", "UV-") {
		results = append(results, readyWarning("objective-missing-links",
			"An OBJ in review/approved must link at least one UC or UV",
			"Add [[UC-...]] or [[UV-...]] links"))
	}
	if !hasExactHeading(doc, exitCriteriaNames[1:]...) {
		results = append(results, readyWarning("objective-missing-success",
			`An OBJ in review/approved needs "Success criteria"`, ""))
	}
	return results
}

func readyValueUnitChecks(doc *spec.Document) []Result {
	var results []Result
	if !hasExactHeading(doc, "Inputs", "Entradas") {
		results = append(results, readyWarning("uv-missing-inputs",
			`A UV in review/approved needs an "Inputs" section`, ""))
	}
	if !hasExactHeading(doc, "Outputs", "Salidas") {
		results = append(results, readyWarning("uv-missing-outputs",
			`A UV in review/approved needs an "Outputs" section`, ""))
	}
	if !hasExactHeading(doc, exitCriteriaNames...) {
		results = append(results, readyWarning("uv-missing-exit-criteria",
			`A UV in review/approved needs "Exit criteria"`, ""))
	}
	if !hasLinkPrefix(doc, "UC-") || !hasLinkPrefix(doc, "REQ-") ||
		!hasLinkPrefix(doc, "UI-") || !hasLinkPrefix(doc, "CMD-", "QRY-") {
		results = append(results, readyWarning("uv-missing-scope",
			"A UV in review/approved must cover UC, CMD/QRY, REQ and UI",
			`Check the links of the "Scope (end-to-end)" section`))
	}
	return results
}

func readyReleaseChecks(doc *spec.Document) []Result {
	var results []Result
	if !hasExactHeading(doc, "Unidades de Valor", "Value Units") {
		results = append(results, readyWarning("release-missing-uv-section",
			`A REL in review/approved needs a "Value Units" section`, ""))
	}
	if !hasLinkPrefix(doc, "UV-") {
		results = append(results, readyWarning("release-missing-uv-links",
			"A REL in review/approved must link at least one UV", ""))
	}
	if !hasExactHeading(doc, exitCriteriaNames...) {
		results = append(results, readyWarning("release-missing-exit-criteria",
			`A REL in review/approved needs "Exit criteria"`, ""))
	}
	return results
}

func readyUIChecks(doc *spec.Document) []Result {
	var results []Result
	if !hasLinkPrefix(doc, "CMD-", "QRY-") {
		results = append(results, readyWarning("ui-missing-operations",
			"A UI in review/approved must reference commands or queries", ""))
	}
	headings := make([]string, len(doc.Headings))
	for i, h := range doc.Headings {
		headings[i] = readyNormalize(h.Text)
	}
	for _, aliases := range uiStates {
		if !anyContains(headings, aliases) {
			results = append(results, readyWarning("ui-missing-states",
				"A UI in review/approved must document its states (loading/empty/error/success)",
				"Add a section per view state"))
			break
		}
	}
	return results
}

func anyContains(headings, aliases []string) bool {
	for _, h := range headings {
		for _, a := range aliases {
			if strings.Contains(h, a) {
				return true
			}
		}
	}
	return false
}

// readyNormalize folds a heading to lowercase ASCII words.
func readyNormalize(s string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(spec.Normalize(s), " "))
}

func hasExactHeading(doc *spec.Document, names ...string) bool {
	_, ok := headingIndex(doc, names)
	return ok
}

func headingIndex(doc *spec.Document, names []string) (int, bool) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[readyNormalize(n)] = true
	}
	for i, h := range doc.Headings {
		if want[readyNormalize(h.Text)] {
			return i, true
		}
	}
	return 0, false
}

// exactSectionContent returns the lines between the matching heading and the
// next heading of any level.
func exactSectionContent(doc *spec.Document, names ...string) (string, bool) {
	i, ok := headingIndex(doc, names)
	if !ok {
		return "", false
	}
	lines := doc.Lines()
	end := len(lines)
	if i+1 < len(doc.Headings) {
		end = doc.Headings[i+1].Line - 1
	}
	start := doc.Headings[i].Line
	if start > end {
		return "", true
	}
	return strings.Join(lines[start:end], "\n"), true
}

func hasLinkPrefix(doc *spec.Document, prefixes ...string) bool {
	for _, l := range doc.Links {
		target := strings.ToUpper(l.Target)
		if _, rest, ok := strings.Cut(target, "::"); ok {
			target = rest
		}
		for _, p := range prefixes {
			if strings.HasPrefix(target, p) {
				return true
			}
		}
	}
	return false
}
