package codemap

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/c360studio/kdd/spec"
)

// ErrNotCommand is returned by ParseCommand for documents that are neither
// commands nor queries.
var ErrNotCommand = errors.New("not a command or query spec")

// Command is the structured content of a CMD or QRY spec.
type Command struct {
	ID              string   `json:"id"`
	Title           string   `json:"title,omitempty"`
	ActionName      string   `json:"actionName"`
	EntityName      string   `json:"entityName,omitempty"`
	Inputs          []Input  `json:"inputs,omitempty"`
	Errors          []Error  `json:"errors,omitempty"`
	RulesReferenced []string `json:"rulesReferenced,omitempty"`
	EventsGenerated []string `json:"eventsGenerated,omitempty"`
	Preconditions   []string `json:"preconditions,omitempty"`
	Path            string   `json:"path"`
}

// Input is one row of the Input table.
type Input struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Required   bool   `json:"required"`
	Validation string `json:"validation,omitempty"`
}

// Error is one row of the Possible Errors table.
type Error struct {
	Code      string `json:"code"`
	Condition string `json:"condition"`
	Message   string `json:"message"`
}

var (
	actionAfterColon = regexp.MustCompile(`:\s*([A-Z]\w+)`)
	leadingCmdID     = regexp.MustCompile(`^(CMD|QRY)-\d+[:\s]*`)
	requiredCell     = regexp.MustCompile(`(?i)yes|si|sí|true|required`)
	tableSeparator   = regexp.MustCompile(`^\|\s*[-:]+`)
	bulletLine       = regexp.MustCompile(`^\s*[-*]\s+`)
	ruleLink         = regexp.MustCompile(`(?i)^(BR|RUL)-`)
	eventLink        = regexp.MustCompile(`(?i)^EVT-`)
	backtickEvent    = regexp.MustCompile("`(EVT-[^`]+)`")
	plainEvent       = regexp.MustCompile(`EVT-[\w-]+`)
)

// ParseCommand loads a CMD/QRY spec file.
func ParseCommand(path string) (*Command, error) {
	doc, err := spec.Load(path)
	if err != nil {
		return nil, err
	}
	return CommandFromDocument(doc)
}

// CommandFromDocument extracts a Command from an already parsed document.
func CommandFromDocument(doc *spec.Document) (*Command, error) {
	if doc.Type != spec.TypeCommand && doc.Type != spec.TypeQuery {
		return nil, fmt.Errorf("%s: %w", doc.Path, ErrNotCommand)
	}

	cmd := &Command{
		ID:    doc.String("id"),
		Title: doc.String("title"),
		Path:  doc.Path,
	}
	if h1, ok := doc.H1(); ok {
		cmd.ActionName, cmd.EntityName = deriveNames(h1.Text)
	} else {
		cmd.ActionName = cmd.ID
	}

	if body, ok := doc.SectionContent("input", "inputs", "entrada", "entradas"); ok {
		for _, row := range tableRows(body) {
			if len(row) < 3 {
				continue
			}
			in := Input{
				Name:     strings.ReplaceAll(row[0], "`", ""),
				Type:     strings.ReplaceAll(row[1], "`", ""),
				Required: requiredCell.MatchString(row[2]),
			}
			if len(row) > 3 {
				in.Validation = row[3]
			}
			cmd.Inputs = append(cmd.Inputs, in)
		}
	}

	if body, ok := doc.SectionContent("possible errors", "errores", "errors"); ok {
		for _, row := range tableRows(body) {
			if len(row) < 3 {
				continue
			}
			cmd.Errors = append(cmd.Errors, Error{
				Code:      strings.ReplaceAll(row[0], "`", ""),
				Condition: row[1],
				Message:   strings.ReplaceAll(row[2], `"`, ""),
			})
		}
	}

	if body, ok := doc.SectionContent("rules validated", "reglas", "rules"); ok {
		for _, target := range spec.LinkTargets(body) {
			if ruleLink.MatchString(target) {
				cmd.RulesReferenced = append(cmd.RulesReferenced, target)
			}
		}
	}

	if body, ok := doc.SectionContent("events generated", "eventos", "events"); ok {
		cmd.EventsGenerated = eventsIn(body)
	}

	if body, ok := doc.SectionContent("preconditions", "precondiciones", "pre"); ok {
		for _, line := range strings.Split(body, "\n") {
			if bulletLine.MatchString(line) {
				cmd.Preconditions = append(cmd.Preconditions, strings.TrimSpace(bulletLine.ReplaceAllString(line, "")))
			}
		}
	}
	return cmd, nil
}

// deriveNames reads "CMD-023: TerminateChallenge" as action
// TerminateChallenge and entity Challenge.
func deriveNames(h1 string) (action, entity string) {
	if m := actionAfterColon.FindStringSubmatch(h1); m != nil {
		action = m[1]
	} else {
		action = strings.TrimSpace(leadingCmdID.ReplaceAllString(h1, ""))
	}
	parts := SplitPascal(action)
	switch {
	case len(parts) > 1:
		entity = strings.Join(parts[1:], "")
	case len(parts) == 1:
		entity = parts[0]
	}
	return action, entity
}

// tableRows returns the data rows of the first markdown table in text,
// skipping the header and separator rows.
func tableRows(text string) [][]string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(l), "|") {
			lines = append(lines, strings.TrimSpace(l))
		}
	}
	if len(lines) < 2 {
		return nil
	}
	var rows [][]string
	for _, l := range lines {
		if tableSeparator.MatchString(l) {
			continue
		}
		var cells []string
		for _, c := range strings.Split(l, "|") {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		rows = append(rows, cells)
	}
	if len(rows) < 2 {
		return nil
	}
	return rows[1:]
}

func eventsIn(body string) []string {
	var events []string
	seen := map[string]bool{}
	add := func(e string) {
		if !seen[e] {
			seen[e] = true
			events = append(events, e)
		}
	}
	for _, target := range spec.LinkTargets(body) {
		if eventLink.MatchString(target) {
			add(target)
		}
	}
	for _, m := range backtickEvent.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	for _, m := range plainEvent.FindAllString(body, -1) {
		add(m)
	}
	return events
}
