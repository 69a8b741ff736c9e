// Package report renders pipeline, coverage and validation results for a
// terminal, for machines (JSON) and for GitHub Actions.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/c360studio/kdd/gate"
)

// Format selects a renderer.
type Format string

// Output formats.
const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatGitHub  Format = "github"
)

// ErrUnknownFormat is returned by ParseFormat for an unsupported name.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a format name. The empty string selects console.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatConsole, nil
	case FormatConsole, FormatJSON, FormatGitHub:
		return f, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownFormat)
	}
}

const ruleWidth = 50

// Status icons.
const (
	iconPass = "\u2705"
	iconFail = "\u274c"
	iconWarn = "\u26a0\ufe0f"
	iconSkip = "\u23ed\ufe0f"
)

func icon(s gate.Status) string {
	switch s {
	case gate.StatusPass:
		return iconPass
	case gate.StatusFail:
		return iconFail
	case gate.StatusWarn:
		return iconWarn
	default:
		return iconSkip
	}
}

func check(ok bool) string {
	if ok {
		return iconPass
	}
	return iconFail
}

// styles are bound to the renderer of the output writer, so colors are
// dropped when the writer is not a terminal.
type styles struct {
	title lipgloss.Style
	dim   lipgloss.Style
	pass  lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
	skip  lipgloss.Style
	file  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true),
		dim:   r.NewStyle().Faint(true),
		pass:  r.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		fail:  r.NewStyle().Foreground(lipgloss.Color("#F44336")).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("#FFC107")),
		skip:  r.NewStyle().Foreground(lipgloss.Color("#9E9E9E")),
		file:  r.NewStyle().Underline(true),
	}
}

func (s styles) status(st gate.Status) lipgloss.Style {
	switch st {
	case gate.StatusPass:
		return s.pass
	case gate.StatusFail:
		return s.fail
	case gate.StatusWarn:
		return s.warn
	default:
		return s.skip
	}
}

func (s styles) verdict(pass bool) string {
	if pass {
		return s.pass.Render("PASS")
	}
	return s.fail.Render("FAIL")
}

func rule(n int) string { return strings.Repeat("─", n) }

// lines accumulates output and writes it in one call.
type lines struct {
	b strings.Builder
}

func (l *lines) add(format string, args ...any) {
	fmt.Fprintf(&l.b, format, args...)
	l.b.WriteByte('\n')
}

func (l *lines) blank() { l.b.WriteByte('\n') }

func (l *lines) writeTo(w io.Writer) error {
	_, err := io.WriteString(w, l.b.String())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
