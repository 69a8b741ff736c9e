package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c360studio/kdd/gate"
)

// Pipeline writes results in the given format. Console output lists passing
// items only when verbose is set; JSON and GitHub output are unaffected.
func Pipeline(w io.Writer, results []*gate.PipelineResult, format Format, verbose bool) error {
	switch format {
	case FormatJSON:
		if results == nil {
			results = []*gate.PipelineResult{}
		}
		return writeJSON(w, results)
	case FormatGitHub:
		return pipelineGitHub(w, results)
	default:
		return pipelineConsole(w, results, verbose)
	}
}

// ExitCode is 1 when any result failed, else 0.
func ExitCode(results []*gate.PipelineResult) int {
	for _, r := range results {
		if r.Status == gate.StatusFail {
			return 1
		}
	}
	return 0
}

func pipelineConsole(w io.Writer, results []*gate.PipelineResult, verbose bool) error {
	s := newStyles(w)
	var l lines
	for _, r := range results {
		l.blank()
		l.add("%s", s.title.Render(fmt.Sprintf("Pipeline Check: %s — %s", r.UV.ID, r.UV.Title)))
		l.add("%s", s.dim.Render("File: "+r.UV.Path))
		l.blank()
		a := r.UV.Artifacts
		l.add("Artifacts: %s, %s, %s",
			s.pass.Render(fmt.Sprintf("%d implemented", len(a.Implemented))),
			s.warn.Render(fmt.Sprintf("%d pending", len(a.Pending))),
			s.skip.Render(fmt.Sprintf("%d deferred", len(a.Deferred))))
		l.blank()

		for _, g := range r.Gates {
			l.add("%s Gate %d: %s — %s", icon(g.Status), g.Gate, g.Name,
				s.status(g.Status).Render(strings.ToUpper(string(g.Status))))
			for _, it := range g.Items {
				if it.Status == gate.StatusPass && !verbose {
					continue
				}
				line := fmt.Sprintf("   %s %s", icon(it.Status), it.Description)
				if it.Detail != "" {
					line += s.dim.Render(" (" + it.Detail + ")")
				}
				l.add("%s", line)
			}
			if g.Summary != "" {
				l.add("%s", s.dim.Render("   "+g.Summary))
			}
			l.blank()
		}

		l.add("%s", s.dim.Render(rule(ruleWidth)))
		l.add("%s Overall: %s (%dms)", icon(r.Status),
			s.status(r.Status).Render(strings.ToUpper(string(r.Status))), r.DurationMs)
	}
	return l.writeTo(w)
}

// githubIcon is the emoji shortcode used in markdown tables.
func githubIcon(s gate.Status) string {
	switch s {
	case gate.StatusPass:
		return ":white_check_mark:"
	case gate.StatusFail:
		return ":x:"
	case gate.StatusWarn:
		return ":warning:"
	default:
		return ":fast_forward:"
	}
}

func pipelineGitHub(w io.Writer, results []*gate.PipelineResult) error {
	var l lines
	for i, r := range results {
		if i > 0 {
			l.blank()
		}
		for _, g := range r.Gates {
			for _, it := range g.Items {
				var kind string
				switch it.Status {
				case gate.StatusFail:
					kind = "error"
				case gate.StatusWarn:
					kind = "warning"
				default:
					continue
				}
				file := it.FilePath
				if file == "" {
					file = r.UV.Path
				}
				msg := fmt.Sprintf("Gate %d (%s): %s", g.Gate, g.Name, it.Description)
				if it.Detail != "" {
					msg += " - " + it.Detail
				}
				l.add("::%s file=%s::%s", kind, file, escapeData(msg))
			}
		}

		l.blank()
		l.add("## Pipeline Check Results")
		l.blank()
		l.add("**%s: %s** — %s", r.UV.ID, r.UV.Title, strings.ToUpper(string(r.Status)))
		l.blank()
		l.add("| Gate | Name | Status | Details |")
		l.add("|------|------|--------|---------|")
		for _, g := range r.Gates {
			l.add("| %d | %s | %s %s | %s |", g.Gate, g.Name, githubIcon(g.Status), g.Status, g.Summary)
		}
	}
	return l.writeTo(w)
}

// escapeData encodes the characters GitHub workflow commands reserve in
// message data.
func escapeData(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A").Replace(s)
}

// StepSummary renders the markdown job summary for results.
func StepSummary(results []*gate.PipelineResult) string {
	var l lines
	l.add("# KDD Pipeline Check")
	l.blank()
	if gate.Overall(results) == gate.StatusFail {
		l.add("**Overall: FAIL :x:**")
	} else {
		l.add("**Overall: PASS :white_check_mark:**")
	}
	l.blank()
	for _, r := range results {
		l.add("### %s: %s", r.UV.ID, r.UV.Title)
		l.blank()
		l.add("| Gate | Name | Status |")
		l.add("|------|------|--------|")
		for _, g := range r.Gates {
			l.add("| %d | %s | %s |", g.Gate, g.Name, githubIcon(g.Status))
		}
		l.blank()
	}
	return l.b.String()
}

// WriteStepSummary appends the job summary to path, normally the file named
// by GITHUB_STEP_SUMMARY.
func WriteStepSummary(path string, results []*gate.PipelineResult) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open step summary: %w", err)
	}
	if _, err := io.WriteString(f, StepSummary(results)); err != nil {
		f.Close()
		return fmt.Errorf("write step summary: %w", err)
	}
	return f.Close()
}
