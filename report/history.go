package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/c360studio/kdd/history"
)

// History writes recorded runs, newest first.
func History(w io.Writer, runs []history.Run, format Format) error {
	switch format {
	case FormatJSON:
		if runs == nil {
			runs = []history.Run{}
		}
		return writeJSON(w, runs)
	case FormatGitHub:
		var l lines
		l.add("| Started | Value Unit | Status | Duration |")
		l.add("|---|---|---|---|")
		for _, r := range runs {
			l.add("| %s | %s | %s %s | %dms |", r.StartedAt.UTC().Format(time.RFC3339),
				r.UVID, githubIcon(r.Status), strings.ToUpper(string(r.Status)), r.DurationMs)
		}
		return l.writeTo(w)
	default:
		return historyConsole(w, runs)
	}
}

func historyConsole(w io.Writer, runs []history.Run) error {
	s := newStyles(w)
	var l lines
	if len(runs) == 0 {
		l.add("%s", s.dim.Render("No runs recorded"))
		return l.writeTo(w)
	}
	l.add("%s", s.title.Render("Run History"))
	l.add("%s", s.dim.Render(rule(ruleWidth)))
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		l.add("%s %s  %-8s %s  %s", icon(r.Status),
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.UVID,
			s.status(r.Status).Render(fmt.Sprintf("%-4s", strings.ToUpper(string(r.Status)))),
			s.dim.Render(fmt.Sprintf("%dms %s", r.DurationMs, id)))
		for _, g := range r.Gates {
			l.add("   %s Gate %d: %s %s", icon(g.Status), g.Gate, g.Name, s.dim.Render(g.Summary))
		}
	}
	return l.writeTo(w)
}
