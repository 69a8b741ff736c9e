package report

import (
	"fmt"
	"io"

	"github.com/c360studio/kdd/validator"
)

// Validation writes a validation report. Info results and suggestions are
// shown on the console only when verbose is set.
func Validation(w io.Writer, r *validator.Report, format Format, verbose bool) error {
	switch format {
	case FormatJSON:
		byFile := make(map[string][]validator.Result, len(r.Files))
		for _, f := range r.Files {
			byFile[f.File] = f.Results
		}
		return writeJSON(w, struct {
			FilesChecked int                           `json:"filesChecked"`
			Errors       int                           `json:"errors"`
			Warnings     int                           `json:"warnings"`
			Fixed        int                           `json:"fixed"`
			Results      map[string][]validator.Result `json:"results"`
		}{r.FilesChecked, r.Errors(), r.Warnings(), r.Fixed, byFile})
	case FormatGitHub:
		return validationGitHub(w, r)
	default:
		return validationConsole(w, r, verbose)
	}
}

func severityIcon(s validator.Severity) string {
	switch s {
	case validator.SeverityError:
		return "✗"
	case validator.SeverityWarning:
		return "⚠"
	default:
		return "ℹ"
	}
}

func validationConsole(w io.Writer, r *validator.Report, verbose bool) error {
	s := newStyles(w)
	var l lines
	for _, f := range r.Files {
		var shown []validator.Result
		for _, res := range f.Results {
			if verbose || res.Level != validator.SeverityInfo {
				shown = append(shown, res)
			}
		}
		if len(shown) == 0 {
			continue
		}
		l.blank()
		l.add("%s", s.file.Render(f.File))
		for _, res := range shown {
			style := s.skip
			switch res.Level {
			case validator.SeverityError:
				style = s.fail
			case validator.SeverityWarning:
				style = s.warn
			}
			loc := ""
			if res.Line > 0 {
				loc = fmt.Sprintf(":%d", res.Line)
			}
			l.add("  %s %s%s %s", style.Render(severityIcon(res.Level)), res.Message, s.dim.Render(loc), s.dim.Render("["+res.Rule+"]"))
			if verbose && res.Suggestion != "" {
				l.add("     \U0001f4a1 %s", s.dim.Render(res.Suggestion))
			}
		}
	}

	l.blank()
	l.add("%s", s.dim.Render(rule(ruleWidth)))
	summary := fmt.Sprintf("%d files, %d errors, %d warnings", r.FilesChecked, r.Errors(), r.Warnings())
	switch {
	case r.Errors() > 0:
		l.add("%s", s.fail.Render(summary))
	case r.Warnings() > 0:
		l.add("%s", s.warn.Render(summary))
	default:
		l.add("%s", s.pass.Render(summary))
	}
	if r.Fixed > 0 {
		l.add("%d files fixed", r.Fixed)
	}
	return l.writeTo(w)
}

func validationGitHub(w io.Writer, r *validator.Report) error {
	var l lines
	for _, f := range r.Files {
		for _, res := range f.Results {
			kind := "notice"
			switch res.Level {
			case validator.SeverityError:
				kind = "error"
			case validator.SeverityWarning:
				kind = "warning"
			}
			props := "file=" + f.File
			if res.Line > 0 {
				props += fmt.Sprintf(",line=%d", res.Line)
			}
			if res.Column > 0 {
				props += fmt.Sprintf(",col=%d", res.Column)
			}
			msg := fmt.Sprintf("[%s] %s", res.Rule, res.Message)
			if res.Suggestion != "" {
				msg += "\n" + res.Suggestion
			}
			l.add("::%s %s::%s", kind, props, escapeData(msg))
		}
	}
	l.add("%d files, %d errors, %d warnings", r.FilesChecked, r.Errors(), r.Warnings())
	return l.writeTo(w)
}
