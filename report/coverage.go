package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/c360studio/kdd/codemap"
	"github.com/c360studio/kdd/coverage"
	"github.com/c360studio/kdd/uv"
)

// Status writes the completeness report of each Value Unit.
func Status(w io.Writer, units []*coverage.UnitStatus, format Format) error {
	if format == FormatJSON {
		if units == nil {
			units = []*coverage.UnitStatus{}
		}
		return writeJSON(w, units)
	}

	s := newStyles(w)
	var l lines
	for _, u := range units {
		l.blank()
		l.add("%s", s.title.Render(fmt.Sprintf("%s: %s", u.ID, u.Title)))
		l.add("%s", rule(40))
		l.add("Artifacts: %d implemented, %d pending, %d deferred (%d%% done)",
			u.Implemented, u.Pending, u.Deferred, u.Completion)
		l.add("Specs:     %d/%d exist (%d%%)", u.SpecsExist, u.Total, coverage.Percent(u.SpecsExist, u.Total))
		if n := u.CodeTracked(); n > 0 {
			l.add("Code:      %d/%d exist (%d%%)", u.CodeExists, n, coverage.Percent(u.CodeExists, n))
			l.add("Tests:     %d/%d exist (%d%%)", u.TestsExist, n, coverage.Percent(u.TestsExist, n))
		}
		l.blank()
		l.add("Details:")
		for _, d := range u.Details {
			line := fmt.Sprintf("  %s [%s] spec:%s", d.ID, d.Status, check(d.SpecExists))
			if d.HasCode {
				line += fmt.Sprintf(" code:%s test:%s",
					deferredCheck(d.CodeExists, d.Status), deferredCheck(d.TestExists, d.Status))
			}
			l.add("%s", line)
		}
	}
	return l.writeTo(w)
}

func deferredCheck(ok bool, st uv.Status) string {
	if !ok && st == uv.StatusDeferred {
		return iconSkip
	}
	return check(ok)
}

// RuleCoverage writes the BR → CMD coverage report.
func RuleCoverage(w io.Writer, r *coverage.RuleReport, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, r)
	}

	s := newStyles(w)
	var l lines
	l.blank()
	l.add("%s", s.title.Render("BR -> CMD Coverage Report"))
	l.add("%s", rule(40))
	l.add("Total BRs: %d", r.Total)
	l.add("Covered:   %d", r.Covered)
	l.add("Uncovered: %d", r.Uncovered)
	l.add("Coverage:  %d%% (threshold: %d%%)", r.Percent, r.Threshold)

	if len(r.UncoveredRules) > 0 {
		l.blank()
		l.add("Uncovered BRs:")
		for _, id := range r.UncoveredRules {
			if format == FormatGitHub {
				l.add("::warning::%s is not referenced by any CMD spec", id)
				continue
			}
			l.add("  - %s", s.warn.Render(id))
		}
	}
	if len(r.CoveredRules) > 0 {
		l.blank()
		l.add("Coverage map:")
		for _, id := range r.CoveredRules {
			l.add("  %s -> %s", id, strings.Join(r.CoverageMap[id], ", "))
		}
	}
	l.blank()
	l.add("%s", s.verdict(r.Pass))
	return l.writeTo(w)
}

// RequirementCoverage writes the REQ → test coverage report.
func RequirementCoverage(w io.Writer, r *coverage.RequirementReport, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, r)
	}

	var l lines
	if r.Pass() {
		l.add("All requirement criteria have matching tests.")
		return l.writeTo(w)
	}
	l.add("Missing requirement tests:")
	for _, c := range r.Missing {
		if format == FormatGitHub {
			l.add("::warning file=%s::No test file for %s in %s", c.SpecFile, c.ID, r.TestsDir)
			continue
		}
		l.add("- %s", c.ID)
	}
	l.add("Total missing: %d", len(r.Missing))
	return l.writeTo(w)
}

// MappingReport is the JSON shape of the CMD → code report.
type MappingReport struct {
	Total       int             `json:"total"`
	WithCode    int             `json:"withCode"`
	WithoutCode int             `json:"withoutCode"`
	WithTests   int             `json:"withTests"`
	Results     []codemap.Entry `json:"results"`
}

// NewMappingReport counts entries. When missingOnly is set only entries
// without code are listed; the counts always cover every entry.
func NewMappingReport(entries []codemap.Entry, missingOnly bool) MappingReport {
	m := MappingReport{Total: len(entries), Results: []codemap.Entry{}}
	for _, e := range entries {
		if e.HasCode {
			m.WithCode++
		} else {
			m.WithoutCode++
		}
		if e.HasTest {
			m.WithTests++
		}
		if !missingOnly || !e.HasCode {
			m.Results = append(m.Results, e)
		}
	}
	return m
}

// Pass reports whether every command has code.
func (m MappingReport) Pass() bool { return m.WithoutCode == 0 }

// Mapping writes the CMD → code report.
func Mapping(w io.Writer, m MappingReport, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, m)
	}

	s := newStyles(w)
	var l lines
	l.blank()
	l.add("%s", s.title.Render("CMD -> Code Mapping Report"))
	l.add("%s", rule(ruleWidth))
	l.add("Total CMDs: %d", m.Total)
	l.add("With code:  %d", m.WithCode)
	l.add("Missing:    %d", m.WithoutCode)
	l.add("With tests: %d", m.WithTests)
	l.blank()
	for _, e := range m.Results {
		if format == FormatGitHub && !e.HasCode {
			l.add("::error file=%s::%s has no code file (expected %s)", e.SpecFile, e.ID, e.CodeFile)
		}
		l.add("%s: %s", e.ID, e.ActionName)
		l.add("  Spec: %s", e.SpecFile)
		l.add("  Code: %s %s", check(e.HasCode), e.CodeFile)
		l.add("  Test: %s %s", check(e.HasTest), e.TestFile)
		l.blank()
	}
	l.add("%s", s.verdict(m.Pass()))
	return l.writeTo(w)
}
