// Package validator lints spec files at four levels: frontmatter schema,
// document structure (including readiness), semantics and domain boundaries.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/kdd/domain"
)

// Severity of a Result.
type Severity string

// Severities, most severe first.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool { return s.rank() >= min.rank() }

// ParseSeverity validates a severity name; "" means info.
func ParseSeverity(s string) (Severity, error) {
	switch v := Severity(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return SeverityInfo, nil
	case SeverityError, SeverityWarning, SeverityInfo:
		return v, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Result is one finding. Line and Column are 1-based and refer to the file
// on disk; zero means not applicable.
type Result struct {
	File       string   `json:"file"`
	Level      Severity `json:"level"`
	Rule       string   `json:"rule"`
	Message    string   `json:"message"`
	Line       int      `json:"line,omitempty"`
	Column     int      `json:"column,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

func fromIssue(file string, i domain.Issue) Result {
	return Result{
		File:       file,
		Level:      Severity(i.Level),
		Rule:       i.Rule,
		Message:    i.Message,
		Line:       i.Line,
		Suggestion: i.Suggestion,
	}
}

// DomainsFile is the pseudo file name results about the domain graph are
// filed under.
const DomainsFile = "_domains"

// FileReport holds the results for one file.
type FileReport struct {
	File    string   `json:"file"`
	Results []Result `json:"results"`
}

// Report is the outcome of a validation run.
type Report struct {
	FilesChecked int          `json:"filesChecked"`
	Files        []FileReport `json:"files"`
	Fixed        int          `json:"fixed"`
}

func (r *Report) add(file string, results []Result) {
	if len(results) == 0 {
		return
	}
	for i := range results {
		results[i].File = file
	}
	r.Files = append(r.Files, FileReport{File: file, Results: results})
}

func (r *Report) sort() {
	sort.SliceStable(r.Files, func(i, j int) bool {
		a, b := r.Files[i].File, r.Files[j].File
		if a == DomainsFile || b == DomainsFile {
			return a == DomainsFile && b != DomainsFile
		}
		return a < b
	})
}

// Count returns the number of results at exactly level.
func (r *Report) Count(level Severity) int {
	n := 0
	for _, f := range r.Files {
		for _, res := range f.Results {
			if res.Level == level {
				n++
			}
		}
	}
	return n
}

// Errors is the number of error results.
func (r *Report) Errors() int { return r.Count(SeverityError) }

// Warnings is the number of warning results.
func (r *Report) Warnings() int { return r.Count(SeverityWarning) }

// Failed reports whether the run should fail: any error, or any warning
// when warningsAsErrors is set.
func (r *Report) Failed(warningsAsErrors bool) bool {
	return r.Errors() > 0 || (warningsAsErrors && r.Warnings() > 0)
}

// All flattens the report.
func (r *Report) All() []Result {
	var out []Result
	for _, f := range r.Files {
		out = append(out, f.Results...)
	}
	return out
}
