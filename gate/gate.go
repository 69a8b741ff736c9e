// Package gate runs the eight readiness gates against a parsed Value Unit.
//
// Gates never fail on expected absence: a missing spec, code file or test is
// reported as a fail or warn Item. Unexpected I/O errors are returned to the
// Pipeline, which records them as a failing item and moves on.
package gate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/c360studio/kdd/uv"
)

// Status is the outcome of a gate or of one of its items.
type Status string

// Gate and item statuses.
const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusWarn Status = "warn"
	StatusSkip Status = "skip"
)

// Item is a single check inside a gate.
type Item struct {
	Description string `json:"description"`
	Status      Status `json:"status"`
	Detail      string `json:"detail,omitempty"`
	ArtifactID  string `json:"artifactId,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
}

// Result is the outcome of one gate.
type Result struct {
	Gate       int    `json:"gate"`
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Items      []Item `json:"items"`
	Summary    string `json:"summary"`
	DurationMs int64  `json:"durationMs"`
}

// Counts returns the number of failing and warning items.
func (r *Result) Counts() (fail, warn int) {
	return countItems(r.Items)
}

// Gate is one readiness check.
type Gate interface {
	Number() int
	Name() string
	Check(ctx context.Context, v *uv.ValueUnit) (Result, error)
}

// Aggregate folds statuses with fail > warn > pass precedence. Skip counts
// as pass.
func Aggregate(statuses ...Status) Status {
	out := StatusPass
	for _, s := range statuses {
		switch s {
		case StatusFail:
			return StatusFail
		case StatusWarn:
			out = StatusWarn
		}
	}
	return out
}

func countItems(items []Item) (fail, warn int) {
	for _, it := range items {
		switch it.Status {
		case StatusFail:
			fail++
		case StatusWarn:
			warn++
		}
	}
	return fail, warn
}

func rollup(items []Item) Status {
	statuses := make([]Status, len(items))
	for i, it := range items {
		statuses[i] = it.Status
	}
	return Aggregate(statuses...)
}

// withWarnings appends " (N warnings)" when warn > 0.
func withWarnings(msg string, warn int) string {
	if warn == 0 {
		return msg
	}
	return fmt.Sprintf("%s (%d warnings)", msg, warn)
}

// single builds a one-item result, used for the "nothing to check" cases.
func single(number int, name string, status Status, item Item, summary string) Result {
	item.Status = status
	return Result{Gate: number, Name: name, Status: status, Items: []Item{item}, Summary: summary}
}

// relTo renders path relative to root when it lies beneath it.
func relTo(root, path string) string {
	if root == "" {
		return path
	}
	r, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(r, "..") {
		return path
	}
	return filepath.ToSlash(r)
}
