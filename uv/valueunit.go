// Package uv parses Value Unit documents into status-tagged artifact
// references.
package uv

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/c360studio/kdd/resolver"
)

// ErrNotFound is returned when no Value Unit file matches an ID.
var ErrNotFound = errors.New("value unit not found")

// Status is the completion state of a referenced artifact.
type Status string

// Artifact statuses.
const (
	StatusPending     Status = "pending"
	StatusImplemented Status = "implemented"
	StatusDeferred    Status = "deferred"
)

// ArtifactRef is one reference from a Value Unit to another artifact.
type ArtifactRef struct {
	// ID is the link target without its #fragment.
	ID         string `json:"id"`
	Prefix     string `json:"prefix"`
	FullTarget string `json:"fullTarget"`
	Status     Status `json:"status"`
	Line       int    `json:"line"`
}

// Artifacts groups references by status. No ID appears twice in a group.
type Artifacts struct {
	Pending     []ArtifactRef `json:"pending"`
	Implemented []ArtifactRef `json:"implemented"`
	Deferred    []ArtifactRef `json:"deferred"`
}

func (a *Artifacts) add(ref ArtifactRef) {
	group := a.group(ref.Status)
	for _, existing := range *group {
		if existing.ID == ref.ID {
			return
		}
	}
	*group = append(*group, ref)
}

func (a *Artifacts) group(s Status) *[]ArtifactRef {
	switch s {
	case StatusImplemented:
		return &a.Implemented
	case StatusDeferred:
		return &a.Deferred
	default:
		return &a.Pending
	}
}

func (a *Artifacts) has(id string) bool {
	for _, g := range [][]ArtifactRef{a.Pending, a.Implemented, a.Deferred} {
		for _, r := range g {
			if r.ID == id {
				return true
			}
		}
	}
	return false
}

// ValueUnit is a parsed UV document.
type ValueUnit struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Path        string         `json:"filePath"`
	Frontmatter map[string]any `json:"frontmatter"`
	Artifacts   Artifacts      `json:"artifacts"`
	// All is pending, then implemented, then deferred. The same ID may
	// appear in two groups when the document is inconsistent.
	All []ArtifactRef `json:"allArtifacts"`
	// LoadError is set when the file could not be read or parsed. The
	// unit then carries only ID, Title and Path.
	LoadError string `json:"loadError,omitempty"`
}

// WithPrefix returns the references whose prefix is one of prefixes.
func (v *ValueUnit) WithPrefix(prefixes ...string) []ArtifactRef {
	var out []ArtifactRef
	for _, a := range v.All {
		for _, p := range prefixes {
			if a.Prefix == p {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// Stats summarizes a Value Unit's progress.
type Stats struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Implemented int    `json:"implemented"`
	Pending     int    `json:"pending"`
	Deferred    int    `json:"deferred"`
	// Completion is implemented / (implemented + pending) as a rounded
	// percentage; deferred work is excluded. An empty unit is complete.
	Completion int `json:"completion"`
}

// Stats computes progress counts.
func (v *ValueUnit) Stats() Stats {
	s := Stats{
		ID:          v.ID,
		Title:       v.Title,
		Implemented: len(v.Artifacts.Implemented),
		Pending:     len(v.Artifacts.Pending),
		Deferred:    len(v.Artifacts.Deferred),
		Completion:  100,
	}
	if total := s.Implemented + s.Pending; total > 0 {
		s.Completion = int(math.Round(float64(s.Implemented) * 100 / float64(total)))
	}
	return s
}

// Locate returns the file for a UV ID such as "UV-004".
func Locate(res *resolver.Resolver, id string) (string, error) {
	if resolver.Prefix(id) != "UV" {
		return "", fmt.Errorf("%q is not a value unit ID: %w", id, ErrNotFound)
	}
	path, ok := res.Resolve(strings.TrimSpace(id))
	if !ok {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return path, nil
}
