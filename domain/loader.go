package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest name inside every domain folder.
const ManifestFile = "_manifest.yaml"

// Shared is the pseudo-domain for cross-cutting specs under specs/_shared.
const Shared = "_shared"

// Core is the foundational domain that may not depend on anything.
const Core = "core"

// ErrManifestMissing is returned when a domain folder has no manifest.
var ErrManifestMissing = errors.New("manifest missing")

// Layout describes whether a specs tree uses domains/.
type Layout struct {
	Enabled     bool     `json:"enabled"`
	DomainsPath string   `json:"domainsPath"`
	SharedPath  string   `json:"sharedPath"`
	Domains     []string `json:"domains"`
}

// Detect inspects specsDir. Multi-domain mode is enabled only when
// domains/ holds at least one domain folder.
func Detect(specsDir string) Layout {
	l := Layout{
		DomainsPath: filepath.Join(specsDir, "domains"),
		SharedPath:  filepath.Join(specsDir, Shared),
	}
	l.Domains = listDomains(l.DomainsPath)
	l.Enabled = len(l.Domains) > 0
	return l
}

func listDomains(domainsPath string) []string {
	entries, err := os.ReadDir(domainsPath)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() && !strings.HasPrefix(name, ".") && !strings.HasPrefix(name, "_") {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Domain is one loaded domain folder. Manifest is nil when the manifest is
// missing or invalid; ParseError then says why. A domain whose manifest ID
// does not match its folder keeps the manifest and still reports the error.
type Domain struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Manifest   *Manifest `json:"manifest,omitempty"`
	ParseError string    `json:"parseError,omitempty"`
}

// ReadManifest reads and schema-checks the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrManifestMissing)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads the domain folder at domainPath. Problems are recorded on the
// returned Domain rather than returned as errors.
func Load(domainPath string) *Domain {
	id := filepath.Base(domainPath)
	d := &Domain{ID: id, Path: domainPath}

	m, err := ReadManifest(filepath.Join(domainPath, ManifestFile))
	var schemaErrs SchemaErrors
	switch {
	case errors.Is(err, ErrManifestMissing):
		d.ParseError = fmt.Sprintf("Missing %s in domain '%s'", ManifestFile, id)
	case errors.As(err, &schemaErrs):
		d.ParseError = schemaErrs.Error()
	case err != nil:
		cause := err
		if inner := errors.Unwrap(err); inner != nil {
			cause = inner
		}
		d.ParseError = "Failed to parse manifest: " + cause.Error()
	default:
		d.Manifest = m
		if m.Domain.ID != id {
			d.ParseError = fmt.Sprintf("Domain ID '%s' does not match folder name '%s'", m.Domain.ID, id)
		}
	}
	return d
}

// Set is the collection of loaded domains keyed by folder name.
type Set struct {
	byID map[string]*Domain
	ids  []string
}

// NewSet builds a Set from already loaded domains.
func NewSet(domains ...*Domain) *Set {
	s := &Set{byID: map[string]*Domain{}}
	for _, d := range domains {
		if _, dup := s.byID[d.ID]; !dup {
			s.ids = append(s.ids, d.ID)
		}
		s.byID[d.ID] = d
	}
	sort.Strings(s.ids)
	return s
}

// LoadAll loads every domain folder under domainsPath. A missing directory
// yields an empty set.
func LoadAll(domainsPath string, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	var domains []*Domain
	for _, name := range listDomains(domainsPath) {
		d := Load(filepath.Join(domainsPath, name))
		if d.ParseError != "" {
			logger.Debug("Domain manifest problem", slog.String("domain", d.ID), slog.String("error", d.ParseError))
		}
		domains = append(domains, d)
	}
	return NewSet(domains...)
}

// Get returns the domain with id.
func (s *Set) Get(id string) (*Domain, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// Has reports whether id is a loaded domain.
func (s *Set) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// IDs returns the domain IDs in sorted order.
func (s *Set) IDs() []string { return s.ids }

// Len returns the number of domains.
func (s *Set) Len() int { return len(s.ids) }

// Each calls fn for every domain in ID order.
func (s *Set) Each(fn func(*Domain)) {
	for _, id := range s.ids {
		fn(s.byID[id])
	}
}
