// Package domain loads per-domain _manifest.yaml files and validates the
// domain graph: dependencies, cycles, exports and cross-domain references.
package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Status is the lifecycle state of a domain.
type Status string

// Domain statuses.
const (
	StatusActive       Status = "active"
	StatusDeprecated   Status = "deprecated"
	StatusExperimental Status = "experimental"
	StatusFrozen       Status = "frozen"
)

// DependencyType qualifies how strongly a domain depends on another.
type DependencyType string

// Dependency types.
const (
	DependencyRequired  DependencyType = "required"
	DependencyOptional  DependencyType = "optional"
	DependencyEventOnly DependencyType = "event-only"
)

var (
	statuses        = []string{"active", "deprecated", "experimental", "frozen"}
	dependencyTypes = []string{"required", "optional", "event-only"}
	patterns        = []string{
		"conformist",
		"anti-corruption-layer",
		"shared-kernel",
		"customer-supplier",
		"open-host-service",
		"published-language",
	}
	kebabID = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
)

// Manifest is the content of a domain's _manifest.yaml.
type Manifest struct {
	Domain       Meta         `yaml:"domain" json:"domain"`
	Dependencies []Dependency `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Exports      *Artifacts   `yaml:"exports,omitempty" json:"exports,omitempty"`
	ContextMap   *ContextMap  `yaml:"context-map,omitempty" json:"contextMap,omitempty"`
	Boundaries   *Boundaries  `yaml:"boundaries,omitempty" json:"boundaries,omitempty"`
	Policies     *Policies    `yaml:"policies,omitempty" json:"policies,omitempty"`
	Technical    *Technical   `yaml:"technical,omitempty" json:"technical,omitempty"`
}

// Meta is the domain block of a manifest.
type Meta struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Status      Status   `yaml:"status" json:"status"`
	Team        string   `yaml:"team,omitempty" json:"team,omitempty"`
	Version     string   `yaml:"version,omitempty" json:"version,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Dependency declares that a domain uses another one.
type Dependency struct {
	Domain  string         `yaml:"domain" json:"domain"`
	Type    DependencyType `yaml:"type" json:"type"`
	Reason  string         `yaml:"reason,omitempty" json:"reason,omitempty"`
	Imports *Artifacts     `yaml:"imports,omitempty" json:"imports,omitempty"`
}

// Artifacts lists named artifacts by kind; used for exports and imports.
type Artifacts struct {
	Entities     []string `yaml:"entities,omitempty" json:"entities,omitempty"`
	Events       []string `yaml:"events,omitempty" json:"events,omitempty"`
	Commands     []string `yaml:"commands,omitempty" json:"commands,omitempty"`
	Queries      []string `yaml:"queries,omitempty" json:"queries,omitempty"`
	ValueObjects []string `yaml:"value-objects,omitempty" json:"valueObjects,omitempty"`
}

// All returns every listed artifact. A nil receiver yields nil.
func (a *Artifacts) All() []string {
	if a == nil {
		return nil
	}
	var out []string
	out = append(out, a.Entities...)
	out = append(out, a.Events...)
	out = append(out, a.Commands...)
	out = append(out, a.Queries...)
	out = append(out, a.ValueObjects...)
	return out
}

// Contains reports whether name is listed under any kind.
func (a *Artifacts) Contains(name string) bool {
	for _, n := range a.All() {
		if n == name {
			return true
		}
	}
	return false
}

// ContextMap describes upstream/downstream relationships.
type ContextMap struct {
	Upstream      []string       `yaml:"upstream,omitempty" json:"upstream,omitempty"`
	Downstream    []string       `yaml:"downstream,omitempty" json:"downstream,omitempty"`
	Relationships []Relationship `yaml:"relationships,omitempty" json:"relationships,omitempty"`
}

// Relationship is one context-map edge with its integration pattern.
type Relationship struct {
	Domain  string `yaml:"domain" json:"domain"`
	Pattern string `yaml:"pattern" json:"pattern"`
}

// Boundaries lists translation layers and shared interfaces.
type Boundaries struct {
	AntiCorruption   []AntiCorruption  `yaml:"anti-corruption,omitempty" json:"antiCorruption,omitempty"`
	SharedInterfaces []SharedInterface `yaml:"shared-interfaces,omitempty" json:"sharedInterfaces,omitempty"`
}

// AntiCorruption maps an external concept to an internal one.
type AntiCorruption struct {
	External string `yaml:"external" json:"external"`
	Internal string `yaml:"internal" json:"internal"`
	Adapter  string `yaml:"adapter,omitempty" json:"adapter,omitempty"`
	Notes    string `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// SharedInterface is an interface shared with other domains.
type SharedInterface struct {
	Interface  string   `yaml:"interface" json:"interface"`
	SharedWith []string `yaml:"shared-with" json:"sharedWith"`
	File       string   `yaml:"file,omitempty" json:"file,omitempty"`
}

// Policies lists inherited, local and excluded policies.
type Policies struct {
	Inherited []string         `yaml:"inherited,omitempty" json:"inherited,omitempty"`
	Local     []LocalPolicy    `yaml:"local,omitempty" json:"local,omitempty"`
	Excluded  []ExcludedPolicy `yaml:"excluded,omitempty" json:"excluded,omitempty"`
}

// LocalPolicy is a policy defined by the domain itself.
type LocalPolicy struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ExcludedPolicy opts the domain out of a shared policy.
type ExcludedPolicy struct {
	ID     string `yaml:"id" json:"id"`
	Reason string `yaml:"reason" json:"reason"`
}

// Technical carries implementation hints.
type Technical struct {
	ModulePath    string         `yaml:"module-path,omitempty" json:"modulePath,omitempty"`
	Database      *Database      `yaml:"database,omitempty" json:"database,omitempty"`
	FeatureFlags  []FeatureFlag  `yaml:"feature-flags,omitempty" json:"featureFlags,omitempty"`
	Observability *Observability `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// Database names the schema and migrations location.
type Database struct {
	Schema     string `yaml:"schema,omitempty" json:"schema,omitempty"`
	Migrations string `yaml:"migrations,omitempty" json:"migrations,omitempty"`
}

// FeatureFlag is a named toggle.
type FeatureFlag struct {
	Name    string `yaml:"name" json:"name"`
	Default *bool  `yaml:"default,omitempty" json:"default,omitempty"`
}

// Observability configures telemetry naming.
type Observability struct {
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Traces    *bool  `yaml:"traces,omitempty" json:"traces,omitempty"`
	Metrics   *bool  `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// SchemaError is one manifest field violation.
type SchemaError struct {
	Path    string
	Message string
}

func (e SchemaError) String() string {
	return e.Path + ": " + e.Message
}

// SchemaErrors collects every violation found in a manifest.
type SchemaErrors []SchemaError

func (e SchemaErrors) Error() string {
	parts := make([]string, len(e))
	for i, se := range e {
		parts[i] = se.String()
	}
	return "Invalid manifest schema: " + strings.Join(parts, ", ")
}

// Validate checks required fields and enumerations. It returns nil or a
// SchemaErrors value.
func (m *Manifest) Validate() error {
	var errs SchemaErrors
	add := func(path, msg string) { errs = append(errs, SchemaError{Path: path, Message: msg}) }
	required := func(path, v string) {
		if strings.TrimSpace(v) == "" {
			add(path, "Required")
		}
	}

	switch {
	case m.Domain.ID == "":
		add("domain.id", "Required")
	case !kebabID.MatchString(m.Domain.ID):
		add("domain.id", "Domain ID must be kebab-case")
	}
	required("domain.name", m.Domain.Name)
	if m.Domain.Status == "" {
		add("domain.status", "Required")
	} else if !oneOf(string(m.Domain.Status), statuses) {
		add("domain.status", enumMessage(statuses, string(m.Domain.Status)))
	}

	for i, dep := range m.Dependencies {
		p := fmt.Sprintf("dependencies.%d", i)
		required(p+".domain", dep.Domain)
		if dep.Type == "" {
			add(p+".type", "Required")
		} else if !oneOf(string(dep.Type), dependencyTypes) {
			add(p+".type", enumMessage(dependencyTypes, string(dep.Type)))
		}
	}

	if cm := m.ContextMap; cm != nil {
		for i, r := range cm.Relationships {
			p := fmt.Sprintf("context-map.relationships.%d", i)
			required(p+".domain", r.Domain)
			if !oneOf(r.Pattern, patterns) {
				add(p+".pattern", enumMessage(patterns, r.Pattern))
			}
		}
	}

	if b := m.Boundaries; b != nil {
		for i, ac := range b.AntiCorruption {
			p := fmt.Sprintf("boundaries.anti-corruption.%d", i)
			required(p+".external", ac.External)
			required(p+".internal", ac.Internal)
		}
		for i, si := range b.SharedInterfaces {
			p := fmt.Sprintf("boundaries.shared-interfaces.%d", i)
			required(p+".interface", si.Interface)
			if si.SharedWith == nil {
				add(p+".shared-with", "Required")
			}
		}
	}

	if pol := m.Policies; pol != nil {
		for i, lp := range pol.Local {
			p := fmt.Sprintf("policies.local.%d", i)
			required(p+".id", lp.ID)
			required(p+".name", lp.Name)
		}
		for i, ep := range pol.Excluded {
			p := fmt.Sprintf("policies.excluded.%d", i)
			required(p+".id", ep.ID)
			required(p+".reason", ep.Reason)
		}
	}

	if tech := m.Technical; tech != nil {
		for i, ff := range tech.FeatureFlags {
			required(fmt.Sprintf("technical.feature-flags.%d.name", i), ff.Name)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func enumMessage(allowed []string, got string) string {
	return fmt.Sprintf("Invalid enum value. Expected '%s', received '%s'", strings.Join(allowed, "' | '"), got)
}
