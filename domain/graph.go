package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DependencyResult is the outcome of ValidateDependencies.
type DependencyResult struct {
	Valid    bool       `json:"valid"`
	Errors   []string   `json:"errors"`
	Warnings []string   `json:"warnings"`
	Cycles   [][]string `json:"cycles"`
}

// ValidateDependencies checks that every dependency target exists, that the
// graph is acyclic and that core depends on nothing.
func ValidateDependencies(domains *Set) DependencyResult {
	res := DependencyResult{Errors: []string{}, Warnings: []string{}, Cycles: [][]string{}}

	graph := make(map[string][]string, domains.Len())
	domains.Each(func(d *Domain) {
		var edges []string
		if d.Manifest != nil {
			for _, dep := range d.Manifest.Dependencies {
				edges = appendUnique(edges, dep.Domain)
			}
		}
		graph[d.ID] = edges
	})

	domains.Each(func(d *Domain) {
		if d.Manifest == nil {
			return
		}
		for _, dep := range d.Manifest.Dependencies {
			if domains.Has(dep.Domain) || dep.Domain == Shared {
				continue
			}
			if dep.Type == DependencyRequired {
				res.Errors = append(res.Errors, fmt.Sprintf("Domain '%s' requires non-existent domain '%s'", d.ID, dep.Domain))
			} else {
				res.Warnings = append(res.Warnings, fmt.Sprintf("Domain '%s' depends on non-existent domain '%s'", d.ID, dep.Domain))
			}
		}
	})

	visited := map[string]bool{}
	onStack := map[string]bool{}
	var visit func(node string, path []string) bool
	visit = func(node string, path []string) bool {
		visited[node] = true
		onStack[node] = true
		for _, next := range graph[node] {
			if !visited[next] {
				if visit(next, append(append([]string{}, path...), next)) {
					return true
				}
			} else if onStack[next] {
				start := indexOf(path, next)
				res.Cycles = append(res.Cycles, append([]string{}, path[start:]...))
				return true
			}
		}
		onStack[node] = false
		return false
	}
	for _, id := range domains.IDs() {
		if !visited[id] {
			visit(id, []string{id})
		}
	}

	if core, ok := domains.Get(Core); ok && core.Manifest != nil && len(core.Manifest.Dependencies) > 0 {
		res.Errors = append(res.Errors, "Domain 'core' should not have any dependencies.")
	}
	for _, cycle := range res.Cycles {
		res.Errors = append(res.Errors, "Circular dependency detected: "+strings.Join(cycle, " → ")+" → "+cycle[0])
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return 0
}

// MissingExport names an exported artifact without a backing spec file.
type MissingExport struct {
	Domain   string `json:"domain"`
	Artifact string `json:"artifact"`
	Type     string `json:"type"`
}

// ValidateExports checks that every artifact d exports exists under its
// folder. Entities and events need an exact <name>.md file; commands and
// queries need a file whose name contains the export name.
func ValidateExports(d *Domain) []MissingExport {
	if d.Manifest == nil || d.Manifest.Exports == nil {
		return nil
	}
	ex := d.Manifest.Exports
	var missing []MissingExport
	miss := func(name, typ string) {
		missing = append(missing, MissingExport{Domain: d.ID, Artifact: name, Type: typ})
	}

	for _, e := range ex.Entities {
		if !fileExists(filepath.Join(d.Path, "01-domain", "entities", e+".md")) {
			miss(e, "entity")
		}
	}
	for _, e := range ex.Events {
		if !fileExists(filepath.Join(d.Path, "01-domain", "events", e+".md")) {
			miss(e, "event")
		}
	}
	for _, c := range ex.Commands {
		if !dirHasFileContaining(filepath.Join(d.Path, "02-behavior", "commands"), c) {
			miss(c, "command")
		}
	}
	for _, q := range ex.Queries {
		if !dirHasFileContaining(filepath.Join(d.Path, "02-behavior", "queries"), q) {
			miss(q, "query")
		}
	}
	return missing
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func dirHasFileContaining(dir, name string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), name) {
			return true
		}
	}
	return false
}
