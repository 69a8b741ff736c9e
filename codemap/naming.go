// Package codemap links CMD/QRY specs to the use-case source files that
// implement them and to their tests.
package codemap

import (
	"regexp"
	"strings"
)

// NamingStrategy derives a code file name from a PascalCase action name such
// as "CreateOrder".
type NamingStrategy interface {
	FileName(actionName string) string
}

// UseCaseSuffix and TestSuffix are the file suffixes of the default convention.
const (
	UseCaseSuffix = ".use-case.ts"
	TestSuffix    = ".use-case.test.ts"
)

// DefaultVerbs maps action verbs to their file-name form.
var DefaultVerbs = map[string]string{
	"Create":    "create",
	"Update":    "update",
	"Delete":    "delete",
	"Get":       "get",
	"List":      "list",
	"Duplicate": "duplicate",
	"Terminate": "terminate",
	"Cancel":    "cancel",
	"Complete":  "complete",
}

// Convention is the default verb-entity.use-case.ts strategy. Unmapped verbs
// and entities are lowercased.
type Convention struct {
	Verbs    map[string]string
	Entities map[string]string
	Suffix   string
}

// NewConvention merges verbs over DefaultVerbs. Either map may be nil.
func NewConvention(verbs, entities map[string]string) *Convention {
	merged := make(map[string]string, len(DefaultVerbs)+len(verbs))
	for k, v := range DefaultVerbs {
		merged[k] = v
	}
	for k, v := range verbs {
		merged[k] = v
	}
	if entities == nil {
		entities = map[string]string{}
	}
	return &Convention{Verbs: merged, Entities: entities, Suffix: UseCaseSuffix}
}

// FileName turns "CreateOrder" into "create-order.use-case.ts". A single-word
// action is lowercased as is.
func (c *Convention) FileName(actionName string) string {
	parts := SplitPascal(actionName)
	if len(parts) < 2 {
		return strings.ToLower(strings.Join(parts, "")) + c.Suffix
	}
	verb := parts[0]
	entity := strings.Join(parts[1:], "")

	mappedVerb, ok := c.Verbs[verb]
	if !ok {
		mappedVerb = strings.ToLower(verb)
	}
	mappedEntity, ok := c.Entities[entity]
	if !ok {
		mappedEntity = strings.ToLower(entity)
	}
	return mappedVerb + "-" + mappedEntity + c.Suffix
}

var camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

// SplitPascal splits at lower-to-upper boundaries: "CreateOrderLine" gives
// ["Create", "Order", "Line"]. Runs of capitals stay together.
func SplitPascal(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(camelBoundary.ReplaceAllString(s, "$1 $2"), " ")
}

// TestPath returns the test file that sits beside a use-case file.
func TestPath(codePath string) string {
	return strings.Replace(codePath, UseCaseSuffix, TestSuffix, 1)
}
