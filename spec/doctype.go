package spec

import (
	"path/filepath"
	"strings"
)

// DocType is the inferred kind of a spec document.
type DocType string

// Known document types.
const (
	TypeUseCase     DocType = "use-case"
	TypeRequirement DocType = "requirement"
	TypeEntity      DocType = "entity"
	TypeEvent       DocType = "event"
	TypeRule        DocType = "rule"
	TypeProcess     DocType = "process"
	TypePRD         DocType = "prd"
	TypeStory       DocType = "story"
	TypeNFR         DocType = "nfr"
	TypeADR         DocType = "adr"
	TypeObjective   DocType = "objective"
	TypeValueUnit   DocType = "value-unit"
	TypeRelease     DocType = "release"
	TypeCommand     DocType = "command"
	TypeQuery       DocType = "query"
	TypeUIView      DocType = "ui-view"
	TypeUIComponent DocType = "ui-component"
	TypeUILayout    DocType = "ui-layout"
	TypeUIModal     DocType = "ui-modal"
	TypeUIFlow      DocType = "ui-flow"
	TypeUnknown     DocType = "unknown"
)

// IsUI reports whether the type is one of the experience-layer types.
func (t DocType) IsUI() bool {
	return strings.HasPrefix(string(t), "ui-")
}

var kindTypes = map[string]DocType{
	"use-case":     TypeUseCase,
	"use_case":     TypeUseCase,
	"requirement":  TypeRequirement,
	"requirements": TypeRequirement,
	"objective":    TypeObjective,
	"value-unit":   TypeValueUnit,
	"release":      TypeRelease,
	"command":      TypeCommand,
	"query":        TypeQuery,
	"ui-view":      TypeUIView,
	"ui-component": TypeUIComponent,
	"ui-layout":    TypeUILayout,
	"ui-modal":     TypeUIModal,
	"ui-flow":      TypeUIFlow,
	"rule":         TypeRule,
	"rules":        TypeRule,
	"process":      TypeProcess,
	"prd":          TypePRD,
	"story":        TypeStory,
	"nfr":          TypeNFR,
	"adr":          TypeADR,
	"entity":       TypeEntity,
	"event":        TypeEvent,
}

var tagTypes = []struct {
	tag string
	typ DocType
}{
	{"entity", TypeEntity},
	{"event", TypeEvent},
	{"use-case", TypeUseCase},
	{"ears", TypeRequirement},
	{"rules", TypeRule},
}

var filePrefixTypes = []struct {
	prefix string
	typ    DocType
}{
	{"OBJ-", TypeObjective},
	{"UV-", TypeValueUnit},
	{"REL-", TypeRelease},
	{"UC-", TypeUseCase},
	{"REQ-", TypeRequirement},
	{"EVT-", TypeEvent},
	{"RUL-", TypeRule},
	{"BR-", TypeRule},
	{"CMD-", TypeCommand},
	{"QRY-", TypeQuery},
	{"VIEW-", TypeUIView},
	{"LAYOUT-", TypeUILayout},
	{"MODAL-", TypeUIModal},
	{"UI-", TypeUIComponent},
	{"FLOW-", TypeUIFlow},
	{"PRC-", TypeProcess},
	{"PRD-", TypePRD},
	{"US-", TypeStory},
	{"STORY-", TypeStory},
	{"NFR-", TypeNFR},
	{"ADR-", TypeADR},
}

var idPrefixTypes = []struct {
	prefix string
	typ    DocType
}{
	{"OBJ-", TypeObjective},
	{"UV-", TypeValueUnit},
	{"REL-", TypeRelease},
	{"UC-", TypeUseCase},
	{"REQ-", TypeRequirement},
	{"EVT-", TypeEvent},
	{"RUL-", TypeRule},
	{"PRC-", TypeProcess},
	{"CMD-", TypeCommand},
	{"QRY-", TypeQuery},
	{"UI-", TypeUIView},
}

var dirTypes = []struct {
	dir string
	typ DocType
}{
	{"/use-cases/", TypeUseCase},
	{"/requirements/", TypeRequirement},
	{"/criteria/", TypeRequirement},
	{"/entities/", TypeEntity},
	{"/events/", TypeEvent},
	{"/rules/", TypeRule},
	{"/processes/", TypeProcess},
	{"/commands/", TypeCommand},
	{"/queries/", TypeQuery},
	{"/views/", TypeUIView},
	{"/components/", TypeUIComponent},
	{"/flows/", TypeUIFlow},
}

// InferType derives a document type from, in order: the frontmatter kind,
// its tags, the filename prefix, the id prefix and finally the directory.
func InferType(path string, frontmatter map[string]any) DocType {
	if kind, ok := frontmatter["kind"].(string); ok {
		if t, found := kindTypes[strings.ToLower(strings.TrimSpace(kind))]; found {
			return t
		}
	}

	tags := stringSlice(frontmatter["tags"])
	for _, tt := range tagTypes {
		for _, tag := range tags {
			if tag == tt.tag {
				return tt.typ
			}
		}
	}

	name := filepath.Base(path)
	for _, fp := range filePrefixTypes {
		if strings.HasPrefix(name, fp.prefix) {
			return fp.typ
		}
	}

	if id, ok := frontmatter["id"].(string); ok {
		for _, ip := range idPrefixTypes {
			if strings.HasPrefix(id, ip.prefix) {
				return ip.typ
			}
		}
	}

	slashed := filepath.ToSlash(path)
	for _, dt := range dirTypes {
		if strings.Contains(slashed, dt.dir) {
			return dt.typ
		}
	}
	return TypeUnknown
}
