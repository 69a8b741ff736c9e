package coverage

import (
	"os"

	"github.com/c360studio/kdd/codemap"
	"github.com/c360studio/kdd/resolver"
	"github.com/c360studio/kdd/uv"
)

// ArtifactStatus records what exists for one UV artifact. Code and test are
// only tracked for commands and queries.
type ArtifactStatus struct {
	ID         string    `json:"id"`
	Status     uv.Status `json:"status"`
	SpecExists bool      `json:"specExists"`
	CodeExists bool      `json:"codeExists"`
	TestExists bool      `json:"testExists"`
	HasCode    bool      `json:"tracksCode"`
}

// UnitStatus is the completeness report for one Value Unit.
type UnitStatus struct {
	uv.Stats
	Total        int              `json:"totalArtifacts"`
	SpecsExist   int              `json:"specsExist"`
	SpecsMissing int              `json:"specsMissing"`
	CodeExists   int              `json:"codeExists"`
	CodeMissing  int              `json:"codeMissing"`
	TestsExist   int              `json:"testsExist"`
	TestsMissing int              `json:"testsMissing"`
	Details      []ArtifactStatus `json:"details"`
}

// CodeTracked is the number of artifacts with a code expectation.
func (s *UnitStatus) CodeTracked() int { return s.CodeExists + s.CodeMissing }

// Status checks spec, code and test existence for every artifact of v.
func Status(v *uv.ValueUnit, res *resolver.Resolver, mapper *codemap.Mapper) *UnitStatus {
	mapping := mapper.Scan()
	s := &UnitStatus{Stats: v.Stats(), Total: len(v.All), Details: []ArtifactStatus{}}

	for _, ref := range v.All {
		d := ArtifactStatus{ID: ref.ID, Status: ref.Status}
		if _, ok := res.Resolve(ref.ID); ok {
			d.SpecExists = true
			s.SpecsExist++
		} else {
			s.SpecsMissing++
		}

		if ref.Prefix == "CMD" || ref.Prefix == "QRY" {
			d.HasCode = true
			if code, ok := mapper.Locate(ref.ID, mapping, res); ok {
				d.CodeExists = exists(code)
				d.TestExists = exists(codemap.TestPath(code))
			}
			if d.CodeExists {
				s.CodeExists++
			} else {
				s.CodeMissing++
			}
			if d.TestExists {
				s.TestsExist++
			} else {
				s.TestsMissing++
			}
		}
		s.Details = append(s.Details, d)
	}
	return s
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
