package codemap

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/kdd/resolver"
)

var idInSource = regexp.MustCompile(`(?i)(CMD|QRY)-(\d{3})`)

// Mapping is a scanned CMD/QRY ID → absolute use-case file table.
type Mapping map[string]string

// Mapper finds the code file behind a CMD or QRY spec.
type Mapper struct {
	projectRoot string
	useCasesDir string
	naming      NamingStrategy
	// overrides maps a use-case base name (without suffix) to an ID.
	overrides map[string]string
	logger    *slog.Logger
}

// Options configures a Mapper.
type Options struct {
	UseCasesDir string
	Naming      NamingStrategy
	Overrides   map[string]string
	Logger      *slog.Logger
}

// NewMapper creates a Mapper for projectRoot.
func NewMapper(projectRoot string, opts Options) *Mapper {
	m := &Mapper{
		projectRoot: projectRoot,
		useCasesDir: opts.UseCasesDir,
		naming:      opts.Naming,
		overrides:   opts.Overrides,
		logger:      opts.Logger,
	}
	if m.useCasesDir == "" {
		m.useCasesDir = "src/application/use-cases"
	}
	if m.naming == nil {
		m.naming = NewConvention(nil, nil)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// UseCasesPath returns the absolute use-case directory.
func (m *Mapper) UseCasesPath() string {
	if filepath.IsAbs(m.useCasesDir) {
		return m.useCasesDir
	}
	return filepath.Join(m.projectRoot, m.useCasesDir)
}

// Scan reads every *.use-case.ts file (tests excluded) and records the first
// CMD/QRY ID mentioned in it. Files without an ID fall back to the override
// table. A missing directory yields an empty mapping.
func (m *Mapper) Scan() Mapping {
	mapping := Mapping{}
	dir := m.UseCasesPath()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		m.logger.Debug("Use-case directory not found", slog.String("dir", dir))
		return mapping
	}
	files, err := doublestar.Glob(os.DirFS(dir), "*"+UseCaseSuffix)
	if err != nil {
		return mapping
	}
	sort.Strings(files)

	for _, name := range files {
		if strings.Contains(name, ".test.") {
			continue
		}
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			m.logger.Debug("Skipping unreadable use-case", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		if match := idInSource.FindSubmatch(content); match != nil {
			mapping[strings.ToUpper(string(match[1]))+"-"+string(match[2])] = path
			continue
		}
		if id, ok := m.overrides[strings.TrimSuffix(name, UseCaseSuffix)]; ok {
			mapping[id] = path
		}
	}
	m.logger.Debug("Code mapping scanned", slog.String("dir", dir), slog.Int("mapped", len(mapping)))
	return mapping
}

// ExpectedPath returns where the naming strategy places actionName.
func (m *Mapper) ExpectedPath(actionName string) string {
	return filepath.Join(m.UseCasesPath(), m.naming.FileName(actionName))
}

// Locate returns the code file for id: the scanned mapping first, else the
// path derived from the spec's action name. ok is false when neither source
// can name a file; the returned path need not exist.
func (m *Mapper) Locate(id string, mapping Mapping, res *resolver.Resolver) (string, bool) {
	if path, ok := mapping[id]; ok {
		return path, true
	}
	specPath, ok := res.Resolve(id)
	if !ok {
		return "", false
	}
	cmd, err := ParseCommand(specPath)
	if err != nil {
		m.logger.Debug("Cannot derive code path", slog.String("id", id), slog.String("error", err.Error()))
		return "", false
	}
	if cmd.ActionName == "" {
		return "", false
	}
	return m.ExpectedPath(cmd.ActionName), true
}

// Entry is one row of the CMD → code report.
type Entry struct {
	ID         string `json:"cmdId"`
	ActionName string `json:"actionName"`
	SpecFile   string `json:"specFile"`
	CodeFile   string `json:"codeFile"`
	TestFile   string `json:"testFile"`
	HasCode    bool   `json:"hasCode"`
	HasTest    bool   `json:"hasTest"`
}

// Report checks every CMD and QRY spec of the tree. Specs that do not parse
// as commands are skipped.
func (m *Mapper) Report(res *resolver.Resolver) []Entry {
	mapping := m.Scan()
	specs := append(res.CommandSpecs(), res.QuerySpecs()...)

	var entries []Entry
	for _, specPath := range specs {
		cmd, err := ParseCommand(specPath)
		if err != nil {
			m.logger.Debug("Skipping spec", slog.String("path", specPath), slog.String("error", err.Error()))
			continue
		}
		id := cmd.ID
		if id == "" {
			id = idFromFileName(specPath)
		}
		code, ok := mapping[id]
		if !ok {
			code = m.ExpectedPath(cmd.ActionName)
		}
		test := TestPath(code)
		entries = append(entries, Entry{
			ID:         id,
			ActionName: cmd.ActionName,
			SpecFile:   m.rel(specPath),
			CodeFile:   m.rel(code),
			TestFile:   m.rel(test),
			HasCode:    fileExists(code),
			HasTest:    fileExists(test),
		})
	}
	return entries
}

var leadingID = regexp.MustCompile(`^((?:CMD|QRY)-\d+)`)

func idFromFileName(path string) string {
	if m := leadingID.FindStringSubmatch(filepath.Base(path)); m != nil {
		return m[1]
	}
	return strings.TrimSuffix(filepath.Base(path), ".md")
}

func (m *Mapper) rel(path string) string {
	if r, err := filepath.Rel(m.projectRoot, path); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
