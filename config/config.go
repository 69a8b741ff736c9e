// Package config provides configuration loading and management for kdd.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/kdd/codemap"
	"github.com/c360studio/kdd/gate"
	"github.com/c360studio/kdd/validator"
)

// Config represents the complete kdd configuration
type Config struct {
	// SpecsDir is the spec tree, relative to ProjectRoot unless absolute.
	SpecsDir string `yaml:"specs_dir"`
	// ProjectRoot is auto-detected when empty.
	ProjectRoot string          `yaml:"project_root,omitempty"`
	Code        CodeConfig      `yaml:"code"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	Validator   ValidatorConfig `yaml:"validator"`
	Coverage    CoverageConfig  `yaml:"coverage"`
	History     HistoryConfig   `yaml:"history"`
	Metrics     MetricsConfig   `yaml:"metrics"`

	// Source is the project file the config was read from, if any.
	Source string `yaml:"-"`
}

// CodeConfig locates the implementation behind CMD/QRY specs
type CodeConfig struct {
	UseCasesDir string `yaml:"use_cases_dir"`
	// EntityNameMap overrides the file-name form of an entity, e.g.
	// Pedido: order.
	EntityNameMap map[string]string `yaml:"entity_name_map,omitempty"`
	// ActionVerbMap is merged over the built-in verb table.
	ActionVerbMap map[string]string `yaml:"action_verb_map,omitempty"`
	// CodeMapping maps a use-case base name to a CMD/QRY ID for files that
	// do not mention their ID.
	CodeMapping map[string]string `yaml:"code_mapping,omitempty"`
	ReqTestsDir string            `yaml:"req_tests_dir"`
}

// PipelineConfig configures the external commands run by gates 7 and 8
type PipelineConfig struct {
	TypecheckCommand string        `yaml:"typecheck_command"`
	TestCommand      string        `yaml:"test_command"`
	Timeout          time.Duration `yaml:"timeout"`
}

// ValidatorConfig filters spec validation results
type ValidatorConfig struct {
	IgnoreRules      []string `yaml:"ignore_rules,omitempty"`
	IgnorePaths      []string `yaml:"ignore_paths,omitempty"`
	MinLevel         string   `yaml:"min_level"`
	WarningsAsErrors bool     `yaml:"warnings_as_errors"`
	CustomEntities   []string `yaml:"custom_entities,omitempty"`
	IgnoreTerms      []string `yaml:"ignore_terms,omitempty"`
}

// CoverageConfig configures rule coverage
type CoverageConfig struct {
	// Threshold is the minimum covered percentage (0-100).
	Threshold int `yaml:"threshold"`
}

// HistoryConfig configures the run history database
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig configures the Prometheus textfile export
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	verbs := make(map[string]string, len(codemap.DefaultVerbs))
	for k, v := range codemap.DefaultVerbs {
		verbs[k] = v
	}
	return &Config{
		SpecsDir: "specs",
		Code: CodeConfig{
			UseCasesDir:   "src/application/use-cases",
			ActionVerbMap: verbs,
			ReqTestsDir:   gate.DefaultReqTestsDir,
		},
		Pipeline: PipelineConfig{
			TypecheckCommand: gate.DefaultTypecheckCommand,
			TestCommand:      gate.DefaultTestCommand,
			Timeout:          gate.DefaultTimeout,
		},
		Validator: ValidatorConfig{
			IgnorePaths: append([]string(nil), validator.DefaultIgnorePaths...),
			MinLevel:    string(validator.SeverityWarning),
		},
		Coverage: CoverageConfig{Threshold: 95},
		History:  HistoryConfig{Path: ".kdd/history.db"},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.SpecsDir == "" {
		return fmt.Errorf("specs_dir is required")
	}
	if c.Code.UseCasesDir == "" {
		return fmt.Errorf("code.use_cases_dir is required")
	}
	if c.Pipeline.Timeout <= 0 {
		return fmt.Errorf("pipeline.timeout must be positive")
	}
	if c.Coverage.Threshold < 0 || c.Coverage.Threshold > 100 {
		return fmt.Errorf("coverage.threshold must be between 0 and 100")
	}
	if _, err := validator.ParseSeverity(c.Validator.MinLevel); err != nil {
		return fmt.Errorf("validator.min_level: %w", err)
	}
	for _, p := range append(append([]string(nil), c.Validator.IgnoreRules...), c.Validator.IgnorePaths...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("validator: invalid pattern %q", p)
		}
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values). Maps are merged key by key; lists replace.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.SpecsDir != "" {
		c.SpecsDir = other.SpecsDir
	}
	if other.ProjectRoot != "" {
		c.ProjectRoot = other.ProjectRoot
	}

	// Code
	if other.Code.UseCasesDir != "" {
		c.Code.UseCasesDir = other.Code.UseCasesDir
	}
	if other.Code.ReqTestsDir != "" {
		c.Code.ReqTestsDir = other.Code.ReqTestsDir
	}
	c.Code.EntityNameMap = mergeMap(c.Code.EntityNameMap, other.Code.EntityNameMap)
	c.Code.ActionVerbMap = mergeMap(c.Code.ActionVerbMap, other.Code.ActionVerbMap)
	c.Code.CodeMapping = mergeMap(c.Code.CodeMapping, other.Code.CodeMapping)

	// Pipeline
	if other.Pipeline.TypecheckCommand != "" {
		c.Pipeline.TypecheckCommand = other.Pipeline.TypecheckCommand
	}
	if other.Pipeline.TestCommand != "" {
		c.Pipeline.TestCommand = other.Pipeline.TestCommand
	}
	if other.Pipeline.Timeout != 0 {
		c.Pipeline.Timeout = other.Pipeline.Timeout
	}

	// Validator
	if len(other.Validator.IgnoreRules) > 0 {
		c.Validator.IgnoreRules = other.Validator.IgnoreRules
	}
	if len(other.Validator.IgnorePaths) > 0 {
		c.Validator.IgnorePaths = other.Validator.IgnorePaths
	}
	if other.Validator.MinLevel != "" {
		c.Validator.MinLevel = other.Validator.MinLevel
	}
	if other.Validator.WarningsAsErrors {
		c.Validator.WarningsAsErrors = true
	}
	if len(other.Validator.CustomEntities) > 0 {
		c.Validator.CustomEntities = other.Validator.CustomEntities
	}
	if len(other.Validator.IgnoreTerms) > 0 {
		c.Validator.IgnoreTerms = other.Validator.IgnoreTerms
	}

	if other.Coverage.Threshold != 0 {
		c.Coverage.Threshold = other.Coverage.Threshold
	}

	// History
	if other.History.Enabled {
		c.History.Enabled = true
	}
	if other.History.Path != "" {
		c.History.Path = other.History.Path
	}

	if other.Metrics.Textfile != "" {
		c.Metrics.Textfile = other.Metrics.Textfile
	}
	if other.Source != "" {
		c.Source = other.Source
	}
}

func mergeMap(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Path resolves p against the project root.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectRoot, p)
}

// SpecsPath returns the absolute specs directory.
func (c *Config) SpecsPath() string {
	return c.Path(c.SpecsDir)
}

// CodeOptions builds the code mapper configuration.
func (c *Config) CodeOptions(logger *slog.Logger) codemap.Options {
	return codemap.Options{
		UseCasesDir: c.Code.UseCasesDir,
		Naming:      codemap.NewConvention(c.Code.ActionVerbMap, c.Code.EntityNameMap),
		Overrides:   c.Code.CodeMapping,
		Logger:      logger,
	}
}

// GateOptions builds pipeline options. Per-run switches such as Quick are
// left for the caller.
func (c *Config) GateOptions(logger *slog.Logger) gate.Options {
	return gate.Options{
		SpecsDir:         c.SpecsPath(),
		ProjectRoot:      c.ProjectRoot,
		TypecheckCommand: c.Pipeline.TypecheckCommand,
		TestCommand:      c.Pipeline.TestCommand,
		Timeout:          c.Pipeline.Timeout,
		ReqTestsDir:      c.Code.ReqTestsDir,
		Code:             c.CodeOptions(logger),
	}
}

// ValidatorOptions builds validator options from the filter settings.
func (c *Config) ValidatorOptions(logger *slog.Logger) (validator.Options, error) {
	minLevel, err := validator.ParseSeverity(c.Validator.MinLevel)
	if err != nil {
		return validator.Options{}, err
	}
	return validator.Options{
		SpecsDir:       c.SpecsPath(),
		IgnoreRules:    c.Validator.IgnoreRules,
		IgnorePaths:    c.Validator.IgnorePaths,
		MinLevel:       minLevel,
		CustomEntities: c.Validator.CustomEntities,
		IgnoreTerms:    c.Validator.IgnoreTerms,
		Logger:         logger,
	}, nil
}
