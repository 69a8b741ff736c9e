package gate

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/c360studio/kdd/codemap"
	"github.com/c360studio/kdd/resolver"
)

// Defaults for Options.
const (
	DefaultTypecheckCommand = "bun run typecheck"
	DefaultTestCommand      = "bun test"
	DefaultTimeout          = 10 * time.Minute
	DefaultReqTestsDir      = "tests/req"
)

// Options configures a Pipeline.
type Options struct {
	SpecsDir    string
	ProjectRoot string
	// Quick skips the type-check and test execution.
	Quick         bool
	SkipTypecheck bool

	TypecheckCommand string
	TestCommand      string
	// Timeout bounds each external command.
	Timeout     time.Duration
	ReqTestsDir string

	Code codemap.Options
}

func (o Options) withDefaults() Options {
	if o.ProjectRoot == "" {
		o.ProjectRoot = "."
	}
	if o.SpecsDir == "" {
		o.SpecsDir = filepath.Join(o.ProjectRoot, "specs")
	}
	if o.TypecheckCommand == "" {
		o.TypecheckCommand = DefaultTypecheckCommand
	}
	if o.TestCommand == "" {
		o.TestCommand = DefaultTestCommand
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ReqTestsDir == "" {
		o.ReqTestsDir = DefaultReqTestsDir
	}
	return o
}

// env is the state shared by every gate of one Pipeline.
type env struct {
	opts     Options
	resolver *resolver.Resolver
	mapper   *codemap.Mapper
	runner   *Runner
	logger   *slog.Logger
}

func (e *env) rel(path string) string {
	return relTo(e.opts.ProjectRoot, path)
}

func (e *env) reqTestsPath() string {
	if filepath.IsAbs(e.opts.ReqTestsDir) {
		return e.opts.ReqTestsDir
	}
	return filepath.Join(e.opts.ProjectRoot, e.opts.ReqTestsDir)
}
