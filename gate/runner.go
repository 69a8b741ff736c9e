package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrEmptyCommand is returned when a command string has no program.
var ErrEmptyCommand = errors.New("empty command")

// RunResult is the captured outcome of an external command.
type RunResult struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// Output returns stdout followed by stderr.
func (r RunResult) Output() string {
	return r.Stdout + r.Stderr
}

// Runner executes the type-check and test commands in the project root.
type Runner struct {
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a Runner. A zero timeout disables the deadline.
func NewRunner(dir string, timeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{dir: dir, timeout: timeout, logger: logger}
}

// Timeout returns the per-command deadline.
func (r *Runner) Timeout() time.Duration { return r.timeout }

// Run executes command with extra arguments appended. A non-zero exit is not
// an error; it is reported in RunResult.ExitCode. An error is returned when
// the program cannot be started or ctx itself is cancelled.
func (r *Runner) Run(ctx context.Context, command string, extra ...string) (RunResult, error) {
	args := append(splitCommand(command), extra...)
	if len(args) == 0 || args[0] == "" {
		return RunResult{Command: command, ExitCode: -1}, ErrEmptyCommand
	}

	cmdCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, args[0], args[1:]...)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res := RunResult{
		Command:  strings.Join(args, " "),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("run %s: %w", args[0], ctx.Err())
	}
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		res.TimedOut = true
		r.logger.Warn("External command timed out",
			slog.String("command", res.Command),
			slog.Duration("timeout", r.timeout))
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("run %s: %w", args[0], runErr)
}

// splitCommand tokenises on spaces and tabs, keeping single- and
// double-quoted tokens together. No escapes; wrap anything richer in
// "sh -c '...'".
func splitCommand(cmd string) []string {
	var (
		tokens   []string
		current  strings.Builder
		inSingle bool
		inDouble bool
		quoted   bool
	)
	flush := func() {
		if current.Len() > 0 || quoted {
			tokens = append(tokens, current.String())
			current.Reset()
		}
		quoted = false
	}
	for _, r := range cmd {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			quoted = true
		case r == '"' && !inSingle:
			inDouble = !inDouble
			quoted = true
		case (r == ' ' || r == '\t') && !inSingle && !inDouble:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}
