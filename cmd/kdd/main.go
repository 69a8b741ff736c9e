// Package main provides the kdd binary entry point.
// kdd verifies that Value Units and the specs they reference are ready for
// implementation, and lints the spec tree.
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "kdd"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitUnknown = 2
)

// exitError ends the process with code after the command has already
// written its report.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError is an invalid invocation: bad arguments, an unknown gate or a
// target that matches nothing.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(exitUnknown)
		}
	}()

	os.Exit(execute(newApp(os.Stdout, os.Stderr), os.Args[1:]))
}

// execute runs the command line and maps the outcome to an exit code.
func execute(a *app, args []string) int {
	cmd := rootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	var usage usageError
	if errors.As(err, &usage) {
		fmt.Fprintf(a.stderr, "Error: %v\nRun '%s --help' for usage.\n", usage.err, appName)
		return exitUsage
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	return exitUnknown
}
