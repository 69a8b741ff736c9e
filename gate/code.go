package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/kdd/uv"
)

const maxCompilerErrors = 10

// codeGate runs the project type-check.
type codeGate struct{ *env }

func (codeGate) Number() int  { return 7 }
func (codeGate) Name() string { return "Code" }

func (g codeGate) Check(ctx context.Context, _ *uv.ValueUnit) (Result, error) {
	const desc = "TypeScript compilation"
	if g.opts.Quick || g.opts.SkipTypecheck {
		return single(7, g.Name(), StatusSkip, Item{
			Description: desc,
			Detail:      "Skipped (--quick or --skip-typecheck)",
		}, "Skipped"), nil
	}

	res, err := g.runner.Run(ctx, g.opts.TypecheckCommand)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, err
		}
		return single(7, g.Name(), StatusFail, Item{
			Description: desc,
			Detail:      "Error running typecheck: " + err.Error(),
		}, "Failed to run typecheck"), nil
	}
	if res.TimedOut {
		return single(7, g.Name(), StatusFail, Item{
			Description: desc,
			Detail:      "timed out after " + g.runner.Timeout().String(),
		}, "Typecheck timed out"), nil
	}
	if res.ExitCode == 0 {
		return single(7, g.Name(), StatusPass, Item{
			Description: desc,
			Detail:      "tsc --noEmit passed",
		}, "TypeScript compiles successfully"), nil
	}

	var errorLines []string
	for _, line := range strings.Split(res.Output(), "\n") {
		if strings.Contains(line, "error TS") {
			errorLines = append(errorLines, strings.TrimSpace(line))
		}
	}
	items := []Item{{
		Description: desc,
		Status:      StatusFail,
		Detail:      fmt.Sprintf("%d TypeScript error(s)", len(errorLines)),
	}}
	for i, line := range errorLines {
		if i == maxCompilerErrors {
			break
		}
		items = append(items, Item{Description: line, Status: StatusFail})
	}
	return Result{
		Gate:    7,
		Name:    g.Name(),
		Status:  StatusFail,
		Items:   items,
		Summary: fmt.Sprintf("%d TypeScript errors found", len(errorLines)),
	}, nil
}
