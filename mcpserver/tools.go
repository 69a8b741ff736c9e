package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/c360studio/kdd/codemap"
	"github.com/c360studio/kdd/coverage"
	"github.com/c360studio/kdd/domain"
	"github.com/c360studio/kdd/gate"
	"github.com/c360studio/kdd/index"
	"github.com/c360studio/kdd/report"
	"github.com/c360studio/kdd/resolver"
	"github.com/c360studio/kdd/uv"
)

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// CheckTool handles the kdd_check MCP tool.
type CheckTool struct {
	deps Deps
}

// NewCheckTool creates a CheckTool.
func NewCheckTool(deps Deps) *CheckTool {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &CheckTool{deps: deps}
}

// Definition returns the MCP tool definition for kdd_check.
func (t *CheckTool) Definition() mcp.Tool {
	return mcp.NewTool("kdd_check",
		mcp.WithDescription("Run the readiness gates for a Value Unit and report each gate's items and the overall status."),
		mcp.WithString("uv_id",
			mcp.Required(),
			mcp.Description("Value Unit ID, e.g. UV-004"),
		),
		mcp.WithNumber("gate",
			mcp.Description("Run only this gate (1-8). Omit to run all gates."),
		),
		mcp.WithBoolean("quick",
			mcp.Description("Skip the type-check and test execution (default true)"),
		),
		mcp.WithBoolean("verbose",
			mcp.Description("List passing gate items too (default false)"),
		),
	)
}

// Handle processes the kdd_check tool call.
func (t *CheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uvID := strings.TrimSpace(req.GetString("uv_id", ""))
	if uvID == "" {
		return mcp.NewToolResultError("uv_id is required"), nil
	}
	gateNumber := intArg(req, "gate", 0)

	opts := t.deps.Config.GateOptions(t.deps.Logger)
	opts.Quick = boolArg(req, "quick", true)
	p := gate.NewPipeline(opts, t.deps.Logger)

	units, err := uv.NewParser(t.deps.Logger).Select(p.Resolver(), uvID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot load %s: %v", uvID, err)), nil
	}
	results, err := p.RunAll(ctx, units, gateNumber)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("check failed: %v", err)), nil
	}

	if t.deps.History != nil {
		for _, r := range results {
			if err := t.deps.History.Record(ctx, r); err != nil {
				t.deps.Logger.Warn("Failed to record run", slog.String("run_id", r.RunID), slog.String("error", err.Error()))
			}
		}
	}

	var buf bytes.Buffer
	if err := report.Pipeline(&buf, results, report.FormatConsole, boolArg(req, "verbose", false)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render report: %v", err)), nil
	}
	return mcp.NewToolResultText(strings.TrimLeft(buf.String(), "\n")), nil
}

// ResolveTool handles the kdd_resolve MCP tool.
type ResolveTool struct {
	deps Deps
}

// NewResolveTool creates a ResolveTool.
func NewResolveTool(deps Deps) *ResolveTool {
	return &ResolveTool{deps: deps}
}

// Definition returns the MCP tool definition for kdd_resolve.
func (t *ResolveTool) Definition() mcp.Tool {
	return mcp.NewTool("kdd_resolve",
		mcp.WithDescription("Find the spec file behind an artifact ID (CMD-001, UC-002, REQ-003...) or an entity name."),
		mcp.WithString("artifact_id",
			mcp.Required(),
			mcp.Description("Artifact ID, entity name, or domain::name reference"),
		),
	)
}

// Handle processes the kdd_resolve tool call.
func (t *ResolveTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("artifact_id", ""))
	if id == "" {
		return mcp.NewToolResultError("artifact_id is required"), nil
	}
	specsDir := t.deps.Config.SpecsPath()

	if path, ok := resolver.New(specsDir, t.deps.Logger).Resolve(id); ok {
		return mcp.NewToolResultText(fmt.Sprintf("%s → %s", id, relTo(t.deps.Config.ProjectRoot, path))), nil
	}

	idx := index.NewBuilder(t.deps.Logger).Build(specsDir)
	if e, ok := idx.FindReference(id, ""); ok {
		text := fmt.Sprintf("%s → %s (%s %q", id,
			relTo(t.deps.Config.ProjectRoot, filepath.Join(specsDir, e.Path)), e.Type, e.Name)
		if e.Line > 0 {
			text += fmt.Sprintf(", line %d", e.Line)
		}
		return mcp.NewToolResultText(text + ")"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: not found", id)
	if matches := idx.Search(id); len(matches) > 0 {
		sb.WriteString("\n\nSimilar artifacts:\n")
		for i, e := range matches {
			if i == 5 {
				break
			}
			fmt.Fprintf(&sb, "- %s (%s)\n", e.Name, e.Path)
		}
	}
	return mcp.NewToolResultError(sb.String()), nil
}

// StatusTool handles the kdd_uv_status MCP tool.
type StatusTool struct {
	deps Deps
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(deps Deps) *StatusTool {
	return &StatusTool{deps: deps}
}

// Definition returns the MCP tool definition for kdd_uv_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("kdd_uv_status",
		mcp.WithDescription("Show the declared artifacts of a Value Unit and whether their specs, code and tests exist. Omit uv_id for every Value Unit."),
		mcp.WithString("uv_id",
			mcp.Description("Value Unit ID, e.g. UV-004"),
		),
	)
}

// Handle processes the kdd_uv_status tool call.
func (t *StatusTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uvID := strings.TrimSpace(req.GetString("uv_id", ""))
	cfg := t.deps.Config
	res := resolver.New(cfg.SpecsPath(), t.deps.Logger)

	units, err := uv.NewParser(t.deps.Logger).Select(res, uvID)
	if err != nil {
		if errors.Is(err, uv.ErrNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("cannot load value units: %v", err)), nil
	}
	if len(units) == 0 {
		return mcp.NewToolResultText("No value units found"), nil
	}

	mapper := codemap.NewMapper(cfg.ProjectRoot, cfg.CodeOptions(t.deps.Logger))
	statuses := make([]*coverage.UnitStatus, len(units))
	for i, v := range units {
		statuses[i] = coverage.Status(v, res, mapper)
	}

	var buf bytes.Buffer
	if err := report.Status(&buf, statuses, report.FormatConsole); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render status: %v", err)), nil
	}
	return mcp.NewToolResultText(strings.TrimLeft(buf.String(), "\n")), nil
}

// DomainsTool handles the kdd_validate_domains MCP tool.
type DomainsTool struct {
	deps Deps
}

// NewDomainsTool creates a DomainsTool.
func NewDomainsTool(deps Deps) *DomainsTool {
	return &DomainsTool{deps: deps}
}

// Definition returns the MCP tool definition for kdd_validate_domains.
func (t *DomainsTool) Definition() mcp.Tool {
	return mcp.NewTool("kdd_validate_domains",
		mcp.WithDescription("Validate domain manifests, the domain dependency graph and declared exports, and summarize the domain map."),
	)
}

// Handle processes the kdd_validate_domains tool call.
func (t *DomainsTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issues, dctx := domain.ValidateStructure(t.deps.Config.SpecsPath(), t.deps.Logger)
	if !dctx.Layout.Enabled {
		return mcp.NewToolResultText("Single-domain layout: no domains/ directory to validate"), nil
	}

	var sb strings.Builder
	sb.WriteString(dctx.Summary())
	sb.WriteString("\n## Issues\n")
	if len(issues) == 0 {
		sb.WriteString("No issues found.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}
	errs := 0
	for _, is := range issues {
		if is.Level == domain.LevelError {
			errs++
		}
		fmt.Fprintf(&sb, "- **%s** [%s] %s\n", is.Level, is.Rule, is.Message)
		if is.Suggestion != "" {
			fmt.Fprintf(&sb, "  - %s\n", is.Suggestion)
		}
	}
	fmt.Fprintf(&sb, "\n%d issues, %d errors\n", len(issues), errs)
	if errs > 0 {
		return mcp.NewToolResultError(sb.String()), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
