// Package mcpserver exposes pipeline checks, artifact resolution, Value Unit
// status and domain validation as MCP tools over stdio.
//
// Every tool call builds fresh engine state from the configuration, so edits
// to the spec tree are visible on the next call.
package mcpserver

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/c360studio/kdd/config"
	"github.com/c360studio/kdd/history"
)

// Name is the MCP server name.
const Name = "kdd"

// Deps are the collaborators shared by the tools.
type Deps struct {
	Config *config.Config
	// History records kdd_check runs when set.
	History *history.Store
	Logger  *slog.Logger
}

// New creates the MCP server with every tool registered.
func New(deps Deps, version string) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := server.NewMCPServer(
		Name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	check := NewCheckTool(deps)
	s.AddTool(check.Definition(), check.Handle)

	resolve := NewResolveTool(deps)
	s.AddTool(resolve.Definition(), resolve.Handle)

	status := NewStatusTool(deps)
	s.AddTool(status.Definition(), status.Handle)

	domains := NewDomainsTool(deps)
	s.AddTool(domains.Definition(), domains.Handle)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(deps Deps, version string) error {
	return server.ServeStdio(New(deps, version))
}

const instructions = `kdd verifies that Value Units (UV-xxx documents) are ready for implementation.
Use kdd_uv_status to see what a Value Unit declares, kdd_check to run the readiness gates,
kdd_resolve to find the spec file behind an artifact ID, and kdd_validate_domains to check
domain manifests and dependencies.`
