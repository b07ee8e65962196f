// Package mcpserver exposes the mediation pipeline as MCP tools over stdio.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New registers every tool on a fresh MCP server. Nothing is served until
// the caller hands the server to a transport.
func New(engine Orchestrator, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		"mediate",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	orchestrate := NewOrchestrateTool(engine, logger)
	s.AddTool(orchestrate.Definition(), orchestrate.Handle)

	nextActions := NewNextActionsTool()
	s.AddTool(nextActions.Definition(), nextActions.Handle)

	return s
}

const instructions = `Mediation pipeline tools.

Call mediation_orchestrate with one participant turn to get the emotion
profile, conflict classification, coaching recommendations and next-action
tags. Pass the session phase and conversation id on every turn. Every stage
degrades to a documented default when its provider is unavailable, so the
result always has the same shape.

Call mediation_next_actions to plan actions from scores you already have. It
makes no provider calls.`
