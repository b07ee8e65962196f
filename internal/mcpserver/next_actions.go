package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tiger/mediation-pipeline/api/mediation"
	"github.com/tiger/mediation-pipeline/internal/analysis/nextaction"
)

// NextActionsTool handles the mediation_next_actions MCP tool.
type NextActionsTool struct{}

// NewNextActionsTool creates a NextActionsTool.
func NewNextActionsTool() *NextActionsTool {
	return &NextActionsTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *NextActionsTool) Definition() mcp.Tool {
	return mcp.NewTool("mediation_next_actions",
		mcp.WithDescription(
			"Plan next-action tags from conflict level, resolution potential, severity and "+
				"session phase. Deterministic; makes no provider calls.",
		),
		mcp.WithNumber("conflict_level",
			mcp.Required(),
			mcp.Description("Conflict level from 0 to 100."),
		),
		mcp.WithNumber("resolution_potential",
			mcp.Required(),
			mcp.Description("Resolution potential from 0 to 100."),
		),
		mcp.WithString("severity",
			mcp.Description("Conflict severity. Default: medium."),
			mcp.Enum(severityValues()...),
		),
		mcp.WithString("session_phase",
			mcp.Description("Current session phase. Omit to skip phase actions."),
			mcp.Enum(phaseValues()...),
		),
	)
}

// Handle processes the mediation_next_actions tool call.
func (t *NextActionsTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conflictLevel := req.GetFloat("conflict_level", -1)
	resolution := req.GetFloat("resolution_potential", -1)
	if conflictLevel < 0 || conflictLevel > 100 {
		return mcp.NewToolResultError("'conflict_level' must be between 0 and 100"), nil
	}
	if resolution < 0 || resolution > 100 {
		return mcp.NewToolResultError("'resolution_potential' must be between 0 and 100"), nil
	}

	severity := mediation.Severity(req.GetString("severity", string(mediation.SeverityMedium)))
	if err := severity.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var octx *mediation.OrchestrationContext
	if phase := req.GetString("session_phase", ""); phase != "" {
		octx = &mediation.OrchestrationContext{SessionPhase: mediation.SessionPhase(phase)}
		if err := octx.SessionPhase.Validate(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	actions := nextaction.Determine(
		mediation.ExpressionProfile{ConflictLevel: int(conflictLevel), ResolutionPotential: int(resolution)},
		mediation.ConflictAnalysis{Severity: severity},
		octx,
	)

	var sb strings.Builder
	sb.WriteString("## Next actions\n\n")
	if len(actions) == 0 {
		sb.WriteString("No action required. Continue the session.\n")
	}
	for i, action := range actions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, action)
	}
	return mcp.NewToolResultText(sb.String()), nil
}
