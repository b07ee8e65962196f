package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tiger/mediation-pipeline/api/mediation"
	"go.uber.org/zap"
)

// Orchestrator runs one pipeline turn. *orchestration.Engine satisfies it.
type Orchestrator interface {
	Orchestrate(ctx context.Context, input mediation.OrchestrationInput, octx *mediation.OrchestrationContext) mediation.OrchestrationResult
}

// OrchestrateTool handles the mediation_orchestrate MCP tool.
type OrchestrateTool struct {
	engine Orchestrator
	logger *zap.Logger
}

// NewOrchestrateTool creates an OrchestrateTool around engine.
func NewOrchestrateTool(engine Orchestrator, logger *zap.Logger) *OrchestrateTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrchestrateTool{engine: engine, logger: logger}
}

// Definition returns the MCP tool definition for registration.
func (t *OrchestrateTool) Definition() mcp.Tool {
	return mcp.NewTool("mediation_orchestrate",
		mcp.WithDescription(
			"Analyze one mediation turn. Returns the emotion profile, conflict analysis, "+
				"recommendations and next-action tags as JSON. Synthesized voice audio is "+
				"reported by size only.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("What the participant said or wrote."),
		),
		mcp.WithString("session_phase",
			mcp.Description("Current phase of the session. Default: exploration."),
			mcp.Enum(phaseValues()...),
		),
		mcp.WithString("conflict_type",
			mcp.Description("Known conflict type, if any. Used when conflict analysis is unavailable."),
			mcp.Enum(conflictTypeValues()...),
		),
		mcp.WithString("conversation_id",
			mcp.Description("Conversation identifier. A new one is generated when omitted."),
		),
		mcp.WithString("participant_ids",
			mcp.Description("Comma-separated participant identifiers."),
		),
	)
}

// Handle processes the mediation_orchestrate tool call.
func (t *OrchestrateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := strings.TrimSpace(req.GetString("text", ""))
	if text == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	octx := &mediation.OrchestrationContext{
		ConversationID: req.GetString("conversation_id", ""),
		ParticipantIDs: splitList(req.GetString("participant_ids", "")),
		ConflictType:   mediation.ConflictType(req.GetString("conflict_type", "")),
		SessionPhase:   mediation.SessionPhase(req.GetString("session_phase", string(mediation.PhaseExploration))),
	}
	if octx.ConversationID == "" {
		octx.ConversationID = uuid.NewString()
	}
	if err := octx.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := t.engine.Orchestrate(ctx, mediation.OrchestrationInput{Text: text}, octx)
	t.logger.Debug("tool call completed",
		zap.String("tool", "mediation_orchestrate"),
		zap.String("conversation_id", octx.ConversationID),
	)

	body, err := json.MarshalIndent(toolResult(octx.ConversationID, result), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding orchestration result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

type orchestrateResponse struct {
	ConversationID string `json:"conversationId"`
	mediation.OrchestrationResult
	VoiceBytes int `json:"voiceBytes"`
}

// toolResult drops raw audio; MCP text content is the wrong place for it.
func toolResult(conversationID string, result mediation.OrchestrationResult) orchestrateResponse {
	resp := orchestrateResponse{ConversationID: conversationID}
	if result.VoiceResponse != nil {
		resp.VoiceBytes = len(result.VoiceResponse.Audio)
	}
	result.VoiceResponse = nil
	resp.OrchestrationResult = result
	return resp
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func phaseValues() []string {
	return []string{
		string(mediation.PhaseOpening),
		string(mediation.PhaseExploration),
		string(mediation.PhaseNegotiation),
		string(mediation.PhaseResolution),
		string(mediation.PhaseClosing),
	}
}

func conflictTypeValues() []string {
	return []string{
		string(mediation.ConflictInterpersonal),
		string(mediation.ConflictFamily),
		string(mediation.ConflictWorkplace),
		string(mediation.ConflictNeighbor),
		string(mediation.ConflictOther),
	}
}

func severityValues() []string {
	return []string{
		string(mediation.SeverityLow),
		string(mediation.SeverityMedium),
		string(mediation.SeverityHigh),
		string(mediation.SeverityCritical),
	}
}
