// Package conflict classifies a conflict from the fused turn analysis.
package conflict

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tiger/mediation-pipeline/api/mediation"
	"github.com/tiger/mediation-pipeline/internal/analysis/structured"
	"github.com/tiger/mediation-pipeline/internal/runtime/fallback"
	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"go.uber.org/zap"
)

// DefaultHistoryWindow is the number of recent emotion profiles sent to the provider.
const DefaultHistoryWindow = 5

const systemInstruction = `You are a conflict analysis service supporting a human mediator.
Classify the conflict described in the bundle. Identify triggers, underlying needs,
communication patterns, resolution opportunities, interventions and next steps.
Return a single JSON object matching the response schema and nothing else.`

var schema = structured.MustCompile("conflict_analysis", `{
  "type": "object",
  "required": ["conflictType", "severity", "triggers", "underlyingNeeds", "communicationPatterns", "resolutionOpportunities", "recommendedInterventions", "nextSteps"],
  "properties": {
    "conflictType": {"type": "string", "enum": ["interpersonal", "family", "workplace", "neighbor", "other"]},
    "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
    "triggers": {"type": "array", "items": {"type": "string"}},
    "underlyingNeeds": {"type": "array", "items": {"type": "string"}},
    "communicationPatterns": {
      "type": "object",
      "required": ["positive", "negative", "suggestions"],
      "properties": {
        "positive": {"type": "array", "items": {"type": "string"}},
        "negative": {"type": "array", "items": {"type": "string"}},
        "suggestions": {"type": "array", "items": {"type": "string"}}
      }
    },
    "resolutionOpportunities": {"type": "array", "items": {"type": "string"}},
    "recommendedInterventions": {"type": "array", "items": {"type": "string"}},
    "nextSteps": {"type": "array", "items": {"type": "string"}}
  }
}`)

// Config bounds one classification call.
type Config struct {
	Timeout       time.Duration
	HistoryWindow int
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	provider contracts.StructuredProvider
	cfg      Config
	logger   *zap.Logger
}

// New builds an analyzer. A nil provider makes every call return the default.
func New(provider contracts.StructuredProvider, cfg Config, logger *zap.Logger) *Analyzer {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{provider: provider, cfg: cfg, logger: logger}
}

// Bundle is the serialized context handed to the provider.
type Bundle struct {
	Text             string                        `json:"text"`
	EmotionProfile   mediation.ExpressionProfile   `json:"emotionProfile"`
	Documents        []mediation.DocumentAnalysis  `json:"documents"`
	ConflictType     mediation.ConflictType        `json:"conflictType,omitempty"`
	SessionPhase     mediation.SessionPhase        `json:"sessionPhase,omitempty"`
	ParticipantCount int                           `json:"participantCount"`
	RecentEmotions   []mediation.ExpressionProfile `json:"recentEmotions"`
}

// BuildBundle collects this turn's analyses followed by documents from earlier turns.
func BuildBundle(text string, profile mediation.ExpressionProfile, docs []mediation.DocumentAnalysis, octx *mediation.OrchestrationContext, window int) Bundle {
	b := Bundle{
		Text:           text,
		EmotionProfile: profile,
		Documents:      append([]mediation.DocumentAnalysis{}, docs...),
		RecentEmotions: []mediation.ExpressionProfile{},
	}
	if octx == nil {
		return b
	}
	b.Documents = append(b.Documents, octx.Documents...)
	b.ConflictType = octx.ConflictType
	b.SessionPhase = octx.SessionPhase
	b.ParticipantCount = len(octx.ParticipantIDs)
	if recent := octx.RecentHistory(window); len(recent) > 0 {
		b.RecentEmotions = recent
	}
	return b
}

// Analyze never fails; any provider problem yields mediation.DefaultConflictAnalysis.
func (a *Analyzer) Analyze(ctx context.Context, text string, profile mediation.ExpressionProfile, docs []mediation.DocumentAnalysis, octx *mediation.OrchestrationContext) mediation.ConflictAnalysis {
	var hint mediation.ConflictType
	if octx != nil {
		hint = octx.ConflictType
	}
	defaults := func() mediation.ConflictAnalysis { return mediation.DefaultConflictAnalysis(hint) }
	if a.provider == nil {
		a.logger.Debug("conflict provider unavailable")
		return defaults()
	}

	bundle := BuildBundle(text, profile, docs, octx, a.cfg.HistoryWindow)
	policy := fallback.Policy{Stage: "conflict", Timeout: a.cfg.Timeout, Logger: a.logger}
	return fallback.Call(ctx, policy, func(ctx context.Context) (mediation.ConflictAnalysis, error) {
		return a.classify(ctx, bundle)
	}, defaults)
}

func (a *Analyzer) classify(ctx context.Context, bundle Bundle) (mediation.ConflictAnalysis, error) {
	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return mediation.ConflictAnalysis{}, fmt.Errorf("conflict bundle: %w", err)
	}
	reply, err := a.provider.GenerateStructured(ctx, contracts.StructuredRequest{
		SystemInstruction: systemInstruction,
		Prompt:            "Analyze this mediation turn:\n" + string(payload),
		Schema:            schema.Response(),
	})
	if err != nil {
		return mediation.ConflictAnalysis{}, fmt.Errorf("conflict generate: %w", err)
	}
	var out mediation.ConflictAnalysis
	if err := schema.Decode(a.provider.ProviderID(), reply, &out); err != nil {
		return mediation.ConflictAnalysis{}, err
	}
	return normalize(out), nil
}

func normalize(c mediation.ConflictAnalysis) mediation.ConflictAnalysis {
	c.Triggers = nonNil(c.Triggers)
	c.UnderlyingNeeds = nonNil(c.UnderlyingNeeds)
	c.CommunicationPatterns.Positive = nonNil(c.CommunicationPatterns.Positive)
	c.CommunicationPatterns.Negative = nonNil(c.CommunicationPatterns.Negative)
	c.CommunicationPatterns.Suggestions = nonNil(c.CommunicationPatterns.Suggestions)
	c.ResolutionOpportunities = nonNil(c.ResolutionOpportunities)
	c.RecommendedInterventions = nonNil(c.RecommendedInterventions)
	c.NextSteps = nonNil(c.NextSteps)
	return c
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
