// Package recommend turns the fused analysis into a short ranked list of
// suggestions.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tiger/mediation-pipeline/api/mediation"
	"github.com/tiger/mediation-pipeline/internal/runtime/fallback"
	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"go.uber.org/zap"
)

// DefaultMaxRecommendations caps the returned list.
const DefaultMaxRecommendations = 5

const systemInstruction = `You are a mediation coach. Reply with a numbered list of concrete,
actionable suggestions for the participant, one per line, most important first.
Do not add an introduction or closing remarks.`

var listMarker = regexp.MustCompile(`^\s*(?:\d+\s*[.)\-:]|[-*•])\s*`)

// Config bounds one generation call.
type Config struct {
	Timeout            time.Duration
	MaxRecommendations int
	MaxTokens          int
}

// Engine is safe for concurrent use.
type Engine struct {
	provider contracts.TextProvider
	cfg      Config
	logger   *zap.Logger
}

// New builds an engine. A nil provider makes every call return the default.
func New(provider contracts.TextProvider, cfg Config, logger *zap.Logger) *Engine {
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = DefaultMaxRecommendations
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{provider: provider, cfg: cfg, logger: logger}
}

// Generate never fails; provider errors and empty replies yield
// mediation.DefaultRecommendations.
func (e *Engine) Generate(ctx context.Context, profile mediation.ExpressionProfile, analysis mediation.ConflictAnalysis, docs []mediation.DocumentAnalysis, octx *mediation.OrchestrationContext) []string {
	if e.provider == nil {
		e.logger.Debug("text provider unavailable")
		return mediation.DefaultRecommendations()
	}
	prompt := BuildPrompt(profile, analysis, docs, octx, e.cfg.MaxRecommendations)
	policy := fallback.Policy{Stage: "recommendations", Timeout: e.cfg.Timeout, Logger: e.logger}
	return fallback.Call(ctx, policy, func(ctx context.Context) ([]string, error) {
		reply, err := e.provider.GenerateText(ctx, contracts.TextRequest{
			SystemInstruction: systemInstruction,
			Prompt:            prompt,
			MaxTokens:         e.cfg.MaxTokens,
			Temperature:       0.4,
		})
		if err != nil {
			return nil, fmt.Errorf("recommendations generate: %w", err)
		}
		items := ParseList(reply, e.cfg.MaxRecommendations)
		if len(items) == 0 {
			return nil, contracts.Malformed(e.provider.ProviderID(), errors.New("reply contained no list items"))
		}
		return items, nil
	}, mediation.DefaultRecommendations)
}

// BuildPrompt summarizes the analysis for the text provider.
func BuildPrompt(profile mediation.ExpressionProfile, analysis mediation.ConflictAnalysis, docs []mediation.DocumentAnalysis, octx *mediation.OrchestrationContext, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Give at most %d recommendations.\n", limit)
	fmt.Fprintf(&b, "Dominant emotion: %s (%s)\n", profile.DominantEmotion, profile.EmotionalState)
	fmt.Fprintf(&b, "Conflict level: %d/100, resolution potential: %d/100\n", profile.ConflictLevel, profile.ResolutionPotential)
	fmt.Fprintf(&b, "Conflict type: %s, severity: %s\n", analysis.ConflictType, analysis.Severity)
	if octx != nil && octx.SessionPhase != "" {
		fmt.Fprintf(&b, "Session phase: %s\n", octx.SessionPhase)
	}
	writeList(&b, "Triggers", analysis.Triggers)
	writeList(&b, "Underlying needs", analysis.UnderlyingNeeds)
	writeList(&b, "Resolution opportunities", analysis.ResolutionOpportunities)
	writeList(&b, "Recommended interventions", analysis.RecommendedInterventions)
	for _, doc := range docs {
		if doc.Summary == "" {
			continue
		}
		fmt.Fprintf(&b, "Document (%s, relevance %d): %s\n", doc.DocumentType, doc.ConflictRelevance, doc.Summary)
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, "; "))
}

// ParseList strips list numbering and blank lines and keeps at most limit items.
func ParseList(reply string, limit int) []string {
	out := make([]string, 0, limit)
	for _, line := range strings.Split(reply, "\n") {
		item := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}
