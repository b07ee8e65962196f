// Package orchestration sequences the analysis stages for one mediation turn
// and for incremental text streams.
package orchestration

import (
	"context"
	"sync"

	"github.com/tiger/mediation-pipeline/api/mediation"
	"github.com/tiger/mediation-pipeline/internal/analysis/nextaction"
	"go.uber.org/zap"
)

// NoInputPlaceholder is analyzed when a turn carries neither audio nor text.
const NoInputPlaceholder = "no input provided"

// ExpressionAnalyzer measures emotion in a turn.
type ExpressionAnalyzer interface {
	AnalyzeText(ctx context.Context, text string, octx *mediation.OrchestrationContext) mediation.ExpressionProfile
	AnalyzeAudio(ctx context.Context, audio []byte, mimeType string, octx *mediation.OrchestrationContext) mediation.ExpressionProfile
}

// DocumentAnalyzer extracts facts from one document.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, doc mediation.Document) mediation.DocumentAnalysis
}

// ConflictAnalyzer classifies the conflict.
type ConflictAnalyzer interface {
	Analyze(ctx context.Context, text string, profile mediation.ExpressionProfile, docs []mediation.DocumentAnalysis, octx *mediation.OrchestrationContext) mediation.ConflictAnalysis
}

// RecommendationEngine produces suggestions.
type RecommendationEngine interface {
	Generate(ctx context.Context, profile mediation.ExpressionProfile, analysis mediation.ConflictAnalysis, docs []mediation.DocumentAnalysis, octx *mediation.OrchestrationContext) []string
}

// VoiceSynthesizer renders speech; nil means no audio.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, text string) *mediation.VoiceResponse
}

// Stages are the collaborators of one Engine. Every stage is total: it
// returns its documented default instead of an error. Voice may be nil.
type Stages struct {
	Expression      ExpressionAnalyzer
	Documents       DocumentAnalyzer
	Conflict        ConflictAnalyzer
	Recommendations RecommendationEngine
	Voice           VoiceSynthesizer
}

// Options tune sequencing.
type Options struct {
	// ParallelDocuments analyzes documents concurrently; output order still
	// follows input order.
	ParallelDocuments bool
	// SentenceTrigger is the number of completed sentences that triggers a
	// streaming analysis.
	SentenceTrigger int
	// StreamBufferLimit forces an analysis once the buffered text reaches this
	// many bytes, even without enough completed sentences.
	StreamBufferLimit int
}

const (
	// DefaultSentenceTrigger is used when Options.SentenceTrigger is not positive.
	DefaultSentenceTrigger = 2
	// DefaultStreamBufferLimit is used when Options.StreamBufferLimit is not positive.
	DefaultStreamBufferLimit = 4096
)

// Engine holds no per-call state and is safe for concurrent use.
type Engine struct {
	stages Stages
	opts   Options
	logger *zap.Logger
}

// New wires an engine.
func New(stages Stages, opts Options, logger *zap.Logger) *Engine {
	if opts.SentenceTrigger <= 0 {
		opts.SentenceTrigger = DefaultSentenceTrigger
	}
	if opts.StreamBufferLimit <= 0 {
		opts.StreamBufferLimit = DefaultStreamBufferLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{stages: stages, opts: opts, logger: logger}
}

// Orchestrate runs expression, documents, conflict, recommendations, next
// actions and voice in that order. It always returns a complete result.
func (e *Engine) Orchestrate(ctx context.Context, input mediation.OrchestrationInput, octx *mediation.OrchestrationContext) mediation.OrchestrationResult {
	logger := e.logger
	if octx != nil && octx.ConversationID != "" {
		logger = logger.With(zap.String("conversation_id", octx.ConversationID))
	}

	text := input.Text
	var profile mediation.ExpressionProfile
	switch {
	case len(input.Audio) > 0:
		profile = e.stages.Expression.AnalyzeAudio(ctx, input.Audio, input.AudioMimeType, octx)
	case text != "":
		profile = e.stages.Expression.AnalyzeText(ctx, text, octx)
	default:
		text = NoInputPlaceholder
		profile = e.stages.Expression.AnalyzeText(ctx, text, octx)
	}

	docs := e.analyzeDocuments(ctx, input.Documents)
	analysis := e.stages.Conflict.Analyze(ctx, text, profile, docs, octx)
	recommendations := e.stages.Recommendations.Generate(ctx, profile, analysis, docs, octx)
	actions := nextaction.Determine(profile, analysis, octx)

	result := mediation.OrchestrationResult{
		EmotionAnalysis:  profile,
		ConflictAnalysis: analysis,
		DocumentAnalyses: docs,
		Recommendations:  recommendations,
		NextActions:      actions,
	}
	if len(recommendations) > 0 && e.stages.Voice != nil {
		result.VoiceResponse = e.stages.Voice.Synthesize(ctx, recommendations[0])
	}

	logger.Info("orchestration completed",
		zap.String("source", string(profile.Source)),
		zap.String("dominant_emotion", profile.DominantEmotion),
		zap.Int("conflict_level", profile.ConflictLevel),
		zap.String("severity", string(analysis.Severity)),
		zap.Int("documents", len(docs)),
		zap.Strings("next_actions", actions),
		zap.Bool("voice", result.VoiceResponse != nil),
	)
	return result
}

func (e *Engine) analyzeDocuments(ctx context.Context, docs []mediation.Document) []mediation.DocumentAnalysis {
	out := make([]mediation.DocumentAnalysis, len(docs))
	if !e.opts.ParallelDocuments || len(docs) < 2 {
		for i, doc := range docs {
			out[i] = e.stages.Documents.Analyze(ctx, doc)
		}
		return out
	}

	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = e.stages.Documents.Analyze(ctx, doc)
		}()
	}
	wg.Wait()
	return out
}
