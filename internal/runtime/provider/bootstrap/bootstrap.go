// Package bootstrap builds the process-wide provider set and the engine that
// uses it. A provider without usable credentials is left nil so its stage
// degrades to the local default.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tiger/mediation-pipeline/internal/analysis/conflict"
	"github.com/tiger/mediation-pipeline/internal/analysis/document"
	"github.com/tiger/mediation-pipeline/internal/analysis/expression"
	"github.com/tiger/mediation-pipeline/internal/analysis/recommend"
	"github.com/tiger/mediation-pipeline/internal/analysis/voice"
	"github.com/tiger/mediation-pipeline/internal/config"
	"github.com/tiger/mediation-pipeline/internal/orchestration"
	providerconfig "github.com/tiger/mediation-pipeline/internal/runtime/provider/config"
	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"github.com/tiger/mediation-pipeline/providers/expression/hume"
	"github.com/tiger/mediation-pipeline/providers/llm/anthropic"
	"github.com/tiger/mediation-pipeline/providers/llm/gemini"
	"github.com/tiger/mediation-pipeline/providers/tts/elevenlabs"
	"github.com/tiger/mediation-pipeline/providers/tts/polly"
	"go.uber.org/zap"
)

// Providers holds the initialized providers. Nil fields are unavailable.
type Providers struct {
	Expression contracts.ExpressionProvider
	Structured contracts.StructuredProvider
	Text       contracts.TextProvider
	Speech     contracts.SpeechProvider
}

// reasoner is satisfied by both reasoning adapters.
type reasoner interface {
	contracts.StructuredProvider
	contracts.TextProvider
}

// Build resolves credentials and constructs adapters. It only fails for
// provider names Validate would reject.
func Build(ctx context.Context, cfg config.Config, httpClient *http.Client, logger *zap.Logger) (Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	var out Providers

	switch cfg.Expression.Provider {
	case config.ProviderHume:
		adapter, err := hume.NewAdapter(hume.Config{
			APIKey:   cfg.ExpressionCredential().Value(),
			Endpoint: cfg.Expression.Endpoint,
			Timeout:  cfg.Timeouts.Request,
		}, httpClient)
		if available(logger, "expression", hume.ProviderID, cfg.ExpressionCredential(), err) {
			out.Expression = adapter
		}
	case config.ProviderNone:
	default:
		return Providers{}, fmt.Errorf("bootstrap: unsupported expression provider %q", cfg.Expression.Provider)
	}

	var r reasoner
	switch cfg.Reasoning.Provider {
	case config.ProviderGemini:
		adapter, err := gemini.NewAdapter(ctx, gemini.Config{
			APIKey:  cfg.ReasoningCredential().Value(),
			Model:   cfg.Reasoning.Model,
			Timeout: cfg.Timeouts.Request,
		}, httpClient)
		if available(logger, "reasoning", gemini.ProviderID, cfg.ReasoningCredential(), err) {
			r = adapter
		}
	case config.ProviderAnthropic:
		adapter, err := anthropic.NewAdapter(anthropic.Config{
			APIKey:   cfg.ReasoningCredential().Value(),
			Endpoint: cfg.Reasoning.Endpoint,
			Model:    cfg.Reasoning.Model,
			Timeout:  cfg.Timeouts.Request,
		}, httpClient)
		if available(logger, "reasoning", anthropic.ProviderID, cfg.ReasoningCredential(), err) {
			r = adapter
		}
	case config.ProviderNone:
	default:
		return Providers{}, fmt.Errorf("bootstrap: unsupported reasoning provider %q", cfg.Reasoning.Provider)
	}
	if r != nil {
		out.Structured = r
		out.Text = r
	}

	switch cfg.Speech.Provider {
	case config.ProviderElevenLabs:
		adapter, err := elevenlabs.NewAdapter(elevenlabs.Config{
			APIKey:   cfg.SpeechCredential().Value(),
			Endpoint: cfg.Speech.Endpoint,
			VoiceID:  cfg.Speech.VoiceID,
			ModelID:  cfg.Speech.ModelID,
			Settings: VoiceSettings(cfg),
			Timeout:  cfg.Timeouts.Voice,
		}, httpClient)
		if available(logger, "speech", elevenlabs.ProviderID, cfg.SpeechCredential(), err) {
			out.Speech = adapter
		}
	case config.ProviderPolly:
		// AWS credentials come from the default chain on first use.
		out.Speech = polly.NewAdapter(polly.Config{
			Region:  cfg.Speech.Region,
			VoiceID: cfg.Speech.VoiceID,
			Timeout: cfg.Timeouts.Voice,
		})
		logger.Info("provider available", zap.String("stage", "speech"), zap.String("provider", polly.ProviderID))
	case config.ProviderNone:
	default:
		return Providers{}, fmt.Errorf("bootstrap: unsupported speech provider %q", cfg.Speech.Provider)
	}

	logger.Info(Summary(out))
	return out, nil
}

func available(logger *zap.Logger, stage string, providerID string, cred providerconfig.Credential, err error) bool {
	if err == nil {
		logger.Info("provider available",
			zap.String("stage", stage),
			zap.String("provider", providerID),
			zap.String("credential", providerconfig.RedactSecret(cred.Value())),
		)
		return true
	}
	fields := []zap.Field{zap.String("stage", stage), zap.String("provider", providerID), zap.Error(err)}
	if errors.Is(err, contracts.ErrProviderUnavailable) {
		logger.Info("provider unavailable, stage uses local default", fields...)
	} else {
		logger.Warn("provider init failed, stage uses local default", fields...)
	}
	return false
}

// VoiceSettings maps configured speech tuning to the provider contract.
func VoiceSettings(cfg config.Config) contracts.VoiceSettings {
	return contracts.VoiceSettings{
		Stability:       cfg.Speech.Stability,
		SimilarityBoost: cfg.Speech.SimilarityBoost,
		Style:           cfg.Speech.Style,
		SpeakerBoost:    cfg.Speech.SpeakerBoost,
	}
}

// Summary lists which providers are live.
func Summary(p Providers) string {
	name := func(id string, ok bool) string {
		if !ok {
			return "none"
		}
		return id
	}
	parts := []string{
		"expression=" + name(providerID(p.Expression), p.Expression != nil),
		"reasoning=" + name(providerID(p.Structured), p.Structured != nil),
		"speech=" + name(providerID(p.Speech), p.Speech != nil),
	}
	return "providers initialized: " + strings.Join(parts, " ")
}

func providerID(p interface{ ProviderID() string }) string {
	if p == nil {
		return ""
	}
	return p.ProviderID()
}

// NewEngine wires every analysis stage with the configured limits.
func NewEngine(cfg config.Config, p Providers, logger *zap.Logger) *orchestration.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	stages := orchestration.Stages{
		Expression: expression.New(p.Expression, expression.Config{
			PollInterval:   cfg.Timeouts.PollInterval,
			TextMaxPolls:   cfg.Timeouts.TextMaxPolls,
			AudioMaxPolls:  cfg.Timeouts.AudioMaxPolls,
			RequestTimeout: cfg.Timeouts.Request,
		}, logger.Named("expression")),
		Documents: document.New(p.Structured, cfg.Timeouts.Request, logger.Named("document")),
		Conflict: conflict.New(p.Structured, conflict.Config{
			Timeout:       cfg.Timeouts.Request,
			HistoryWindow: cfg.Analysis.HistoryWindow,
		}, logger.Named("conflict")),
		Recommendations: recommend.New(p.Text, recommend.Config{
			Timeout:            cfg.Timeouts.Request,
			MaxRecommendations: cfg.Analysis.MaxRecommendations,
		}, logger.Named("recommend")),
	}
	if p.Speech != nil {
		stages.Voice = voice.New(p.Speech, voice.Config{
			VoiceID:  cfg.Speech.VoiceID,
			Settings: VoiceSettings(cfg),
			Timeout:  cfg.Timeouts.Voice,
			Stream:   cfg.Speech.Stream,
		}, logger.Named("voice"))
	}
	return orchestration.New(stages, orchestration.Options{
		ParallelDocuments: cfg.Analysis.ParallelDocuments,
		SentenceTrigger:   cfg.Analysis.StreamSentenceTrigger,
		StreamBufferLimit: cfg.Analysis.StreamBufferLimit,
	}, logger.Named("engine"))
}
