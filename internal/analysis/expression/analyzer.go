// Package expression converts text or audio into a normalized emotion
// profile, using the remote expression provider when available and a local
// keyword heuristic otherwise.
package expression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tiger/mediation-pipeline/api/mediation"
	"github.com/tiger/mediation-pipeline/internal/runtime/fallback"
	"github.com/tiger/mediation-pipeline/internal/runtime/poll"
	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"go.uber.org/zap"
)

// Config bounds the async job state machine.
type Config struct {
	PollInterval  time.Duration
	TextMaxPolls  int
	AudioMaxPolls int
	// RequestTimeout bounds each submit, poll and result call; zero leaves them to the provider.
	RequestTimeout time.Duration
	Sleep          poll.SleepFunc
	Now            func() time.Time
}

// DefaultConfig polls once a second, 30 times for text and 60 for audio.
func DefaultConfig() Config {
	return Config{
		PollInterval:   time.Second,
		TextMaxPolls:   30,
		AudioMaxPolls:  60,
		RequestTimeout: 15 * time.Second,
	}
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	provider contracts.ExpressionProvider
	cfg      Config
	logger   *zap.Logger
}

// New builds an analyzer. A nil provider means the provider is unavailable and
// every call uses the heuristic.
func New(provider contracts.ExpressionProvider, cfg Config, logger *zap.Logger) *Analyzer {
	defaults := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.TextMaxPolls <= 0 {
		cfg.TextMaxPolls = defaults.TextMaxPolls
	}
	if cfg.AudioMaxPolls <= 0 {
		cfg.AudioMaxPolls = defaults.AudioMaxPolls
	}
	if cfg.Sleep == nil {
		cfg.Sleep = poll.Sleep
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{provider: provider, cfg: cfg, logger: logger}
}

// AnalyzeText never fails: provider errors, job failures and poll-budget
// exhaustion all yield the heuristic profile for text.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string, octx *mediation.OrchestrationContext) mediation.ExpressionProfile {
	req := contracts.ExpressionJobRequest{Text: text, Models: []contracts.ExpressionModel{contracts.ModelLanguage}}
	return a.analyze(ctx, req, mediation.SourceText, a.cfg.TextMaxPolls, text, octx)
}

// AnalyzeAudio is AnalyzeText for recorded speech. The heuristic has no
// transcript to work from, so the audio fallback is the neutral profile.
func (a *Analyzer) AnalyzeAudio(ctx context.Context, audio []byte, mimeType string, octx *mediation.OrchestrationContext) mediation.ExpressionProfile {
	req := contracts.ExpressionJobRequest{
		Audio:         audio,
		AudioMimeType: mimeType,
		Models:        []contracts.ExpressionModel{contracts.ModelProsody, contracts.ModelBurst},
	}
	return a.analyze(ctx, req, mediation.SourceAudio, a.cfg.AudioMaxPolls, "", octx)
}

func (a *Analyzer) analyze(ctx context.Context, req contracts.ExpressionJobRequest, source mediation.Source, maxPolls int, text string, octx *mediation.OrchestrationContext) mediation.ExpressionProfile {
	fallbackProfile := func() mediation.ExpressionProfile {
		return Fallback(text, source, octx, a.cfg.Now())
	}
	if a.provider == nil {
		a.logger.Debug("expression provider unavailable, using heuristic", zap.String("source", string(source)))
		return fallbackProfile()
	}

	policy := fallback.Policy{Stage: "expression_" + string(source), Timeout: a.budget(maxPolls), Logger: a.logger}
	return fallback.Call(ctx, policy, func(ctx context.Context) (mediation.ExpressionProfile, error) {
		groups, err := a.runJob(ctx, req, maxPolls)
		if err != nil {
			return mediation.ExpressionProfile{}, err
		}
		emotions := Flatten(groups)
		if len(emotions) == 0 {
			return mediation.ExpressionProfile{}, contracts.Malformed(a.provider.ProviderID(), errors.New("predictions carried no emotions"))
		}
		return Derive(emotions, source, ProviderConfidence, octx, a.cfg.Now()), nil
	}, fallbackProfile)
}

// budget is the wall-clock cap for one job, submit and result included.
// Per-request timeouts are clipped to whatever of it remains.
func (a *Analyzer) budget(maxPolls int) time.Duration {
	return time.Duration(maxPolls) * a.cfg.PollInterval
}

func (a *Analyzer) runJob(ctx context.Context, req contracts.ExpressionJobRequest, maxPolls int) ([]contracts.PredictionGroup, error) {
	providerID := a.provider.ProviderID()

	jobID, err := withTimeout(ctx, a.cfg.RequestTimeout, func(ctx context.Context) (string, error) {
		return a.provider.Submit(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("expression submit: %w", err)
	}

	loop := poll.Loop{Interval: a.cfg.PollInterval, MaxAttempts: maxPolls, Sleep: a.cfg.Sleep}
	attempts, err := loop.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		status, err := withTimeout(ctx, a.cfg.RequestTimeout, func(ctx context.Context) (contracts.JobStatus, error) {
			return a.provider.Poll(ctx, jobID)
		})
		if err != nil {
			var outcomeErr *contracts.OutcomeError
			if errors.As(err, &outcomeErr) && outcomeErr.Outcome.Retryable {
				a.logger.Debug("expression poll retry", zap.String("job_id", jobID), zap.Int("attempt", attempt), zap.Error(err))
				return false, nil
			}
			return false, err
		}
		switch status {
		case contracts.JobCompleted:
			return true, nil
		case contracts.JobFailed:
			return false, contracts.NewOutcomeError(providerID, contracts.Outcome{Class: contracts.OutcomeInfrastructureFailure, Reason: "provider_job_failed"}, fmt.Errorf("job %s failed", jobID))
		default:
			return false, nil
		}
	})
	if errors.Is(err, poll.ErrBudgetExhausted) {
		return nil, contracts.NewOutcomeError(providerID, contracts.Outcome{Class: contracts.OutcomeTimeout, Retryable: true, Reason: "provider_job_timeout"}, fmt.Errorf("job %s incomplete after %d polls", jobID, attempts))
	}
	if err != nil {
		return nil, fmt.Errorf("expression poll: %w", err)
	}

	groups, err := withTimeout(ctx, a.cfg.RequestTimeout, func(ctx context.Context) ([]contracts.PredictionGroup, error) {
		return a.provider.Result(ctx, jobID)
	})
	if err != nil {
		return nil, fmt.Errorf("expression result: %w", err)
	}
	a.logger.Debug("expression job completed", zap.String("job_id", jobID), zap.Int("polls", attempts))
	return groups, nil
}

func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
