// Package fallback provides the total-call wrapper every pipeline stage uses:
// errors, timeouts, and panics all resolve to the stage's documented default.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"go.uber.org/zap"
)

// Policy describes one stage boundary.
type Policy struct {
	Stage string
	// Timeout bounds fn. Zero means fn is bounded only by ctx.
	Timeout time.Duration
	Logger  *zap.Logger
}

type result[T any] struct {
	value T
	err   error
}

// Call runs fn under the policy and returns its value, or fallback() when fn
// fails, panics, or runs past the timeout. Call never blocks past the timeout
// even if fn ignores its context.
func Call[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error), fallback func() T) T {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	callCtx := ctx
	cancel := func() {}
	if p.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
	}
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("%s panicked: %v", p.Stage, r)}
			}
		}()
		value, err := fn(callCtx)
		done <- result[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			logger.Debug("stage completed", zap.String("stage", p.Stage))
			return res.value
		}
		degrade(logger, p.Stage, res.err)
	case <-callCtx.Done():
		degrade(logger, p.Stage, callCtx.Err())
	}
	return fallback()
}

// Value returns a fallback func that always yields v.
func Value[T any](v T) func() T {
	return func() T { return v }
}

func degrade(logger *zap.Logger, stage string, err error) {
	class := contracts.Classify(err)
	reason := string(class)
	var outcomeErr *contracts.OutcomeError
	if errors.As(err, &outcomeErr) && outcomeErr.Outcome.Reason != "" {
		reason = outcomeErr.Outcome.Reason
	}
	logger.Warn("stage degraded to default",
		zap.String("stage", stage),
		zap.String("outcome", string(class)),
		zap.String("reason", reason),
		zap.Error(err),
	)
}
