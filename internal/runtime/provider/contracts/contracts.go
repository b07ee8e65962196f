package contracts

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Modality defines provider families consumed by the analysis pipeline.
type Modality string

const (
	ModalityExpression Modality = "expression"
	ModalityReasoning  Modality = "reasoning"
	ModalityText       Modality = "text"
	ModalitySpeech     Modality = "speech"
)

// Validate enforces supported provider modality values.
func (m Modality) Validate() error {
	switch m {
	case ModalityExpression, ModalityReasoning, ModalityText, ModalitySpeech:
		return nil
	default:
		return fmt.Errorf("unsupported modality: %q", m)
	}
}

// OutcomeClass is the normalized provider-outcome taxonomy.
type OutcomeClass string

const (
	OutcomeSuccess               OutcomeClass = "success"
	OutcomeUnavailable           OutcomeClass = "unavailable"
	OutcomeTimeout               OutcomeClass = "timeout"
	OutcomeOverload              OutcomeClass = "overload"
	OutcomeBlocked               OutcomeClass = "blocked"
	OutcomeInfrastructureFailure OutcomeClass = "infrastructure_failure"
	OutcomeMalformed             OutcomeClass = "malformed_response"
	OutcomeCancelled             OutcomeClass = "cancelled"
)

// Validate enforces supported outcome classes.
func (o OutcomeClass) Validate() error {
	switch o {
	case OutcomeSuccess, OutcomeUnavailable, OutcomeTimeout, OutcomeOverload, OutcomeBlocked,
		OutcomeInfrastructureFailure, OutcomeMalformed, OutcomeCancelled:
		return nil
	default:
		return fmt.Errorf("unsupported outcome_class: %q", o)
	}
}

// Outcome is an adapter-normalized invocation result.
type Outcome struct {
	Class      OutcomeClass
	Retryable  bool
	Reason     string
	StatusCode int
	BackoffMS  int64
}

// Validate enforces normalized outcome invariants.
func (o Outcome) Validate() error {
	if err := o.Class.Validate(); err != nil {
		return err
	}
	if o.Class != OutcomeSuccess && o.Reason == "" {
		return fmt.Errorf("reason is required for non-success outcomes")
	}
	if o.BackoffMS < 0 {
		return fmt.Errorf("backoff_ms must be >=0")
	}
	return nil
}

var (
	// ErrProviderUnavailable marks a provider with no credentials or a failed client init.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderTimeout marks a job or request that exceeded its budget.
	ErrProviderTimeout = errors.New("provider timeout")
	// ErrProviderError marks non-2xx responses, transport failures, and failed jobs.
	ErrProviderError = errors.New("provider error")
	// ErrMalformedResponse marks structured output that failed decoding or validation.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// OutcomeError carries a non-success outcome as an error value.
type OutcomeError struct {
	ProviderID string
	Outcome    Outcome
	Err        error
}

// NewOutcomeError builds an OutcomeError for providerID.
func NewOutcomeError(providerID string, outcome Outcome, cause error) *OutcomeError {
	return &OutcomeError{ProviderID: providerID, Outcome: outcome, Err: cause}
}

func (e *OutcomeError) Error() string {
	msg := fmt.Sprintf("%s: %s (%s)", e.ProviderID, e.Outcome.Class, e.Outcome.Reason)
	if e.Outcome.StatusCode != 0 {
		msg = fmt.Sprintf("%s status=%d", msg, e.Outcome.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OutcomeError) Unwrap() error {
	return e.Err
}

// Is maps the outcome class onto the sentinel taxonomy so callers can use errors.Is.
func (e *OutcomeError) Is(target error) bool {
	switch e.Outcome.Class {
	case OutcomeUnavailable:
		return target == ErrProviderUnavailable
	case OutcomeTimeout:
		return target == ErrProviderTimeout
	case OutcomeMalformed:
		return target == ErrMalformedResponse
	case OutcomeCancelled:
		return target == context.Canceled
	default:
		return target == ErrProviderError
	}
}

// Unavailable returns the error used when a provider cannot be reached at all.
func Unavailable(providerID string, reason string) error {
	return NewOutcomeError(providerID, Outcome{Class: OutcomeUnavailable, Reason: reason}, nil)
}

// Malformed wraps a decode or validation failure of provider output.
func Malformed(providerID string, cause error) error {
	return NewOutcomeError(providerID, Outcome{Class: OutcomeMalformed, Reason: "provider_malformed_response"}, cause)
}

// Classify returns the normalized outcome class for any error.
func Classify(err error) OutcomeClass {
	if err == nil {
		return OutcomeSuccess
	}
	var outcomeErr *OutcomeError
	if errors.As(err, &outcomeErr) {
		return outcomeErr.Outcome.Class
	}
	switch {
	case errors.Is(err, ErrProviderUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, ErrMalformedResponse):
		return OutcomeMalformed
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeInfrastructureFailure
}
