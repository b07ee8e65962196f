package contracts

import (
	"context"
	"fmt"
)

// JobStatus is the lifecycle state of an asynchronous expression job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Validate enforces supported job status values.
func (s JobStatus) Validate() error {
	switch s {
	case JobPending, JobRunning, JobCompleted, JobFailed:
		return nil
	default:
		return fmt.Errorf("unsupported job status: %q", s)
	}
}

// Terminal reports whether no further polling is useful.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ExpressionModel selects a measurement model on the expression provider.
type ExpressionModel string

const (
	ModelLanguage ExpressionModel = "language"
	ModelProsody  ExpressionModel = "prosody"
	ModelBurst    ExpressionModel = "burst"
)

// ExpressionJobRequest submits either text or audio for measurement.
type ExpressionJobRequest struct {
	Text          string
	Audio         []byte
	AudioMimeType string
	Models        []ExpressionModel
}

// Validate requires exactly one payload and at least one model.
func (r ExpressionJobRequest) Validate() error {
	if (r.Text == "") == (len(r.Audio) == 0) {
		return fmt.Errorf("exactly one of text or audio is required")
	}
	if len(r.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	return nil
}

// EmotionPrediction is one provider-native emotion score.
type EmotionPrediction struct {
	Name  string
	Score float64
}

// PredictionFrame is the emotion vector for one text span or audio segment.
type PredictionFrame struct {
	Text     string
	Emotions []EmotionPrediction
}

// PredictionGroup groups frames by model and source grouping.
type PredictionGroup struct {
	Model       ExpressionModel
	GroupID     string
	Predictions []PredictionFrame
}

// ExpressionProvider is the async job contract of the emotion-expression provider.
type ExpressionProvider interface {
	ProviderID() string
	Submit(ctx context.Context, req ExpressionJobRequest) (string, error)
	Poll(ctx context.Context, jobID string) (JobStatus, error)
	Result(ctx context.Context, jobID string) ([]PredictionGroup, error)
}

// Attachment is a binary input passed alongside a structured request.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// ResponseSchema is a JSON Schema document constraining structured output.
type ResponseSchema struct {
	Name string
	JSON string
}

// StructuredRequest is a schema-constrained reasoning call.
type StructuredRequest struct {
	SystemInstruction string
	Prompt            string
	Schema            ResponseSchema
	Attachments       []Attachment
}

// StructuredProvider returns raw JSON bytes that should match req.Schema.
// Providers without native schema-constrained decoding may return JSON
// embedded in prose; callers must parse leniently.
type StructuredProvider interface {
	ProviderID() string
	GenerateStructured(ctx context.Context, req StructuredRequest) ([]byte, error)
}

// TextRequest is a free-text generation call.
type TextRequest struct {
	SystemInstruction string
	Prompt            string
	MaxTokens         int
	Temperature       float64
}

// TextProvider returns free text.
type TextProvider interface {
	ProviderID() string
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// VoiceSettings tunes synthesized speech.
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64
	Style           float64
	SpeakerBoost    bool
}

// SpeechRequest is a text-to-speech call.
type SpeechRequest struct {
	Text     string
	VoiceID  string
	Settings VoiceSettings
}

// SpeechAudio is synthesized audio.
type SpeechAudio struct {
	Audio    []byte
	MimeType string
}

// SpeechProvider synthesizes audio in one response.
type SpeechProvider interface {
	ProviderID() string
	Synthesize(ctx context.Context, req SpeechRequest) (SpeechAudio, error)
}

// StreamingSpeechProvider additionally emits audio in chunks as it arrives.
type StreamingSpeechProvider interface {
	SpeechProvider
	SynthesizeStream(ctx context.Context, req SpeechRequest, onChunk func([]byte) error) (string, error)
}

// StructuredFunc adapts a function to StructuredProvider for tests and static catalogs.
type StructuredFunc func(ctx context.Context, req StructuredRequest) ([]byte, error)

func (StructuredFunc) ProviderID() string { return "static-structured" }

func (f StructuredFunc) GenerateStructured(ctx context.Context, req StructuredRequest) ([]byte, error) {
	return f(ctx, req)
}

// TextFunc adapts a function to TextProvider.
type TextFunc func(ctx context.Context, req TextRequest) (string, error)

func (TextFunc) ProviderID() string { return "static-text" }

func (f TextFunc) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	return f(ctx, req)
}

// SpeechFunc adapts a function to SpeechProvider.
type SpeechFunc func(ctx context.Context, req SpeechRequest) (SpeechAudio, error)

func (SpeechFunc) ProviderID() string { return "static-speech" }

func (f SpeechFunc) Synthesize(ctx context.Context, req SpeechRequest) (SpeechAudio, error) {
	return f(ctx, req)
}
