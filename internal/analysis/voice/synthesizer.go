// Package voice renders the top recommendation as speech. Synthesis is best
// effort: failures are logged and produce no audio.
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tiger/mediation-pipeline/api/mediation"
	"github.com/tiger/mediation-pipeline/internal/runtime/fallback"
	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"go.uber.org/zap"
)

// Config selects the voice and how audio is fetched.
type Config struct {
	VoiceID  string
	Settings contracts.VoiceSettings
	Timeout  time.Duration
	// Stream uses chunked synthesis when the provider supports it.
	Stream bool
}

// Synthesizer is safe for concurrent use.
type Synthesizer struct {
	provider contracts.SpeechProvider
	cfg      Config
	logger   *zap.Logger
}

// New builds a synthesizer. A nil provider disables voice output.
func New(provider contracts.SpeechProvider, cfg Config, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{provider: provider, cfg: cfg, logger: logger}
}

// Synthesize returns nil when no provider is configured, text is blank, or
// synthesis fails.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) *mediation.VoiceResponse {
	if s.provider == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	req := contracts.SpeechRequest{Text: text, VoiceID: s.cfg.VoiceID, Settings: s.cfg.Settings}
	policy := fallback.Policy{Stage: "voice", Timeout: s.cfg.Timeout, Logger: s.logger}
	return fallback.Call(ctx, policy, func(ctx context.Context) (*mediation.VoiceResponse, error) {
		if streamer, ok := s.provider.(contracts.StreamingSpeechProvider); ok && s.cfg.Stream {
			return s.stream(ctx, streamer, req)
		}
		audio, err := s.provider.Synthesize(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("voice synthesize: %w", err)
		}
		if len(audio.Audio) == 0 {
			return nil, contracts.Malformed(s.provider.ProviderID(), errors.New("empty audio"))
		}
		return &mediation.VoiceResponse{Audio: audio.Audio, MimeType: audio.MimeType}, nil
	}, fallback.Value[*mediation.VoiceResponse](nil))
}

func (s *Synthesizer) stream(ctx context.Context, streamer contracts.StreamingSpeechProvider, req contracts.SpeechRequest) (*mediation.VoiceResponse, error) {
	var buf bytes.Buffer
	chunks := 0
	mimeType, err := streamer.SynthesizeStream(ctx, req, func(chunk []byte) error {
		chunks++
		_, err := buf.Write(chunk)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("voice stream: %w", err)
	}
	if buf.Len() == 0 {
		return nil, contracts.Malformed(streamer.ProviderID(), errors.New("stream carried no audio"))
	}
	s.logger.Debug("voice stream completed", zap.Int("chunks", chunks), zap.Int("bytes", buf.Len()))
	return &mediation.VoiceResponse{Audio: buf.Bytes(), MimeType: mimeType}, nil
}
