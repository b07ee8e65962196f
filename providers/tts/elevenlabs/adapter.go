package elevenlabs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"github.com/tiger/mediation-pipeline/providers/common/httpadapter"
)

const ProviderID = "tts-elevenlabs"

const defaultVoiceID = "EXAVITQu4vr4xnSDxMaL"

type Config struct {
	APIKey   string
	Endpoint string
	VoiceID  string
	ModelID  string
	Settings contracts.VoiceSettings
	Timeout  time.Duration
}

type Adapter struct {
	cfg    Config
	client *httpadapter.Client
}

// DefaultSettings are calm, steady settings suited to mediation prompts.
func DefaultSettings() contracts.VoiceSettings {
	return contracts.VoiceSettings{Stability: 0.6, SimilarityBoost: 0.75, Style: 0.2, SpeakerBoost: true}
}

func NewAdapter(cfg Config, httpClient *http.Client) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, contracts.Unavailable(ProviderID, "provider_credentials_missing")
	}
	cfg.VoiceID = defaultString(cfg.VoiceID, defaultVoiceID)
	cfg.ModelID = defaultString(cfg.ModelID, "eleven_multilingual_v2")
	if cfg.Settings == (contracts.VoiceSettings{}) {
		cfg.Settings = DefaultSettings()
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:   ProviderID,
		BaseURL:      defaultString(cfg.Endpoint, "https://api.elevenlabs.io"),
		APIKey:       cfg.APIKey,
		APIKeyHeader: "xi-api-key",
		Timeout:      cfg.Timeout,
	}, httpClient)
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

func (a *Adapter) ProviderID() string {
	return ProviderID
}

// Synthesize returns the full MP3 rendering of req.Text.
func (a *Adapter) Synthesize(ctx context.Context, req contracts.SpeechRequest) (contracts.SpeechAudio, error) {
	httpReq, err := a.request(req, "")
	if err != nil {
		return contracts.SpeechAudio{}, err
	}
	audio, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return contracts.SpeechAudio{}, err
	}
	if len(audio) == 0 {
		return contracts.SpeechAudio{}, contracts.Malformed(ProviderID, fmt.Errorf("empty audio body"))
	}
	return contracts.SpeechAudio{Audio: audio, MimeType: "audio/mpeg"}, nil
}

// SynthesizeStream uses the /stream endpoint and forwards audio as it arrives.
func (a *Adapter) SynthesizeStream(ctx context.Context, req contracts.SpeechRequest, onChunk func([]byte) error) (string, error) {
	httpReq, err := a.request(req, "/stream")
	if err != nil {
		return "", err
	}
	mime, err := a.client.Stream(ctx, httpReq, onChunk)
	if err != nil {
		return "", err
	}
	return defaultString(mime, "audio/mpeg"), nil
}

func (a *Adapter) request(req contracts.SpeechRequest, suffix string) (httpadapter.Request, error) {
	if strings.TrimSpace(req.Text) == "" {
		return httpadapter.Request{}, fmt.Errorf("elevenlabs synthesize: text is required")
	}
	settings := req.Settings
	if settings == (contracts.VoiceSettings{}) {
		settings = a.cfg.Settings
	}
	voiceID := defaultString(req.VoiceID, a.cfg.VoiceID)
	httpReq, err := httpadapter.JSONRequest(http.MethodPost, "/v1/text-to-speech/"+url.PathEscape(voiceID)+suffix, map[string]any{
		"model_id": a.cfg.ModelID,
		"text":     req.Text,
		"voice_settings": map[string]any{
			"stability":         settings.Stability,
			"similarity_boost":  settings.SimilarityBoost,
			"style":             settings.Style,
			"use_speaker_boost": settings.SpeakerBoost,
		},
	})
	if err != nil {
		return httpadapter.Request{}, err
	}
	httpReq.Accept = "audio/mpeg"
	return httpReq, nil
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
