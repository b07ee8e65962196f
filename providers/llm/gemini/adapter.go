package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"github.com/tiger/mediation-pipeline/providers/common/httpadapter"
	"google.golang.org/genai"
)

const ProviderID = "llm-gemini"

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// generator is the slice of the genai Models service the adapter calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Adapter struct {
	cfg    Config
	models generator
}

// NewAdapter builds a Gemini API client. Missing credentials or a failed
// client init yield ErrProviderUnavailable.
func NewAdapter(ctx context.Context, cfg Config, httpClient *http.Client) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, contracts.Unavailable(ProviderID, "provider_credentials_missing")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, contracts.NewOutcomeError(ProviderID, contracts.Outcome{Class: contracts.OutcomeUnavailable, Reason: "provider_client_init_failed"}, err)
	}
	return NewAdapterWithClient(cfg, client.Models), nil
}

func NewAdapterWithClient(cfg Config, models generator) *Adapter {
	cfg.Model = defaultString(cfg.Model, "gemini-2.5-flash")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Adapter{cfg: cfg, models: models}
}

func (a *Adapter) ProviderID() string {
	return ProviderID
}

// GenerateStructured requests JSON constrained by req.Schema. Attachments are
// sent as inline parts ahead of the prompt.
func (a *Adapter) GenerateStructured(ctx context.Context, req contracts.StructuredRequest) ([]byte, error) {
	schema, err := ToGenaiSchema(req.Schema.JSON)
	if err != nil {
		return nil, err
	}
	parts := make([]*genai.Part, 0, len(req.Attachments)+1)
	for _, att := range req.Attachments {
		parts = append(parts, genai.NewPartFromBytes(att.Data, defaultString(att.MimeType, "application/octet-stream")))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	text, err := a.generate(ctx, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// GenerateText returns the model's free-text reply.
func (a *Adapter) GenerateText(ctx context.Context, req contracts.TextRequest) (string, error) {
	config := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}
	return a.generate(ctx, genai.Text(req.Prompt), config)
}

func (a *Adapter) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resp, err := a.models.GenerateContent(callCtx, a.cfg.Model, contents, config)
	if err != nil {
		return "", contracts.NewOutcomeError(ProviderID, normalizeGenaiError(err), err)
	}
	if resp == nil {
		return "", contracts.Malformed(ProviderID, errors.New("empty response"))
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", contracts.Malformed(ProviderID, fmt.Errorf("no text candidates"))
	}
	return text, nil
}

func normalizeGenaiError(err error) contracts.Outcome {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return httpadapter.NormalizeStatus(apiErr.Code, "")
	}
	return httpadapter.NormalizeNetworkError(err)
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
