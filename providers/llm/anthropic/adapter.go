package anthropic

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"github.com/tiger/mediation-pipeline/providers/common/httpadapter"
)

const ProviderID = "llm-anthropic"

type Config struct {
	APIKey           string
	Endpoint         string
	Model            string
	AnthropicVersion string
	MaxTokens        int
	Timeout          time.Duration
}

type Adapter struct {
	cfg    Config
	client *httpadapter.Client
}

func NewAdapter(cfg Config, httpClient *http.Client) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, contracts.Unavailable(ProviderID, "provider_credentials_missing")
	}
	cfg.Model = defaultString(cfg.Model, "claude-3-5-haiku-latest")
	cfg.AnthropicVersion = defaultString(cfg.AnthropicVersion, "2023-06-01")
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:    ProviderID,
		BaseURL:       defaultString(cfg.Endpoint, "https://api.anthropic.com"),
		APIKey:        cfg.APIKey,
		APIKeyHeader:  "x-api-key",
		Timeout:       cfg.Timeout,
		StaticHeaders: map[string]string{"anthropic-version": cfg.AnthropicVersion},
	}, httpClient)
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

func (a *Adapter) ProviderID() string {
	return ProviderID
}

type message struct {
	Role    string `json:"role"`
	Content []any  `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// GenerateStructured has no native schema constraint on this API: the schema
// is appended to the system prompt and the reply may still carry prose.
func (a *Adapter) GenerateStructured(ctx context.Context, req contracts.StructuredRequest) ([]byte, error) {
	system := strings.TrimSpace(req.SystemInstruction + "\n\nRespond with a single JSON object and nothing else. It must validate against this JSON Schema:\n" + req.Schema.JSON)

	content := make([]any, 0, len(req.Attachments)+1)
	for _, att := range req.Attachments {
		content = append(content, attachmentBlock(att))
	}
	content = append(content, textBlock(req.Prompt))

	text, err := a.send(ctx, messagesRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: content}},
	})
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func (a *Adapter) GenerateText(ctx context.Context, req contracts.TextRequest) (string, error) {
	body := messagesRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		System:    req.SystemInstruction,
		Messages:  []message{{Role: "user", Content: []any{textBlock(req.Prompt)}}},
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		body.Temperature = &temp
	}
	return a.send(ctx, body)
}

func (a *Adapter) send(ctx context.Context, body messagesRequest) (string, error) {
	var resp messagesResponse
	if err := a.client.DoJSON(ctx, http.MethodPost, "/v1/messages", body, &resp); err != nil {
		return "", err
	}
	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", contracts.Malformed(ProviderID, fmt.Errorf("no text content (stop_reason=%s)", resp.StopReason))
	}
	return text, nil
}

func textBlock(text string) map[string]any {
	return map[string]any{"type": "text", "text": text}
}

func attachmentBlock(att contracts.Attachment) map[string]any {
	mime := defaultString(att.MimeType, "application/octet-stream")
	switch {
	case strings.HasPrefix(mime, "text/"):
		return textBlock(fmt.Sprintf("Document %s:\n%s", att.Name, att.Data))
	case strings.HasPrefix(mime, "image/"):
		return map[string]any{
			"type":   "image",
			"source": map[string]any{"type": "base64", "media_type": mime, "data": base64.StdEncoding.EncodeToString(att.Data)},
		}
	default:
		return map[string]any{
			"type":   "document",
			"source": map[string]any{"type": "base64", "media_type": mime, "data": base64.StdEncoding.EncodeToString(att.Data)},
			"title":  att.Name,
		}
	}
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
