package gemini

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"google.golang.org/genai"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	reply    string
	err      error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: f.reply}}},
		}},
	}, nil
}

const documentSchema = `{
  "type": "object",
  "required": ["summary", "conflictRelevance"],
  "properties": {
    "summary": {"type": "string"},
    "conflictRelevance": {"type": "integer", "minimum": 0, "maximum": 100},
    "keyPoints": {"type": "array", "items": {"type": "string"}},
    "sentiment": {"type": "string", "enum": ["positive", "negative", "neutral"]}
  }
}`

func TestNewAdapterWithoutKeyIsUnavailable(t *testing.T) {
	t.Parallel()

	_, err := NewAdapter(context.Background(), Config{}, nil)
	if !errors.Is(err, contracts.ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
}

type recordingTransport struct {
	mu    sync.Mutex
	hosts []string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	rt.hosts = append(rt.hosts, req.URL.Host)
	rt.mu.Unlock()
	body := `{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]}}]}`
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func TestNewAdapterUsesSuppliedHTTPClient(t *testing.T) {
	t.Parallel()

	transport := &recordingTransport{}
	adapter, err := NewAdapter(context.Background(), Config{APIKey: "gemini-key"}, &http.Client{Transport: transport})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	reply, err := adapter.GenerateText(context.Background(), contracts.TextRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply != "ok" {
		t.Fatalf("unexpected reply %q", reply)
	}
	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.hosts) != 1 {
		t.Fatalf("expected the request to go through the supplied client, got %v", transport.hosts)
	}
}

func TestGenerateStructuredSendsSchemaAndAttachments(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{reply: `{"summary":"lease dispute","conflictRelevance":80}`}
	adapter := NewAdapterWithClient(Config{Model: "gemini-test"}, fake)

	out, err := adapter.GenerateStructured(context.Background(), contracts.StructuredRequest{
		SystemInstruction: "Extract only.",
		Prompt:            "Analyze the attached document.",
		Schema:            contracts.ResponseSchema{Name: "document", JSON: documentSchema},
		Attachments:       []contracts.Attachment{{Name: "lease.pdf", MimeType: "application/pdf", Data: []byte("%PDF")}},
	})
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	if string(out) != `{"summary":"lease dispute","conflictRelevance":80}` {
		t.Fatalf("unexpected output %s", out)
	}
	if fake.model != "gemini-test" {
		t.Fatalf("expected configured model, got %q", fake.model)
	}
	if fake.config.ResponseMIMEType != "application/json" || fake.config.ResponseSchema == nil {
		t.Fatalf("expected json response schema config, got %+v", fake.config)
	}
	if fake.config.ResponseSchema.Type != genai.TypeObject {
		t.Fatalf("expected object schema, got %s", fake.config.ResponseSchema.Type)
	}
	if fake.config.SystemInstruction == nil || fake.config.SystemInstruction.Parts[0].Text != "Extract only." {
		t.Fatalf("expected system instruction, got %+v", fake.config.SystemInstruction)
	}
	parts := fake.contents[0].Parts
	if len(parts) != 2 || parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "application/pdf" {
		t.Fatalf("expected inline document part before prompt, got %+v", parts)
	}
	if parts[1].Text != "Analyze the attached document." {
		t.Fatalf("expected prompt part last, got %+v", parts[1])
	}
}

func TestGenerateTextAppliesLimits(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{reply: "1. Breathe\n2. Listen"}
	adapter := NewAdapterWithClient(Config{}, fake)
	out, err := adapter.GenerateText(context.Background(), contracts.TextRequest{Prompt: "advise", MaxTokens: 256, Temperature: 0.4})
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	if out != "1. Breathe\n2. Listen" {
		t.Fatalf("unexpected text %q", out)
	}
	if fake.config.MaxOutputTokens != 256 || fake.config.Temperature == nil {
		t.Fatalf("expected generation limits, got %+v", fake.config)
	}
	if fake.model != "gemini-2.5-flash" {
		t.Fatalf("expected default model, got %q", fake.model)
	}
}

func TestGenerateMapsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fake     *fakeModels
		sentinel error
		class    contracts.OutcomeClass
	}{
		{name: "api overload", fake: &fakeModels{err: genai.APIError{Code: http.StatusTooManyRequests, Message: "quota"}}, sentinel: contracts.ErrProviderError, class: contracts.OutcomeOverload},
		{name: "api auth", fake: &fakeModels{err: genai.APIError{Code: http.StatusForbidden}}, sentinel: contracts.ErrProviderError, class: contracts.OutcomeBlocked},
		{name: "deadline", fake: &fakeModels{err: context.DeadlineExceeded}, sentinel: contracts.ErrProviderTimeout, class: contracts.OutcomeTimeout},
		{name: "empty text", fake: &fakeModels{reply: "  "}, sentinel: contracts.ErrMalformedResponse, class: contracts.OutcomeMalformed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			adapter := NewAdapterWithClient(Config{}, tc.fake)
			_, err := adapter.GenerateText(context.Background(), contracts.TextRequest{Prompt: "x"})
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("expected %v, got %v", tc.sentinel, err)
			}
			if got := contracts.Classify(err); got != tc.class {
				t.Fatalf("expected class %s, got %s", tc.class, got)
			}
		})
	}
}

func TestToGenaiSchema(t *testing.T) {
	t.Parallel()

	schema, err := ToGenaiSchema(documentSchema)
	if err != nil {
		t.Fatalf("unexpected convert error: %v", err)
	}
	relevance := schema.Properties["conflictRelevance"]
	if relevance.Type != genai.TypeInteger || relevance.Maximum == nil || *relevance.Maximum != 100 {
		t.Fatalf("unexpected conflictRelevance schema %+v", relevance)
	}
	if got := schema.Properties["keyPoints"].Items.Type; got != genai.TypeString {
		t.Fatalf("expected string items, got %s", got)
	}
	if got := schema.Properties["sentiment"].Enum; len(got) != 3 {
		t.Fatalf("expected enum values, got %v", got)
	}
	want := []string{"summary", "conflictRelevance", "keyPoints", "sentiment"}
	for i, name := range want {
		if schema.PropertyOrdering[i] != name {
			t.Fatalf("expected ordering %v, got %v", want, schema.PropertyOrdering)
		}
	}

	if _, err := ToGenaiSchema(`{"type":"tuple"}`); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}
