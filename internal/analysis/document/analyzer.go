// Package document extracts structured facts from uploaded documents.
package document

import (
	"context"
	"fmt"
	"time"

	"github.com/tiger/mediation-pipeline/api/mediation"
	"github.com/tiger/mediation-pipeline/internal/analysis/structured"
	"github.com/tiger/mediation-pipeline/internal/runtime/fallback"
	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"go.uber.org/zap"
)

const systemInstruction = `You are a document extraction service for a conflict mediation tool.
Extract facts from the supplied document only. Do not converse, give advice, or add commentary.
Return a single JSON object matching the response schema.`

var schema = structured.MustCompile("document_analysis", `{
  "type": "object",
  "required": ["documentType", "keyPoints", "sentiment", "actionItems", "relevantQuotes", "summary", "conflictRelevance"],
  "properties": {
    "documentType": {"type": "string", "description": "Kind of document, e.g. lease, email, contract, chat log"},
    "keyPoints": {"type": "array", "items": {"type": "string"}},
    "sentiment": {"type": "string", "enum": ["positive", "negative", "neutral", "mixed"]},
    "actionItems": {"type": "array", "items": {"type": "string"}},
    "relevantQuotes": {"type": "array", "items": {"type": "string"}},
    "summary": {"type": "string"},
    "conflictRelevance": {"type": "integer", "minimum": 0, "maximum": 100, "description": "How relevant the document is to the conflict"}
  }
}`)

// Analyzer is safe for concurrent use.
type Analyzer struct {
	provider contracts.StructuredProvider
	timeout  time.Duration
	logger   *zap.Logger
}

// New builds an analyzer. A nil provider makes every call return the default.
func New(provider contracts.StructuredProvider, timeout time.Duration, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{provider: provider, timeout: timeout, logger: logger}
}

// Analyze never fails; any provider problem yields mediation.DefaultDocumentAnalysis.
func (a *Analyzer) Analyze(ctx context.Context, doc mediation.Document) mediation.DocumentAnalysis {
	if a.provider == nil {
		a.logger.Debug("document provider unavailable", zap.String("document", doc.Name))
		return mediation.DefaultDocumentAnalysis()
	}
	policy := fallback.Policy{Stage: "document", Timeout: a.timeout, Logger: a.logger.With(zap.String("document", doc.Name))}
	return fallback.Call(ctx, policy, func(ctx context.Context) (mediation.DocumentAnalysis, error) {
		return a.analyze(ctx, doc)
	}, mediation.DefaultDocumentAnalysis)
}

func (a *Analyzer) analyze(ctx context.Context, doc mediation.Document) (mediation.DocumentAnalysis, error) {
	if len(doc.Data) == 0 {
		return mediation.DocumentAnalysis{}, fmt.Errorf("document %q is empty", doc.Name)
	}
	reply, err := a.provider.GenerateStructured(ctx, contracts.StructuredRequest{
		SystemInstruction: systemInstruction,
		Prompt:            fmt.Sprintf("Analyze the attached document %q for a mediation session.", doc.Name),
		Schema:            schema.Response(),
		Attachments:       []contracts.Attachment{{Name: doc.Name, MimeType: doc.MimeType, Data: doc.Data}},
	})
	if err != nil {
		return mediation.DocumentAnalysis{}, fmt.Errorf("document generate: %w", err)
	}
	var out mediation.DocumentAnalysis
	if err := schema.Decode(a.provider.ProviderID(), reply, &out); err != nil {
		return mediation.DocumentAnalysis{}, err
	}
	return normalize(out), nil
}

func normalize(d mediation.DocumentAnalysis) mediation.DocumentAnalysis {
	d.KeyPoints = nonNil(d.KeyPoints)
	d.ActionItems = nonNil(d.ActionItems)
	d.RelevantQuotes = nonNil(d.RelevantQuotes)
	if d.DocumentType == "" {
		d.DocumentType = "unknown"
	}
	return d
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
