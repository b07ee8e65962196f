package hume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
	"github.com/tiger/mediation-pipeline/providers/common/httpadapter"
)

const ProviderID = "expression-hume"

type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

type Adapter struct {
	client *httpadapter.Client
}

// NewAdapter returns ErrProviderUnavailable when no API key is configured so
// callers can route straight to the local heuristic.
func NewAdapter(cfg Config, httpClient *http.Client) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, contracts.Unavailable(ProviderID, "provider_credentials_missing")
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:   ProviderID,
		BaseURL:      defaultString(cfg.Endpoint, "https://api.hume.ai"),
		APIKey:       cfg.APIKey,
		APIKeyHeader: "X-Hume-Api-Key",
		Timeout:      cfg.Timeout,
	}, httpClient)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

func (a *Adapter) ProviderID() string {
	return ProviderID
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

// Submit starts a batch inference job.
func (a *Adapter) Submit(ctx context.Context, req contracts.ExpressionJobRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	var (
		httpReq httpadapter.Request
		err     error
	)
	if req.Text != "" {
		httpReq, err = httpadapter.JSONRequest(http.MethodPost, "/v0/batch/jobs", map[string]any{
			"models": modelConfig(req.Models),
			"text":   []string{req.Text},
		})
	} else {
		httpReq, err = audioRequest(req)
	}
	if err != nil {
		return "", err
	}

	body, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return "", err
	}
	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", contracts.Malformed(ProviderID, err)
	}
	if resp.JobID == "" {
		return "", contracts.Malformed(ProviderID, fmt.Errorf("job_id missing"))
	}
	return resp.JobID, nil
}

type jobDetails struct {
	State struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"state"`
}

// Poll reports the job lifecycle state.
func (a *Adapter) Poll(ctx context.Context, jobID string) (contracts.JobStatus, error) {
	var details jobDetails
	if err := a.client.DoJSON(ctx, http.MethodGet, "/v0/batch/jobs/"+url.PathEscape(jobID), nil, &details); err != nil {
		return "", err
	}
	switch strings.ToUpper(details.State.Status) {
	case "QUEUED":
		return contracts.JobPending, nil
	case "IN_PROGRESS":
		return contracts.JobRunning, nil
	case "COMPLETED":
		return contracts.JobCompleted, nil
	case "FAILED":
		return contracts.JobFailed, nil
	default:
		return "", contracts.Malformed(ProviderID, fmt.Errorf("unknown job status %q", details.State.Status))
	}
}

type sourcePrediction struct {
	Results struct {
		Predictions []struct {
			Models map[string]struct {
				GroupedPredictions []struct {
					ID          string `json:"id"`
					Predictions []struct {
						Text     string `json:"text"`
						Emotions []struct {
							Name  string  `json:"name"`
							Score float64 `json:"score"`
						} `json:"emotions"`
					} `json:"predictions"`
				} `json:"grouped_predictions"`
			} `json:"models"`
		} `json:"predictions"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"results"`
}

// Result fetches and flattens completed predictions into model-tagged groups.
func (a *Adapter) Result(ctx context.Context, jobID string) ([]contracts.PredictionGroup, error) {
	var sources []sourcePrediction
	if err := a.client.DoJSON(ctx, http.MethodGet, "/v0/batch/jobs/"+url.PathEscape(jobID)+"/predictions", nil, &sources); err != nil {
		return nil, err
	}

	groups := make([]contracts.PredictionGroup, 0)
	for _, source := range sources {
		for _, file := range source.Results.Predictions {
			for _, model := range []contracts.ExpressionModel{contracts.ModelLanguage, contracts.ModelProsody, contracts.ModelBurst} {
				modelResult, ok := file.Models[string(model)]
				if !ok {
					continue
				}
				for _, grouped := range modelResult.GroupedPredictions {
					group := contracts.PredictionGroup{Model: model, GroupID: grouped.ID}
					for _, p := range grouped.Predictions {
						frame := contracts.PredictionFrame{Text: p.Text}
						for _, e := range p.Emotions {
							frame.Emotions = append(frame.Emotions, contracts.EmotionPrediction{Name: e.Name, Score: e.Score})
						}
						group.Predictions = append(group.Predictions, frame)
					}
					groups = append(groups, group)
				}
			}
		}
	}
	if len(groups) == 0 {
		return nil, contracts.Malformed(ProviderID, fmt.Errorf("no grouped predictions in job %s", jobID))
	}
	return groups, nil
}

func modelConfig(models []contracts.ExpressionModel) map[string]any {
	out := make(map[string]any, len(models))
	for _, m := range models {
		out[string(m)] = map[string]any{}
	}
	return out
}

func audioRequest(req contracts.ExpressionJobRequest) (httpadapter.Request, error) {
	payload, err := json.Marshal(map[string]any{"models": modelConfig(req.Models)})
	if err != nil {
		return httpadapter.Request{}, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("json", string(payload)); err != nil {
		return httpadapter.Request{}, err
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio"`)
	header.Set("Content-Type", defaultString(req.AudioMimeType, "audio/wav"))
	part, err := writer.CreatePart(header)
	if err != nil {
		return httpadapter.Request{}, err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return httpadapter.Request{}, err
	}
	if err := writer.Close(); err != nil {
		return httpadapter.Request{}, err
	}
	return httpadapter.Request{
		Method:      http.MethodPost,
		Path:        "/v0/batch/jobs",
		Body:        &body,
		ContentType: writer.FormDataContentType(),
		Accept:      "application/json",
	}, nil
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
