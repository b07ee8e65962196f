package httpadapter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
)

const (
	defaultTimeout          = 15 * time.Second
	defaultMaxResponseBytes = 32 << 20
	defaultErrorSampleBytes = 512
	streamChunkBytes        = 4096
)

// Config configures a JSON-over-HTTP provider client.
type Config struct {
	ProviderID    string
	BaseURL       string
	APIKey        string
	APIKeyHeader  string
	APIKeyPrefix  string
	StaticHeaders map[string]string
	Timeout       time.Duration
	// MaxResponseBytes caps successful response bodies. Zero uses 32 MiB.
	MaxResponseBytes int
}

// Client performs authenticated requests and normalizes failures into
// *contracts.OutcomeError values.
type Client struct {
	cfg    Config
	client *http.Client
}

// New constructs a client. A nil httpClient uses a fresh http.Client.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.ProviderID == "" {
		return nil, fmt.Errorf("provider_id is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	if cfg.StaticHeaders == nil {
		cfg.StaticHeaders = map[string]string{}
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, client: httpClient}, nil
}

// ProviderID returns provider identity.
func (c *Client) ProviderID() string {
	return c.cfg.ProviderID
}

// Request describes one provider call.
type Request struct {
	Method      string
	Path        string
	Body        io.Reader
	ContentType string
	Accept      string
}

// JSONRequest encodes v as a JSON request body.
func JSONRequest(method string, path string, v any) (Request, error) {
	req := Request{Method: method, Path: path, Accept: "application/json"}
	if v == nil {
		return req, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return Request{}, err
	}
	req.Body = bytes.NewReader(body)
	req.ContentType = "application/json"
	return req, nil
}

// Do executes req and returns the full response body on 2xx.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	resp, cancel, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	body, truncated, err := readBodySample(resp.Body, c.cfg.MaxResponseBytes)
	if err != nil {
		return nil, c.fail(normalizeNetworkError(err), err)
	}
	if truncated {
		return nil, c.fail(contracts.Outcome{Class: contracts.OutcomeMalformed, Reason: "provider_response_too_large", StatusCode: resp.StatusCode}, nil)
	}
	return body, nil
}

// DoJSON executes a JSON request and decodes the response into out.
func (c *Client) DoJSON(ctx context.Context, method string, path string, in any, out any) error {
	req, err := JSONRequest(method, path, in)
	if err != nil {
		return err
	}
	body, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return contracts.Malformed(c.cfg.ProviderID, err)
	}
	return nil
}

// Stream executes req and hands the body to onChunk in reads of up to 4 KiB.
// It returns the response content type.
func (c *Client) Stream(ctx context.Context, req Request, onChunk func([]byte) error) (string, error) {
	resp, cancel, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	defer cancel()
	defer resp.Body.Close()

	buf := make([]byte, streamChunkBytes)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := onChunk(chunk); err != nil {
				return "", err
			}
		}
		if errors.Is(readErr, io.EOF) {
			return resp.Header.Get("Content-Type"), nil
		}
		if readErr != nil {
			return "", c.fail(normalizeNetworkError(readErr), readErr)
		}
	}
}

// send returns a 2xx response whose body the caller must close, plus the
// cancel func of the per-request timeout.
func (c *Client) send(ctx context.Context, req Request) (*http.Response, context.CancelFunc, error) {
	if c.cfg.APIKeyHeader != "" && c.cfg.APIKey == "" {
		return nil, nil, contracts.Unavailable(c.cfg.ProviderID, "provider_credentials_missing")
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	httpReq, err := http.NewRequestWithContext(reqCtx, method, c.cfg.BaseURL+req.Path, req.Body)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	if c.cfg.APIKeyHeader != "" {
		httpReq.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKeyPrefix+c.cfg.APIKey)
	}
	for key, value := range c.cfg.StaticHeaders {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, nil, c.fail(normalizeNetworkError(err), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		sample, _, _ := readBodySample(resp.Body, defaultErrorSampleBytes)
		outcome := normalizeStatus(resp.StatusCode, resp.Header.Get("Retry-After"))
		return nil, nil, c.fail(outcome, errors.New(CaptureSample(sample)))
	}
	return resp, cancel, nil
}

func (c *Client) fail(outcome contracts.Outcome, cause error) error {
	return contracts.NewOutcomeError(c.cfg.ProviderID, outcome, cause)
}

func normalizeNetworkError(err error) contracts.Outcome {
	if errors.Is(err, context.Canceled) {
		return contracts.Outcome{Class: contracts.OutcomeCancelled, Retryable: false, Reason: "provider_cancelled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return contracts.Outcome{Class: contracts.OutcomeTimeout, Retryable: true, Reason: "provider_timeout"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return contracts.Outcome{Class: contracts.OutcomeTimeout, Retryable: true, Reason: "provider_timeout"}
	}
	return contracts.Outcome{Class: contracts.OutcomeInfrastructureFailure, Retryable: true, Reason: "provider_transport_error"}
}

func normalizeStatus(status int, retryAfter string) contracts.Outcome {
	outcome := contracts.Outcome{StatusCode: status}
	switch {
	case status >= 200 && status <= 299:
		outcome.Class = contracts.OutcomeSuccess
		return outcome
	case status == http.StatusTooManyRequests:
		outcome.Class = contracts.OutcomeOverload
		outcome.Retryable = true
		outcome.Reason = "provider_overload"
		outcome.BackoffMS = retryAfterToMS(retryAfter)
		return outcome
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		outcome.Class = contracts.OutcomeTimeout
		outcome.Retryable = true
		outcome.Reason = "provider_timeout"
		return outcome
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		outcome.Class = contracts.OutcomeBlocked
		outcome.Reason = "provider_auth_or_policy_block"
		return outcome
	case status >= 400 && status <= 499:
		outcome.Class = contracts.OutcomeBlocked
		outcome.Reason = "provider_client_error"
		return outcome
	default:
		outcome.Class = contracts.OutcomeInfrastructureFailure
		outcome.Retryable = true
		outcome.Reason = "provider_server_error"
		return outcome
	}
}

func retryAfterToMS(retryAfter string) int64 {
	if strings.TrimSpace(retryAfter) == "" {
		return 500
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter))
	if err != nil || seconds < 1 {
		return 500
	}
	return int64(seconds) * 1000
}

func readBodySample(reader io.Reader, maxBytes int) ([]byte, bool, error) {
	if maxBytes < 1 {
		maxBytes = defaultErrorSampleBytes
	}
	payload, err := io.ReadAll(io.LimitReader(reader, int64(maxBytes+1)))
	if err != nil {
		return nil, false, err
	}
	if len(payload) > maxBytes {
		return payload[:maxBytes], true, nil
	}
	return payload, false, nil
}

// CaptureSample renders an error-body sample for logs. Non-UTF-8 bodies are
// reduced to a digest.
func CaptureSample(raw []byte) string {
	if len(raw) == 0 {
		return "empty response body"
	}
	if utf8.Valid(raw) {
		return strings.TrimSpace(string(raw))
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("binary body sha256=%s bytes=%d", hex.EncodeToString(sum[:]), len(raw))
}

// NormalizeNetworkError maps transport-level errors to normalized outcomes.
func NormalizeNetworkError(err error) contracts.Outcome {
	return normalizeNetworkError(err)
}

// NormalizeStatus maps HTTP status and retry-after headers to normalized outcomes.
func NormalizeStatus(status int, retryAfter string) contracts.Outcome {
	return normalizeStatus(status, retryAfter)
}
