package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
)

func TestDoJSONMapsHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		expected  contracts.OutcomeClass
		retryable bool
		sentinel  error
	}{
		{name: "timeout", status: http.StatusRequestTimeout, expected: contracts.OutcomeTimeout, retryable: true, sentinel: contracts.ErrProviderTimeout},
		{name: "overload", status: http.StatusTooManyRequests, expected: contracts.OutcomeOverload, retryable: true, sentinel: contracts.ErrProviderError},
		{name: "blocked", status: http.StatusUnauthorized, expected: contracts.OutcomeBlocked, retryable: false, sentinel: contracts.ErrProviderError},
		{name: "client", status: http.StatusBadRequest, expected: contracts.OutcomeBlocked, retryable: false, sentinel: contracts.ErrProviderError},
		{name: "infra", status: http.StatusBadGateway, expected: contracts.OutcomeInfrastructureFailure, retryable: true, sentinel: contracts.ErrProviderError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer ts.Close()

			client, err := New(Config{ProviderID: "provider-a", BaseURL: ts.URL}, ts.Client())
			if err != nil {
				t.Fatalf("unexpected client error: %v", err)
			}
			err = client.DoJSON(context.Background(), http.MethodPost, "/v1/run", map[string]string{"k": "v"}, nil)
			var outcomeErr *contracts.OutcomeError
			if !errors.As(err, &outcomeErr) {
				t.Fatalf("expected outcome error, got %v", err)
			}
			if outcomeErr.Outcome.Class != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, outcomeErr.Outcome.Class)
			}
			if outcomeErr.Outcome.Retryable != tc.retryable {
				t.Fatalf("expected retryable=%v, got %v", tc.retryable, outcomeErr.Outcome.Retryable)
			}
			if outcomeErr.Outcome.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, outcomeErr.Outcome.StatusCode)
			}
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("expected %v sentinel, got %v", tc.sentinel, err)
			}
			if !strings.Contains(err.Error(), `{"error":"nope"}`) {
				t.Fatalf("expected error body sample in message, got %q", err.Error())
			}
		})
	}
}

func TestDoJSONSendsHeadersAndDecodes(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/jobs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "Key secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("unexpected static header %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected content type %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job_id":"job-1"}`))
	}))
	defer ts.Close()

	client, err := New(Config{
		ProviderID:    "provider-a",
		BaseURL:       ts.URL + "/",
		APIKey:        "secret",
		APIKeyHeader:  "X-Api-Key",
		APIKeyPrefix:  "Key ",
		StaticHeaders: map[string]string{"anthropic-version": "2023-06-01"},
	}, ts.Client())
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := client.DoJSON(context.Background(), http.MethodPost, "/v0/jobs", map[string]any{"text": []string{"hi"}}, &out); err != nil {
		t.Fatalf("unexpected do error: %v", err)
	}
	if out.JobID != "job-1" {
		t.Fatalf("expected job-1, got %q", out.JobID)
	}
}

func TestDoJSONMalformedBody(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer ts.Close()

	client, err := New(Config{ProviderID: "provider-a", BaseURL: ts.URL}, ts.Client())
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	var out map[string]any
	err = client.DoJSON(context.Background(), http.MethodGet, "/", nil, &out)
	if !errors.Is(err, contracts.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestDoRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 64))
	}))
	defer ts.Close()

	client, err := New(Config{ProviderID: "provider-a", BaseURL: ts.URL, MaxResponseBytes: 16}, ts.Client())
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	_, err = client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if !errors.Is(err, contracts.ErrMalformedResponse) {
		t.Fatalf("expected malformed response for oversized body, got %v", err)
	}
}

func TestMissingCredentialIsUnavailable(t *testing.T) {
	t.Parallel()

	client, err := New(Config{ProviderID: "provider-a", BaseURL: "http://127.0.0.1:1", APIKeyHeader: "X-Api-Key"}, nil)
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	_, err = client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if !errors.Is(err, contracts.ErrProviderUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestDoTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	client, err := New(Config{ProviderID: "provider-a", BaseURL: ts.URL, Timeout: 30 * time.Millisecond}, ts.Client())
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	_, err = client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if contracts.Classify(err) != contracts.OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %v", err)
	}
}

func TestStreamEmitsChunks(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0x1, 0x2, 0x3}, 5000)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(payload)
	}))
	defer ts.Close()

	client, err := New(Config{ProviderID: "provider-a", BaseURL: ts.URL}, ts.Client())
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}

	var got []byte
	chunks := 0
	mime, err := client.Stream(context.Background(), Request{Method: http.MethodPost, Path: "/stream"}, func(chunk []byte) error {
		if len(chunk) > streamChunkBytes {
			t.Fatalf("chunk larger than %d bytes: %d", streamChunkBytes, len(chunk))
		}
		chunks++
		got = append(got, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if mime != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", mime)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected reassembled payload of %d bytes, got %d", len(payload), len(got))
	}
	if chunks < 2 {
		t.Fatalf("expected multiple chunks, got %d", chunks)
	}
}

func TestStreamStopsOnCallbackError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{0x1}, 10000))
	}))
	defer ts.Close()

	client, err := New(Config{ProviderID: "provider-a", BaseURL: ts.URL}, ts.Client())
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	stop := errors.New("consumer gone")
	_, err = client.Stream(context.Background(), Request{Path: "/"}, func([]byte) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestNormalizeStatusRetryAfter(t *testing.T) {
	t.Parallel()

	if got := NormalizeStatus(http.StatusTooManyRequests, "3").BackoffMS; got != 3000 {
		t.Fatalf("expected 3000ms backoff, got %d", got)
	}
	if got := NormalizeStatus(http.StatusTooManyRequests, "soon").BackoffMS; got != 500 {
		t.Fatalf("expected default backoff, got %d", got)
	}
	if got := NormalizeStatus(http.StatusOK, "").Class; got != contracts.OutcomeSuccess {
		t.Fatalf("expected success, got %s", got)
	}
}

func TestCaptureSample(t *testing.T) {
	t.Parallel()

	if got := CaptureSample(nil); got != "empty response body" {
		t.Fatalf("unexpected empty sample %q", got)
	}
	if got := CaptureSample([]byte{0xff, 0xfe}); !strings.HasPrefix(got, "binary body sha256=") {
		t.Fatalf("expected digest for binary body, got %q", got)
	}
}
