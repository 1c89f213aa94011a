// Package openai implements the provider adapter for OpenAI-style
// chat-completions backends, including compatible self-hosted servers.
// The wire client is a plain net/http + SSE implementation.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chataigne-ai/chataigne/internal/budget"
	"github.com/chataigne-ai/chataigne/internal/provider"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultEndpoint = "/chat/completions"
	defaultTimeout  = 5 * time.Minute
)

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Adapter is safe for concurrent use; the http.Client pools
// connections.
type Adapter struct {
	apiKey      string
	model       string
	endpointURL string
	httpClient  *http.Client
}

var _ provider.Adapter = (*Adapter)(nil)

func New(cfg Config) (*Adapter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai adapter: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("openai adapter: model is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Adapter{
		apiKey:      apiKey,
		model:       model,
		endpointURL: strings.TrimRight(baseURL, "/") + defaultEndpoint,
		httpClient:  httpClient,
	}, nil
}

func (a *Adapter) ID() string { return "openai" }

// Counter returns the heuristic estimator; OpenAI exposes no counting
// endpoint and the exact tokenizer is out of scope for budgeting.
func (a *Adapter) Counter() budget.Counter { return budget.Estimator{} }

func (a *Adapter) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	payload, err := buildRequest(a.model, req)
	if err != nil {
		return nil, provider.Rejected("encode request", err)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, provider.Rejected("encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpointURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, provider.Rejected("build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, provider.Unavailable("request execute", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		msg := fmt.Sprintf("status=%d body=%s", resp.StatusCode, bytes.TrimSpace(body))
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, rateLimitError(msg, resp.Header.Get("Retry-After"))
		}
		return nil, provider.FromStatus(resp.StatusCode, msg, nil)
	}

	return newStream(resp.Body), nil
}

func rateLimitError(msg, retryAfter string) *provider.Error {
	var hint *time.Duration
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
		d := time.Duration(secs) * time.Second
		hint = &d
	}
	return provider.RateLimited(msg, hint)
}
