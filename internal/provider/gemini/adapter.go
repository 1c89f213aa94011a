// Package gemini implements the provider adapter for Google Gemini, on
// top of the official google.golang.org/genai SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/chataigne-ai/chataigne/internal/budget"
	"github.com/chataigne-ai/chataigne/internal/provider"
)

type Config struct {
	APIKey string
	Model  string
}

// Adapter is safe for concurrent use; the SDK client pools connections.
type Adapter struct {
	client Client
	model  string
}

var _ provider.Adapter = (*Adapter)(nil)

// New dials the Gemini API. The context governs client setup only, not
// later calls.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini adapter: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("gemini adapter: model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini adapter: create client: %w", err)
	}
	return NewWithClient(&realClient{client: client}, model), nil
}

// NewWithClient builds an adapter over a pre-built client.
func NewWithClient(client Client, model string) *Adapter {
	return &Adapter{client: client, model: model}
}

func (a *Adapter) ID() string { return "gemini" }

// Counter returns a counter backed by the count_tokens endpoint, with
// the heuristic estimator as offline fallback.
func (a *Adapter) Counter() budget.Counter {
	return &counter{client: a.client, model: a.model}
}

func (a *Adapter) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	contents, err := toContents(req.Messages)
	if err != nil {
		return nil, provider.Rejected("encode request", err)
	}
	config := toConfig(req)

	return newStream(a.client.GenerateContentStream(ctx, a.model, contents, config)), nil
}

// mapError normalizes SDK failures into the shared provider error
// vocabulary.
func mapError(err error) error {
	apiErr, ok := err.(*genai.APIError)
	if !ok {
		return provider.Unavailable("request execute", err)
	}
	msg := fmt.Sprintf("status=%d message=%s", apiErr.Code, apiErr.Message)
	if apiErr.Code == 429 {
		// The SDK surfaces no Retry-After header; backoff decides.
		return provider.RateLimited(msg, nil)
	}
	return provider.FromStatus(apiErr.Code, msg, err)
}
