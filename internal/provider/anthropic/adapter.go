// Package anthropic implements the provider adapter for the Anthropic
// Messages API, on top of the official SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/chataigne-ai/chataigne/internal/budget"
	"github.com/chataigne-ai/chataigne/internal/provider"
)

const defaultMaxTokens = 4096

type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	// MaxTokens caps a single response. The Messages API requires it;
	// zero means defaultMaxTokens.
	MaxTokens int
}

// Adapter is safe for concurrent use; the SDK client pools connections.
type Adapter struct {
	client    sdk.Client
	model     string
	maxTokens int
}

var _ provider.Adapter = (*Adapter)(nil)

func New(cfg Config) (*Adapter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic adapter: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("anthropic adapter: model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Adapter{
		client:    sdk.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (a *Adapter) ID() string { return "anthropic" }

// Counter returns the heuristic estimator. The count_tokens endpoint
// exists but costs a network round-trip per message, which the
// synchronous budgeting path cannot afford.
func (a *Adapter) Counter() budget.Counter { return budget.Estimator{} }

func (a *Adapter) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	params, err := buildParams(a.model, a.maxTokens, req)
	if err != nil {
		return nil, provider.Rejected("encode request", err)
	}

	inner := a.client.Messages.NewStreaming(ctx, params)
	// Open errors surface on the stream, not from NewStreaming.
	if err := inner.Err(); err != nil {
		_ = inner.Close()
		return nil, mapError(err)
	}
	return newStream(inner), nil
}

// mapError normalizes SDK failures into the shared provider error
// vocabulary.
func mapError(err error) error {
	var apierr *sdk.Error
	if !errors.As(err, &apierr) {
		return provider.Unavailable("request execute", err)
	}

	msg := fmt.Sprintf("status=%d", apierr.StatusCode)
	if apierr.StatusCode == 429 {
		var hint *time.Duration
		if apierr.Response != nil {
			if secs, convErr := strconv.Atoi(strings.TrimSpace(apierr.Response.Header.Get("Retry-After"))); convErr == nil && secs > 0 {
				d := time.Duration(secs) * time.Second
				hint = &d
			}
		}
		return provider.RateLimited(msg, hint)
	}
	return provider.FromStatus(apierr.StatusCode, msg, err)
}
