package gemini

import (
	"context"
	"iter"

	"google.golang.org/genai"
)

// Client is the subset of the SDK the adapter needs. The indirection
// allows tests to script responses without a network.
type Client interface {
	// GenerateContentStream starts a streamed generation.
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

	// CountTokens counts the tokens in the given contents.
	CountTokens(ctx context.Context, model string, contents []*genai.Content) (*genai.CountTokensResponse, error)
}

// realClient wraps the official SDK client to satisfy Client.
type realClient struct {
	client *genai.Client
}

func (c *realClient) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return c.client.Models.GenerateContentStream(ctx, model, contents, config)
}

func (c *realClient) CountTokens(ctx context.Context, model string, contents []*genai.Content) (*genai.CountTokensResponse, error) {
	return c.client.Models.CountTokens(ctx, model, contents, nil)
}
