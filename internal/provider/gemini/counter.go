package gemini

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/chataigne-ai/chataigne/internal/budget"
	"github.com/chataigne-ai/chataigne/internal/message"
)

const countTimeout = 5 * time.Second

// counter asks the count_tokens endpoint for exact counts and falls
// back to the heuristic estimator when the call fails. Budgeting reads
// each count once per message thanks to the cache on Message, so the
// round-trip stays off the steady-state path.
type counter struct {
	client   Client
	model    string
	fallback budget.Estimator
}

var _ budget.Counter = (*counter)(nil)

func (c *counter) CountText(text string) int {
	return c.CountMessage(message.UserText(text))
}

func (c *counter) CountMessage(m message.Message) int {
	ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
	defer cancel()

	content, err := toContent(m)
	if err != nil || content == nil {
		return c.fallback.CountMessage(m)
	}
	resp, err := c.client.CountTokens(ctx, c.model, []*genai.Content{content})
	if err != nil {
		return c.fallback.CountMessage(m)
	}
	return int(resp.TotalTokens)
}
