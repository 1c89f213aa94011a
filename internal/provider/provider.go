// Package provider defines the contract between the orchestrator and the
// interchangeable LLM backends. One adapter exists per backend; all of
// them normalize their wire format into the Delta union so the
// orchestrator never branches on provider specifics.
package provider

import (
	"context"

	"github.com/chataigne-ai/chataigne/internal/budget"
	"github.com/chataigne-ai/chataigne/internal/message"
	"github.com/chataigne-ai/chataigne/internal/tool"
)

// Request is one outbound generation request, built from a budget plan.
type Request struct {
	System   string
	Messages []message.Message
	Tools    []tool.Declaration
	Config   *GenerateConfig
}

// GenerateConfig carries optional generation parameters. Fields are
// pointers to distinguish "not set" from a zero value.
type GenerateConfig struct {
	Temperature   *float32
	TopP          *float32
	TopK          *int
	MaxTokens     *int
	StopSequences []string
}

// Adapter is the capability set shared by every backend. Adapters must be
// safe for concurrent use by multiple sessions; any connection pooling
// lives inside their HTTP layer.
type Adapter interface {
	// ID identifies the backend (e.g. "anthropic", "openai", "gemini").
	ID() string

	// Stream issues the request and returns the delta sequence. The
	// returned stream is finite and not restartable.
	Stream(ctx context.Context, req Request) (Stream, error)

	// Counter returns the token counter matching this provider family.
	Counter() budget.Counter
}

// Stream is a finite, non-restartable lazy sequence of deltas. Next
// returns io.EOF after the StreamEnd delta has been consumed; any other
// error is the stream-error case, normally an *Error.
type Stream interface {
	Next() (Delta, error)
	Close() error
}

// BuildRequest assembles the adapter-neutral request for a plan.
func BuildRequest(plan budget.Plan, tools []tool.Declaration, cfg *GenerateConfig) Request {
	return Request{
		System:   plan.System,
		Messages: plan.Messages,
		Tools:    tools,
		Config:   cfg,
	}
}
