package provider

import "github.com/chataigne-ai/chataigne/internal/message"

// Delta is one incremental unit of a streamed model response. Consumers
// handle deltas via type switch. The stream-error case is not a Delta; it
// surfaces as a non-nil error from Stream.Next.
type Delta interface {
	isDelta()
}

// TextDelta is a text fragment, forwarded to the presentation layer in
// emission order.
type TextDelta struct {
	Text string
}

func (TextDelta) isDelta() {}

// ToolCallDelta is a partial tool call. Some backends emit argument JSON
// incrementally; adapters reassemble fragments client-side and only then
// emit ToolCallComplete.
type ToolCallDelta struct {
	Index    int
	CallID   string
	Name     string
	Fragment string // raw argument JSON fragment
}

func (ToolCallDelta) isDelta() {}

// ToolCallComplete carries one fully reassembled tool call.
type ToolCallComplete struct {
	Call message.ToolRequestPart
}

func (ToolCallComplete) isDelta() {}

// UsageDelta reports token accounting when the backend provides it.
type UsageDelta struct {
	PromptTokens     int
	CompletionTokens int
}

func (UsageDelta) isDelta() {}

// StreamEnd terminates a successful stream.
type StreamEnd struct {
	StopReason string
}

func (StreamEnd) isDelta() {}
