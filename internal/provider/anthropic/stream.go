package anthropic

import (
	"io"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/chataigne-ai/chataigne/internal/provider"
)

// stream adapts the SDK event stream into the Delta union. One event may
// yield several deltas, so decoded deltas queue until consumed. Unlike
// the chat-completions protocol, the Messages API closes each tool block
// explicitly, so complete tool calls flush per block instead of at
// stream end.
type stream struct {
	inner *ssestream.Stream[sdk.MessageStreamEventUnion]
	acc   *blockAccumulator

	queue      []provider.Delta
	stopReason string
	done       bool
}

var _ provider.Stream = (*stream)(nil)

func newStream(inner *ssestream.Stream[sdk.MessageStreamEventUnion]) *stream {
	return &stream{
		inner: inner,
		acc:   newBlockAccumulator(),
	}
}

func (s *stream) Next() (provider.Delta, error) {
	for {
		if len(s.queue) > 0 {
			d := s.queue[0]
			s.queue = s.queue[1:]
			return d, nil
		}
		if s.done {
			return nil, io.EOF
		}

		if !s.inner.Next() {
			if err := s.inner.Err(); err != nil {
				return nil, mapError(err)
			}
			// Ended without message_stop; terminate cleanly anyway.
			s.finish()
			continue
		}
		if err := s.handle(s.inner.Current()); err != nil {
			return nil, err
		}
	}
}

func (s *stream) handle(event sdk.MessageStreamEventUnion) error {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		s.queue = append(s.queue, provider.UsageDelta{
			PromptTokens: int(ev.Message.Usage.InputTokens),
		})

	case sdk.ContentBlockStartEvent:
		if block, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
			s.acc.Start(int(ev.Index), block.ID, block.Name)
		}

	case sdk.ContentBlockDeltaEvent:
		switch d := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if d.Text != "" {
				s.queue = append(s.queue, provider.TextDelta{Text: d.Text})
			}
		case sdk.InputJSONDelta:
			if s.acc.Add(int(ev.Index), d.PartialJSON) {
				s.queue = append(s.queue, provider.ToolCallDelta{
					Index:    int(ev.Index),
					Fragment: d.PartialJSON,
				})
			}
		}

	case sdk.ContentBlockStopEvent:
		call, ok, err := s.acc.Finish(int(ev.Index))
		if err != nil {
			return provider.Rejected("reassemble tool call", err)
		}
		if ok {
			s.queue = append(s.queue, provider.ToolCallComplete{Call: call})
		}

	case sdk.MessageDeltaEvent:
		if reason := string(ev.Delta.StopReason); reason != "" {
			s.stopReason = reason
		}
		if ev.Usage.OutputTokens > 0 {
			s.queue = append(s.queue, provider.UsageDelta{
				CompletionTokens: int(ev.Usage.OutputTokens),
			})
		}

	case sdk.MessageStopEvent:
		s.finish()
	}
	return nil
}

func (s *stream) finish() {
	if s.done {
		return
	}
	s.done = true
	s.queue = append(s.queue, provider.StreamEnd{StopReason: s.stopReason})
}

func (s *stream) Close() error {
	return s.inner.Close()
}
