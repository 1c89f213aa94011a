package openai

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/chataigne-ai/chataigne/internal/provider"
)

// Wire shape of one streamed chunk.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// stream adapts the SSE response body into the Delta union. One chunk
// may yield several deltas, so decoded deltas queue until consumed.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	acc     *toolCallAccumulator

	queue      []provider.Delta
	stopReason string
	done       bool
}

var _ provider.Stream = (*stream)(nil)

func newStream(body io.ReadCloser) *stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &stream{
		body:    body,
		scanner: scanner,
		acc:     newToolCallAccumulator(),
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

		data, err := s.nextData()
		if err != nil {
			return nil, err
		}
		if data == "[DONE]" {
			if err := s.finish(); err != nil {
				return nil, err
			}
			continue
		}

		var c chunk
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, provider.Unavailable("decode stream chunk", err)
		}
		s.enqueue(c)
	}
}

// nextData reads SSE lines until the next data payload.
func (s *stream) nextData() (string, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(line[5:])
		if data == "" {
			continue
		}
		return data, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", provider.Unavailable("stream interrupted", err)
	}
	// Body ended without a [DONE] sentinel; treat it as a clean end so
	// a well-formed but sloppy backend still terminates the turn.
	if err := s.finish(); err != nil {
		return "", err
	}
	return "[DONE]", nil
}

func (s *stream) enqueue(c chunk) {
	if c.Usage != nil {
		s.queue = append(s.queue, provider.UsageDelta{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
		})
	}
	if len(c.Choices) == 0 {
		return
	}
	choice := c.Choices[0]

	if choice.Delta.Content != "" {
		s.queue = append(s.queue, provider.TextDelta{Text: choice.Delta.Content})
	}
	for _, tc := range choice.Delta.ToolCalls {
		s.acc.Add(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
		s.queue = append(s.queue, provider.ToolCallDelta{
			Index:    tc.Index,
			CallID:   tc.ID,
			Name:     tc.Function.Name,
			Fragment: tc.Function.Arguments,
		})
	}
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		s.stopReason = *choice.FinishReason
	}
}

// finish flushes reassembled tool calls and terminates the sequence.
func (s *stream) finish() error {
	if s.done {
		return nil
	}
	s.done = true

	if !s.acc.Empty() {
		calls, err := s.acc.Complete()
		if err != nil {
			return provider.Rejected("reassemble tool calls", err)
		}
		for _, call := range calls {
			s.queue = append(s.queue, provider.ToolCallComplete{Call: call})
		}
	}
	s.queue = append(s.queue, provider.StreamEnd{StopReason: s.stopReason})
	return nil
}

func (s *stream) Close() error {
	return s.body.Close()
}
