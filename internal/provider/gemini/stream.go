package gemini

import (
	"io"
	"iter"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/chataigne-ai/chataigne/internal/message"
	"github.com/chataigne-ai/chataigne/internal/provider"
)

// stream adapts the SDK response iterator into the Delta union. Gemini
// delivers function calls whole, so they surface as ToolCallComplete
// directly, with no fragment reassembly. The API assigns no call IDs;
// missing ones are synthesized so results can pair with requests.
type stream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()

	queue      []provider.Delta
	usage      *genai.GenerateContentResponseUsageMetadata
	stopReason string
	done       bool
}

var _ provider.Stream = (*stream)(nil)

func newStream(seq iter.Seq2[*genai.GenerateContentResponse, error]) *stream {
	next, stop := iter.Pull2(seq)
	return &stream{next: next, stop: stop}
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

		resp, err, ok := s.next()
		if !ok {
			s.finish()
			continue
		}
		if err != nil {
			return nil, mapError(err)
		}
		if err := s.enqueue(resp); err != nil {
			return nil, err
		}
	}
}

func (s *stream) enqueue(resp *genai.GenerateContentResponse) error {
	if resp.UsageMetadata != nil {
		s.usage = resp.UsageMetadata
	}
	if len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]

	if candidate.FinishReason == genai.FinishReasonSafety {
		return provider.Rejected("content blocked by safety filters", nil)
	}
	if candidate.FinishReason != "" {
		s.stopReason = string(candidate.FinishReason)
	}

	if candidate.Content == nil {
		return nil
	}
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			s.queue = append(s.queue, provider.TextDelta{Text: part.Text})
		}
		if part.FunctionCall != nil {
			callID := part.FunctionCall.ID
			if callID == "" {
				callID = uuid.NewString()
			}
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			s.queue = append(s.queue, provider.ToolCallComplete{
				Call: message.ToolRequestPart{
					CallID:    callID,
					Name:      part.FunctionCall.Name,
					Arguments: args,
				},
			})
		}
	}
	return nil
}

func (s *stream) finish() {
	if s.done {
		return
	}
	s.done = true
	if s.usage != nil {
		s.queue = append(s.queue, provider.UsageDelta{
			PromptTokens:     int(s.usage.PromptTokenCount),
			CompletionTokens: int(s.usage.CandidatesTokenCount),
		})
	}
	s.queue = append(s.queue, provider.StreamEnd{StopReason: s.stopReason})
}

func (s *stream) Close() error {
	s.stop()
	return nil
}
