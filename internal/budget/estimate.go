package budget

import (
	"encoding/json"

	"github.com/chataigne-ai/chataigne/internal/message"
)

// Estimator is a heuristic counter used when a provider offers no exact
// tokenizer: roughly four bytes of content per token, with a fixed
// per-part overhead for structural framing.
type Estimator struct{}

const (
	bytesPerToken = 4
	partOverhead  = 8
)

func (Estimator) CountText(text string) int {
	if text == "" {
		return 0
	}
	return len(text)/bytesPerToken + 1
}

func (e Estimator) CountMessage(m message.Message) int {
	total := 0
	for _, p := range m.Parts {
		total += partOverhead
		switch part := p.(type) {
		case message.TextPart:
			total += e.CountText(part.Text)
		case message.ImagePart:
			// Providers bill images by resolution; the base64 length is
			// the best proxy available without decoding.
			total += len(part.Base64) / bytesPerToken
		case message.ToolRequestPart:
			args, _ := json.Marshal(part.Arguments)
			total += e.CountText(part.Name) + e.CountText(string(args))
		case message.ToolResultPart:
			total += e.CountText(part.Name) + e.CountText(part.Content)
		}
	}
	return total
}
