package openai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chataigne-ai/chataigne/internal/message"
)

// toolCallAccumulator reassembles incrementally streamed tool calls.
// Chat-completions chunks carry tool calls keyed by index; the first
// fragment for an index names the call and later fragments append raw
// argument JSON, possibly split mid-token. Reassembly is pure so it can
// be exercised with synthetic fragment sequences.
type toolCallAccumulator struct {
	calls map[int]*partialCall
}

type partialCall struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{calls: make(map[int]*partialCall)}
}

// Add folds one fragment into the call at index.
func (a *toolCallAccumulator) Add(index int, id, name, fragment string) {
	call, ok := a.calls[index]
	if !ok {
		call = &partialCall{index: index}
		a.calls[index] = call
	}
	if id != "" {
		call.id = id
	}
	if name != "" {
		call.name = name
	}
	call.args.WriteString(fragment)
}

// Complete parses every accumulated call, in index (emission) order.
func (a *toolCallAccumulator) Complete() ([]message.ToolRequestPart, error) {
	indexes := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]message.ToolRequestPart, 0, len(indexes))
	for _, i := range indexes {
		call := a.calls[i]
		args := map[string]any{}
		if raw := call.args.String(); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("tool call %q (index %d): reassembled arguments are not valid JSON: %w", call.name, i, err)
			}
		}
		out = append(out, message.ToolRequestPart{
			CallID:    call.id,
			Name:      call.name,
			Arguments: args,
		})
	}
	return out, nil
}

func (a *toolCallAccumulator) Empty() bool {
	return len(a.calls) == 0
}
