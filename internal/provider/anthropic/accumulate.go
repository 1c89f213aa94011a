package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chataigne-ai/chataigne/internal/message"
)

// blockAccumulator reassembles one streamed tool_use content block. The
// content_block_start event names the call; input_json_delta events
// append raw argument JSON, possibly split mid-token. Reassembly is pure
// so it can be exercised with synthetic fragment sequences.
type blockAccumulator struct {
	blocks map[int]*partialBlock
}

type partialBlock struct {
	id   string
	name string
	args strings.Builder
}

func newBlockAccumulator() *blockAccumulator {
	return &blockAccumulator{blocks: make(map[int]*partialBlock)}
}

func (a *blockAccumulator) Start(index int, id, name string) {
	a.blocks[index] = &partialBlock{id: id, name: name}
}

// Add folds one fragment into the block at index. Fragments for indexes
// never started belong to non-tool blocks and are ignored.
func (a *blockAccumulator) Add(index int, fragment string) bool {
	block, ok := a.blocks[index]
	if !ok {
		return false
	}
	block.args.WriteString(fragment)
	return true
}

// Finish parses the block at index into a complete tool call and
// forgets it. ok reports whether a tool block was open at that index.
func (a *blockAccumulator) Finish(index int) (call message.ToolRequestPart, ok bool, err error) {
	block, ok := a.blocks[index]
	if !ok {
		return message.ToolRequestPart{}, false, nil
	}
	delete(a.blocks, index)

	args := map[string]any{}
	if raw := block.args.String(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return message.ToolRequestPart{}, true, fmt.Errorf("tool call %q (index %d): reassembled arguments are not valid JSON: %w", block.name, index, err)
		}
	}
	return message.ToolRequestPart{
		CallID:    block.id,
		Name:      block.name,
		Arguments: args,
	}, true, nil
}
