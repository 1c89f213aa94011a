package message

// History is the append-only ordered sequence of messages in one session.
// Trimming for budget purposes produces a view; the canonical sequence is
// never mutated. History is not safe for concurrent use; the owning
// Session serialises access.
type History struct {
	msgs []Message
}

// NewHistory creates a history seeded with the given messages.
func NewHistory(msgs ...Message) *History {
	return &History{msgs: msgs}
}

// Append adds messages to the end of the history.
func (h *History) Append(msgs ...Message) {
	h.msgs = append(h.msgs, msgs...)
}

// Len returns the number of messages.
func (h *History) Len() int {
	return len(h.msgs)
}

// At returns a pointer to the message at index i. The pointer is valid
// until the next Append; callers must not reorder or remove entries.
func (h *History) At(i int) *Message {
	return &h.msgs[i]
}

// View returns a read-only snapshot of the full sequence.
func (h *History) View() []Message {
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Last returns the most recent message, or nil if the history is empty.
func (h *History) Last() *Message {
	if len(h.msgs) == 0 {
		return nil
	}
	return &h.msgs[len(h.msgs)-1]
}

// UnresolvedRequests returns tool requests that have no matching tool
// result anywhere in the history. A consistent transcript has none.
func (h *History) UnresolvedRequests() []ToolRequestPart {
	resolved := make(map[string]bool)
	for _, m := range h.msgs {
		for _, r := range m.ToolResults() {
			resolved[r.CallID] = true
		}
	}

	var open []ToolRequestPart
	for _, m := range h.msgs {
		for _, r := range m.ToolRequests() {
			if !resolved[r.CallID] {
				open = append(open, r)
			}
		}
	}
	return open
}
