// Package message is the canonical, provider-neutral representation of
// conversation turns, tool calls, and tool results. Adapters convert to
// and from their wire formats; nothing in here performs I/O.
package message

import "github.com/google/uuid"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one transcript entry. Equality is by ID; ordering is by
// position in the History that owns it.
type Message struct {
	ID    string
	Role  Role
	Parts []Part

	// Cached token count. Zero means "not counted yet"; a real count of
	// zero never occurs because empty messages are not appended.
	tokens int
}

// New creates a message with a fresh unique ID.
func New(role Role, parts ...Part) Message {
	return Message{
		ID:    uuid.NewString(),
		Role:  role,
		Parts: parts,
	}
}

// UserText is shorthand for a single-part user text message.
func UserText(text string) Message {
	return New(RoleUser, TextPart{Text: text})
}

// Equal reports whether two messages denote the same transcript entry.
func (m Message) Equal(other Message) bool {
	return m.ID == other.ID
}

// Tokens returns the token count of the message, computing it with count
// on first use and caching it afterwards.
func (m *Message) Tokens(count func(Message) int) int {
	if m.tokens == 0 {
		m.tokens = count(*m)
	}
	return m.tokens
}

// Text concatenates all text parts of the message.
func (m Message) Text() string {
	var s string
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			s += t.Text
		}
	}
	return s
}

// ToolRequests returns the tool-request parts in emission order.
func (m Message) ToolRequests() []ToolRequestPart {
	var reqs []ToolRequestPart
	for _, p := range m.Parts {
		if r, ok := p.(ToolRequestPart); ok {
			reqs = append(reqs, r)
		}
	}
	return reqs
}

// ToolResults returns the tool-result parts in emission order.
func (m Message) ToolResults() []ToolResultPart {
	var results []ToolResultPart
	for _, p := range m.Parts {
		if r, ok := p.(ToolResultPart); ok {
			results = append(results, r)
		}
	}
	return results
}
