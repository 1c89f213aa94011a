package message

import (
	"encoding/json"
	"fmt"
)

// Wire envelope for one part. The type discriminator and field names match
// the original chataigne transcript format so existing snapshots restore.
type partEnvelope struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Base64 string `json:"base_64,omitempty"`

	// toolrequest / tooloutput
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Content    string         `json:"content,omitempty"`
	IsError    bool           `json:"is_error,omitempty"`
	Canceled   bool           `json:"canceled,omitempty"`
}

type messageEnvelope struct {
	ID    string         `json:"id"`
	Role  Role           `json:"role"`
	Parts []partEnvelope `json:"parts"`
}

// MarshalJSON encodes the message with a type discriminator per part.
func (m Message) MarshalJSON() ([]byte, error) {
	env := messageEnvelope{ID: m.ID, Role: m.Role, Parts: make([]partEnvelope, 0, len(m.Parts))}
	for _, p := range m.Parts {
		switch part := p.(type) {
		case TextPart:
			env.Parts = append(env.Parts, partEnvelope{Type: "text", Text: part.Text})
		case ImagePart:
			env.Parts = append(env.Parts, partEnvelope{Type: "image", Base64: part.Base64})
		case ToolRequestPart:
			env.Parts = append(env.Parts, partEnvelope{
				Type:       "toolrequest",
				ID:         part.CallID,
				Name:       part.Name,
				Parameters: part.Arguments,
			})
		case ToolResultPart:
			env.Parts = append(env.Parts, partEnvelope{
				Type:     "tooloutput",
				ID:       part.CallID,
				Name:     part.Name,
				Content:  part.Content,
				IsError:  part.IsError,
				Canceled: part.Canceled,
			})
		default:
			return nil, fmt.Errorf("marshal message %s: unknown part type %T", m.ID, p)
		}
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes a message produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var env messageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	parts := make([]Part, 0, len(env.Parts))
	for _, p := range env.Parts {
		switch p.Type {
		case "text":
			parts = append(parts, TextPart{Text: p.Text})
		case "image":
			parts = append(parts, ImagePart{Base64: p.Base64})
		case "toolrequest":
			parts = append(parts, ToolRequestPart{CallID: p.ID, Name: p.Name, Arguments: p.Parameters})
		case "tooloutput":
			parts = append(parts, ToolResultPart{
				CallID:   p.ID,
				Name:     p.Name,
				Content:  p.Content,
				IsError:  p.IsError,
				Canceled: p.Canceled,
			})
		default:
			return fmt.Errorf("unmarshal message %s: unknown part type %q", env.ID, p.Type)
		}
	}

	m.ID = env.ID
	m.Role = env.Role
	m.Parts = parts
	m.tokens = 0
	return nil
}
