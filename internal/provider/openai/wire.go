package openai

import (
	"encoding/json"
	"fmt"

	"github.com/chataigne-ai/chataigne/internal/message"
	"github.com/chataigne-ai/chataigne/internal/provider"
	"github.com/chataigne-ai/chataigne/internal/tool"
)

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Tools         []chatTool     `json:"tools,omitempty"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
	Temperature   *float32       `json:"temperature,omitempty"`
	TopP          *float32       `json:"top_p,omitempty"`
	MaxTokens     *int           `json:"max_completion_tokens,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Parameters  *tool.Schema `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// buildRequest converts the canonical request into the chat-completions
// shape. An assistant message carries its text and its tool calls in one
// wire message; each tool result becomes its own role=tool message.
func buildRequest(model string, req provider.Request) (chatRequest, error) {
	out := chatRequest{
		Model:         model,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}

	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: req.System})
	}

	for _, m := range req.Messages {
		encoded, err := encodeMessage(m)
		if err != nil {
			return chatRequest{}, err
		}
		out.Messages = append(out.Messages, encoded...)
	}

	for _, d := range req.Tools {
		out.Tools = append(out.Tools, chatTool{
			Type: "function",
			Function: chatToolFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}

	if cfg := req.Config; cfg != nil {
		out.Temperature = cfg.Temperature
		out.TopP = cfg.TopP
		out.MaxTokens = cfg.MaxTokens
		out.Stop = cfg.StopSequences
	}

	return out, nil
}

func encodeMessage(m message.Message) ([]chatMessage, error) {
	switch m.Role {
	case message.RoleUser:
		var parts []contentPart
		for _, p := range m.Parts {
			switch part := p.(type) {
			case message.TextPart:
				parts = append(parts, contentPart{Type: "text", Text: part.Text})
			case message.ImagePart:
				parts = append(parts, contentPart{
					Type:     "image_url",
					ImageURL: &imageURL{URL: "data:image/png;base64," + part.Base64},
				})
			default:
				return nil, fmt.Errorf("user message %s: unsupported part %T", m.ID, p)
			}
		}
		return []chatMessage{{Role: "user", Content: parts}}, nil

	case message.RoleAssistant:
		msg := chatMessage{Role: "assistant"}
		if text := m.Text(); text != "" {
			msg.Content = text
		}
		for _, call := range m.ToolRequests() {
			args, err := json.Marshal(call.Arguments)
			if err != nil {
				return nil, fmt.Errorf("assistant message %s: marshal arguments: %w", m.ID, err)
			}
			msg.ToolCalls = append(msg.ToolCalls, chatToolCall{
				ID:       call.CallID,
				Type:     "function",
				Function: functionCall{Name: call.Name, Arguments: string(args)},
			})
		}
		return []chatMessage{msg}, nil

	case message.RoleTool:
		var msgs []chatMessage
		for _, result := range m.ToolResults() {
			msgs = append(msgs, chatMessage{
				Role:       "tool",
				ToolCallID: result.CallID,
				Content:    result.Content,
			})
		}
		return msgs, nil

	default:
		return nil, fmt.Errorf("message %s: unsupported role %q", m.ID, m.Role)
	}
}
