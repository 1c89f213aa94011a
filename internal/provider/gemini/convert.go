package gemini

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	"github.com/chataigne-ai/chataigne/internal/message"
	"github.com/chataigne-ai/chataigne/internal/provider"
	"github.com/chataigne-ai/chataigne/internal/tool"
)

// toContents converts canonical messages to Gemini contents. Assistant
// maps to the "model" role; tool results become function responses in a
// user-role content.
func toContents(messages []message.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		content, err := toContent(m)
		if err != nil {
			return nil, err
		}
		if content != nil {
			contents = append(contents, content)
		}
	}
	return contents, nil
}

func toContent(m message.Message) (*genai.Content, error) {
	role := genai.RoleUser
	if m.Role == message.RoleAssistant {
		role = genai.RoleModel
	}

	parts := make([]*genai.Part, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch part := p.(type) {
		case message.TextPart:
			parts = append(parts, genai.NewPartFromText(part.Text))
		case message.ImagePart:
			data, err := base64.StdEncoding.DecodeString(part.Base64)
			if err != nil {
				return nil, fmt.Errorf("message %s: decode image: %w", m.ID, err)
			}
			parts = append(parts, genai.NewPartFromBytes(data, "image/png"))
		case message.ToolRequestPart:
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   part.CallID,
					Name: part.Name,
					Args: part.Arguments,
				},
			})
		case message.ToolResultPart:
			response := map[string]any{"content": part.Content}
			if part.IsError {
				response = map[string]any{"error": part.Content}
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       part.CallID,
					Name:     part.Name,
					Response: response,
				},
			})
		default:
			return nil, fmt.Errorf("message %s: unsupported part %T", m.ID, p)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return &genai.Content{Role: role, Parts: parts}, nil
}

func toConfig(req provider.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SafetySettings: defaultSafetySettings(),
	}

	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.System)},
		}
	}
	if len(req.Tools) > 0 {
		config.Tools = toTools(req.Tools)
	}

	if cfg := req.Config; cfg != nil {
		config.Temperature = cfg.Temperature
		config.TopP = cfg.TopP
		if cfg.TopK != nil {
			topK := float32(*cfg.TopK)
			config.TopK = &topK
		}
		if cfg.MaxTokens != nil {
			config.MaxOutputTokens = int32(*cfg.MaxTokens)
		}
		config.StopSequences = cfg.StopSequences
	}

	return config
}

// defaultSafetySettings disables blocking for all categories; filtering
// is the application's call, not the transport's.
func defaultSafetySettings() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdOff},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdOff},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdOff},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdOff},
	}
}

func toTools(decls []tool.Declaration) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		fd := &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
		}
		if d.Parameters != nil {
			fd.Parameters = toSchema(d.Parameters)
		}
		declarations = append(declarations, fd)
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func toSchema(s *tool.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:        toType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toSchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = toSchema(s.Items)
	}
	return out
}

func toType(t tool.Type) genai.Type {
	switch t {
	case tool.TypeString:
		return genai.TypeString
	case tool.TypeNumber:
		return genai.TypeNumber
	case tool.TypeInteger:
		return genai.TypeInteger
	case tool.TypeBoolean:
		return genai.TypeBoolean
	case tool.TypeArray:
		return genai.TypeArray
	case tool.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
