package anthropic

import (
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/chataigne-ai/chataigne/internal/message"
	"github.com/chataigne-ai/chataigne/internal/provider"
	"github.com/chataigne-ai/chataigne/internal/tool"
)

// buildParams converts the canonical request into Messages API params.
// The API requires strictly alternating user/assistant roles: tool
// results ride as tool_result blocks inside user messages, and adjacent
// wire messages with the same role are merged into one.
func buildParams(model string, maxTokens int, req provider.Request) (sdk.MessageNewParams, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
	}

	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	for _, m := range req.Messages {
		encoded, err := encodeMessage(m)
		if err != nil {
			return sdk.MessageNewParams{}, err
		}
		params.Messages = appendMerged(params.Messages, encoded)
	}

	for _, d := range req.Tools {
		params.Tools = append(params.Tools, encodeTool(d))
	}

	if cfg := req.Config; cfg != nil {
		if cfg.Temperature != nil {
			params.Temperature = sdk.Float(float64(*cfg.Temperature))
		}
		if cfg.TopP != nil {
			params.TopP = sdk.Float(float64(*cfg.TopP))
		}
		if cfg.TopK != nil {
			params.TopK = sdk.Int(int64(*cfg.TopK))
		}
		if cfg.MaxTokens != nil && *cfg.MaxTokens > 0 {
			params.MaxTokens = int64(*cfg.MaxTokens)
		}
		params.StopSequences = cfg.StopSequences
	}

	return params, nil
}

func encodeMessage(m message.Message) (sdk.MessageParam, error) {
	switch m.Role {
	case message.RoleUser:
		var blocks []sdk.ContentBlockParamUnion
		for _, p := range m.Parts {
			switch part := p.(type) {
			case message.TextPart:
				blocks = append(blocks, sdk.NewTextBlock(part.Text))
			case message.ImagePart:
				blocks = append(blocks, sdk.NewImageBlockBase64("image/png", part.Base64))
			default:
				return sdk.MessageParam{}, fmt.Errorf("user message %s: unsupported part %T", m.ID, p)
			}
		}
		return sdk.MessageParam{Role: sdk.MessageParamRoleUser, Content: blocks}, nil

	case message.RoleAssistant:
		var blocks []sdk.ContentBlockParamUnion
		if text := m.Text(); text != "" {
			blocks = append(blocks, sdk.NewTextBlock(text))
		}
		for _, call := range m.ToolRequests() {
			blocks = append(blocks, sdk.ContentBlockParamUnion{
				OfToolUse: &sdk.ToolUseBlockParam{
					ID:    call.CallID,
					Name:  call.Name,
					Input: call.Arguments,
				},
			})
		}
		return sdk.MessageParam{Role: sdk.MessageParamRoleAssistant, Content: blocks}, nil

	case message.RoleTool:
		var blocks []sdk.ContentBlockParamUnion
		for _, result := range m.ToolResults() {
			block := &sdk.ToolResultBlockParam{
				ToolUseID: result.CallID,
				Content: []sdk.ToolResultBlockParamContentUnion{
					{OfText: &sdk.TextBlockParam{Text: result.Content}},
				},
			}
			if result.IsError {
				block.IsError = sdk.Bool(true)
			}
			blocks = append(blocks, sdk.ContentBlockParamUnion{OfToolResult: block})
		}
		return sdk.MessageParam{Role: sdk.MessageParamRoleUser, Content: blocks}, nil

	default:
		return sdk.MessageParam{}, fmt.Errorf("message %s: unsupported role %q", m.ID, m.Role)
	}
}

// appendMerged appends msg, folding it into the previous message when
// both carry the same wire role.
func appendMerged(msgs []sdk.MessageParam, msg sdk.MessageParam) []sdk.MessageParam {
	if len(msg.Content) == 0 {
		return msgs
	}
	if n := len(msgs); n > 0 && msgs[n-1].Role == msg.Role {
		msgs[n-1].Content = append(msgs[n-1].Content, msg.Content...)
		return msgs
	}
	return append(msgs, msg)
}

func encodeTool(d tool.Declaration) sdk.ToolUnionParam {
	schema := sdk.ToolInputSchemaParam{}
	if d.Parameters != nil {
		schema.Properties = d.Parameters.Properties
		schema.Required = d.Parameters.Required
	}
	param := &sdk.ToolParam{
		Name:        d.Name,
		InputSchema: schema,
	}
	if d.Description != "" {
		param.Description = sdk.String(d.Description)
	}
	return sdk.ToolUnionParam{OfTool: param}
}
