package mcp

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/chataigne-ai/chataigne/internal/tool"
)

// fromJSONSchema maps the SDK's JSON schema onto the declaration
// schema, keeping only the subset providers consume.
func fromJSONSchema(s *jsonschema.Schema) *tool.Schema {
	if s == nil {
		return nil
	}
	out := &tool.Schema{
		Type:        tool.Type(s.Type),
		Description: s.Description,
		Required:    s.Required,
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*tool.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = fromJSONSchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = fromJSONSchema(s.Items)
	}
	for _, v := range s.Enum {
		out.Enum = append(out.Enum, fmt.Sprint(v))
	}
	return out
}
