// Package builtin ships a small set of ready-made tools: arithmetic and
// clock helpers for demos, and a gitignore-aware file lister.
package builtin

import (
	"context"
	"strconv"

	"github.com/chataigne-ai/chataigne/internal/tool"
)

type addRequest struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
}

// Add returns the demo arithmetic tool.
func Add() tool.Definition {
	return tool.Typed("add", "Add two numbers.",
		&tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"x": {Type: tool.TypeNumber, Description: "first addend"},
				"y": {Type: tool.TypeNumber, Description: "second addend"},
			},
			Required: []string{"x", "y"},
		},
		func(_ context.Context, req addRequest) (string, error) {
			return strconv.FormatFloat(req.X+req.Y, 'f', -1, 64), nil
		},
	)
}
