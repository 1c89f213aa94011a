package tool

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Validator is implemented by request types that carry their own
// invariants beyond what the schema expresses.
type Validator interface {
	Validate() error
}

// Typed builds a Definition whose handler receives a decoded request
// struct instead of a raw argument map. Decoding uses mapstructure, so
// request fields opt into names via `mapstructure` tags.
func Typed[Req any](name, description string, params *Schema, run func(ctx context.Context, req Req) (string, error)) Definition {
	return Definition{
		Declaration: Declaration{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			var req Req
			if err := mapstructure.Decode(args, &req); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			if v, ok := any(&req).(Validator); ok {
				if err := v.Validate(); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
			}
			return run(ctx, req)
		},
	}
}
