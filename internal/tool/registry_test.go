package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/chataigne-ai/chataigne/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addDefinition() Definition {
	return Typed("add", "Add two numbers", &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"x": {Type: TypeNumber},
			"y": {Type: TypeNumber},
		},
		Required: []string{"x", "y"},
	}, func(ctx context.Context, req struct {
		X float64 `mapstructure:"x"`
		Y float64 `mapstructure:"y"`
	}) (string, error) {
		return "3", nil
	})
}

func TestRegister_RejectsDuplicateNames(t *testing.T) {
	r, err := NewRegistry(addDefinition())
	require.NoError(t, err)

	err = r.Register(addDefinition())
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestResolve_UnknownTool(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	_, err = r.Resolve("nope")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestDeclarations_SortedByName(t *testing.T) {
	greet := Definition{
		Declaration: Declaration{Name: "greet", Description: "Greet someone"},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "hi", nil
		},
	}
	r, err := NewRegistry(greet, addDefinition())
	require.NoError(t, err)

	decls := r.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, "add", decls[0].Name)
	assert.Equal(t, "greet", decls[1].Name)
}

func TestInvoke_UnknownToolBecomesErrorResult(t *testing.T) {
	r, err := NewRegistry(addDefinition())
	require.NoError(t, err)

	res, err := r.Invoke(context.Background(), message.ToolRequestPart{CallID: "c1", Name: "subtract"})

	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "c1", res.CallID)
	assert.Contains(t, res.Content, `tool "subtract" does not exist`)
	assert.Contains(t, res.Content, "add", "listing should name the available tools")
}

func TestInvoke_InvalidArgumentsBecomeErrorResult(t *testing.T) {
	r, err := NewRegistry(addDefinition())
	require.NoError(t, err)

	res, err := r.Invoke(context.Background(), message.ToolRequestPart{
		CallID:    "c2",
		Name:      "add",
		Arguments: map[string]any{"x": "one"},
	})

	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "invalid arguments")
	assert.Contains(t, res.Content, "Expected schema")
}

func TestInvoke_HandlerErrorBecomesErrorResult(t *testing.T) {
	failing := Definition{
		Declaration: Declaration{Name: "boom", Description: "Always fails"},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("disk on fire")
		},
	}
	r, err := NewRegistry(failing)
	require.NoError(t, err)

	res, err := r.Invoke(context.Background(), message.ToolRequestPart{CallID: "c3", Name: "boom"})

	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "disk on fire")
}

func TestInvoke_Success(t *testing.T) {
	r, err := NewRegistry(addDefinition())
	require.NoError(t, err)

	res, err := r.Invoke(context.Background(), message.ToolRequestPart{
		CallID:    "c4",
		Name:      "add",
		Arguments: map[string]any{"x": 1.0, "y": 2.0},
	})

	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "3", res.Content)
	assert.Equal(t, "add", res.Name)
}

func TestInvoke_ContextCancellationIsInfrastructure(t *testing.T) {
	r, err := NewRegistry(addDefinition())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Invoke(ctx, message.ToolRequestPart{CallID: "c5", Name: "add"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateArgs(t *testing.T) {
	schema := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"name":  {Type: TypeString},
			"count": {Type: TypeInteger},
			"deep":  {Type: TypeObject},
		},
		Required: []string{"name"},
	}

	assert.NoError(t, ValidateArgs(map[string]any{"name": "x"}, schema))
	assert.NoError(t, ValidateArgs(map[string]any{"name": "x", "count": 3.0}, schema))
	assert.NoError(t, ValidateArgs(map[string]any{"name": "x", "deep": map[string]any{}}, schema))
	assert.NoError(t, ValidateArgs(map[string]any{"name": "x", "extra": "ignored"}, schema))

	assert.Error(t, ValidateArgs(map[string]any{}, schema), "missing required")
	assert.Error(t, ValidateArgs(map[string]any{"name": 7.0}, schema), "wrong type")
	assert.Error(t, ValidateArgs(map[string]any{"name": "x", "count": 3.5}, schema), "fractional integer")
	assert.NoError(t, ValidateArgs(nil, nil))
}
