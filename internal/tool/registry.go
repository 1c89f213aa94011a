// Package tool holds the tool contract and the registry that maps tool
// names to callables. The registry is populated at session setup and
// read-only afterwards, so it is safely shared across concurrent
// sessions.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chataigne-ai/chataigne/internal/message"
)

var (
	ErrDuplicateTool = errors.New("tool name already registered")
	ErrToolNotFound  = errors.New("tool is not registered")
	ErrNilHandler    = errors.New("tool handler is nil")
)

// Handler executes one tool call using validated arguments. Handlers may
// perform I/O; they must honour ctx cancellation and return rather than
// being forcibly killed.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Definition is one registered tool: its declared signature plus the
// executable capability.
type Definition struct {
	Declaration
	Handler Handler
}

// Registry stores definitions by tool name.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a definition, rejecting duplicates by name.
func (r *Registry) Register(d Definition) error {
	if d.Name == "" {
		return errors.New("tool name is empty")
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[d.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, d.Name)
	}
	r.defs[d.Name] = d
	return nil
}

// Resolve looks a definition up by name.
func (r *Registry) Resolve(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return d, nil
}

// Declarations returns every registered declaration, sorted by name for a
// deterministic outbound request.
func (r *Registry) Declarations() []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]Declaration, 0, len(r.defs))
	for _, d := range r.defs {
		decls = append(decls, d.Declaration)
	}
	sort.Slice(decls, func(i, j int) bool {
		return decls[i].Name < decls[j].Name
	})
	return decls
}

// Invoke runs one tool call and converts every tool-level failure into an
// error-flagged result part, so the model gets a chance to retry with
// corrected input instead of the turn aborting. The returned error is
// non-nil only for infrastructure failures, i.e. context cancellation.
func (r *Registry) Invoke(ctx context.Context, call message.ToolRequestPart) (message.ToolResultPart, error) {
	if err := ctx.Err(); err != nil {
		return message.ToolResultPart{}, err
	}

	d, err := r.Resolve(call.Name)
	if err != nil {
		return errorResult(call, fmt.Sprintf("Error: tool %q does not exist.\n\nAvailable tools:\n%s",
			call.Name, r.declarationListing())), nil
	}

	if err := ValidateArgs(call.Arguments, d.Parameters); err != nil {
		return errorResult(call, fmt.Sprintf("Error: invalid arguments for tool %q: %v\n\nExpected schema:\n%s",
			call.Name, err, declarationJSON(d.Declaration))), nil
	}

	content, err := d.Handler(ctx, call.Arguments)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return message.ToolResultPart{}, ctxErr
		}
		return errorResult(call, fmt.Sprintf("Error: %v", err)), nil
	}

	if err := ctx.Err(); err != nil {
		return message.ToolResultPart{}, err
	}

	return message.ToolResultPart{CallID: call.CallID, Name: call.Name, Content: content}, nil
}

func errorResult(call message.ToolRequestPart, content string) message.ToolResultPart {
	return message.ToolResultPart{
		CallID:  call.CallID,
		Name:    call.Name,
		Content: content,
		IsError: true,
	}
}
