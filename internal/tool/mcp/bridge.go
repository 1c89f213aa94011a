// Package mcp exposes the tools of a Model Context Protocol server as
// registry definitions, over the official go-sdk client.
package mcp

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/chataigne-ai/chataigne/internal/tool"
)

// Server is one connected MCP server. Safe for concurrent use; the SDK
// session serializes the wire.
type Server struct {
	name    string
	session *mcpsdk.ClientSession
}

// Dial connects to the server described by spec. "stdio://cmd args" or
// a bare command launches a subprocess; http(s) URLs use the streamable
// transport; "sse://" forces SSE.
func Dial(ctx context.Context, name, spec string) (*Server, error) {
	transport, err := buildTransport(ctx, spec)
	if err != nil {
		return nil, err
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "chataigne", Version: "dev"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp %s: connect: %w", name, err)
	}
	return &Server{name: name, session: session}, nil
}

// Tools lists the server's tools as registry definitions. Each handler
// proxies to CallTool on this session.
func (s *Server) Tools(ctx context.Context) ([]tool.Definition, error) {
	var defs []tool.Definition
	for t, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("mcp %s: list tools: %w", s.name, err)
		}
		defs = append(defs, s.definition(t))
	}
	return defs, nil
}

func (s *Server) definition(t *mcpsdk.Tool) tool.Definition {
	name := t.Name
	return tool.Definition{
		Declaration: tool.Declaration{
			Name:        name,
			Description: t.Description,
			Parameters:  fromJSONSchema(t.InputSchema),
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			result, err := s.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
			if err != nil {
				return "", fmt.Errorf("mcp %s: call %s: %w", s.name, name, err)
			}
			text := flattenContent(result.Content)
			if result.IsError {
				return "", fmt.Errorf("mcp %s: %s", s.name, text)
			}
			return text, nil
		},
	}
}

func (s *Server) Close() error {
	return s.session.Close()
}

func flattenContent(content []mcpsdk.Content) string {
	var parts []string
	for _, c := range content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func buildTransport(ctx context.Context, spec string) (mcpsdk.Transport, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("mcp: transport spec is empty")
	}

	lowered := strings.ToLower(spec)
	switch {
	case strings.HasPrefix(lowered, "stdio://"):
		return stdioTransport(ctx, spec[len("stdio://"):])
	case strings.HasPrefix(lowered, "sse://"):
		return &mcpsdk.SSEClientTransport{Endpoint: "https://" + spec[len("sse://"):]}, nil
	case strings.HasPrefix(lowered, "http://"), strings.HasPrefix(lowered, "https://"):
		return &mcpsdk.StreamableClientTransport{Endpoint: spec}, nil
	}
	return stdioTransport(ctx, spec)
}

func stdioTransport(ctx context.Context, cmdSpec string) (mcpsdk.Transport, error) {
	parts := strings.Fields(cmdSpec)
	if len(parts) == 0 {
		return nil, fmt.Errorf("mcp: stdio command is empty")
	}
	return &mcpsdk.CommandTransport{Command: exec.CommandContext(ctx, parts[0], parts[1:]...)}, nil
}
