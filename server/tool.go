package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/felixgeelhaar/unhcr-mcp/protocol"
	"github.com/felixgeelhaar/unhcr-mcp/schema"
)

var emptyObjectSchema = &schema.Schema{Type: "object"}

// ToolHandler executes a tool call with its raw JSON arguments.
// Returning a *protocol.Error reports a protocol failure to the caller;
// tool-level failures belong in an error-flagged result instead.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*protocol.ToolResult, error)

// Typed adapts a handler over a decoded input. parse runs before fn; its
// error is returned unchanged, so parse should return *protocol.Error values.
func Typed[T any](parse func(json.RawMessage) (T, error), fn func(ctx context.Context, input T) (*protocol.ToolResult, error)) ToolHandler {
	return func(ctx context.Context, args json.RawMessage) (*protocol.ToolResult, error) {
		input, err := parse(args)
		if err != nil {
			return nil, err
		}
		return fn(ctx, input)
	}
}

// Tool is a callable action exposed to clients.
type Tool struct {
	name        string
	description string
	inputSchema *schema.Schema
	annotations *ToolAnnotations
	handler     ToolHandler
}

// Name returns the tool name.
func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) info() ToolInfo {
	return ToolInfo{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.inputSchema,
		Annotations: t.annotations,
	}
}

// Execute runs the tool handler. A nil result is reported as an empty
// successful result.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (*protocol.ToolResult, error) {
	result, err := t.handler(ctx, args)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = protocol.NewToolResult()
	}
	return result, nil
}

// ToolBuilder provides a fluent API for building tools.
type ToolBuilder struct {
	tool   *Tool
	server *Server
	err    error
}

// Description sets the tool description.
func (b *ToolBuilder) Description(desc string) *ToolBuilder {
	b.tool.description = desc
	return b
}

// InputSchema sets the input schema.
func (b *ToolBuilder) InputSchema(s *schema.Schema) *ToolBuilder {
	if s == nil {
		b.err = errors.New("input schema must not be nil")
		return b
	}
	b.tool.inputSchema = s
	return b
}

// InputOf generates the input schema from the type of v.
func (b *ToolBuilder) InputOf(v any) *ToolBuilder {
	return b.InputSchema(schema.Generate(v))
}

// Handler sets the handler and registers the tool.
func (b *ToolBuilder) Handler(fn ToolHandler) *ToolBuilder {
	if b.err != nil {
		return b
	}
	if fn == nil {
		b.err = errors.New("handler must not be nil")
		return b
	}
	b.tool.handler = fn
	b.server.registerTool(b.tool)
	return b
}

// Err returns the first error encountered while building.
func (b *ToolBuilder) Err() error {
	return b.err
}
