package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/felixgeelhaar/unhcr-mcp/protocol"
	"github.com/felixgeelhaar/unhcr-mcp/schema"
)

func echoHandler(_ context.Context, args json.RawMessage) (*protocol.ToolResult, error) {
	return protocol.NewToolResult(protocol.Text(string(args))), nil
}

func TestServer_Tools(t *testing.T) {
	srv := New(Info{Name: "test", Version: "1.0.0"})

	srv.Tool("zeta").Handler(echoHandler)
	srv.Tool("alpha").
		Description("First tool").
		ReadOnly().
		Handler(echoHandler)

	tools := srv.Tools()
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "alpha" || tools[1].Name != "zeta" {
		t.Errorf("tools not sorted by name: %s, %s", tools[0].Name, tools[1].Name)
	}
	if tools[0].Description != "First tool" {
		t.Errorf("Description = %q, want %q", tools[0].Description, "First tool")
	}
	if s, ok := tools[1].InputSchema.(*schema.Schema); !ok || s.Type != "object" {
		t.Errorf("default input schema = %#v, want object schema", tools[1].InputSchema)
	}
}

func TestToolBuilder_Errors(t *testing.T) {
	srv := New(Info{Name: "test"})

	b := srv.Tool("broken").InputSchema(nil).Handler(echoHandler)
	if b.Err() == nil {
		t.Error("expected error for nil schema")
	}
	if _, ok := srv.GetTool("broken"); ok {
		t.Error("tool with builder error must not be registered")
	}

	b = srv.Tool("nil-handler").Handler(nil)
	if b.Err() == nil {
		t.Error("expected error for nil handler")
	}
}

func TestToolBuilder_Annotations(t *testing.T) {
	srv := New(Info{Name: "test"})
	srv.Tool("lookup").
		Title("Lookup").
		ReadOnly().
		Idempotent().
		OpenWorld().
		Handler(echoHandler)

	a := srv.Tools()[0].Annotations
	if a == nil {
		t.Fatal("expected annotations")
	}
	if a.Title != "Lookup" {
		t.Errorf("Title = %q", a.Title)
	}
	if a.ReadOnlyHint == nil || !*a.ReadOnlyHint {
		t.Error("ReadOnlyHint should be true")
	}
	if a.DestructiveHint == nil || *a.DestructiveHint {
		t.Error("DestructiveHint should be false")
	}
	if a.IdempotentHint == nil || !*a.IdempotentHint {
		t.Error("IdempotentHint should be true")
	}
	if a.OpenWorldHint == nil || !*a.OpenWorldHint {
		t.Error("OpenWorldHint should be true")
	}
}

func TestTyped(t *testing.T) {
	type input struct {
		N int `json:"n"`
	}
	parse := func(raw json.RawMessage) (input, error) {
		var in input
		if err := json.Unmarshal(raw, &in); err != nil {
			return in, protocol.NewInvalidParams(err.Error())
		}
		return in, nil
	}

	called := false
	h := Typed(parse, func(_ context.Context, in input) (*protocol.ToolResult, error) {
		called = true
		if in.N != 3 {
			t.Errorf("N = %d, want 3", in.N)
		}
		return nil, nil
	})

	if _, err := h(context.Background(), json.RawMessage(`{"n":3}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler not called")
	}

	called = false
	_, err := h(context.Background(), json.RawMessage(`{"n":"x"}`))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if called {
		t.Error("handler must not run when parsing fails")
	}
}

func TestTool_ExecuteNilResult(t *testing.T) {
	srv := New(Info{Name: "test"})
	srv.Tool("empty").Handler(func(context.Context, json.RawMessage) (*protocol.ToolResult, error) {
		return nil, nil
	})

	tool, _ := srv.GetTool("empty")
	result, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.IsError {
		t.Errorf("result = %+v, want empty success", result)
	}
}
