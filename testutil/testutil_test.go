package testutil_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/unhcr-mcp/middleware"
	"github.com/felixgeelhaar/unhcr-mcp/protocol"
	"github.com/felixgeelhaar/unhcr-mcp/server"
	"github.com/felixgeelhaar/unhcr-mcp/testutil"
)

func newServer(t *testing.T) *server.Server {
	t.Helper()

	srv := server.New(server.Info{Name: "test-server", Version: "1.0.0"})

	b := srv.Tool("greet").
		Description("Greet someone").
		Handler(func(ctx context.Context, args json.RawMessage) (*protocol.ToolResult, error) {
			var in struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, protocol.NewInvalidParams(err.Error())
			}
			return protocol.NewToolResult(protocol.Text("Hello, " + in.Name + "!")), nil
		})
	if err := b.Err(); err != nil {
		t.Fatal(err)
	}

	b = srv.Tool("error-tool").
		Description("Always fails").
		Handler(func(ctx context.Context, _ json.RawMessage) (*protocol.ToolResult, error) {
			return protocol.NewToolError("Error: intentional error"), nil
		})
	if err := b.Err(); err != nil {
		t.Fatal(err)
	}
	return srv
}

func TestTestClient_Tools(t *testing.T) {
	client := testutil.NewTestClient(t, newServer(t))

	t.Run("Initialize", func(t *testing.T) {
		result, err := client.Initialize()
		if err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}

		serverInfo, ok := result["serverInfo"].(map[string]any)
		if !ok {
			t.Fatal("expected serverInfo in result")
		}
		if serverInfo["name"] != "test-server" {
			t.Errorf("expected name 'test-server', got %v", serverInfo["name"])
		}
		if result["protocolVersion"] != protocol.MCPVersion {
			t.Errorf("expected protocol version %s, got %v", protocol.MCPVersion, result["protocolVersion"])
		}
	})

	t.Run("ListTools", func(t *testing.T) {
		tools, err := client.ListTools()
		if err != nil {
			t.Fatalf("ListTools failed: %v", err)
		}
		if len(tools) != 2 {
			t.Fatalf("expected 2 tools, got %d", len(tools))
		}
		if tools[0]["name"] != "error-tool" || tools[1]["name"] != "greet" {
			t.Errorf("tools not sorted by name: %v, %v", tools[0]["name"], tools[1]["name"])
		}
		if tools[1]["description"] != "Greet someone" {
			t.Errorf("expected description 'Greet someone', got %v", tools[1]["description"])
		}
	})

	t.Run("CallTool success", func(t *testing.T) {
		result, err := client.CallTool("greet", map[string]string{"name": "World"})
		if err != nil {
			t.Fatalf("CallTool failed: %v", err)
		}
		testutil.AssertToolText(t, result, "Hello, World!", false)
	})

	t.Run("CallTool error result", func(t *testing.T) {
		result, err := client.CallTool("error-tool", nil)
		if err != nil {
			t.Fatalf("CallTool failed: %v", err)
		}
		testutil.AssertToolText(t, result, "Error: intentional error", true)
	})

	t.Run("CallTool unknown tool", func(t *testing.T) {
		_, err := client.CallTool("nope", nil)
		testutil.AssertProtocolError(t, err, protocol.CodeNotFound)
	})

	t.Run("CallTool invalid params", func(t *testing.T) {
		_, err := client.CallTool("greet", []int{1})
		testutil.AssertProtocolError(t, err, protocol.CodeInvalidParams)
	})

	t.Run("Ping", func(t *testing.T) {
		if err := client.Ping(); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func TestTestClient_WithMiddleware(t *testing.T) {
	var seen []string
	record := func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			seen = append(seen, req.Method)
			return next(ctx, req)
		}
	}

	client := testutil.NewTestClient(t, newServer(t), record)
	if _, err := client.CallTool("greet", map[string]string{"name": "x"}); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 2 || seen[0] != protocol.MethodInitialize || seen[1] != protocol.MethodToolsCall {
		t.Errorf("middleware saw %v", seen)
	}
}

func TestTestClient_WithHandler(t *testing.T) {
	failing := middleware.HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		return nil, errors.New("handler failed")
	})

	client := testutil.NewTestClientWithHandler(t, failing)
	if err := client.Ping(); err == nil || err.Error() != "handler failed" {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestTestClient_WithContext(t *testing.T) {
	type key struct{}
	var got any
	handler := middleware.HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		got = ctx.Value(key{})
		return protocol.NewResponse(req.ID, map[string]any{}), nil
	})

	ctx := context.WithValue(context.Background(), key{}, "value")
	client := testutil.NewTestClientWithHandler(t, handler).WithContext(ctx)
	if err := client.Ping(); err != nil {
		t.Fatal(err)
	}
	if got != "value" {
		t.Errorf("context value = %v, want value", got)
	}
}
