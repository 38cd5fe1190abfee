// Package testutil provides an in-process MCP client for tests.
//
// The client sends requests straight to a handler and decodes replies the
// way a remote client sees them on the wire:
//
//	func TestPopstat(t *testing.T) {
//	    srv := server.New(server.Info{Name: "test", Version: "1.0.0"})
//	    popstat.Register(srv, popstat.New(fetcher, nil))
//
//	    tc := testutil.NewTestClient(t, srv)
//	    result, err := tc.CallTool("unhcrPopstat", map[string]any{"year": "2022"})
//	    require.NoError(t, err)
//	    assert.False(t, result.IsError)
//	}
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/felixgeelhaar/unhcr-mcp/middleware"
	"github.com/felixgeelhaar/unhcr-mcp/protocol"
	"github.com/felixgeelhaar/unhcr-mcp/server"
)

// Handler handles a single MCP request.
type Handler interface {
	HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// TestClient is a test client for MCP servers.
type TestClient struct {
	t       testing.TB
	handler Handler
	ctx     context.Context
	reqID   int64
	mu      sync.Mutex
}

// NewTestClient creates a client for srv, wrapped in mws, and initializes it.
func NewTestClient(t testing.TB, srv *server.Server, mws ...middleware.Middleware) *TestClient {
	t.Helper()

	tc := NewTestClientWithHandler(t, server.NewHandler(srv, mws...))
	if _, err := tc.Initialize(); err != nil {
		t.Fatalf("failed to initialize server: %v", err)
	}
	return tc
}

// NewTestClientWithHandler creates a client for an arbitrary handler.
// This is useful for testing middleware.
func NewTestClientWithHandler(t testing.TB, handler Handler) *TestClient {
	t.Helper()
	return &TestClient{
		t:       t,
		handler: handler,
		ctx:     context.Background(),
	}
}

// WithContext returns a copy of the client that sends requests with ctx.
func (tc *TestClient) WithContext(ctx context.Context) *TestClient {
	return &TestClient{t: tc.t, handler: tc.handler, ctx: ctx}
}

func (tc *TestClient) nextID() json.RawMessage {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.reqID++
	return json.RawMessage(fmt.Sprintf("%d", tc.reqID))
}

// SendRequest sends a raw request and returns the response.
func (tc *TestClient) SendRequest(method string, params any) (*protocol.Response, error) {
	tc.t.Helper()

	var paramsData json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsData = data
	}

	return tc.handler.HandleRequest(tc.ctx, &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      tc.nextID(),
		Method:  method,
		Params:  paramsData,
	})
}

// call sends a request and decodes its result into v.
func (tc *TestClient) call(method string, params, v any) error {
	tc.t.Helper()

	resp, err := tc.SendRequest(method, params)
	if err != nil {
		return err
	}
	if resp == nil {
		return fmt.Errorf("no response to %s", method)
	}
	if resp.Error != nil {
		return resp.Error
	}

	data, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unexpected result %s: %w", data, err)
	}
	return nil
}

// Initialize sends an initialize request to the server.
func (tc *TestClient) Initialize() (map[string]any, error) {
	tc.t.Helper()

	var result map[string]any
	err := tc.call(protocol.MethodInitialize, map[string]any{
		"protocolVersion": protocol.MCPVersion,
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "1.0.0",
		},
	}, &result)
	return result, err
}

// ListTools lists all available tools in their wire form.
func (tc *TestClient) ListTools() ([]map[string]any, error) {
	tc.t.Helper()

	var result struct {
		Tools []map[string]any `json:"tools"`
	}
	if err := tc.call(protocol.MethodToolsList, nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool calls a tool and returns its result envelope. Protocol failures
// are returned as *protocol.Error.
func (tc *TestClient) CallTool(name string, args any) (*protocol.ToolResult, error) {
	tc.t.Helper()

	var result protocol.ToolResult
	err := tc.call(protocol.MethodToolsCall, map[string]any{
		"name":      name,
		"arguments": args,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CallToolRaw calls a tool and returns the raw response.
func (tc *TestClient) CallToolRaw(name string, args any) (*protocol.Response, error) {
	tc.t.Helper()

	return tc.SendRequest(protocol.MethodToolsCall, map[string]any{
		"name":      name,
		"arguments": args,
	})
}

// Ping sends a ping request.
func (tc *TestClient) Ping() error {
	tc.t.Helper()

	var result map[string]any
	return tc.call(protocol.MethodPing, nil, &result)
}

// AssertToolText fails the test unless result carries exactly text with the
// expected error flag.
func AssertToolText(t testing.TB, result *protocol.ToolResult, text string, isError bool) {
	t.Helper()

	if result == nil {
		t.Fatal("expected tool result, got nil")
	}
	if len(result.Content) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(result.Content))
	}
	if got := result.Content[0]; got.Type != protocol.ContentTypeText || got.Text != text {
		t.Errorf("content = %+v, want text %q", got, text)
	}
	if result.IsError != isError {
		t.Errorf("isError = %v, want %v", result.IsError, isError)
	}
}

// AssertProtocolError fails the test unless err is a protocol error with code.
func AssertProtocolError(t testing.TB, err error, code int) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected protocol error %d, got nil", code)
	}
	pErr := protocol.AsError(err)
	if pErr.Code != code {
		t.Errorf("error code = %d, want %d (%v)", pErr.Code, code, err)
	}
}
