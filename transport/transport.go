package transport

import (
	"context"
	"encoding/json"

	"github.com/felixgeelhaar/unhcr-mcp/protocol"
)

// Handler processes incoming MCP requests.
type Handler interface {
	HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// HandlerFunc is an adapter to allow ordinary functions as handlers.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// HandleRequest calls f(ctx, req).
func (f HandlerFunc) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return f(ctx, req)
}

// Transport is a network binding for MCP.
type Transport interface {
	// Serve blocks until ctx is canceled or the listener fails.
	Serve(ctx context.Context, handler Handler) error

	// Addr returns the configured listen address.
	Addr() string
}

// dispatch decodes one JSON-RPC message, runs it through handler and returns
// the reply to send, or nil when none is due.
func dispatch(ctx context.Context, handler Handler, data []byte) *protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return protocol.NewErrorResponse(nil, protocol.NewParseError(err.Error()))
	}
	if req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return protocol.NewErrorResponse(req.ID, protocol.NewInvalidRequest("missing method"))
	}

	resp, err := handler.HandleRequest(ctx, &req)
	if req.IsNotification() {
		return nil
	}
	if err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.AsError(err))
	}
	if resp == nil {
		return protocol.NewErrorResponse(req.ID, protocol.NewInternalError("no response"))
	}
	return resp
}
