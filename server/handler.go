package server

import (
	"context"
	"encoding/json"

	"github.com/felixgeelhaar/unhcr-mcp/middleware"
	"github.com/felixgeelhaar/unhcr-mcp/protocol"
)

// Handler dispatches MCP requests to a Server.
type Handler struct {
	srv    *Server
	handle middleware.HandlerFunc
}

// NewHandler creates a dispatcher for srv wrapped in the given middleware,
// outermost first.
func NewHandler(srv *Server, mws ...middleware.Middleware) *Handler {
	h := &Handler{srv: srv}
	h.handle = middleware.Chain(mws...)(h.dispatch)
	return h
}

// HandleRequest handles one request. Notifications yield a nil response.
func (h *Handler) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return h.handle(ctx, req)
}

func (h *Handler) dispatch(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	switch req.Method {
	case protocol.MethodInitialize:
		return h.handleInitialize(req)
	case protocol.MethodPing:
		return protocol.NewResponse(req.ID, struct{}{}), nil
	case protocol.MethodToolsList:
		return h.handleToolsList(req)
	case protocol.MethodToolsCall:
		return h.handleToolsCall(ctx, req)
	case protocol.MethodInitialized, protocol.MethodCancelled:
		return nil, nil
	default:
		if req.IsNotification() {
			return nil, nil
		}
		return nil, protocol.NewMethodNotFound(req.Method)
	}
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Info           `json:"serverInfo"`
}

func (h *Handler) handleInitialize(req *protocol.Request) (*protocol.Response, error) {
	return protocol.NewResponse(req.ID, initializeResult{
		ProtocolVersion: protocol.MCPVersion,
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
		ServerInfo: h.srv.Info(),
	}), nil
}

func (h *Handler) handleToolsList(req *protocol.Request) (*protocol.Response, error) {
	return protocol.NewResponse(req.ID, map[string]any{
		"tools": h.srv.Tools(),
	}), nil
}

func (h *Handler) handleToolsCall(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if len(req.Params) == 0 {
		return nil, protocol.NewInvalidParams("missing params")
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewInvalidParams(err.Error())
	}
	if params.Name == "" {
		return nil, protocol.NewInvalidParams("missing tool name")
	}

	tool, ok := h.srv.GetTool(params.Name)
	if !ok {
		return nil, protocol.NewNotFound("tool not found: " + params.Name)
	}

	result, err := tool.Execute(ctx, params.Arguments)
	if err != nil {
		return nil, protocol.AsError(err)
	}
	return protocol.NewResponse(req.ID, result), nil
}
