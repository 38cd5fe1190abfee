package middleware

import (
	"context"

	"github.com/felixgeelhaar/unhcr-mcp/protocol"
)

// HandlerFunc is the signature for request handlers.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// HandleRequest calls f(ctx, req).
func (f HandlerFunc) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return f(ctx, req)
}

// Middleware wraps a handler with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middleware so that Chain(m1, m2)(h) runs m1, then m2, then h.
// Nil entries are skipped.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] == nil {
				continue
			}
			final = middlewares[i](final)
		}
		return final
	}
}
