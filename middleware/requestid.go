package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/unhcr-mcp/protocol"
)

type requestIDKey struct{}

// RequestID returns middleware that attaches a random request ID to the
// context unless one is already present.
func RequestID() Middleware {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator returns RequestID middleware using generator.
func RequestIDWithGenerator(generator func() string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, generator())
			}
			return next(ctx, req)
		}
	}
}

// RequestIDFromContext returns the request ID, or "" when unset.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID returns a context carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
