package middleware

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/unhcr-mcp/protocol"
)

// PanicHandler converts a recovered panic into a reply.
type PanicHandler func(ctx context.Context, req *protocol.Request, panicVal any) (*protocol.Response, error)

// Recover returns middleware that converts panics into internal errors.
func Recover() Middleware {
	return RecoverWithHandler(defaultPanicHandler)
}

// RecoverWithHandler returns middleware that passes recovered panics to handler.
func RecoverWithHandler(handler PanicHandler) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (resp *protocol.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp, err = handler(ctx, req, r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func defaultPanicHandler(_ context.Context, _ *protocol.Request, panicVal any) (*protocol.Response, error) {
	return nil, protocol.NewInternalError(fmt.Sprintf("panic: %v", panicVal))
}
