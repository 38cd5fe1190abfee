// Package middleware wraps MCP request handling with cross-cutting behavior.
//
// A [Middleware] wraps a [HandlerFunc]; [Chain] composes several so that the
// first listed runs outermost:
//
//	chain := middleware.Chain(
//	    middleware.Recover(),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	)
//
// Available middleware: [Recover], [RequestID], [Logging], [SizeLimit],
// [RateLimit] and [OTel]. [DefaultStack] returns the usual production set.
package middleware
