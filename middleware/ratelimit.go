package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/unhcr-mcp/protocol"
)

// KeyFunc derives the rate limit bucket for a request.
type KeyFunc func(ctx context.Context, req *protocol.Request) string

// RateLimitOption configures the rate limiter.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	keyFunc KeyFunc
	logger  Logger
}

// WithRateLimitKeyFunc sets the bucket key function.
func WithRateLimitKeyFunc(fn KeyFunc) RateLimitOption {
	return func(c *rateLimitConfig) {
		c.keyFunc = fn
	}
}

// WithRateLimitLogger logs rejected requests to l.
func WithRateLimitLogger(l Logger) RateLimitOption {
	return func(c *rateLimitConfig) {
		c.logger = l
	}
}

// ByClient keys requests by transport session, falling back to the remote
// address.
func ByClient(ctx context.Context, _ *protocol.Request) string {
	if id := protocol.GetRequestMeta(ctx, protocol.MetaSessionID); id != "" {
		return id
	}
	if addr := protocol.GetRequestMeta(ctx, protocol.MetaRemoteAddr); addr != "" {
		return addr
	}
	return "global"
}

// RateLimit returns token bucket middleware allowing rate requests per
// second with the given burst. Requests share one bucket unless a key
// function is configured.
func RateLimit(rate, burst int, opts ...RateLimitOption) Middleware {
	cfg := &rateLimitConfig{
		keyFunc: func(context.Context, *protocol.Request) string { return "global" },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			// Lifecycle traffic is never throttled.
			if req.IsNotification() || req.Method == protocol.MethodPing {
				return next(ctx, req)
			}

			key := cfg.keyFunc(ctx, req)
			if !limiter.Allow(ctx, key) {
				if cfg.logger != nil {
					cfg.logger.Warn("rate limit exceeded", F("method", req.Method), F("key", key))
				}
				return nil, protocol.NewRateLimited("rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
