// Package unhcrmcp assembles the UNHCR population statistics MCP server.
//
// A configured server is a tool registry holding the unhcrPopstat tool, a
// middleware stack and one network transport:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	return unhcrmcp.Run(ctx, cfg, logger)
package unhcrmcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/unhcr-mcp/config"
	"github.com/felixgeelhaar/unhcr-mcp/middleware"
	"github.com/felixgeelhaar/unhcr-mcp/popstat"
	"github.com/felixgeelhaar/unhcr-mcp/protocol"
	"github.com/felixgeelhaar/unhcr-mcp/server"
	"github.com/felixgeelhaar/unhcr-mcp/transport"
	"github.com/felixgeelhaar/unhcr-mcp/unhcr"
)

// Server identity reported to clients.
const (
	Name    = "unhcr-mcp"
	Version = "1.0.0"
)

// NewServer creates the tool registry with the unhcrPopstat tool backed by
// fetcher.
func NewServer(fetcher popstat.Fetcher, logger middleware.Logger) (*server.Server, error) {
	srv := server.New(server.Info{Name: Name, Version: Version})
	if err := popstat.Register(srv, popstat.New(fetcher, logger)); err != nil {
		return nil, fmt.Errorf("register %s: %w", popstat.Name, err)
	}
	return srv, nil
}

// Middleware returns the request middleware stack for cfg: panic recovery,
// request IDs, telemetry, logging, size limiting and, when enabled, per-client
// rate limiting.
func Middleware(cfg config.Config, logger middleware.Logger, otelOpts ...middleware.OTelOption) []middleware.Middleware {
	if logger == nil {
		logger = middleware.NopLogger{}
	}
	otelOpts = append([]middleware.OTelOption{
		middleware.WithServiceName(Name),
		middleware.WithSkipMethods(protocol.MethodPing),
	}, otelOpts...)

	mws := []middleware.Middleware{
		middleware.Recover(),
		middleware.RequestID(),
		middleware.OTel(otelOpts...),
		middleware.Logging(logger),
		middleware.SizeLimit(cfg.MaxMessageSize, logger),
	}
	if cfg.RateLimit > 0 {
		mws = append(mws, middleware.RateLimit(cfg.RateLimit, cfg.RateBurst,
			middleware.WithRateLimitKeyFunc(middleware.ByClient),
			middleware.WithRateLimitLogger(logger),
		))
	}
	return mws
}

// NewTransport creates the transport selected by cfg.
func NewTransport(cfg config.Config, logger middleware.Logger) (transport.Transport, error) {
	cors := transport.CORSConfig{AllowOrigins: cfg.CORSOrigins()}

	switch cfg.Transport {
	case config.TransportSSE:
		return transport.NewSSE(cfg.Addr(),
			transport.WithSSECORS(cors),
			transport.WithSSEMaxBodyBytes(cfg.MaxMessageSize),
			transport.WithSSELogger(logger),
		), nil
	case config.TransportWebSocket:
		return transport.NewWebSocket(cfg.Addr(),
			transport.WithWebSocketCORS(cors),
			transport.WithWebSocketMaxMessageSize(cfg.MaxMessageSize),
			transport.WithWebSocketLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// Run builds the server from cfg and serves until ctx is canceled.
func Run(ctx context.Context, cfg config.Config, logger middleware.Logger) error {
	if logger == nil {
		logger = middleware.NopLogger{}
	}

	client, err := unhcr.NewClient(cfg.UpstreamURL, unhcr.WithUserAgent(Name+"/"+Version))
	if err != nil {
		return err
	}

	srv, err := NewServer(client, logger)
	if err != nil {
		return err
	}

	t, err := NewTransport(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("starting server",
		middleware.F("transport", string(cfg.Transport)),
		middleware.F("addr", t.Addr()),
		middleware.F("upstream", client.BaseURL()),
	)
	return t.Serve(ctx, server.NewHandler(srv, Middleware(cfg, logger)...))
}
