package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/unhcr-mcp/protocol"
)

// InstrumentationName names the tracer and meter used by this module.
const InstrumentationName = "github.com/felixgeelhaar/unhcr-mcp"

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skipMethods    map[string]bool
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) {
		c.meterProvider = mp
	}
}

// WithServiceName sets the service.name attribute.
func WithServiceName(name string) OTelOption {
	return func(c *otelConfig) {
		c.serviceName = name
	}
}

// WithSkipMethods disables instrumentation for the given methods.
func WithSkipMethods(methods ...string) OTelOption {
	return func(c *otelConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// OTel returns middleware that opens a server span per request and records
// request count, latency and error count. Error-flagged tool results count
// as errors with the tool_error attribute set.
func OTel(opts ...OTelOption) Middleware {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "unhcr-mcp",
		skipMethods:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(InstrumentationName)
	meter := cfg.meterProvider.Meter(InstrumentationName)

	requests, _ := meter.Int64Counter("mcp.server.requests",
		metric.WithDescription("Total number of MCP requests"),
		metric.WithUnit("{request}"),
	)
	duration, _ := meter.Float64Histogram("mcp.server.request.duration",
		metric.WithDescription("Duration of MCP requests"),
		metric.WithUnit("ms"),
	)
	failures, _ := meter.Int64Counter("mcp.server.errors",
		metric.WithDescription("Total number of failed MCP requests"),
		metric.WithUnit("{error}"),
	)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.skipMethods[req.Method] {
				return next(ctx, req)
			}

			attrs := []attribute.KeyValue{
				attribute.String("mcp.method", req.Method),
				attribute.String("service.name", cfg.serviceName),
			}
			if tool := toolName(req); tool != "" {
				attrs = append(attrs, attribute.String("mcp.tool", tool))
			}

			ctx, span := tracer.Start(ctx, "mcp."+req.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			if id := RequestIDFromContext(ctx); id != "" {
				span.SetAttributes(attribute.String("mcp.request_id", id))
			}

			start := time.Now()
			requests.Add(ctx, 1, metric.WithAttributes(attrs...))

			resp, err := next(ctx, req)

			duration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))

			switch {
			case err != nil:
				pErr := protocol.AsError(err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.SetAttributes(attribute.Int("mcp.error_code", pErr.Code))
				failures.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.Int("mcp.error_code", pErr.Code))...))
			case resp != nil && resp.Error != nil:
				span.SetStatus(codes.Error, resp.Error.Message)
				span.SetAttributes(attribute.Int("mcp.error_code", resp.Error.Code))
				failures.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.Int("mcp.error_code", resp.Error.Code))...))
			default:
				if result, ok := toolResult(resp); ok && result.IsError {
					span.SetStatus(codes.Error, result.FirstText())
					span.SetAttributes(attribute.Bool("mcp.tool_error", true))
					failures.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.Bool("mcp.tool_error", true))...))
				} else {
					span.SetStatus(codes.Ok, "")
				}
			}

			return resp, err
		}
	}
}
