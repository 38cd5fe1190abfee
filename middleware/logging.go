package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/unhcr-mcp/protocol"
)

// Logger is the interface for structured logging.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logging returns middleware that logs every request with its method,
// duration and request ID. Failed requests are logged at error level.
func Logging(logger Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			fields := []Field{
				F("method", req.Method),
				F("duration", time.Since(start)),
			}
			if id := RequestIDFromContext(ctx); id != "" {
				fields = append(fields, F("request_id", id))
			}
			if session := protocol.GetRequestMeta(ctx, protocol.MetaSessionID); session != "" {
				fields = append(fields, F("session_id", session))
			}
			if tool := toolName(req); tool != "" {
				fields = append(fields, F("tool", tool))
			}

			switch {
			case err != nil:
				logger.Error("request failed", append(fields, F("error", err.Error()))...)
			case resp != nil && resp.Error != nil:
				logger.Error("request failed", append(fields, F("error", resp.Error.Message))...)
			default:
				if result, ok := toolResult(resp); ok && result.IsError {
					fields = append(fields, F("tool_error", true))
				}
				logger.Info("request completed", fields...)
			}

			return resp, err
		}
	}
}

// toolName extracts the tool name of a tools/call request.
func toolName(req *protocol.Request) string {
	if req.Method != protocol.MethodToolsCall || len(req.Params) == 0 {
		return ""
	}
	var params struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(req.Params, &params)
	return params.Name
}

func toolResult(resp *protocol.Response) (*protocol.ToolResult, bool) {
	if resp == nil {
		return nil, false
	}
	result, ok := resp.Result.(*protocol.ToolResult)
	return result, ok && result != nil
}

// NopLogger discards all log entries.
type NopLogger struct{}

func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Warn(string, ...Field)  {}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Info(msg string, fields ...Field)  { s.l.Info(msg, attrs(fields)...) }
func (s *SlogLogger) Error(msg string, fields ...Field) { s.l.Error(msg, attrs(fields)...) }
func (s *SlogLogger) Debug(msg string, fields ...Field) { s.l.Debug(msg, attrs(fields)...) }
func (s *SlogLogger) Warn(msg string, fields ...Field)  { s.l.Warn(msg, attrs(fields)...) }

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}
