package protocol

import "context"

// Well-known request metadata keys set by the transports.
const (
	MetaTransport  = "transport"
	MetaSessionID  = "session_id"
	MetaRemoteAddr = "remote_addr"
)

type requestMetaKey struct{}

// RequestMeta carries transport-level information about a request.
type RequestMeta map[string]string

// ContextWithRequestMeta returns a context carrying meta.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the request metadata, or nil.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// GetRequestMeta returns a single metadata value, or "" when unset.
func GetRequestMeta(ctx context.Context, key string) string {
	return RequestMetaFromContext(ctx)[key]
}
