package transport

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access to the HTTP endpoints.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. A single "*" allows any origin.
	AllowOrigins []string

	// AllowMethods defaults to GET, POST, OPTIONS.
	AllowMethods []string

	// AllowHeaders defaults to Content-Type, Authorization, X-Request-ID.
	AllowHeaders []string

	// MaxAge is the preflight cache lifetime in seconds. Defaults to 86400.
	MaxAge int
}

// DefaultCORSConfig allows any origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{AllowOrigins: []string{"*"}}
}

func (c CORSConfig) withDefaults() CORSConfig {
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if c.MaxAge == 0 {
		c.MaxAge = 86400
	}
	return c
}

func (c CORSConfig) allowAll() bool {
	return len(c.AllowOrigins) == 1 && c.AllowOrigins[0] == "*"
}

// AllowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (c CORSConfig) AllowOrigin(origin string) string {
	if c.allowAll() {
		return "*"
	}
	if origin == "" {
		return ""
	}
	for _, o := range c.AllowOrigins {
		if o == origin {
			return origin
		}
	}
	return ""
}

// CheckOrigin reports whether a websocket upgrade from r is allowed.
// Requests without an Origin header are not browser requests and pass.
func (c CORSConfig) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || c.AllowOrigin(origin) != ""
}

// CORSHandler wraps next with CORS headers and preflight handling.
func CORSHandler(config CORSConfig, next http.Handler) http.Handler {
	config = config.withDefaults()
	methods := strings.Join(config.AllowMethods, ", ")
	headers := strings.Join(config.AllowHeaders, ", ")
	maxAge := strconv.Itoa(config.MaxAge)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allow := config.AllowOrigin(r.Header.Get("Origin"))
		if allow != "" {
			w.Header().Set("Access-Control-Allow-Origin", allow)
			if allow != "*" {
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
