package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/unhcr-mcp/middleware"
	"github.com/felixgeelhaar/unhcr-mcp/protocol"
)

// SSE serves MCP over server-sent events.
type SSE struct {
	listenState

	addr         string
	streamPath   string
	messagePath  string
	keepAlive    time.Duration
	maxBodyBytes int64
	cors         CORSConfig
	logger       middleware.Logger

	sessionsMu sync.RWMutex
	sessions   map[string]*sseSession
	inflight   sync.WaitGroup
}

type sseSession struct {
	id       string
	ctx      context.Context
	meta     protocol.RequestMeta
	messages chan []byte
}

// send queues data for the stream. It reports false once the stream is gone.
func (s *sseSession) send(data []byte) bool {
	select {
	case s.messages <- data:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// SSEOption configures the SSE transport.
type SSEOption func(*SSE)

// WithSSEPaths sets the stream and message endpoint paths.
func WithSSEPaths(stream, message string) SSEOption {
	return func(s *SSE) {
		s.streamPath = stream
		s.messagePath = message
	}
}

// WithSSEKeepAlive sets the interval between keep-alive comments.
func WithSSEKeepAlive(d time.Duration) SSEOption {
	return func(s *SSE) {
		s.keepAlive = d
	}
}

// WithSSEMaxBodyBytes limits the size of a posted message.
func WithSSEMaxBodyBytes(n int64) SSEOption {
	return func(s *SSE) {
		s.maxBodyBytes = n
	}
}

// WithSSECORS sets the CORS policy.
func WithSSECORS(cfg CORSConfig) SSEOption {
	return func(s *SSE) {
		s.cors = cfg
	}
}

// WithSSELogger sets the logger for session lifecycle events.
func WithSSELogger(l middleware.Logger) SSEOption {
	return func(s *SSE) {
		s.logger = l
	}
}

// NewSSE creates an SSE transport listening on addr.
func NewSSE(addr string, opts ...SSEOption) *SSE {
	s := &SSE{
		addr:         addr,
		streamPath:   "/sse",
		messagePath:  "/messages",
		keepAlive:    15 * time.Second,
		maxBodyBytes: 4 * middleware.MB,
		cors:         DefaultCORSConfig(),
		logger:       middleware.NopLogger{},
		sessions:     make(map[string]*sseSession),
	}
	s.ready = make(chan struct{})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the configured address.
func (s *SSE) Addr() string {
	return s.addr
}

// Serve listens and serves until ctx is canceled.
func (s *SSE) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("sse transport listening", middleware.F("addr", s.addr),
		middleware.F("stream", s.streamPath), middleware.F("messages", s.messagePath))

	err := serveHTTP(ctx, s.addr, s.Handler(handler), &s.listenState, nil)
	s.inflight.Wait()
	return err
}

// Handler returns the HTTP handler serving the SSE endpoints.
func (s *SSE) Handler(handler Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc(s.streamPath, s.handleStream)
	mux.HandleFunc(s.messagePath, func(w http.ResponseWriter, r *http.Request) {
		s.handleMessage(w, r, handler)
	})
	return CORSHandler(s.cors, mux)
}

// SessionCount returns the number of open streams.
func (s *SSE) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

func (s *SSE) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sess := s.openSession(r)
	defer s.closeSession(sess)

	fmt.Fprintf(w, "event: endpoint\ndata: %s?sessionId=%s\n\n", s.messagePath, sess.id)
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-sess.ctx.Done():
			return
		case msg := <-sess.messages:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func (s *SSE) openSession(r *http.Request) *sseSession {
	sess := &sseSession{
		id:  uuid.NewString(),
		ctx: r.Context(),
		meta: protocol.RequestMeta{
			protocol.MetaTransport:  "sse",
			protocol.MetaRemoteAddr: r.RemoteAddr,
		},
		messages: make(chan []byte, 16),
	}
	sess.meta[protocol.MetaSessionID] = sess.id

	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()

	s.logger.Info("sse session opened",
		middleware.F("session_id", sess.id), middleware.F("remote_addr", r.RemoteAddr))
	return sess
}

func (s *SSE) closeSession(sess *sseSession) {
	s.sessionsMu.Lock()
	delete(s.sessions, sess.id)
	s.sessionsMu.Unlock()

	s.logger.Info("sse session closed", middleware.F("session_id", sess.id))
}

func (s *SSE) session(id string) (*sseSession, bool) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *SSE) handleMessage(w http.ResponseWriter, r *http.Request, handler Handler) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sess, ok := s.session(r.URL.Query().Get("sessionId"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read message", http.StatusBadRequest)
		return
	}
	if !json.Valid(body) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(protocol.NewErrorResponse(nil, protocol.NewParseError("invalid JSON")))
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, "Accepted")

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx := protocol.ContextWithRequestMeta(sess.ctx, sess.meta)
		resp := dispatch(ctx, handler, body)
		if resp == nil {
			return
		}

		data, err := json.Marshal(resp)
		if err != nil {
			s.logger.Error("failed to encode response",
				middleware.F("session_id", sess.id), middleware.F("error", err.Error()))
			return
		}
		if !sess.send(data) {
			s.logger.Debug("session closed before reply", middleware.F("session_id", sess.id))
		}
	}()
}
