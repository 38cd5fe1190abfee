package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/unhcr-mcp/middleware"
	"github.com/felixgeelhaar/unhcr-mcp/protocol"
)

// WebSocket serves MCP over websocket connections.
type WebSocket struct {
	listenState

	addr           string
	upgrader       websocket.Upgrader
	cors           CORSConfig
	readTimeout    time.Duration
	writeTimeout   time.Duration
	maxMessageSize int64
	logger         middleware.Logger

	clientsMu sync.Mutex
	clients   map[*wsClient]struct{}
}

// wsClient serializes writes to one connection.
type wsClient struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

// WebSocketOption configures the WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithWebSocketReadTimeout sets how long a connection may stay silent,
// pongs included, before it is dropped.
func WithWebSocketReadTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.readTimeout = d
	}
}

// WithWebSocketWriteTimeout sets the deadline for each write.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.writeTimeout = d
	}
}

// WithWebSocketMaxMessageSize limits the size of an inbound message.
func WithWebSocketMaxMessageSize(n int64) WebSocketOption {
	return func(ws *WebSocket) {
		ws.maxMessageSize = n
	}
}

// WithWebSocketCORS sets the CORS policy, which also governs the origin
// check on upgrade.
func WithWebSocketCORS(cfg CORSConfig) WebSocketOption {
	return func(ws *WebSocket) {
		ws.cors = cfg
	}
}

// WithWebSocketLogger sets the logger for connection lifecycle events.
func WithWebSocketLogger(l middleware.Logger) WebSocketOption {
	return func(ws *WebSocket) {
		ws.logger = l
	}
}

// NewWebSocket creates a WebSocket transport listening on addr.
func NewWebSocket(addr string, opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cors:           DefaultCORSConfig(),
		readTimeout:    60 * time.Second,
		writeTimeout:   10 * time.Second,
		maxMessageSize: 4 * middleware.MB,
		logger:         middleware.NopLogger{},
		clients:        make(map[*wsClient]struct{}),
	}
	ws.ready = make(chan struct{})
	for _, opt := range opts {
		opt(ws)
	}
	ws.upgrader.CheckOrigin = ws.cors.CheckOrigin
	return ws
}

// Addr returns the configured address.
func (ws *WebSocket) Addr() string {
	return ws.addr
}

// Serve listens and serves until ctx is canceled. Open connections receive
// a close frame on shutdown.
func (ws *WebSocket) Serve(ctx context.Context, handler Handler) error {
	ws.logger.Info("websocket transport listening", middleware.F("addr", ws.addr))
	return serveHTTP(ctx, ws.addr, ws.Handler(handler), &ws.listenState, ws.closeAllClients)
}

// Handler returns the HTTP handler that upgrades connections.
func (ws *WebSocket) Handler(handler Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws.handleConnection(w, r, handler)
	})
	return CORSHandler(ws.cors, mux)
}

func (ws *WebSocket) handleConnection(w http.ResponseWriter, r *http.Request, handler Handler) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warn("websocket upgrade failed",
			middleware.F("remote_addr", r.RemoteAddr), middleware.F("error", err.Error()))
		return
	}

	client := &wsClient{conn: conn, writeTimeout: ws.writeTimeout}
	ws.addClient(client)

	meta := protocol.RequestMeta{
		protocol.MetaTransport:  "ws",
		protocol.MetaSessionID:  uuid.NewString(),
		protocol.MetaRemoteAddr: r.RemoteAddr,
	}
	ctx, cancel := context.WithCancel(protocol.ContextWithRequestMeta(r.Context(), meta))
	var pending sync.WaitGroup

	defer func() {
		cancel()
		pending.Wait()
		ws.removeClient(client)
		_ = conn.Close()
		ws.logger.Info("websocket connection closed", middleware.F("session_id", meta[protocol.MetaSessionID]))
	}()

	ws.logger.Info("websocket connection opened",
		middleware.F("session_id", meta[protocol.MetaSessionID]), middleware.F("remote_addr", r.RemoteAddr))

	if ws.maxMessageSize > 0 {
		conn.SetReadLimit(ws.maxMessageSize)
	}
	if ws.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(ws.readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(ws.readTimeout))
		})
		go client.keepAlive(ctx, ws.readTimeout*9/10)
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Debug("websocket read failed", middleware.F("error", err.Error()))
			}
			return
		}
		if ws.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(ws.readTimeout))
		}

		pending.Add(1)
		go func() {
			defer pending.Done()
			if resp := dispatch(ctx, handler, message); resp != nil {
				if err := client.writeJSON(resp); err != nil {
					ws.logger.Debug("websocket write failed", middleware.F("error", err.Error()))
				}
			}
		}()
	}
}

func (ws *WebSocket) addClient(c *wsClient) {
	ws.clientsMu.Lock()
	defer ws.clientsMu.Unlock()
	ws.clients[c] = struct{}{}
}

func (ws *WebSocket) removeClient(c *wsClient) {
	ws.clientsMu.Lock()
	defer ws.clientsMu.Unlock()
	delete(ws.clients, c)
}

// ClientCount returns the number of open connections.
func (ws *WebSocket) ClientCount() int {
	ws.clientsMu.Lock()
	defer ws.clientsMu.Unlock()
	return len(ws.clients)
}

func (ws *WebSocket) closeAllClients() {
	ws.clientsMu.Lock()
	defer ws.clientsMu.Unlock()
	for c := range ws.clients {
		c.close()
	}
}

func (c *wsClient) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) keepAlive(ctx context.Context, interval time.Duration) {
	timeout := c.writeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	_ = c.conn.Close()
}
