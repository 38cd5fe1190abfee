// Package e2e runs the assembled server over real network transports
// against a simulated UNHCR API.
package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	unhcrmcp "github.com/felixgeelhaar/unhcr-mcp"
	"github.com/felixgeelhaar/unhcr-mcp/config"
	"github.com/felixgeelhaar/unhcr-mcp/protocol"
	"github.com/felixgeelhaar/unhcr-mcp/server"
	"github.com/felixgeelhaar/unhcr-mcp/unhcr"
)

type listener interface {
	Ready() <-chan struct{}
	ListenAddr() string
}

// fakeUpstream answers like the population endpoint. A coo of "ERR" yields
// a 500 with an error message.
type fakeUpstream struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.queries = append(f.queries, r.URL.RawQuery)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Query().Get("coo") == "ERR" {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"bad request"}`))
		return
	}
	_, _ = w.Write([]byte(`{"items": [], "year": "` + r.URL.Query().Get("year") + `"}`))
}

func (f *fakeUpstream) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

// startServer runs the full stack for cfg and returns the loopback address.
func startServer(t *testing.T, cfg config.Config) (string, *fakeUpstream) {
	t.Helper()

	upstream := &fakeUpstream{}
	api := httptest.NewServer(upstream)
	t.Cleanup(api.Close)

	client, err := unhcr.NewClient(api.URL + "/population/v1/population/")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	srv, err := unhcrmcp.NewServer(client, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	cfg.Port = 0
	cfg.PortSource = config.PortSourceLiteral
	tr, err := unhcrmcp.NewTransport(cfg, nil)
	if err != nil {
		t.Fatalf("NewTransport() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Serve(ctx, server.NewHandler(srv, unhcrmcp.Middleware(cfg, nil)...)) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() error = %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("server did not shut down")
		}
	})

	l := tr.(listener)
	select {
	case <-l.Ready():
	case err := <-done:
		t.Fatalf("Serve() exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	_, port, err := net.SplitHostPort(l.ListenAddr())
	if err != nil {
		t.Fatalf("bad listen address %q: %v", l.ListenAddr(), err)
	}
	return net.JoinHostPort("127.0.0.1", port), upstream
}

// session is a minimal MCP client over one of the transports.
type session interface {
	call(t *testing.T, id int, method string, params any) *protocol.Response
	notify(t *testing.T, method string)
}

type sseSession struct {
	base     string
	endpoint string
	events   *bufio.Reader
}

func dialSSE(t *testing.T, addr string) *sseSession {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/sse", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})

	s := &sseSession{base: "http://" + addr, events: bufio.NewReader(resp.Body)}
	name, data := s.next(t)
	if name != "endpoint" {
		t.Fatalf("first event = %q, want endpoint", name)
	}
	s.endpoint = data
	return s
}

func (s *sseSession) next(t *testing.T) (name, data string) {
	t.Helper()
	for {
		line, err := s.events.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && data != "":
			return name, data
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func (s *sseSession) post(t *testing.T, msg any) {
	t.Helper()
	body, _ := json.Marshal(msg)
	resp, err := http.Post(s.base+s.endpoint, "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("post status = %d, want 202", resp.StatusCode)
	}
}

func (s *sseSession) call(t *testing.T, id int, method string, params any) *protocol.Response {
	t.Helper()
	s.post(t, request(id, method, params))

	_, data := s.next(t)
	var resp protocol.Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return &resp
}

func (s *sseSession) notify(t *testing.T, method string) {
	t.Helper()
	s.post(t, map[string]any{"jsonrpc": "2.0", "method": method})
}

type wsSession struct {
	conn *websocket.Conn
}

func dialWS(t *testing.T, addr string) *wsSession {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsSession{conn: conn}
}

func (s *wsSession) call(t *testing.T, id int, method string, params any) *protocol.Response {
	t.Helper()
	if err := s.conn.WriteJSON(request(id, method, params)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp protocol.Response
	if err := s.conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	return &resp
}

func (s *wsSession) notify(t *testing.T, method string) {
	t.Helper()
	if err := s.conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "method": method}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func request(id int, method string, params any) map[string]any {
	req := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	return req
}

func toolResult(t *testing.T, resp *protocol.Response) protocol.ToolResult {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	data, _ := json.Marshal(resp.Result)
	var result protocol.ToolResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode tool result %s: %v", data, err)
	}
	return result
}

func TestCompliance(t *testing.T) {
	transports := []struct {
		name string
		kind config.Transport
		dial func(t *testing.T, addr string) session
	}{
		{"sse", config.TransportSSE, func(t *testing.T, addr string) session { return dialSSE(t, addr) }},
		{"ws", config.TransportWebSocket, func(t *testing.T, addr string) session { return dialWS(t, addr) }},
	}

	for _, tr := range transports {
		t.Run(tr.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Transport = tr.kind
			addr, upstream := startServer(t, cfg)
			s := tr.dial(t, addr)

			t.Run("initialize", func(t *testing.T) {
				resp := s.call(t, 1, protocol.MethodInitialize, map[string]any{
					"protocolVersion": protocol.MCPVersion,
					"clientInfo":      map[string]any{"name": "e2e", "version": "1.0.0"},
				})
				if resp.Error != nil {
					t.Fatalf("unexpected error: %v", resp.Error)
				}
				result := resp.Result.(map[string]any)
				if result["protocolVersion"] != protocol.MCPVersion {
					t.Errorf("protocolVersion = %v", result["protocolVersion"])
				}
				if _, ok := result["capabilities"].(map[string]any)["tools"]; !ok {
					t.Error("expected tools capability")
				}
				s.notify(t, protocol.MethodInitialized)
			})

			t.Run("tools/list", func(t *testing.T) {
				resp := s.call(t, 2, protocol.MethodToolsList, nil)
				if resp.Error != nil {
					t.Fatalf("unexpected error: %v", resp.Error)
				}
				tools := resp.Result.(map[string]any)["tools"].([]any)
				if len(tools) != 1 || tools[0].(map[string]any)["name"] != "unhcrPopstat" {
					t.Errorf("tools = %v", tools)
				}
			})

			t.Run("tools/call success", func(t *testing.T) {
				resp := s.call(t, 3, protocol.MethodToolsCall, map[string]any{
					"name":      "unhcrPopstat",
					"arguments": map[string]any{"coo": "SYR", "year": "2022, 2023"},
				})
				result := toolResult(t, resp)
				if result.IsError {
					t.Fatalf("unexpected tool error: %s", result.FirstText())
				}
				if got := result.FirstText(); got != `{"items":[],"year":"2022,2023"}` {
					t.Errorf("text = %s", got)
				}
				if q := upstream.lastQuery(); q != "cf_type=ISO&coo=SYR&year=2022,2023" {
					t.Errorf("upstream query = %s", q)
				}
			})

			t.Run("tools/call upstream error", func(t *testing.T) {
				resp := s.call(t, 4, protocol.MethodToolsCall, map[string]any{
					"name":      "unhcrPopstat",
					"arguments": map[string]any{"coo": "ERR"},
				})
				result := toolResult(t, resp)
				if !result.IsError || result.FirstText() != "UNHCR API error: bad request" {
					t.Errorf("result = %+v", result)
				}
			})

			t.Run("tools/call invalid params", func(t *testing.T) {
				resp := s.call(t, 5, protocol.MethodToolsCall, map[string]any{
					"name":      "unhcrPopstat",
					"arguments": map[string]any{"limit": "ten"},
				})
				if resp.Error == nil || resp.Error.Code != protocol.CodeInvalidParams {
					t.Errorf("error = %+v, want invalid params", resp.Error)
				}
			})

			t.Run("unknown tool", func(t *testing.T) {
				resp := s.call(t, 6, protocol.MethodToolsCall, map[string]any{"name": "nope"})
				if resp.Error == nil || resp.Error.Code != protocol.CodeNotFound {
					t.Errorf("error = %+v, want not found", resp.Error)
				}
			})

			t.Run("unknown method", func(t *testing.T) {
				resp := s.call(t, 7, "resources/list", nil)
				if resp.Error == nil || resp.Error.Code != protocol.CodeMethodNotFound {
					t.Errorf("error = %+v, want method not found", resp.Error)
				}
			})

			t.Run("ping", func(t *testing.T) {
				resp := s.call(t, 8, protocol.MethodPing, nil)
				if resp.Error != nil {
					t.Errorf("unexpected error: %v", resp.Error)
				}
				if string(resp.ID) != "8" {
					t.Errorf("ID = %s, want 8", resp.ID)
				}
			})
		})
	}
}

func TestHealth(t *testing.T) {
	for _, kind := range []config.Transport{config.TransportSSE, config.TransportWebSocket} {
		t.Run(string(kind), func(t *testing.T) {
			cfg := config.Default()
			cfg.Transport = kind
			addr, _ := startServer(t, cfg)

			resp, err := http.Get("http://" + addr + "/health")
			if err != nil {
				t.Fatalf("health: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
			}
		})
	}
}
