package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

const shutdownTimeout = 5 * time.Second

// listenState records the bound address once a transport is listening.
type listenState struct {
	mu         sync.RWMutex
	listenAddr string
	ready      chan struct{}
	once       sync.Once
}

func (l *listenState) setListening(addr string) {
	l.mu.Lock()
	l.listenAddr = addr
	l.mu.Unlock()
	l.once.Do(func() { close(l.ready) })
}

// ListenAddr returns the bound address, or "" before Serve has started.
func (l *listenState) ListenAddr() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.listenAddr
}

// Ready is closed once the transport is accepting connections.
func (l *listenState) Ready() <-chan struct{} {
	return l.ready
}

// serveHTTP listens on addr and serves handler until ctx is canceled.
// Request contexts derive from ctx, so long-lived streams end on shutdown.
// stopping runs after ctx is canceled and before the server drains.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, state *listenState, stopping func()) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	state.setListening(ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		if stopping != nil {
			stopping()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
