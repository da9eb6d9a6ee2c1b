package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dcrodman/chat/internal/core/conn"
)

// WebSocketPath is where the WebSocket frontend accepts upgrades.
const WebSocketPath = "/chat"

// websocketFrontend accepts the same line protocol over WebSocket, one text
// frame per message.
type websocketFrontend struct {
	server   *Server
	listener net.Listener
	http     *http.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func listenWebSocket(s *Server, addr string) (*websocketFrontend, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error listening on %s: %w", addr, err)
	}

	f := &websocketFrontend{
		server:   s,
		listener: listener,
		upgrader: websocket.Upgrader{
			// Chat clients aren't served from a known origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, f.handleUpgrade)
	f.http = &http.Server{Handler: mux}
	return f, nil
}

func (f *websocketFrontend) Addr() net.Addr { return f.listener.Addr() }

func (f *websocketFrontend) Serve() {
	f.server.logger.Infof("waiting for websocket connections on %v%s", f.listener.Addr(), WebSocketPath)
	if err := f.http.Serve(f.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		f.server.logger.Warnf("websocket frontend exited: %v", err)
	}
}

func (f *websocketFrontend) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		http.Error(w, "server is not accepting connections", http.StatusServiceUnavailable)
		return
	}
	f.inflight.Add(1)
	f.mu.Unlock()
	defer f.inflight.Done()

	socket, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.server.logger.Warnf("failed to upgrade connection from %s: %v", r.RemoteAddr, err)
		return
	}
	f.server.accept(conn.NewWebSocket(socket, f.server.connOptions()))
}

// Close stops the HTTP server and waits for in-flight upgrades. Upgraded
// connections are hijacked and stay open.
func (f *websocketFrontend) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	err := f.http.Close()
	f.inflight.Wait()
	return err
}
