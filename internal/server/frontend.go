package server

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dcrodman/chat/internal/core/conn"
)

// frontend accepts connections on one listening socket and hands them to the
// Server. Close must not return until no more connections will be handed over.
type frontend interface {
	Serve()
	Close() error
	Addr() net.Addr
}

// tcpFrontend accepts line-oriented TCP connections.
type tcpFrontend struct {
	server   *Server
	listener net.Listener
	exited   chan struct{}
}

// listenTCP opens a TCP socket to listen for client connections on addr.
func listenTCP(s *Server, addr string) (*tcpFrontend, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error listening on %s: %w", addr, err)
	}
	return &tcpFrontend{server: s, listener: listener, exited: make(chan struct{})}, nil
}

func (f *tcpFrontend) Addr() net.Addr { return f.listener.Addr() }

// Serve is a blocking loop that's purely responsible for accepting new
// connections; it returns once the listener has been closed.
func (f *tcpFrontend) Serve() {
	defer close(f.exited)

	f.server.logger.Infof("waiting for connections on %v", f.listener.Addr())
	for {
		connection, err := f.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			f.server.logger.Warnf("failed to accept connection: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		f.server.accept(conn.NewTCP(connection, f.server.connOptions()))
	}
}

func (f *tcpFrontend) Close() error {
	err := f.listener.Close()
	<-f.exited
	return err
}
