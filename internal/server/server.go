package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/chat/internal/core"
	"github.com/dcrodman/chat/internal/core/conn"
	"github.com/dcrodman/chat/internal/core/console"
)

// ErrListening is returned by operations that require the server to be stopped.
var ErrListening = errors.New("server is listening")

// Server is the chat server. It accepts connections on its frontends, keeps
// the Registry of open connections, dispatches client messages and carries out
// operator directives.
type Server struct {
	config   *core.Config
	logger   *logrus.Logger
	observer Observer
	display  console.Display
	metrics  *Metrics
	seen     *SeenDirectory
	registry *Registry

	mu        sync.Mutex
	port      int
	frontends []frontend

	connections sync.WaitGroup
	done        chan struct{}
	quitOnce    sync.Once
}

// Option customizes a Server created by New.
type Option func(*Server)

// WithObserver replaces the default logging observer.
func WithObserver(o Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithDisplay sets where operator reports are written (stdout by default).
func WithDisplay(d console.Display) Option {
	return func(s *Server) { s.display = d }
}

// WithMetrics sets the metrics the server reports to. By default they're
// registered with a private registry that nothing exports.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New returns a Server that isn't listening yet.
func New(cfg *core.Config, logger *logrus.Logger, opts ...Option) *Server {
	s := &Server{
		config:   cfg,
		logger:   logger,
		port:     cfg.Server.Port,
		registry: NewRegistry(),
		seen:     NewSeenDirectory(cfg.Server.SeenTTL),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.observer == nil {
		s.observer = &LogObserver{Logger: logger}
	}
	if s.display == nil {
		s.display = console.NewWriter(os.Stdout)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(prometheus.NewRegistry())
	}
	return s
}

// Registry returns the set of open connections.
func (s *Server) Registry() *Registry { return s.registry }

// Port returns the configured TCP listen port.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// SetPort changes the TCP listen port. It fails with ErrListening unless the
// server is stopped.
func (s *Server) SetPort(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frontends) > 0 {
		return ErrListening
	}
	s.port = port
	return nil
}

// IsListening reports whether the server is accepting new connections.
func (s *Server) IsListening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frontends) > 0
}

// Addr returns the address the TCP frontend is bound to, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frontends) == 0 {
		return nil
	}
	return s.frontends[0].Addr()
}

// Listen starts accepting connections on the configured port, plus the
// WebSocket port if one is configured.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frontends) > 0 {
		return ErrListening
	}

	tcp, err := listenTCP(s, net.JoinHostPort(s.config.Server.Hostname, strconv.Itoa(s.port)))
	if err != nil {
		return err
	}
	frontends := []frontend{tcp}

	if s.config.Server.WebSocketPort > 0 {
		addr := net.JoinHostPort(s.config.Server.Hostname, strconv.Itoa(s.config.Server.WebSocketPort))
		ws, err := listenWebSocket(s, addr)
		if err != nil {
			_ = tcp.listener.Close()
			return err
		}
		frontends = append(frontends, ws)
	}

	for _, f := range frontends {
		go f.Serve()
	}
	s.frontends = frontends

	s.observer.ServerStarted(s.port)
	return nil
}

// StopListening stops accepting new connections. Existing connections stay open.
func (s *Server) StopListening() {
	s.mu.Lock()
	frontends := s.frontends
	s.frontends = nil
	s.mu.Unlock()

	if len(frontends) == 0 {
		return
	}
	for _, f := range frontends {
		if err := f.Close(); err != nil {
			s.logger.Warnf("error closing %s frontend: %v", f.Addr(), err)
		}
	}
	s.observer.ServerStopped()
}

// CloseAll stops accepting new connections and closes every open one.
func (s *Server) CloseAll() {
	s.StopListening()
	for _, session := range s.registry.CloseAll() {
		s.departed(session)
	}
}

// Quit closes everything and signals Done.
func (s *Server) Quit() {
	s.quitOnce.Do(func() {
		s.CloseAll()
		close(s.done)
		s.observer.ServerClosed()
	})
}

// Done is closed once Quit has been called.
func (s *Server) Done() <-chan struct{} { return s.done }

// Wait blocks until every connection goroutine has returned.
func (s *Server) Wait() { s.connections.Wait() }

// accept registers c and starts feeding its messages to the dispatcher.
// Frontends call it synchronously so that a connection accepted before
// StopListening returns is always visible to CloseAll.
func (s *Server) accept(c *conn.Conn) {
	session := s.registry.Add(c)
	s.metrics.openConnections.Inc()
	s.observer.ClientConnected(session)

	s.connections.Add(1)
	go s.serve(session, c)
}

// serve reads messages from c until the connection fails or is closed.
func (s *Server) serve(session *Session, c *conn.Conn) {
	defer s.connections.Done()
	defer s.closeConnectionAndRecover(session)

	for {
		line, err := c.ReadLine()
		if err != nil {
			if c.IsOpen() {
				s.logger.WithField("conn", c.ID()).Debugf("read failed: %v", err)
			}
			return
		}
		// Lines already buffered when the connection was closed are dropped.
		if !c.IsOpen() {
			return
		}
		s.HandleMessage(line, session)
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics, closes the
// connection and evicts it from the registry regardless of its state.
func (s *Server) closeConnectionAndRecover(session *Session) {
	if err := recover(); err != nil {
		s.logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			session.Conn().RemoteAddr(), err, debug.Stack())
	}
	s.closeSession(session)
}

// closeSession closes the connection and evicts it. Close errors are ignored.
func (s *Server) closeSession(session *Session) {
	_ = session.Conn().Close()
	if s.registry.Remove(session) {
		s.departed(session)
	}
}

func (s *Server) departed(session *Session) {
	s.metrics.openConnections.Dec()
	if id, ok := session.Identity(); ok {
		s.seen.Record(id, eventDisconnected, time.Now())
	}
	s.observer.ClientDisconnected(session)
}

// broadcast delivers msg to every open connection.
func (s *Server) broadcast(msg, origin string) {
	_, failed := s.registry.Broadcast(msg)
	s.metrics.broadcasts.WithLabelValues(origin).Inc()
	if failed > 0 {
		s.metrics.deliveryFailures.Add(float64(failed))
		s.logger.Debugf("broadcast failed for %d recipient(s)", failed)
	}
}

func (s *Server) report(format string, args ...interface{}) {
	s.display.Display(fmt.Sprintf(format, args...))
}

func (s *Server) connOptions() conn.Options {
	return conn.Options{
		QueueSize:    s.config.Server.QueueSize,
		WriteTimeout: s.config.Server.WriteTimeout,
	}
}
