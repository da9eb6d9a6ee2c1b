// Package client implements the chat client's side of the session protocol:
// it logs in when a connection is established, forwards chat to the server,
// and carries out the user's local directives.
package client

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/chat/internal/core"
	"github.com/dcrodman/chat/internal/core/command"
	"github.com/dcrodman/chat/internal/core/conn"
	"github.com/dcrodman/chat/internal/core/console"
)

// ErrNotConnected is returned when sending without an open connection.
var ErrNotConnected = errors.New("not connected to server")

const dialTimeout = 10 * time.Second

// Session owns the client's single connection to the server.
type Session struct {
	loginID      string
	logger       *logrus.Logger
	display      console.Display
	writeTimeout time.Duration

	mu   sync.Mutex
	host string
	port int
	conn *conn.Conn

	done     chan struct{}
	quitOnce sync.Once
}

// New connects to the server configured in cfg and logs in as loginID. An
// error is returned only if the connection can't be opened.
func New(ctx context.Context, loginID string, cfg *core.Config, logger *logrus.Logger, display console.Display) (*Session, error) {
	s := &Session{
		loginID:      loginID,
		logger:       logger,
		display:      display,
		writeTimeout: cfg.Client.WriteTimeout,
		host:         cfg.Client.Host,
		port:         cfg.Client.Port,
		done:         make(chan struct{}),
	}
	if err := s.openConnection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// LoginID returns the identity the client logs in with.
func (s *Session) LoginID() string { return s.loginID }

// Host returns the configured server host.
func (s *Session) Host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

// Port returns the configured server port.
func (s *Session) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// IsConnected reports whether the client has an open connection.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.conn.IsOpen()
}

// Done is closed once the client has quit.
func (s *Session) Done() <-chan struct{} { return s.done }

// OnServerMessage displays a message received from the server.
func (s *Session) OnServerMessage(text string) {
	s.display.Display(text)
}

// OnConnectionClosed is called after a connection the client closed itself
// has shut down.
func (s *Session) OnConnectionClosed() {
	s.display.Display("Connection closed")
}

// OnConnectionError is called when the connection fails underneath the
// client. The client can't continue without the server and quits.
func (s *Session) OnConnectionError(err error) {
	s.logger.Debugf("connection to server lost: %v", err)
	s.display.Display("The server has shut down")
	s.Quit()
}

// Quit closes the connection and signals Done.
func (s *Session) Quit() {
	s.quitOnce.Do(func() {
		s.closeConnection()
		close(s.done)
	})
}

// openConnection dials the server, starts receiving from it and logs in.
func (s *Session) openConnection(ctx context.Context) error {
	s.mu.Lock()
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	s.mu.Unlock()

	c, err := conn.Dial(ctx, addr, conn.Options{WriteTimeout: s.writeTimeout})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()

	go s.receive(c)
	s.connectionEstablished(c)
	return nil
}

func (s *Session) connectionEstablished(c *conn.Conn) {
	if err := c.Send(command.Login + " " + s.loginID); err != nil {
		s.logger.Debugf("failed to send login: %v", err)
		return
	}
	s.display.Display(s.loginID + " has logged on")
}

// receive passes messages from c to OnServerMessage until c is closed. Whether
// that's reported as a close or an error depends on which side closed it.
func (s *Session) receive(c *conn.Conn) {
	for {
		line, err := c.ReadLine()
		if err != nil {
			if c.IsOpen() {
				s.OnConnectionError(err)
			} else {
				s.OnConnectionClosed()
			}
			return
		}
		s.OnServerMessage(line)
	}
}

func (s *Session) closeConnection() {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()

	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		s.logger.Debugf("error closing connection: %v", err)
	}
}

func (s *Session) sendToServer(text string) error {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()

	if c == nil {
		return ErrNotConnected
	}
	return c.Send(text)
}

func (s *Session) setHost(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = host
}

func (s *Session) setPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.port = port
}
