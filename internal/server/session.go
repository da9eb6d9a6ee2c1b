package server

import (
	"errors"
	"sync"
	"time"
)

// ErrDuplicateLogin is returned when a connection that already carries an
// identity tries to log in again.
var ErrDuplicateLogin = errors.New("attempted to login twice")

// Connection is the transport handle the server holds for each client.
// *conn.Conn is the production implementation.
type Connection interface {
	// ID returns a handle that uniquely identifies the connection.
	ID() string
	RemoteAddr() string
	Send(msg string) error
	Close() error
	IsOpen() bool
}

// Session is the server's record of a single client connection. A Session
// starts out anonymous and can be assigned an identity exactly once.
type Session struct {
	conn        Connection
	connectedAt time.Time

	mu       sync.Mutex
	identity string
}

func newSession(c Connection) *Session {
	return &Session{conn: c, connectedAt: time.Now()}
}

// ID returns the connection handle the session is registered under.
func (s *Session) ID() string { return s.conn.ID() }

// Conn returns the underlying connection.
func (s *Session) Conn() Connection { return s.conn }

// ConnectedAt returns when the connection was accepted.
func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

// Identity returns the login identity and whether the session has logged in.
func (s *Session) Identity() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.identity != ""
}

// String returns the identity for log lines, or a placeholder when anonymous.
func (s *Session) String() string {
	if id, ok := s.Identity(); ok {
		return id
	}
	return "anonymous"
}

// login attaches identity to the session. Any login attempt on a session that
// already has an identity fails with ErrDuplicateLogin, including one with no
// identity. An empty identity on an anonymous session is a no-op.
func (s *Session) login(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity != "" {
		return ErrDuplicateLogin
	}
	s.identity = identity
	return nil
}
