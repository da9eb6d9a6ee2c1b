package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrClosed is returned when sending on a connection that has been closed.
	ErrClosed = errors.New("connection closed")
	// ErrQueueFull is returned when a queued connection can't accept another message.
	ErrQueueFull = errors.New("outbound queue full")
)

// Options controls how a Conn writes to its peer.
type Options struct {
	// QueueSize is the number of outbound messages buffered for a background
	// writer. Zero makes Send write synchronously.
	QueueSize int
	// WriteTimeout bounds each individual write. Zero means no deadline.
	WriteTimeout time.Duration
}

// wire is the framing layer underneath a Conn; one call to readLine or
// writeLine moves exactly one message.
type wire interface {
	readLine() (string, error)
	writeLine(line string, deadline time.Time) error
	close() error
	remoteAddr() string
}

// Conn is a bidirectional, line-oriented message channel to a single peer.
// ReadLine must only be called from one goroutine; Send and Close are safe for
// concurrent use.
type Conn struct {
	id   string
	wire wire
	opts Options

	mu     sync.Mutex
	closed bool
	outbox chan string

	writeMu      sync.Mutex
	done         chan struct{}
	flushTimeout time.Duration
}

// defaultFlushTimeout bounds how long Close lets a queued connection flush
// when no write timeout is configured.
const defaultFlushTimeout = 5 * time.Second

func newConn(w wire, opts Options) *Conn {
	c := &Conn{
		id:   uuid.NewString(),
		wire: w,
		opts: opts,
		done: make(chan struct{}),

		flushTimeout: opts.WriteTimeout,
	}
	if c.flushTimeout <= 0 {
		c.flushTimeout = defaultFlushTimeout
	}
	if opts.QueueSize > 0 {
		c.outbox = make(chan string, opts.QueueSize)
		go c.drainOutbox()
	}
	return c
}

// Dial opens a TCP connection to addr.
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s: %w", addr, err)
	}
	return NewTCP(nc, opts), nil
}

// ID returns a unique handle for the connection.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the address of the peer.
func (c *Conn) RemoteAddr() string { return c.wire.remoteAddr() }

// ReadLine blocks until the next message arrives from the peer.
func (c *Conn) ReadLine() (string, error) {
	return c.wire.readLine()
}

// Send delivers msg to the peer. Queued connections only enqueue the message and
// return ErrQueueFull rather than block when the peer isn't keeping up.
func (c *Conn) Send(msg string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.outbox != nil {
		defer c.mu.Unlock()
		select {
		case c.outbox <- msg:
			return nil
		default:
			return ErrQueueFull
		}
	}
	c.mu.Unlock()

	return c.write(msg)
}

// IsOpen reports whether Close has not yet been called.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close marks the connection closed. Messages already queued are flushed
// before the underlying socket is closed, but a peer that isn't reading only
// gets the flush timeout before the socket is closed underneath the writer.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.outbox != nil {
		close(c.outbox)
		c.mu.Unlock()
		go c.closeAfter(c.flushTimeout)
		return nil
	}
	c.mu.Unlock()

	defer close(c.done)
	return c.wire.close()
}

// Done is closed once the underlying socket has been closed by Close.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) write(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var deadline time.Time
	if c.opts.WriteTimeout > 0 {
		deadline = time.Now().Add(c.opts.WriteTimeout)
	}
	if err := c.wire.writeLine(msg, deadline); err != nil {
		return fmt.Errorf("failed to send to %s: %w", c.RemoteAddr(), err)
	}
	return nil
}

// closeAfter closes the socket if the outbox hasn't drained within d.
func (c *Conn) closeAfter(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-c.done:
	case <-t.C:
		_ = c.wire.close()
	}
}

// drainOutbox writes queued messages until the outbox is closed. After the
// first failed write the remaining messages are discarded.
func (c *Conn) drainOutbox() {
	defer close(c.done)

	failed := false
	for msg := range c.outbox {
		if failed {
			continue
		}
		if err := c.write(msg); err != nil {
			failed = true
			_ = c.wire.close()
		}
	}
	_ = c.wire.close()
}
