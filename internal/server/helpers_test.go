package server

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/dcrodman/chat/internal/core"
	"github.com/dcrodman/chat/internal/core/conn"
	"github.com/dcrodman/chat/internal/core/console"
)

// fakeConnection records everything sent to it.
type fakeConnection struct {
	id       string
	sendErr  error
	closeErr error

	mu     sync.Mutex
	sent   []string
	closed bool
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{id: uuid.NewString()}
}

func (c *fakeConnection) ID() string         { return c.id }
func (c *fakeConnection) RemoteAddr() string { return "127.0.0.1:40000" }

func (c *fakeConnection) Send(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return conn.ErrClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

func (c *fakeConnection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConnection) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// recordingObserver counts lifecycle events.
type recordingObserver struct {
	mu           sync.Mutex
	started      []int
	stopped      int
	closed       int
	connected    int
	disconnected []string
}

func (o *recordingObserver) ServerStarted(port int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, port)
}

func (o *recordingObserver) ServerStopped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped++
}

func (o *recordingObserver) ServerClosed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
}

func (o *recordingObserver) ClientConnected(*Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connected++
}

func (o *recordingObserver) ClientDisconnected(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnected = append(o.disconnected, s.String())
}

func (o *recordingObserver) Disconnected() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.disconnected...)
}

type testServer struct {
	*Server
	display  *console.Recorder
	observer *recordingObserver
	metrics  *Metrics
	logs     *test.Hook
}

func newTestConfig() *core.Config {
	cfg := &core.Config{LogLevel: "debug"}
	cfg.Server.Hostname = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.QueueSize = 16
	cfg.Server.WriteTimeout = time.Second
	cfg.Server.SeenTTL = time.Minute
	return cfg
}

func newTestServer(t *testing.T, cfg *core.Config) *testServer {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	ts := &testServer{
		display:  &console.Recorder{},
		observer: &recordingObserver{},
		metrics:  NewMetrics(prometheus.NewRegistry()),
		logs:     hook,
	}
	ts.Server = New(cfg, logger,
		WithDisplay(ts.display),
		WithObserver(ts.observer),
		WithMetrics(ts.metrics),
	)
	t.Cleanup(ts.Quit)
	return ts
}

// waitFor polls cond until it's true or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// testClient is a raw TCP peer speaking the line protocol.
type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialTestClient(t *testing.T, addr net.Addr) *testClient {
	t.Helper()
	c, err := net.Dial(addr.Network(), addr.String())
	if err != nil {
		t.Fatalf("failed to connect to %s: %v", addr, err)
	}
	t.Cleanup(func() { c.Close() })
	return &testClient{t: t, conn: c, reader: bufio.NewReader(c)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("failed to write to connection: %v", err)
	}
}

func (c *testClient) receive() (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.reader.ReadString('\n')
	return strings.TrimRight(line, "\n"), err
}

func (c *testClient) expect(want string) {
	c.t.Helper()
	got, err := c.receive()
	if err != nil {
		c.t.Fatalf("failed to read %q from connection: %v", want, err)
	}
	if got != want {
		c.t.Fatalf("received %q, want %q", got, want)
	}
}

func itoa(i int) string { return strconv.Itoa(i) }
