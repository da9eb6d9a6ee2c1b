package client

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/dcrodman/chat/internal/core"
	"github.com/dcrodman/chat/internal/core/console"
)

// peer is the server side of a connection accepted by a testServer.
type peer struct {
	net.Conn
	r *bufio.Reader
}

func (p *peer) receive(t *testing.T) string {
	t.Helper()
	_ = p.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := p.r.ReadString('\n')
	if err != nil {
		t.Fatalf("error reading from client: %v", err)
	}
	return line[:len(line)-1]
}

func (p *peer) send(t *testing.T, line string) {
	t.Helper()
	if _, err := p.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("error writing to client: %v", err)
	}
}

// expectClosed waits for the client to close its side of the connection.
func (p *peer) expectClosed(t *testing.T) {
	t.Helper()
	_ = p.SetReadDeadline(time.Now().Add(2 * time.Second))
	if line, err := p.r.ReadString('\n'); err == nil {
		t.Fatalf("expected the connection to be closed, received %q", line)
	}
}

// testServer stands in for the chat server, handing each accepted connection
// to the test.
type testServer struct {
	listener *net.TCPListener
	accepted chan *peer
}

func newTestServer(t *testing.T) *testServer {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("error initializing test listener: %v", err)
	}
	ts := &testServer{listener: listener, accepted: make(chan *peer, 4)}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			c, err := listener.Accept()
			if err != nil {
				return
			}
			ts.accepted <- &peer{Conn: c, r: bufio.NewReader(c)}
		}
	}()
	return ts
}

func (ts *testServer) port() int { return ts.listener.Addr().(*net.TCPAddr).Port }

func (ts *testServer) accept(t *testing.T) *peer {
	t.Helper()
	select {
	case p := <-ts.accepted:
		t.Cleanup(func() { p.Close() })
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the client to connect")
		return nil
	}
}

func newTestConfig(port int) *core.Config {
	cfg := &core.Config{}
	cfg.Client.Host = "127.0.0.1"
	cfg.Client.Port = port
	cfg.Client.WriteTimeout = time.Second
	return cfg
}

// newTestSession connects a Session to ts as alice and consumes the login.
func newTestSession(t *testing.T, ts *testServer) (*Session, *peer, *console.Recorder) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	display := &console.Recorder{}

	s, err := New(context.Background(), "alice", newTestConfig(ts.port()), logger, display)
	if err != nil {
		t.Fatalf("New() returned an unexpected error: %v", err)
	}
	t.Cleanup(s.Quit)

	p := ts.accept(t)
	if got := p.receive(t); got != "#login alice" {
		t.Fatalf("server received %q, want %q", got, "#login alice")
	}
	return s, p, display
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitForDisplay(t *testing.T, display *console.Recorder, want string) {
	t.Helper()
	waitFor(t, "display of "+want, func() bool {
		for _, msg := range display.Messages() {
			if msg == want {
				return true
			}
		}
		return false
	})
}

func expectDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the client to quit")
	}
}

func TestNew_LogsIn(t *testing.T) {
	ts := newTestServer(t)
	s, _, display := newTestSession(t, ts)

	if diff := cmp.Diff([]string{"alice has logged on"}, display.Messages()); diff != "" {
		t.Errorf("unexpected display output; diff:\n%s", diff)
	}
	if !s.IsConnected() {
		t.Error("expected the client to be connected")
	}
	if s.LoginID() != "alice" {
		t.Errorf("LoginID() want = alice, got = %s", s.LoginID())
	}
}

func TestNew_ConnectFailure(t *testing.T) {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("error initializing test listener: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	logger, _ := test.NewNullLogger()
	display := &console.Recorder{}
	if _, err := New(context.Background(), "alice", newTestConfig(port), logger, display); err == nil {
		t.Fatal("expected New() to fail without a server")
	}
	if len(display.Messages()) != 0 {
		t.Errorf("expected nothing to be displayed, got %v", display.Messages())
	}
}

func TestSession_ForwardsToServer(t *testing.T) {
	tests := map[string]string{
		"chat":                        "hello everyone",
		"login with identity":         "#login bob",
		"login with extra text":       "#loginbob",
		"text mentioning a directive": "see #quit",
	}

	ts := newTestServer(t)
	s, p, _ := newTestSession(t, ts)

	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			s.OnUserInput(line)
			if got := p.receive(t); got != line {
				t.Errorf("server received %q, want %q", got, line)
			}
		})
	}
}

func TestSession_DisplaysServerMessages(t *testing.T) {
	ts := newTestServer(t)
	_, p, display := newTestSession(t, ts)

	p.send(t, "alice: hi")
	p.send(t, "SERVER MESSAGE: welcome")

	waitForDisplay(t, display, "SERVER MESSAGE: welcome")
	want := []string{"alice has logged on", "alice: hi", "SERVER MESSAGE: welcome"}
	if diff := cmp.Diff(want, display.Messages()); diff != "" {
		t.Errorf("unexpected display output; diff:\n%s", diff)
	}
}

func TestSession_LocalCommands(t *testing.T) {
	tests := map[string]struct {
		line     string
		want     string
		wantHost string
		wantPort int
	}{
		"sethost": {
			line: "#sethost example.com", want: "Set host to example.com",
			wantHost: "example.com",
		},
		"sethost without argument": {
			line: "#sethost", want: "Didn't receive correct number of arguments. Please enter #sethost <host>",
		},
		"setport": {
			line: "#setport 6000", want: "Set port to 6000", wantPort: 6000,
		},
		"setport with leading zeros": {
			line: "#setport 06000", want: "Set port to 6000", wantPort: 6000,
		},
		"setport with too many arguments": {
			line: "#setport 6000 7000", want: "Didn't receive correct number of arguments. Please enter #setport <port>",
		},
		"setport with letters": {
			line: "#setport abc", want: "Error trying to parse the port. Please enter only digits",
		},
		"setport out of range": {
			line: "#setport 70000", want: "Error trying to parse the port. Please enter only digits",
		},
		"gethost": {line: "#gethost", want: "The host is 127.0.0.1"},
		"login while connected": {line: "#login", want: "already logged in"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ts := newTestServer(t)
			s, _, display := newTestSession(t, ts)

			s.OnUserInput(tt.line)
			if got := display.Last(); got != tt.want {
				t.Errorf("OnUserInput(%q) displayed %q, want %q", tt.line, got, tt.want)
			}

			wantHost, wantPort := "127.0.0.1", ts.port()
			if tt.wantHost != "" {
				wantHost = tt.wantHost
			}
			if tt.wantPort != 0 {
				wantPort = tt.wantPort
			}
			if s.Host() != wantHost || s.Port() != wantPort {
				t.Errorf("want host:port = %s:%d, got = %s:%d", wantHost, wantPort, s.Host(), s.Port())
			}
			// Reconfiguring doesn't touch the open connection.
			if !s.IsConnected() {
				t.Error("expected the client to still be connected")
			}
		})
	}
}

func TestSession_GetPort(t *testing.T) {
	ts := newTestServer(t)
	s, _, display := newTestSession(t, ts)

	s.OnUserInput("#getport")
	if want := "The port is " + strconv.Itoa(ts.port()); display.Last() != want {
		t.Errorf("#getport displayed %q, want %q", display.Last(), want)
	}
}

func TestSession_UnrecognizedCommand(t *testing.T) {
	ts := newTestServer(t)
	s, _, display := newTestSession(t, ts)

	for _, line := range []string{"#bogus", "#", "#logon"} {
		s.OnUserInput(line)
	}
	if diff := cmp.Diff([]string{"alice has logged on"}, display.Messages()); diff != "" {
		t.Errorf("unexpected display output; diff:\n%s", diff)
	}
	if !s.IsConnected() {
		t.Error("expected the client to still be connected")
	}
}

func TestSession_LogoffAndLogin(t *testing.T) {
	ts := newTestServer(t)
	s, p, display := newTestSession(t, ts)

	s.OnUserInput("#logoff")
	p.expectClosed(t)
	waitForDisplay(t, display, "Connection closed")
	if s.IsConnected() {
		t.Error("expected the client to be disconnected after #logoff")
	}

	// Logging off twice is harmless.
	s.OnUserInput("#logoff")

	s.OnUserInput("#login")
	p = ts.accept(t)
	if got := p.receive(t); got != "#login alice" {
		t.Errorf("server received %q, want %q", got, "#login alice")
	}
	if !s.IsConnected() {
		t.Error("expected the client to be connected after #login")
	}

	want := []string{"alice has logged on", "Connection closed", "alice has logged on"}
	if diff := cmp.Diff(want, display.Messages()); diff != "" {
		t.Errorf("unexpected display output; diff:\n%s", diff)
	}

	select {
	case <-s.Done():
		t.Error("client quit unexpectedly")
	default:
	}
}

func TestSession_LoginToNewHost(t *testing.T) {
	first := newTestServer(t)
	second := newTestServer(t)
	s, _, display := newTestSession(t, first)

	s.OnUserInput("#logoff")
	waitForDisplay(t, display, "Connection closed")

	s.OnUserInput("#setport " + strconv.Itoa(second.port()))
	s.OnUserInput("#login")

	p := second.accept(t)
	if got := p.receive(t); got != "#login alice" {
		t.Errorf("server received %q, want %q", got, "#login alice")
	}
}

func TestSession_LoginFailureIsSilent(t *testing.T) {
	ts := newTestServer(t)
	s, _, display := newTestSession(t, ts)

	s.OnUserInput("#logoff")
	waitForDisplay(t, display, "Connection closed")

	ts.listener.Close()
	before := len(display.Messages())
	s.OnUserInput("#login")

	if s.IsConnected() {
		t.Error("expected the client to remain disconnected")
	}
	if got := len(display.Messages()); got != before {
		t.Errorf("expected nothing to be displayed, got %v", display.Messages()[before:])
	}
}

func TestSession_ChatWhileLoggedOffTerminates(t *testing.T) {
	ts := newTestServer(t)
	s, _, display := newTestSession(t, ts)

	s.OnUserInput("#logoff")
	waitForDisplay(t, display, "Connection closed")

	s.OnUserInput("anyone there?")
	expectDone(t, s)
	if got, want := display.Last(), "Could not send message to server.  Terminating client."; got != want {
		t.Errorf("displayed %q, want %q", got, want)
	}
}

func TestSession_ServerShutdown(t *testing.T) {
	ts := newTestServer(t)
	s, p, display := newTestSession(t, ts)

	p.Close()

	expectDone(t, s)
	waitForDisplay(t, display, "The server has shut down")
	if s.IsConnected() {
		t.Error("expected the client to be disconnected")
	}
}

func TestSession_Quit(t *testing.T) {
	ts := newTestServer(t)
	s, p, display := newTestSession(t, ts)

	s.OnUserInput("#quit")
	expectDone(t, s)
	p.expectClosed(t)

	// A deliberate quit isn't reported as the server going away.
	for _, msg := range display.Messages() {
		if msg == "The server has shut down" {
			t.Error("quitting should not be reported as a server shutdown")
		}
	}
}
