package conn

import (
	"bufio"
	"io"
	"net"
	"strings"
	"time"
)

// tcpWire frames messages as newline-terminated lines on a stream socket.
type tcpWire struct {
	connection net.Conn
	reader     *bufio.Reader
}

// NewTCP wraps an established stream connection.
func NewTCP(connection net.Conn, opts Options) *Conn {
	return newConn(&tcpWire{
		connection: connection,
		reader:     bufio.NewReader(connection),
	}, opts)
}

func (w *tcpWire) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		// A final unterminated line is still a message.
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (w *tcpWire) writeLine(line string, deadline time.Time) error {
	if err := w.connection.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := io.WriteString(w.connection, line+"\n")
	return err
}

func (w *tcpWire) close() error      { return w.connection.Close() }
func (w *tcpWire) remoteAddr() string { return w.connection.RemoteAddr().String() }
