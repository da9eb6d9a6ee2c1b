package conn

import (
	"time"

	"github.com/gorilla/websocket"
)

// websocketWire carries one message per text frame.
type websocketWire struct {
	socket *websocket.Conn
}

// NewWebSocket wraps an upgraded WebSocket connection.
func NewWebSocket(socket *websocket.Conn, opts Options) *Conn {
	return newConn(&websocketWire{socket: socket}, opts)
}

func (w *websocketWire) readLine() (string, error) {
	_, data, err := w.socket.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w *websocketWire) writeLine(line string, deadline time.Time) error {
	if err := w.socket.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.socket.WriteMessage(websocket.TextMessage, []byte(line))
}

func (w *websocketWire) close() error      { return w.socket.Close() }
func (w *websocketWire) remoteAddr() string { return w.socket.RemoteAddr().String() }
