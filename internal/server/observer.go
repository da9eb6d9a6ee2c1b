package server

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Observer is notified of server lifecycle events.
type Observer interface {
	// ServerStarted is called once the server begins accepting connections.
	ServerStarted(port int)
	// ServerStopped is called once the server stops accepting connections.
	ServerStopped()
	// ServerClosed is called when the server shuts down for good.
	ServerClosed()
	// ClientConnected is called for each accepted connection.
	ClientConnected(s *Session)
	// ClientDisconnected is called exactly once for each connection that leaves
	// the registry, whichever side closed it.
	ClientDisconnected(s *Session)
}

// LogObserver writes lifecycle events to a logger.
type LogObserver struct {
	Logger *logrus.Logger
}

func (o *LogObserver) ServerStarted(port int) {
	o.Logger.Infof("Server listening for connections on port %d", port)
}

func (o *LogObserver) ServerStopped() {
	o.Logger.Info("Server has stopped listening for connections.")
}

func (o *LogObserver) ServerClosed() {
	o.Logger.Info("Server closed")
}

func (o *LogObserver) ClientConnected(s *Session) {
	o.Logger.WithFields(logrus.Fields{
		"conn": s.ID(),
		"addr": s.Conn().RemoteAddr(),
	}).Info("New Client Connected!")
}

func (o *LogObserver) ClientDisconnected(s *Session) {
	o.Logger.WithFields(logrus.Fields{
		"conn":     s.ID(),
		"duration": time.Since(s.ConnectedAt()).Round(time.Second),
	}).Infof("<%s> has disconnected!", s)
}
