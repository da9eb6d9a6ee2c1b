package server

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/chat/internal/core/command"
)

// duplicateLoginNotice is sent to a connection right before it's closed for
// logging in twice.
const duplicateLoginNotice = "Attempted to login twice"

// HandleMessage is the main entry point for processing a line received from a
// client. Login lines attach an identity to the session, a second login closes
// the connection, and anything else is broadcast verbatim to every open
// connection, the sender included.
func (s *Server) HandleMessage(line string, session *Session) {
	if command.IsLogin(line) {
		s.handleLogin(line, session)
		return
	}

	s.logger.WithField("identity", session.String()).Infof("Message received: <%s>", line)
	s.broadcast(line, originClient)
}

func (s *Server) handleLogin(line string, session *Session) {
	identity, _ := command.LoginIdentity(line)

	if err := session.login(identity); errors.Is(err, ErrDuplicateLogin) {
		s.logger.WithFields(logrus.Fields{
			"identity": session.String(),
			"conn":     session.ID(),
		}).Warn("Attempted to login twice")
		s.metrics.duplicateLogins.Inc()

		_ = session.Conn().Send(duplicateLoginNotice)
		s.closeSession(session)
		return
	}

	if identity == "" {
		// The connection stays anonymous and may try again.
		s.logger.WithField("conn", session.ID()).Debug("login without an identity ignored")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"identity": identity,
		"conn":     session.ID(),
		"addr":     session.Conn().RemoteAddr(),
	}).Info("Message received: #login")
	s.metrics.logins.Inc()
	s.seen.Record(identity, eventLoggedIn, time.Now())
}
