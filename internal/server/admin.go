package server

import (
	"errors"

	"github.com/dcrodman/chat/internal/core"
	"github.com/dcrodman/chat/internal/core/command"
)

// serverMessagePrefix marks operator broadcasts so clients can tell them apart
// from chat.
const serverMessagePrefix = "SERVER MESSAGE: "

// HandleAdminInput carries out a line typed by the server operator. Lines that
// aren't directives are broadcast to every client with serverMessagePrefix.
// Unrecognized directives are ignored.
func (s *Server) HandleAdminInput(line string) {
	cmd, ok := command.Parse(line)
	if !ok {
		s.report("> %s", line)
		s.logger.WithField("origin", originOperator).Infof("Message broadcast: <%s>", line)
		s.broadcast(serverMessagePrefix+line, originOperator)
		return
	}

	switch cmd.Name {
	case "quit":
		s.Quit()
	case "stop":
		s.StopListening()
	case "close":
		s.CloseAll()
	case "setport":
		s.setPort(cmd.Args)
	case "start":
		s.start()
	case "getport":
		s.report("Port is %d", s.Port())
	case "seen":
		s.reportSeen(cmd.Args)
	}
}

func (s *Server) setPort(args []string) {
	if s.IsListening() {
		s.report("Server must be stopped to change port")
		return
	}
	if len(args) != 1 {
		s.report("Didn't receive correct number of arguments. Please enter #setport <port>")
		return
	}
	// Port 0 would bind an ephemeral port that #getport can't report.
	port, err := core.ParsePort(args[0])
	if err != nil || port == 0 {
		s.report("Error trying to parse the port. Please enter only digits")
		return
	}

	if err := s.SetPort(port); err != nil {
		// Another start raced this one.
		s.report("Server must be stopped to change port")
		return
	}
	s.report("Set port to %d", port)
}

func (s *Server) start() {
	err := s.Listen()
	switch {
	case errors.Is(err, ErrListening):
		s.report("Server is not stopped")
	case err != nil:
		s.logger.Errorf("could not listen for clients: %v", err)
		s.report("ERROR - Could not listen for clients!")
	}
}

func (s *Server) reportSeen(args []string) {
	if len(args) != 1 {
		s.report("Didn't receive correct number of arguments. Please enter #seen <id>")
		return
	}

	sighting, ok := s.seen.Lookup(args[0])
	if !ok {
		s.report("%s has not been seen", args[0])
		return
	}
	s.report("%s %s at %s", args[0], sighting.Event, sighting.At.Format("2006-01-02 15:04:05"))
}
