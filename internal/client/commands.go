package client

import (
	"context"
	"strconv"

	"github.com/dcrodman/chat/internal/core"
	"github.com/dcrodman/chat/internal/core/command"
)

// OnUserInput handles a line typed by the user. Login lines carrying an
// identity go to the server, other directives are handled locally, and
// anything else is chat.
func (s *Session) OnUserInput(line string) {
	switch {
	case command.IsLogin(line) && len(line) > len(command.Login):
		s.send(line)
	case command.IsCommand(line):
		s.handleCommand(line)
	default:
		s.send(line)
	}
}

// send forwards text to the server. Without a working connection the client
// has nothing left to do, so a failure terminates it.
func (s *Session) send(text string) {
	if err := s.sendToServer(text); err != nil {
		s.logger.Debugf("failed to send to server: %v", err)
		s.display.Display("Could not send message to server.  Terminating client.")
		s.Quit()
	}
}

func (s *Session) handleCommand(line string) {
	cmd, _ := command.Parse(line)

	switch cmd.Name {
	case "quit":
		s.Quit()
	case "logoff":
		s.closeConnection()
	case "login":
		s.login()
	case "sethost":
		if len(cmd.Args) != 1 {
			s.display.Display("Didn't receive correct number of arguments. Please enter #sethost <host>")
			return
		}
		s.setHost(cmd.Args[0])
		s.display.Display("Set host to " + cmd.Args[0])
	case "setport":
		if len(cmd.Args) != 1 {
			s.display.Display("Didn't receive correct number of arguments. Please enter #setport <port>")
			return
		}
		port, err := core.ParsePort(cmd.Args[0])
		if err != nil {
			s.display.Display("Error trying to parse the port. Please enter only digits")
			return
		}
		s.setPort(port)
		s.display.Display("Set port to " + strconv.Itoa(port))
	case "gethost":
		s.display.Display("The host is " + s.Host())
	case "getport":
		s.display.Display("The port is " + strconv.Itoa(s.Port()))
	default:
		s.logger.Debugf("ignoring unrecognized command: %s", line)
	}
}

// login reconnects to the configured server after a logoff.
func (s *Session) login() {
	if s.IsConnected() {
		s.display.Display("already logged in")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := s.openConnection(ctx); err != nil {
		s.logger.Debugf("failed to log in: %v", err)
	}
}
