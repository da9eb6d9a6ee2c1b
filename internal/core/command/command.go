// Package command implements the small textual grammar shared by the chat
// server and client: lines beginning with Prefix are directives, a line
// beginning with Login authenticates a connection, and everything else is
// opaque chat text.
package command

import "strings"

const (
	// Prefix marks a line as a directive rather than chat text.
	Prefix = "#"
	// Login is the keyword a connection authenticates with: "#login <id>".
	Login = Prefix + "login"
)

// Command is a directive split into its keyword and whitespace-delimited arguments.
type Command struct {
	// Name is the keyword without the prefix, e.g. "setport".
	Name string
	Args []string
}

// IsCommand reports whether line is a directive.
func IsCommand(line string) bool {
	return strings.HasPrefix(line, Prefix)
}

// IsLogin reports whether line begins with the login keyword. Matching is by
// prefix, so "#loginfoo" is treated as a login line as well.
func IsLogin(line string) bool {
	return strings.HasPrefix(line, Login)
}

// LoginIdentity extracts the identity token following the login keyword. The
// second return value is false if no token was supplied.
func LoginIdentity(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", false
	}
	return fields[1], true
}

// Parse splits a directive into a Command. ok is false if line isn't a directive.
func Parse(line string) (cmd Command, ok bool) {
	if !IsCommand(line) {
		return Command{}, false
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{
		Name: strings.TrimPrefix(fields[0], Prefix),
		Args: fields[1:],
	}, true
}
