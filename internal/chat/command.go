package chat

import (
	"fmt"
	"strings"
)

// Verb identifies a client command.
type Verb int

// Recognized command verbs.
const (
	VerbJoin Verb = iota
	VerbLeave
	VerbList
	VerbUsers
	VerbQuit
)

// Command is the single decoded representation of a client command. Frames
// whose content begins with "/" are parsed into a Command instead of being
// broadcast.
type Command struct {
	Verb Verb
	Arg  string
}

// IsCommand reports whether content should be parsed as a command.
func IsCommand(content string) bool {
	return strings.HasPrefix(content, "/")
}

// ParseCommand decodes a command from frame content. A recognized verb with
// a missing argument yields an error wrapping ErrUsage; an unrecognized
// verb yields an error wrapping ErrUnknownCommand. Both are reported only
// to the issuing session, never broadcast.
func ParseCommand(content string) (Command, error) {
	parts := strings.Fields(content)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, content)
	}

	switch parts[0] {
	case "/join":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("%w: /join <room>", ErrUsage)
		}
		return Command{Verb: VerbJoin, Arg: parts[1]}, nil
	case "/leave":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("%w: /leave <room>", ErrUsage)
		}
		return Command{Verb: VerbLeave, Arg: parts[1]}, nil
	case "/list":
		return Command{Verb: VerbList}, nil
	case "/users":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("%w: /users <room>", ErrUsage)
		}
		return Command{Verb: VerbUsers, Arg: parts[1]}, nil
	case "/quit":
		return Command{Verb: VerbQuit}, nil
	default:
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, parts[0])
	}
}
