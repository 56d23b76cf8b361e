package core

import (
	"errors"
	"strings"

	"github.com/dkeye/lobby/internal/domain"
)

const CommandPrefix = "/"

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
)

type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdConnect
	CmdJoin
	CmdPart
	CmdQuit
)

func (k CommandKind) String() string {
	switch k {
	case CmdConnect:
		return "CONNECT"
	case CmdJoin:
		return "JOIN"
	case CmdPart:
		return "PART"
	case CmdQuit:
		return "QUIT"
	default:
		return "UNKNOWN"
	}
}

// Command is a parsed chat command. Token keeps the uppercased first word,
// slash included, so unknown commands can be echoed back.
type Command struct {
	Kind  CommandKind
	Token string
	Args  []string
}

func IsCommand(message string) bool {
	return strings.HasPrefix(message, CommandPrefix)
}

// ParseCommand tokenizes message on whitespace and resolves the first token
// case-insensitively. A bare "/" yields ErrEmptyCommand. Unrecognized tokens
// parse successfully as CmdUnknown; whether that is an error depends on the side.
func ParseCommand(message string) (Command, error) {
	if !IsCommand(message) {
		return Command{}, ErrUnknownCommand
	}
	if len(message) == 1 {
		return Command{}, ErrEmptyCommand
	}
	fields := strings.Fields(message)
	token := strings.ToUpper(fields[0])
	cmd := Command{Token: token, Args: fields[1:]}
	switch token {
	case "/CONNECT":
		cmd.Kind = CmdConnect
	case "/JOIN":
		cmd.Kind = CmdJoin
	case "/PART":
		cmd.Kind = CmdPart
	case "/QUIT":
		cmd.Kind = CmdQuit
	default:
		cmd.Kind = CmdUnknown
	}
	return cmd, nil
}

// RoomArg returns the first argument as a canonical room name.
// Further arguments are ignored.
func (c Command) RoomArg() (domain.RoomName, error) {
	if len(c.Args) == 0 {
		return "", domain.ErrEmptyRoomArg
	}
	return domain.CanonicalRoomName(c.Args[0]), nil
}
