package mission

import (
	"fmt"
	"strings"
)

// Command is an operator command from the host.
type Command int

const (
	Start Command = iota + 1
	Stop
	Reset
)

func (c Command) String() string {
	switch c {
	case Start:
		return "START"
	case Stop:
		return "STOP"
	case Reset:
		return "RESET"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// ParseCommand parses a command name, ignoring case and surrounding space.
func ParseCommand(name string) (Command, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "START":
		return Start, nil
	case "STOP":
		return Stop, nil
	case "RESET":
		return Reset, nil
	default:
		return 0, fmt.Errorf("unknown command %q", name)
	}
}

// MarshalText renders the command by name.
func (c Command) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText parses a command name.
func (c *Command) UnmarshalText(b []byte) error {
	cmd, err := ParseCommand(string(b))
	if err != nil {
		return err
	}
	*c = cmd
	return nil
}
