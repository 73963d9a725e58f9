package entity

import "fmt"

// Command is an actuator instruction sent over the serial link.
type Command int

const (
	CommandNone    Command = iota // nothing set yet
	CommandHold                   // stop the belt and wait
	CommandAdvance                // move the pack to the capture point
	CommandAccept                 // pass the pack downstream
	CommandReject                 // eject the pack
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CommandHold:
		return "hold"
	case CommandAdvance:
		return "advance"
	case CommandAccept:
		return "accept"
	case CommandReject:
		return "reject"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Command) UnmarshalText(text []byte) error {
	v, err := ParseCommand(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCommand parses a name produced by String.
func ParseCommand(s string) (Command, error) {
	for _, c := range []Command{CommandNone, CommandHold, CommandAdvance, CommandAccept, CommandReject} {
		if c.String() == s {
			return c, nil
		}
	}
	return CommandNone, fmt.Errorf("unknown command %q", s)
}

// CommandFor maps a verdict to the actuator command. Anything that is not
// a confident pass is rejected.
func CommandFor(v Verdict) Command {
	if v.Class == VerdictGood {
		return CommandAccept
	}
	return CommandReject
}

// CommandTokens maps commands to the bytes the actuator firmware expects.
type CommandTokens map[Command]string

// DefaultCommandTokens returns the firmware defaults.
func DefaultCommandTokens() CommandTokens {
	return CommandTokens{
		CommandHold:    "2",
		CommandAdvance: "3",
		CommandAccept:  "4",
		CommandReject:  "5",
	}
}
