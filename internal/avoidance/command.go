// Package avoidance turns the markers found in a frame into a single
// navigation command.
package avoidance

import (
	"fmt"
	"strings"
)

// Command is the discrete navigation instruction emitted once per frame.
type Command int

const (
	Clear Command = iota
	RollLeft
	RollRight
	PitchUp
	PitchDown
)

var commandNames = [...]string{
	Clear:     "Clear",
	RollLeft:  "Roll Left",
	RollRight: "Roll Right",
	PitchUp:   "Pitch Up",
	PitchDown: "Pitch Down",
}

var commandKeys = [...]string{
	Clear:     "clear",
	RollLeft:  "roll_left",
	RollRight: "roll_right",
	PitchUp:   "pitch_up",
	PitchDown: "pitch_down",
}

// Commands returns every command in declaration order.
func Commands() []Command {
	return []Command{Clear, RollLeft, RollRight, PitchUp, PitchDown}
}

// String returns the display name, e.g. "Roll Left".
func (c Command) String() string {
	if c < 0 || int(c) >= len(commandNames) {
		return fmt.Sprintf("Command(%d)", int(c))
	}
	return commandNames[c]
}

// Key returns the snake case identifier used on the wire, e.g. "roll_left".
func (c Command) Key() string {
	if c < 0 || int(c) >= len(commandKeys) {
		return ""
	}
	return commandKeys[c]
}

// ParseCommand accepts either the key or the display name.
func ParseCommand(s string) (Command, error) {
	name := strings.TrimSpace(s)
	for i := range commandKeys {
		if strings.EqualFold(name, commandKeys[i]) || strings.EqualFold(name, commandNames[i]) {
			return Command(i), nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Command) MarshalText() ([]byte, error) {
	if c.Key() == "" {
		return nil, fmt.Errorf("invalid command %d", int(c))
	}
	return []byte(c.Key()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Command) UnmarshalText(text []byte) error {
	parsed, err := ParseCommand(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Attitude holds the target angles, in degrees, that a command asks the
// airframe to adopt.
type Attitude struct {
	Roll     float64 `json:"roll"`
	Pitch    float64 `json:"pitch"`
	Elevator float64 `json:"elevator"`
}

var attitudes = [...]Attitude{
	Clear:     {},
	RollLeft:  {Roll: -35},
	RollRight: {Roll: 35},
	PitchUp:   {Pitch: 20, Elevator: -15},
	PitchDown: {Pitch: -20, Elevator: 15},
}

// Targets returns the attitude for c. Unknown commands level out.
func (c Command) Targets() Attitude {
	if c < 0 || int(c) >= len(attitudes) {
		return Attitude{}
	}
	return attitudes[c]
}
