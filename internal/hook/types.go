// Package hook runs an external program whenever the avoidance command
// changes. The program receives a JSON Request on stdin and may answer with
// a JSON Response on stdout.
package hook

import (
	"image"

	"github.com/ayusman/avoid/internal/avoidance"
	"github.com/ayusman/avoid/internal/telemetry"
)

// EventCommand is the only event currently sent.
const EventCommand = "command"

// Request is written to the hook's stdin.
type Request struct {
	Event     string             `json:"event"`
	Seq       uint64             `json:"seq"`
	Command   avoidance.Command  `json:"command"`
	Label     string             `json:"label"`
	Previous  avoidance.Command  `json:"previous"`
	Threat    *image.Point       `json:"threat,omitempty"`
	Targets   avoidance.Attitude `json:"targets"`
	Dangerous int                `json:"dangerous"`
}

// Response is read from the hook's stdout. An empty stdout counts as success.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewRequest builds the request for a transition from prev to s.Command.
func NewRequest(s telemetry.Snapshot, prev avoidance.Command) *Request {
	return &Request{
		Event:     EventCommand,
		Seq:       s.Seq,
		Command:   s.Command,
		Label:     s.Command.String(),
		Previous:  prev,
		Threat:    s.Threat,
		Targets:   s.Command.Targets(),
		Dangerous: s.DangerousCount(),
	}
}
