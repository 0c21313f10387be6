package store

import (
	"sync"

	"github.com/ayusman/avoid/internal/avoidance"
	"github.com/ayusman/avoid/internal/telemetry"
)

// FlightRecorder is a telemetry.Sink that logs a snapshot only when its
// command differs from the last one recorded.
type FlightRecorder struct {
	mu        sync.Mutex
	commands  *CommandRepository
	sessionID string
	last      avoidance.Command
	started   bool
}

// NewFlightRecorder records into the given session.
func NewFlightRecorder(s *Store, sessionID string) *FlightRecorder {
	return &FlightRecorder{commands: s.Commands(), sessionID: sessionID}
}

// SessionID returns the session being recorded.
func (f *FlightRecorder) SessionID() string {
	return f.sessionID
}

// Send implements telemetry.Sink.
func (f *FlightRecorder) Send(s telemetry.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started && s.Command == f.last {
		return nil
	}

	entry := &CommandEntry{
		SessionID:  f.sessionID,
		Seq:        s.Seq,
		Command:    s.Command,
		Threat:     s.Threat,
		Dangerous:  s.DangerousCount(),
		Objects:    len(s.Objects),
		RecordedAt: s.Timestamp.UTC(),
	}
	if err := f.commands.Record(entry); err != nil {
		return err
	}

	f.last = s.Command
	f.started = true
	return nil
}
