// Package link sends the current command to a flight controller over a
// serial line.
package link

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/ayusman/avoid/internal/telemetry"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("link closed")

// Port is the part of a serial port the link writes to.
type Port interface {
	io.Writer
	io.Closer
}

// Link writes one line per snapshot:
//
//	$AVD,<seq>,<COMMAND>,<roll>,<pitch>,<elevator>
type Link struct {
	mu     sync.Mutex
	port   Port
	log    zerolog.Logger
	sent   uint64
	closed bool
}

// Open opens the serial device at path.
func Open(path string, opts PortOptions, log zerolog.Logger) (*Link, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}

	log.Info().Str("port", path).Int("baud", mode.BaudRate).Msg("serial link open")
	return New(port, log), nil
}

// New wraps an already open port.
func New(port Port, log zerolog.Logger) *Link {
	return &Link{port: port, log: log}
}

// FormatLine renders the wire line for s, without the line terminator.
func FormatLine(s telemetry.Snapshot) string {
	t := s.Command.Targets()
	return fmt.Sprintf("$AVD,%d,%s,%.1f,%.1f,%.1f",
		s.Seq, strings.ToUpper(s.Command.Key()), t.Roll, t.Pitch, t.Elevator)
}

// Send implements telemetry.Sink.
func (l *Link) Send(s telemetry.Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	line := FormatLine(s) + "\r\n"
	if _, err := io.WriteString(l.port, line); err != nil {
		return fmt.Errorf("write command %d: %w", s.Seq, err)
	}
	l.sent++
	return nil
}

// Sent returns how many lines have been written.
func (l *Link) Sent() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

// Close closes the port. Further sends fail with ErrClosed.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.log.Debug().Uint64("sent", l.sent).Msg("serial link closed")
	return l.port.Close()
}
