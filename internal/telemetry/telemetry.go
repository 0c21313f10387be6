// Package telemetry publishes the outcome of each analysed frame to
// concurrent readers.
package telemetry

import (
	"image"
	"sync/atomic"
	"time"

	"github.com/ayusman/avoid/internal/avoidance"
	"github.com/ayusman/avoid/internal/detector"
)

// Snapshot is everything known about one analysed frame. A published
// Snapshot is never modified.
type Snapshot struct {
	Seq       uint64             `json:"seq"`
	Timestamp time.Time          `json:"timestamp"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Center    image.Point        `json:"center"`
	Command   avoidance.Command  `json:"command"`
	Label     string             `json:"label"`
	Threat    *image.Point       `json:"threat,omitempty"`
	Targets   avoidance.Attitude `json:"targets"`
	Objects   []detector.Object  `json:"objects"`
}

// DangerousCount returns how many objects in the snapshot are dangerous.
func (s Snapshot) DangerousCount() int {
	return len(avoidance.Dangerous(s.Objects))
}

// Sink receives every published snapshot.
type Sink interface {
	Send(s Snapshot) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Snapshot) error

// Send implements Sink.
func (f SinkFunc) Send(s Snapshot) error { return f(s) }

// Publisher holds the latest snapshot. Publish and Latest may be called from
// any goroutine; a reader always gets one whole snapshot.
type Publisher struct {
	seq    atomic.Uint64
	latest atomic.Pointer[Snapshot]
}

// NewPublisher returns a publisher whose initial snapshot is Clear with no
// detections.
func NewPublisher() *Publisher {
	p := &Publisher{}
	p.latest.Store(&Snapshot{
		Command: avoidance.Clear,
		Label:   avoidance.Clear.String(),
		Objects: []detector.Object{},
	})
	return p
}

// Publish assigns the next sequence number to s, stores it and returns the
// stored copy. The Objects slice is copied so the caller may reuse its own.
func (p *Publisher) Publish(s Snapshot) Snapshot {
	s.Seq = p.seq.Add(1)
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	s.Label = s.Command.String()
	s.Targets = s.Command.Targets()
	s.Objects = append(make([]detector.Object, 0, len(s.Objects)), s.Objects...)
	if s.Threat != nil {
		t := *s.Threat
		s.Threat = &t
	}

	p.latest.Store(&s)
	return s
}

// Latest returns the most recently published snapshot.
func (p *Publisher) Latest() Snapshot {
	return *p.latest.Load()
}

// Seq returns the sequence number of the latest snapshot, 0 before the first
// Publish.
func (p *Publisher) Seq() uint64 {
	return p.latest.Load().Seq
}
