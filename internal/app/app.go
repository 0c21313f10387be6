// Package app runs the avoidance loop: it reads frames, analyses them,
// publishes the result and hands it to the configured sinks.
package app

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/avoid/internal/avoidance"
	"github.com/ayusman/avoid/internal/capture"
	"github.com/ayusman/avoid/internal/detector"
	"github.com/ayusman/avoid/internal/telemetry"
)

// DefaultMotionThreshold is the percentage of changed pixels that counts as motion.
const DefaultMotionThreshold = 1.0

// Config holds the application wiring. Camera and Detector may be supplied
// directly; otherwise they are built from Source and Detection.
type Config struct {
	Source    string
	Camera    capture.Camera
	Detector  detector.Detector
	Detection detector.Config

	PitchInverted   bool
	MotionThreshold float64
	// StreamWidth is the width of encoded preview frames. Zero keeps the
	// capture width.
	StreamWidth int

	IdleFPS     int
	ActiveFPS   int
	IdleTimeout time.Duration

	Publisher *telemetry.Publisher
	// Frames receives annotated JPEG frames. Nil disables the overlay.
	Frames *telemetry.FrameSlot
	Sinks  []telemetry.Sink

	Logger zerolog.Logger
}

// App orchestrates capture, detection, decision and publication.
type App struct {
	config    Config
	camera    capture.Camera
	motion    *capture.MotionDetector
	detector  detector.Detector
	decider   avoidance.Decider
	publisher *telemetry.Publisher
	frames    *telemetry.FrameSlot
	log       zerolog.Logger

	mu      sync.RWMutex
	sinks   []telemetry.Sink
	enabled bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New validates config and builds an App. Detection starts enabled.
func New(config Config) (*App, error) {
	d := config.Detector
	if d == nil {
		md, err := detector.NewMarkerDetector(config.Detection)
		if err != nil {
			return nil, err
		}
		d = md
	}

	cam := config.Camera
	if cam == nil {
		cam = capture.NewCamera(config.Source)
	}

	threshold := config.MotionThreshold
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}

	pub := config.Publisher
	if pub == nil {
		pub = telemetry.NewPublisher()
	}

	if config.IdleFPS <= 0 {
		config.IdleFPS = capture.IdleFPS
	}
	if config.ActiveFPS <= 0 {
		config.ActiveFPS = capture.ActiveFPS
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = capture.IdleTimeout
	}

	return &App{
		config:    config,
		camera:    cam,
		motion:    capture.NewMotionDetector(threshold),
		detector:  d,
		decider:   avoidance.Decider{PitchInverted: config.PitchInverted},
		publisher: pub,
		frames:    config.Frames,
		log:       config.Logger.With().Str("component", "app").Logger(),
		sinks:     append([]telemetry.Sink(nil), config.Sinks...),
		enabled:   true,
	}, nil
}

// Analyze runs detection and the command decision on one BGR frame. It does
// not publish and holds no state between calls.
func (a *App) Analyze(frame *gocv.Mat) (telemetry.Snapshot, error) {
	if frame == nil || frame.Empty() {
		return telemetry.Snapshot{}, detector.ErrEmptyFrame
	}

	objects, err := a.Detector().Detect(frame)
	if err != nil {
		return telemetry.Snapshot{}, err
	}

	w, h := frame.Cols(), frame.Rows()
	center := avoidance.FrameCenter(w, h)
	decision := a.decider.Evaluate(objects, center)

	return telemetry.Snapshot{
		Timestamp: time.Now(),
		Width:     w,
		Height:    h,
		Center:    center,
		Command:   decision.Command,
		Label:     decision.Command.String(),
		Threat:    decision.Threat,
		Targets:   decision.Targets,
		Objects:   objects,
	}, nil
}

// AddSink registers another consumer of published snapshots.
func (a *App) AddSink(s telemetry.Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, s)
}

// SetEnabled pauses or resumes frame processing without closing the camera.
// Resuming drops the motion baseline so the first frame after a pause is not
// compared with one taken before it.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	changed := a.enabled != enabled
	a.enabled = enabled
	a.mu.Unlock()

	if changed && enabled {
		a.motion.Reset()
	}
}

// IsEnabled reports whether frames are being processed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Detector returns the current detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Start opens the camera and starts the frame loop. Starting a running App
// is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		select {
		case <-a.doneCh:
		default:
			return nil
		}
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.config.IdleFPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.log.Info().Str("source", a.config.Source).Msg("avoidance loop started")
	return nil
}

// Stop ends the frame loop and releases the camera, motion baseline and
// detector.
func (a *App) Stop() {
	a.mu.Lock()
	stop, done := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	if err := a.camera.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close camera")
	}
	a.motion.Close()

	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close detector")
		}
	}

	a.log.Info().Uint64("frames", a.publisher.Seq()).Msg("avoidance loop stopped")
}

// Done returns a channel closed when the running loop exits, either through
// Stop or because the source ran out of frames. It returns nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.doneCh
}

// Camera returns the frame source.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Publisher returns the snapshot publisher.
func (a *App) Publisher() *telemetry.Publisher {
	return a.publisher
}

// Frames returns the preview frame slot, or nil when the overlay is disabled.
func (a *App) Frames() *telemetry.FrameSlot {
	return a.frames
}

func isEndOfStream(err error) bool {
	return errors.Is(err, capture.ErrEndOfStream)
}
