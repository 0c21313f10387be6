package app

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/avoid/internal/capture"
	"github.com/ayusman/avoid/internal/overlay"
	"github.com/ayusman/avoid/internal/telemetry"
)

// runPipeline reads and processes frames until stop is closed or the source
// ends. Motion only changes how often frames are read; every frame read is
// analysed the same way.
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	rate := capture.NewRateController(a.config.IdleFPS, a.config.ActiveFPS, a.config.IdleTimeout)
	ticker := time.NewTicker(rate.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		frame, err := a.camera.ReadFrame()
		if isEndOfStream(err) {
			a.log.Info().Msg("source ended")
			return
		}
		if err != nil {
			a.log.Warn().Err(err).Msg("read frame")
			continue
		}

		moved, changed := a.motion.Detect(frame)
		if fps, switched := rate.Observe(moved, time.Now()); switched {
			a.camera.SetFPS(fps)
			ticker.Reset(rate.Interval())
			a.log.Debug().Int("fps", fps).Bool("active", rate.Active()).Float64("changed_pct", changed).Msg("capture rate changed")
		}

		a.process(frame)
		frame.Close()
	}
}

// process analyses one frame, publishes the snapshot, feeds the sinks and
// renders the preview.
func (a *App) process(frame *gocv.Mat) {
	snap, err := a.Analyze(frame)
	if err != nil {
		a.log.Warn().Err(err).Msg("analyse frame")
		return
	}

	prev := a.publisher.Latest()
	snap = a.publisher.Publish(snap)
	if snap.Command != prev.Command {
		ev := a.log.Info().Uint64("seq", snap.Seq).Str("command", snap.Label)
		if snap.Threat != nil {
			ev = ev.Int("threat_x", snap.Threat.X).Int("threat_y", snap.Threat.Y)
		}
		ev.Msg("command changed")
	}

	a.mu.RLock()
	sinks := a.sinks
	a.mu.RUnlock()
	for _, s := range sinks {
		if err := s.Send(snap); err != nil {
			a.log.Warn().Err(err).Uint64("seq", snap.Seq).Msg("sink failed")
		}
	}

	if a.frames != nil {
		a.render(frame, snap)
	}
}

func (a *App) render(frame *gocv.Mat, snap telemetry.Snapshot) {
	overlay.Draw(frame, snap)
	data, err := overlay.Encode(*frame, a.config.StreamWidth)
	if err != nil {
		a.log.Warn().Err(err).Msg("encode preview")
		return
	}
	a.frames.Put(data)
}
