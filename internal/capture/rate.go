package capture

import (
	"time"
)

// Frame rate presets.
const (
	IdleFPS     = 5
	ActiveFPS   = 15
	IdleTimeout = 2 * time.Second
)

// RateController picks the capture rate from recent motion. It raises the
// rate as soon as motion is seen and drops back after a quiet period. It is
// not safe for concurrent use.
type RateController struct {
	idle, active int
	timeout      time.Duration
	fps          int
	lastMotion   time.Time
}

// NewRateController returns a controller starting at the idle rate.
func NewRateController(idle, active int, timeout time.Duration) *RateController {
	if idle <= 0 {
		idle = IdleFPS
	}
	if active < idle {
		active = idle
	}
	return &RateController{
		idle:    idle,
		active:  active,
		timeout: timeout,
		fps:     idle,
	}
}

// FPS returns the current rate.
func (r *RateController) FPS() int { return r.fps }

// Interval returns the time between frames at the current rate.
func (r *RateController) Interval() time.Duration {
	return time.Second / time.Duration(r.fps)
}

// Active reports whether the controller is at the active rate.
func (r *RateController) Active() bool { return r.fps == r.active && r.active != r.idle }

// Observe records whether the latest frame moved and returns the rate to use
// from now on. changed is true when the rate differs from before.
func (r *RateController) Observe(motion bool, now time.Time) (fps int, changed bool) {
	prev := r.fps
	switch {
	case motion:
		r.lastMotion = now
		r.fps = r.active
	case r.fps == r.active && now.Sub(r.lastMotion) > r.timeout:
		r.fps = r.idle
	}
	return r.fps, r.fps != prev
}
