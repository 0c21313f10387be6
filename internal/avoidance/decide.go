package avoidance

import (
	"image"

	"github.com/ayusman/avoid/internal/detector"
)

// Decision is the outcome of evaluating one frame.
type Decision struct {
	Command Command      `json:"command"`
	Threat  *image.Point `json:"threat,omitempty"`
	Targets Attitude     `json:"targets"`
}

// Decider maps a threat position to a command. The zero value follows image
// coordinates, where y grows downwards.
type Decider struct {
	// PitchInverted flips the vertical sense for cameras mounted upside down.
	PitchInverted bool
}

// FrameCenter returns the centre of a width x height frame using integer division.
func FrameCenter(width, height int) image.Point {
	return image.Pt(width/2, height/2)
}

// Decide returns the command for a threat at the given position, or Clear when
// threat is nil. The axis with the larger offset from center wins; an exact tie
// goes to the pitch axis.
func (d Decider) Decide(center image.Point, threat *image.Point) Command {
	if threat == nil {
		return Clear
	}

	dx := threat.X - center.X
	dy := threat.Y - center.Y
	if d.PitchInverted {
		dy = -dy
	}

	if abs(dx) > abs(dy) {
		if dx > 0 {
			return RollLeft
		}
		return RollRight
	}

	if dy > 0 {
		return PitchUp
	}
	return PitchDown
}

// Evaluate selects the threat among objects and decides the command for it.
func (d Decider) Evaluate(objects []detector.Object, center image.Point) Decision {
	var pos *image.Point
	if threat, ok := SelectThreat(objects, center); ok {
		p := threat.Centroid
		pos = &p
	}

	cmd := d.Decide(center, pos)
	return Decision{
		Command: cmd,
		Threat:  pos,
		Targets: cmd.Targets(),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
