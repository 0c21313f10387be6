// Package detector finds coloured geometric markers in video frames and
// classifies them by colour and shape.
package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid detector config")

// ErrEmptyFrame is returned when Detect is handed a nil or empty frame.
var ErrEmptyFrame = errors.New("empty frame")

// DefaultNoiseFloor is the minimum contour area, in square pixels, for a
// contour to become an Object.
const DefaultNoiseFloor = 400.0

// Detector defines the interface for marker detection implementations.
type Detector interface {
	// Detect analyzes a BGR video frame and returns every accepted object in
	// colour-table order. The frame is not modified.
	Detect(frame *gocv.Mat) ([]Object, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds the detection parameters. It is loaded once and treated as
// immutable afterwards.
type Config struct {
	// Colors is the ordered colour table. Objects are reported in this order.
	Colors []ColorRange `json:"colors"`

	// Rules maps (colour, shape) pairs to a class. Unlisted pairs are ClassNone.
	Rules []Rule `json:"rules"`

	// NoiseFloor is the minimum contour area in square pixels.
	NoiseFloor float64 `json:"noise_floor"`

	// Shape holds the polygon approximation and geometric tolerances.
	Shape ShapeParams `json:"shape"`
}

// DefaultConfig returns a Config with the stock colour table, rules and tolerances.
func DefaultConfig() Config {
	return Config{
		Colors:     DefaultColorTable(),
		Rules:      DefaultRules(),
		NoiseFloor: DefaultNoiseFloor,
		Shape:      DefaultShapeParams(),
	}
}

// Validate reports the first problem found in the configuration.
func (c Config) Validate() error {
	if c.NoiseFloor < 0 {
		return fmt.Errorf("%w: noise floor %.1f is negative", ErrInvalidConfig, c.NoiseFloor)
	}

	if len(c.Colors) == 0 {
		return fmt.Errorf("%w: colour table is empty", ErrInvalidConfig)
	}

	seen := make(map[Color]bool, len(c.Colors))
	for _, cr := range c.Colors {
		if seen[cr.Color] {
			return fmt.Errorf("%w: colour %s listed twice", ErrInvalidConfig, cr.Color)
		}
		seen[cr.Color] = true

		if err := cr.Validate(); err != nil {
			return err
		}
	}

	if _, err := NewRules(c.Rules); err != nil {
		return err
	}

	return c.Shape.Validate()
}
