package detector

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// OpenCV stores 8-bit HSV with hue halved to fit a byte.
const (
	MaxHue        = 180
	MaxSaturation = 255
	MaxValue      = 255
)

// Color identifies a marker colour the detector segments for.
type Color int

const (
	ColorRed Color = iota
	ColorGreen
	ColorBlue
)

var colorNames = [...]string{
	ColorRed:   "red",
	ColorGreen: "green",
	ColorBlue:  "blue",
}

// Colors returns every known colour in canonical order.
func Colors() []Color {
	return []Color{ColorRed, ColorGreen, ColorBlue}
}

func (c Color) String() string {
	if c < 0 || int(c) >= len(colorNames) {
		return fmt.Sprintf("color(%d)", int(c))
	}
	return colorNames[c]
}

// ParseColor converts a colour name such as "red" into a Color.
func ParseColor(s string) (Color, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range colorNames {
		if n == name {
			return Color(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown colour %q", ErrInvalidConfig, s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// HSVRange is an inclusive box in OpenCV 8-bit HSV space.
type HSVRange struct {
	HueLo int `json:"hue_lo"`
	HueHi int `json:"hue_hi"`
	SatLo int `json:"sat_lo"`
	SatHi int `json:"sat_hi"`
	ValLo int `json:"val_lo"`
	ValHi int `json:"val_hi"`
}

// Validate checks that every bound is on scale and no pair is inverted.
func (r HSVRange) Validate() error {
	checks := []struct {
		name   string
		lo, hi int
		max    int
	}{
		{"hue", r.HueLo, r.HueHi, MaxHue},
		{"saturation", r.SatLo, r.SatHi, MaxSaturation},
		{"value", r.ValLo, r.ValHi, MaxValue},
	}

	for _, c := range checks {
		if c.lo < 0 || c.hi > c.max {
			return fmt.Errorf("%w: %s bounds %d-%d outside 0-%d", ErrInvalidConfig, c.name, c.lo, c.hi, c.max)
		}
		if c.lo > c.hi {
			return fmt.Errorf("%w: %s bounds %d-%d inverted", ErrInvalidConfig, c.name, c.lo, c.hi)
		}
	}
	return nil
}

func (r HSVRange) lower() gocv.Scalar {
	return gocv.NewScalar(float64(r.HueLo), float64(r.SatLo), float64(r.ValLo), 0)
}

func (r HSVRange) upper() gocv.Scalar {
	return gocv.NewScalar(float64(r.HueHi), float64(r.SatHi), float64(r.ValHi), 0)
}

// ColorRange pairs a colour with the HSV boxes that select it. Colours whose
// hue straddles the 0/180 seam use two boxes.
type ColorRange struct {
	Color  Color      `json:"color"`
	Ranges []HSVRange `json:"ranges"`
}

// Validate checks the colour has one or two well-formed ranges.
func (cr ColorRange) Validate() error {
	if len(cr.Ranges) == 0 {
		return fmt.Errorf("%w: colour %s has no ranges", ErrInvalidConfig, cr.Color)
	}
	if len(cr.Ranges) > 2 {
		return fmt.Errorf("%w: colour %s has %d ranges, at most 2 allowed", ErrInvalidConfig, cr.Color, len(cr.Ranges))
	}
	for _, r := range cr.Ranges {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("colour %s: %w", cr.Color, err)
		}
	}
	return nil
}

// DefaultColorTable returns the stock red, green and blue ranges.
func DefaultColorTable() []ColorRange {
	return []ColorRange{
		{
			Color: ColorRed,
			Ranges: []HSVRange{
				{HueLo: 0, HueHi: 10, SatLo: 120, SatHi: 255, ValLo: 70, ValHi: 255},
				{HueLo: 170, HueHi: 180, SatLo: 120, SatHi: 255, ValLo: 70, ValHi: 255},
			},
		},
		{
			Color: ColorGreen,
			Ranges: []HSVRange{
				{HueLo: 36, HueHi: 86, SatLo: 100, SatHi: 255, ValLo: 100, ValHi: 255},
			},
		},
		{
			Color: ColorBlue,
			Ranges: []HSVRange{
				{HueLo: 94, HueHi: 126, SatLo: 120, SatHi: 255, ValLo: 100, ValHi: 255},
			},
		},
	}
}
