package detector

import (
	"fmt"
	"strings"
)

// Class is the semantic category of a detected marker.
type Class int

const (
	ClassNone Class = iota
	ClassDangerousObstacle
	ClassBoundaryMarker
	ClassSafeZone
)

var classNames = [...]string{
	ClassNone:              "none",
	ClassDangerousObstacle: "dangerous_obstacle",
	ClassBoundaryMarker:    "boundary_marker",
	ClassSafeZone:          "safe_zone",
}

var classLabels = [...]string{
	ClassNone:              "",
	ClassDangerousObstacle: "Dangerous obstacle",
	ClassBoundaryMarker:    "Boundary marker",
	ClassSafeZone:          "Safe zone",
}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return fmt.Sprintf("class(%d)", int(c))
	}
	return classNames[c]
}

// Label returns the human readable name drawn next to a marker, or "" for ClassNone.
func (c Class) Label() string {
	if c < 0 || int(c) >= len(classLabels) {
		return ""
	}
	return classLabels[c]
}

// ParseClass converts a class name such as "safe_zone" into a Class.
func ParseClass(s string) (Class, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range classNames {
		if n == name {
			return Class(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown class %q", ErrInvalidConfig, s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Class) UnmarshalText(text []byte) error {
	parsed, err := ParseClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Rule binds a (colour, shape) pair to a class.
type Rule struct {
	Color Color `json:"color"`
	Shape Shape `json:"shape"`
	Class Class `json:"class"`
}

// DefaultRules returns the stock mapping: red triangles are dangerous, blue
// squares mark boundaries, green circles are safe zones.
func DefaultRules() []Rule {
	return []Rule{
		{Color: ColorRed, Shape: ShapeTriangle, Class: ClassDangerousObstacle},
		{Color: ColorBlue, Shape: ShapeSquare, Class: ClassBoundaryMarker},
		{Color: ColorGreen, Shape: ShapeCircle, Class: ClassSafeZone},
	}
}

type ruleKey struct {
	color Color
	shape Shape
}

// Rules is the lookup table built from a rule list.
type Rules map[ruleKey]Class

// NewRules builds the lookup table, rejecting pairs bound to two classes.
func NewRules(rules []Rule) (Rules, error) {
	table := make(Rules, len(rules))
	for _, r := range rules {
		k := ruleKey{color: r.Color, shape: r.Shape}
		if existing, ok := table[k]; ok && existing != r.Class {
			return nil, fmt.Errorf("%w: %s %s mapped to both %s and %s", ErrInvalidConfig, r.Color, r.Shape, existing, r.Class)
		}
		table[k] = r.Class
	}
	return table, nil
}

// Lookup returns the class for an exact (colour, shape) match, else ClassNone.
func (r Rules) Lookup(color Color, shape Shape) Class {
	return r[ruleKey{color: color, shape: shape}]
}

// ObjectClassifier filters noise by area and assigns classes.
type ObjectClassifier struct {
	noiseFloor float64
	rules      Rules
}

// NewObjectClassifier creates a classifier with the given noise floor and rules.
func NewObjectClassifier(noiseFloor float64, rules []Rule) (*ObjectClassifier, error) {
	table, err := NewRules(rules)
	if err != nil {
		return nil, err
	}
	return &ObjectClassifier{noiseFloor: noiseFloor, rules: table}, nil
}

// Accepts reports whether a contour of the given area clears the noise floor.
func (c *ObjectClassifier) Accepts(area float64) bool {
	return area >= c.noiseFloor
}

// Classify returns the class of a contour. ok is false when the area is below
// the noise floor and no object should be emitted.
func (c *ObjectClassifier) Classify(color Color, shape Shape, area float64) (class Class, ok bool) {
	if !c.Accepts(area) {
		return ClassNone, false
	}
	return c.rules.Lookup(color, shape), true
}
