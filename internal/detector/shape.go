package detector

import (
	"fmt"
	"math"
	"strings"

	"gocv.io/x/gocv"
)

// Shape is the geometric label assigned to a contour.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeTriangle
	ShapeSquare
	ShapeRectangle
	ShapeCircle
)

var shapeNames = [...]string{
	ShapeUnknown:   "unknown",
	ShapeTriangle:  "triangle",
	ShapeSquare:    "square",
	ShapeRectangle: "rectangle",
	ShapeCircle:    "circle",
}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return fmt.Sprintf("shape(%d)", int(s))
	}
	return shapeNames[s]
}

// ParseShape converts a shape name such as "triangle" into a Shape.
func ParseShape(s string) (Shape, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range shapeNames {
		if n == name {
			return Shape(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown shape %q", ErrInvalidConfig, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Shape) UnmarshalText(text []byte) error {
	parsed, err := ParseShape(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ShapeParams holds the tolerances used to label a contour.
type ShapeParams struct {
	// ApproxEpsilon is the polygon approximation tolerance as a fraction of
	// the contour perimeter.
	ApproxEpsilon float64 `json:"approx_epsilon"`

	// SquareAspectMin and SquareAspectMax bound the width/height ratio of a
	// four-vertex polygon labelled Square (inclusive).
	SquareAspectMin float64 `json:"square_aspect_min"`
	SquareAspectMax float64 `json:"square_aspect_max"`

	// CircularityMin and CircularityMax bound area / enclosing-circle area for
	// a Circle (exclusive).
	CircularityMin float64 `json:"circularity_min"`
	CircularityMax float64 `json:"circularity_max"`
}

// DefaultShapeParams returns the stock tolerances.
func DefaultShapeParams() ShapeParams {
	return ShapeParams{
		ApproxEpsilon:   0.04,
		SquareAspectMin: 0.90,
		SquareAspectMax: 1.10,
		CircularityMin:  0.75,
		CircularityMax:  1.2,
	}
}

// Validate checks the tolerances describe non-empty intervals.
func (p ShapeParams) Validate() error {
	if p.ApproxEpsilon <= 0 || p.ApproxEpsilon >= 1 {
		return fmt.Errorf("%w: approximation epsilon %.3f must be in (0, 1)", ErrInvalidConfig, p.ApproxEpsilon)
	}
	if p.SquareAspectMin <= 0 || p.SquareAspectMin > p.SquareAspectMax {
		return fmt.Errorf("%w: square aspect bounds %.2f-%.2f invalid", ErrInvalidConfig, p.SquareAspectMin, p.SquareAspectMax)
	}
	if p.CircularityMin < 0 || p.CircularityMin >= p.CircularityMax {
		return fmt.Errorf("%w: circularity bounds %.2f-%.2f invalid", ErrInvalidConfig, p.CircularityMin, p.CircularityMax)
	}
	return nil
}

// Geometry holds the measurements a shape label is derived from.
type Geometry struct {
	// Vertices is the vertex count of the polygon approximation.
	Vertices int
	// Approx is the polygon approximation itself.
	Approx Contour
	// AspectRatio is the bounding box width/height of Approx. Only measured
	// for four-vertex approximations.
	AspectRatio float64
	// Area is the enclosed area of the original contour.
	Area float64
	// Radius is the radius of the minimum enclosing circle of the original
	// contour. Only measured when Vertices is not 3 or 4.
	Radius float64
}

// Circularity returns Area relative to the enclosing circle area, or 0 when
// the circle is degenerate.
func (g Geometry) Circularity() float64 {
	if g.Radius <= 0 {
		return 0
	}
	return g.Area / (math.Pi * g.Radius * g.Radius)
}

// Measure approximates c as a polygon and collects the measurements Label needs.
func (p ShapeParams) Measure(c Contour) Geometry {
	pv := gocv.NewPointVectorFromPoints(c)
	defer pv.Close()

	perimeter := gocv.ArcLength(pv, true)
	approx := gocv.ApproxPolyDP(pv, p.ApproxEpsilon*perimeter, true)
	defer approx.Close()

	g := Geometry{
		Vertices: approx.Size(),
		Approx:   Contour(approx.ToPoints()),
	}

	switch g.Vertices {
	case 3:
	case 4:
		rect := gocv.BoundingRect(approx)
		if rect.Dy() > 0 {
			g.AspectRatio = float64(rect.Dx()) / float64(rect.Dy())
		}
	default:
		g.Area = ContourMoments(c).Area()
		_, _, radius := gocv.MinEnclosingCircle(pv)
		g.Radius = float64(radius)
	}

	return g
}

// Label maps measurements to a shape. Vertex counts are matched exactly: a
// five-vertex approximation is only ever a circle candidate.
func (p ShapeParams) Label(g Geometry) Shape {
	switch g.Vertices {
	case 3:
		return ShapeTriangle
	case 4:
		if g.AspectRatio >= p.SquareAspectMin && g.AspectRatio <= p.SquareAspectMax {
			return ShapeSquare
		}
		return ShapeRectangle
	}

	if g.Radius <= 0 {
		return ShapeUnknown
	}

	c := g.Circularity()
	if c > p.CircularityMin && c < p.CircularityMax {
		return ShapeCircle
	}
	return ShapeUnknown
}

// Classify measures and labels c in one step.
func (p ShapeParams) Classify(c Contour) Shape {
	return p.Label(p.Measure(c))
}
