package detector

import (
	"image"
	"math"
)

// Moments holds the spatial moments of the region enclosed by a contour.
type Moments struct {
	M00 float64
	M10 float64
	M01 float64
}

// ContourMoments computes the zeroth and first order moments of the polygon
// described by c using Green's theorem, matching OpenCV's contour moments.
// The sign of the result depends on winding; use Area for a magnitude.
func ContourMoments(c Contour) Moments {
	n := len(c)
	if n < 3 {
		return Moments{}
	}

	var a00, a10, a01 float64
	prev := c[n-1]
	for _, p := range c {
		xp, yp := float64(prev.X), float64(prev.Y)
		x, y := float64(p.X), float64(p.Y)

		cross := xp*y - x*yp
		a00 += cross
		a10 += cross * (xp + x)
		a01 += cross * (yp + y)

		prev = p
	}

	return Moments{
		M00: a00 / 2,
		M10: a10 / 6,
		M01: a01 / 6,
	}
}

// Area returns the enclosed area in square pixels.
func (m Moments) Area() float64 {
	return math.Abs(m.M00)
}

// Centroid returns the area-weighted centre truncated to whole pixels. A
// degenerate region with zero area yields (0, 0).
func (m Moments) Centroid() image.Point {
	if m.M00 == 0 {
		return image.Point{}
	}
	return image.Pt(int(m.M10/m.M00), int(m.M01/m.M00))
}

// Centroid returns the centroid of the region enclosed by c.
func Centroid(c Contour) image.Point {
	return ContourMoments(c).Centroid()
}
