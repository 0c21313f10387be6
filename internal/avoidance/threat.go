package avoidance

import (
	"image"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/avoid/internal/detector"
)

// Dangerous returns the objects classified as dangerous obstacles, preserving
// input order.
func Dangerous(objects []detector.Object) []detector.Object {
	var out []detector.Object
	for _, o := range objects {
		if o.Dangerous() {
			out = append(out, o)
		}
	}
	return out
}

// SelectThreat returns the dangerous obstacle whose centroid is closest to
// center. Objects of any other class are ignored. On equal distance the
// earliest object wins. ok is false when there is no dangerous obstacle.
func SelectThreat(objects []detector.Object, center image.Point) (threat detector.Object, ok bool) {
	c := toVec(center)
	best := 0.0

	for _, o := range Dangerous(objects) {
		d := r2.Norm(r2.Sub(toVec(o.Centroid), c))
		if !ok || d < best {
			threat, best, ok = o, d, true
		}
	}

	return threat, ok
}

func toVec(p image.Point) r2.Vec {
	return r2.Vec{X: float64(p.X), Y: float64(p.Y)}
}
