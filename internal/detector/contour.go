package detector

import (
	"image"
	"iter"

	"gocv.io/x/gocv"
)

// Contour is the ordered boundary of a connected region, in pixel coordinates.
// The last point connects back to the first.
type Contour []image.Point

// ContourExtractor yields the outer boundaries of the foreground regions of a
// binary mask. Nested boundaries are not reported and no ordering is implied.
type ContourExtractor interface {
	ExtractOuterContours(mask gocv.Mat) iter.Seq[Contour]
}

// GoCVExtractor extracts contours with OpenCV's findContours using external
// retrieval and simple chain approximation.
type GoCVExtractor struct{}

// ExtractOuterContours implements ContourExtractor. The mask must stay open
// until iteration finishes.
func (GoCVExtractor) ExtractOuterContours(mask gocv.Mat) iter.Seq[Contour] {
	return func(yield func(Contour) bool) {
		if mask.Empty() {
			return
		}

		contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
		defer contours.Close()

		for i := 0; i < contours.Size(); i++ {
			if !yield(Contour(contours.At(i).ToPoints())) {
				return
			}
		}
	}
}
