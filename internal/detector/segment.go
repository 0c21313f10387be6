package detector

import (
	"gocv.io/x/gocv"
)

// Segment thresholds an HSV frame against every range of cr and returns the
// union as a single-channel 8-bit mask (255 inside, 0 outside). A colour with
// no ranges yields an all-zero mask. The caller is responsible for closing the
// returned Mat.
func Segment(hsv gocv.Mat, cr ColorRange) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), hsv.Rows(), hsv.Cols(), gocv.MatTypeCV8U)

	part := gocv.NewMat()
	defer part.Close()

	for _, r := range cr.Ranges {
		gocv.InRangeWithScalar(hsv, r.lower(), r.upper(), &part)
		gocv.BitwiseOr(mask, part, &mask)
	}

	return mask
}
