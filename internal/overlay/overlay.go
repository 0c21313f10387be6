// Package overlay draws detections, the selected threat and flight aids onto
// frames for display.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/avoid/internal/detector"
	"github.com/ayusman/avoid/internal/telemetry"
)

// DefaultDisplayWidth is the default width streamed frames are scaled to.
const DefaultDisplayWidth = 800

// Marker geometry in pixels.
const (
	ThreatRadius    = 30
	CrosshairRadius = 25
	CrosshairArm    = 35
)

// Colours are given as RGB; gocv converts them for BGR frames.
var (
	colorDanger   = color.RGBA{R: 255, A: 255}
	colorBoundary = color.RGBA{B: 255, A: 255}
	colorSafe     = color.RGBA{G: 255, A: 255}
	colorLabel    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorYellow   = color.RGBA{R: 255, G: 255, A: 255}
	colorCenter   = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	colorGrid     = color.RGBA{R: 64, G: 64, B: 64, A: 255}
)

// ClassColor returns the outline colour for a class. ok is false for
// ClassNone, which is not drawn.
func ClassColor(c detector.Class) (color.RGBA, bool) {
	switch c {
	case detector.ClassDangerousObstacle:
		return colorDanger, true
	case detector.ClassBoundaryMarker:
		return colorBoundary, true
	case detector.ClassSafeZone:
		return colorSafe, true
	}
	return color.RGBA{}, false
}

// Draw annotates frame in place with the contents of s.
func Draw(frame *gocv.Mat, s telemetry.Snapshot) {
	for _, o := range s.Objects {
		drawObject(frame, o)
	}

	if s.Threat != nil {
		gocv.Circle(frame, *s.Threat, ThreatRadius, colorYellow, 3)
	}

	gocv.PutText(frame, fmt.Sprintf("COMMAND: %s", s.Command), image.Pt(10, 30),
		gocv.FontHersheySimplex, 1, colorYellow, 3)

	drawGrid(frame, frame.Cols(), frame.Rows())
}

func drawObject(frame *gocv.Mat, o detector.Object) {
	c, ok := ClassColor(o.Class)
	if !ok {
		return
	}

	if len(o.Outline) > 1 {
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{o.Outline})
		gocv.Polylines(frame, pv, true, c, 3)
		pv.Close()
	}

	gocv.PutText(frame, o.Class.Label(), image.Pt(o.Centroid.X-50, o.Centroid.Y),
		gocv.FontHersheySimplex, 0.6, colorLabel, 2)
}

func drawGrid(frame *gocv.Mat, width, height int) {
	cx, cy := width/2, height/2
	qw, qh := width/4, height/4

	gocv.Line(frame, image.Pt(cx, 0), image.Pt(cx, height), colorCenter, 2)
	gocv.Line(frame, image.Pt(0, cy), image.Pt(width, cy), colorCenter, 2)

	gocv.Line(frame, image.Pt(qw, 0), image.Pt(qw, height), colorGrid, 1)
	gocv.Line(frame, image.Pt(3*qw, 0), image.Pt(3*qw, height), colorGrid, 1)
	gocv.Line(frame, image.Pt(0, qh), image.Pt(width, qh), colorGrid, 1)
	gocv.Line(frame, image.Pt(0, 3*qh), image.Pt(width, 3*qh), colorGrid, 1)

	gocv.Circle(frame, image.Pt(cx, cy), CrosshairRadius, colorYellow, 1)
	gocv.Line(frame, image.Pt(cx-CrosshairArm, cy), image.Pt(cx+CrosshairArm, cy), colorYellow, 1)
	gocv.Line(frame, image.Pt(cx, cy-CrosshairArm), image.Pt(cx, cy+CrosshairArm), colorYellow, 1)
}

// DisplaySize scales width x height to displayWidth keeping the aspect ratio.
// A non-positive displayWidth keeps the original size.
func DisplaySize(width, height, displayWidth int) image.Point {
	if displayWidth <= 0 || width <= 0 {
		return image.Pt(width, height)
	}
	return image.Pt(displayWidth, displayWidth*height/width)
}

// Encode scales frame to displayWidth and returns it as JPEG bytes.
func Encode(frame gocv.Mat, displayWidth int) ([]byte, error) {
	if frame.Empty() {
		return nil, detector.ErrEmptyFrame
	}

	src := frame
	size := DisplaySize(frame.Cols(), frame.Rows(), displayWidth)
	if size.X != frame.Cols() || size.Y != frame.Rows() {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(frame, &resized, size, 0, 0, gocv.InterpolationLinear)
		src = resized
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, src)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// The native buffer is released on return.
	return append([]byte(nil), buf.GetBytes()...), nil
}
