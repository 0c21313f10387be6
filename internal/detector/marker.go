package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// Object is a marker accepted in a single frame.
type Object struct {
	Color    Color       `json:"color"`
	Shape    Shape       `json:"shape"`
	Class    Class       `json:"class"`
	Centroid image.Point `json:"centroid"`
	Area     float64     `json:"area"`

	// Outline is the polygon approximation, kept for overlay drawing.
	Outline Contour `json:"-"`
}

// Dangerous reports whether the object is a dangerous obstacle.
func (o Object) Dangerous() bool {
	return o.Class == ClassDangerousObstacle
}

// MarkerDetector implements Detector with HSV colour segmentation followed by
// contour shape analysis.
type MarkerDetector struct {
	config     Config
	classifier *ObjectClassifier
	extractor  ContourExtractor
}

// NewMarkerDetector validates config and creates a detector backed by OpenCV
// contour extraction.
func NewMarkerDetector(config Config) (*MarkerDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	classifier, err := NewObjectClassifier(config.NoiseFloor, config.Rules)
	if err != nil {
		return nil, err
	}

	return &MarkerDetector{
		config:     config,
		classifier: classifier,
		extractor:  GoCVExtractor{},
	}, nil
}

// SetExtractor replaces the contour extractor.
func (d *MarkerDetector) SetExtractor(e ContourExtractor) {
	if e == nil {
		return
	}
	d.extractor = e
}

// Config returns the configuration the detector was built with.
func (d *MarkerDetector) Config() Config {
	return d.config
}

// Detect converts frame to HSV and runs DetectHSV.
func (d *MarkerDetector) Detect(frame *gocv.Mat) ([]Object, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(*frame, &hsv, gocv.ColorBGRToHSV)

	return d.DetectHSV(hsv), nil
}

// DetectHSV segments an HSV frame colour by colour and returns the accepted
// objects in colour-table order, then contour order.
func (d *MarkerDetector) DetectHSV(hsv gocv.Mat) []Object {
	objects := make([]Object, 0)

	for _, cr := range d.config.Colors {
		mask := Segment(hsv, cr)
		for c := range d.extractor.ExtractOuterContours(mask) {
			if obj, ok := d.inspect(cr.Color, c); ok {
				objects = append(objects, obj)
			}
		}
		mask.Close()
	}

	return objects
}

// inspect turns a single contour into an Object. The area check runs before
// any shape work so speckle is cheap to discard.
func (d *MarkerDetector) inspect(color Color, c Contour) (Object, bool) {
	m := ContourMoments(c)
	area := m.Area()
	if !d.classifier.Accepts(area) {
		return Object{}, false
	}

	geom := d.config.Shape.Measure(c)
	shape := d.config.Shape.Label(geom)
	class, _ := d.classifier.Classify(color, shape, area)

	return Object{
		Color:    color,
		Shape:    shape,
		Class:    class,
		Centroid: m.Centroid(),
		Area:     area,
		Outline:  geom.Approx,
	}, true
}

// Close is a no-op; the detector holds no native resources between frames.
func (d *MarkerDetector) Close() error {
	return nil
}
