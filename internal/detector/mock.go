package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu      sync.Mutex
	objects []Object
	err     error
	calls   int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetObjects sets the objects that will be returned by Detect.
func (m *MockDetector) SetObjects(objects []Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = objects
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured objects or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.objects, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// RedTriangleAt returns a dangerous obstacle centred on (x, y).
func RedTriangleAt(x, y int) Object {
	return Object{
		Color:    ColorRed,
		Shape:    ShapeTriangle,
		Class:    ClassDangerousObstacle,
		Centroid: image.Pt(x, y),
		Area:     1200,
		Outline:  Contour{image.Pt(x, y-30), image.Pt(x-30, y+20), image.Pt(x+30, y+20)},
	}
}

// BlueSquareAt returns a boundary marker centred on (x, y).
func BlueSquareAt(x, y int) Object {
	return Object{
		Color:    ColorBlue,
		Shape:    ShapeSquare,
		Class:    ClassBoundaryMarker,
		Centroid: image.Pt(x, y),
		Area:     1600,
		Outline:  Contour{image.Pt(x-20, y-20), image.Pt(x+20, y-20), image.Pt(x+20, y+20), image.Pt(x-20, y+20)},
	}
}
