package capture

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// sceneWithBox returns a black 640x480 frame with a white box drawn on it.
func sceneWithBox(t *testing.T, box image.Rectangle) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	if !box.Empty() {
		gocv.Rectangle(&m, box, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNewMotionDetector(t *testing.T) {
	md := NewMotionDetector(2.5)
	defer md.Close()

	assert.Equal(t, 2.5, md.threshold)
	assert.False(t, md.primed)
}

func TestMotionDetector_SetThreshold(t *testing.T) {
	md := NewMotionDetector(1)
	defer md.Close()

	md.SetThreshold(4)
	assert.Equal(t, 4.0, md.threshold)

	md.SetThreshold(0)
	md.SetThreshold(-2)
	assert.Equal(t, 4.0, md.threshold, "non-positive thresholds are ignored")
}

func TestMotionDetector_NilAndEmpty(t *testing.T) {
	md := NewMotionDetector(1)
	defer md.Close()

	moved, changed := md.Detect(nil)
	assert.False(t, moved)
	assert.Zero(t, changed)

	empty := gocv.NewMat()
	defer empty.Close()
	moved, _ = md.Detect(&empty)
	assert.False(t, moved)
	assert.False(t, md.primed)
}

func TestMotionDetector_Scenes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tests := []struct {
		name      string
		threshold float64
		before    image.Rectangle
		after     image.Rectangle
		moved     bool
		minPct    float64
		maxPct    float64
	}{
		{name: "static scene", threshold: 1, maxPct: 0},
		{name: "box appears", threshold: 1, after: image.Rect(200, 140, 440, 340), moved: true, minPct: 10, maxPct: 30},
		{name: "box shifts", threshold: 1, before: image.Rect(100, 100, 300, 300), after: image.Rect(340, 100, 540, 300), moved: true, minPct: 15},
		{name: "speck below threshold", threshold: 1, after: image.Rect(300, 200, 310, 210), maxPct: 1},
		{name: "box under high threshold", threshold: 50, after: image.Rect(200, 140, 440, 340), minPct: 10, maxPct: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := NewMotionDetector(tt.threshold)
			defer md.Close()

			first := sceneWithBox(t, tt.before)
			second := sceneWithBox(t, tt.after)

			moved, changed := md.Detect(&first)
			require.False(t, moved, "first frame only primes")
			require.Zero(t, changed)
			require.True(t, md.primed)

			moved, changed = md.Detect(&second)
			assert.Equal(t, tt.moved, moved)
			assert.GreaterOrEqual(t, changed, tt.minPct)
			if tt.maxPct > 0 || !tt.moved {
				assert.LessOrEqual(t, changed, tt.maxPct)
			}
		})
	}
}

func TestMotionDetector_ComparesWithPreviousFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1)
	defer md.Close()

	dark := sceneWithBox(t, image.Rectangle{})
	lit := sceneWithBox(t, image.Rect(200, 140, 440, 340))

	md.Detect(&dark)
	moved, _ := md.Detect(&lit)
	require.True(t, moved)

	moved, changed := md.Detect(&lit)
	assert.False(t, moved, "baseline advances to the last frame")
	assert.Zero(t, changed)
}

func TestMotionDetector_ResolutionChangeReprimes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1)
	defer md.Close()

	large := sceneWithBox(t, image.Rectangle{})
	small := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer small.Close()
	small.SetTo(gocv.NewScalar(255, 255, 255, 0))

	md.Detect(&large)
	moved, changed := md.Detect(&small)
	assert.False(t, moved)
	assert.Zero(t, changed)
	assert.Equal(t, 240, md.prev.Rows())
}

func TestMotionDetector_GrayInput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1)
	defer md.Close()

	a := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC1)
	defer a.Close()
	b := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC1)
	defer b.Close()
	b.SetTo(gocv.NewScalar(200, 0, 0, 0))

	md.Detect(&a)
	moved, changed := md.Detect(&b)
	assert.True(t, moved)
	assert.InDelta(t, 100, changed, 0.01)
}

func TestMotionDetector_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1)
	defer md.Close()

	dark := sceneWithBox(t, image.Rectangle{})
	lit := sceneWithBox(t, image.Rect(200, 140, 440, 340))

	md.Detect(&dark)
	md.Reset()
	assert.False(t, md.primed)
	assert.True(t, md.prev.Empty())

	moved, changed := md.Detect(&lit)
	assert.False(t, moved, "first frame after Reset primes again")
	assert.Zero(t, changed)
}
