package capture

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func TestNewMotionDetector(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		enabled   bool
	}{
		{name: "default threshold", threshold: DefaultStillThreshold, enabled: true},
		{name: "low threshold", threshold: 0.5, enabled: true},
		{name: "disabled", threshold: 0, enabled: false},
		{name: "negative disables", threshold: -1, enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := NewMotionDetector(tt.threshold)
			if md == nil {
				t.Fatal("NewMotionDetector returned nil")
			}
			defer md.Close()

			if md.Enabled() != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", md.Enabled(), tt.enabled)
			}
			if md.initialized {
				t.Error("motion detector should not be initialized initially")
			}
		})
	}
}

func TestMotionDetector_Still(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	// First frame only primes the reference.
	if got := md.Measure(frame1); got != 0 {
		t.Errorf("first frame Measure() = %f, want 0", got)
	}

	if !md.Still(frame2) {
		t.Errorf("identical frames should be still, changed = %f", md.Last())
	}
}

func TestMotionDetector_Moving(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	dark := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer dark.Close()

	bright := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer bright.Close()
	gocv.Rectangle(&bright, image.Rect(100, 100, 400, 400), color.RGBA{255, 255, 255, 0}, -1)

	md.Measure(dark)
	if md.Still(bright) {
		t.Errorf("large change should count as motion, changed = %f", md.Last())
	}
	if md.Last() <= 1.0 {
		t.Errorf("Last() = %f, want > 1.0", md.Last())
	}
}

func TestMotionDetector_Disabled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(0)
	defer md.Close()

	dark := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer dark.Close()
	bright := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer bright.Close()
	bright.SetTo(gocv.NewScalar(255, 255, 255, 0))

	if !md.Still(dark) || !md.Still(bright) {
		t.Error("disabled detector should report every frame as still")
	}
}

func TestMotionDetector_SizeChangeResets(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	small := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer small.Close()
	large := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer large.Close()

	md.Measure(small)
	if got := md.Measure(large); got != 0 {
		t.Errorf("Measure() after size change = %f, want 0", got)
	}
}

func TestMotionDetector_EmptyFrame(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	if got := md.Measure(empty); got != 0 {
		t.Errorf("Measure(empty) = %f, want 0", got)
	}
}
