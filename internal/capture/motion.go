package capture

import (
	"image"

	"gocv.io/x/gocv"
)

// Motion measurement constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
	// DefaultStillThreshold is the changed-pixel percentage above which a board counts as moving.
	DefaultStillThreshold = 2.0
)

// MotionDetector compares consecutive frames to tell whether the board is
// being held still. Frames of a moving board blur the corners, so saving is
// refused while the detector reports motion.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	last        float64
}

// NewMotionDetector creates a detector. A threshold <= 0 disables it:
// every frame is reported as still.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Enabled reports whether the detector gates anything.
func (m *MotionDetector) Enabled() bool {
	return m.threshold > 0
}

// Measure returns the percentage of pixels that changed since the previous frame.
// The first frame, and frames whose size differs from the previous one, measure 0.
func (m *MotionDetector) Measure(frame gocv.Mat) float64 {
	if frame.Empty() {
		return 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(GaussianBlurSize, GaussianBlurSize), 0, 0, gocv.BorderDefault)

	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		m.last = 0
		return 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)
	m.last = changed

	return changed
}

// Still measures frame and reports whether it is below the motion threshold.
func (m *MotionDetector) Still(frame gocv.Mat) bool {
	if !m.Enabled() {
		return true
	}
	return m.Measure(frame) <= m.threshold
}

// Last returns the most recent measurement.
func (m *MotionDetector) Last() float64 {
	return m.last
}

// Close releases the stored reference frame.
func (m *MotionDetector) Close() {
	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.initialized = false
}
