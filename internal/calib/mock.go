package calib

import (
	"image"

	"gonum.org/v1/gonum/mat"
)

// MockSolver is a test implementation of the Solver interface.
// It returns a fixed pinhole camera with one pose per sample.
type MockSolver struct {
	rms   float64
	err   error
	calls int
}

// NewMockSolver creates a MockSolver that reports a reprojection error of 0.25.
func NewMockSolver() *MockSolver {
	return &MockSolver{rms: 0.25}
}

// SetRMS sets the reprojection error reported by Solve.
func (m *MockSolver) SetRMS(rms float64) {
	m.rms = rms
}

// SetError sets the error that will be returned by Solve.
func (m *MockSolver) SetError(err error) {
	m.err = err
}

// Calls returns how many times Solve was invoked.
func (m *MockSolver) Calls() int {
	return m.calls
}

// Solve returns the pre-configured result or error.
func (m *MockSolver) Solve(samples []Sample, imageSize image.Point) (*Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	fx := float64(imageSize.X)
	cx, cy := float64(imageSize.X)/2, float64(imageSize.Y)/2

	n := len(samples)
	rvecs := make([]float64, 0, n*3)
	tvecs := make([]float64, 0, n*3)
	for i := 0; i < n; i++ {
		rvecs = append(rvecs, 0.1*float64(i), -0.05*float64(i), 0.01)
		tvecs = append(tvecs, -3, -3, 20+float64(i))
	}

	var rv, tv *mat.Dense
	if n > 0 {
		rv = mat.NewDense(n, 3, rvecs)
		tv = mat.NewDense(n, 3, tvecs)
	}

	return &Result{
		CameraMatrix: mat.NewDense(3, 3, []float64{fx, 0, cx, 0, fx, cy, 0, 0, 1}),
		Distortion:   mat.NewDense(1, 5, []float64{0.1, -0.2, 0.001, 0.002, 0.05}),
		RVecs:        rv,
		TVecs:        tv,
		RMS:          m.rms,
		ImageSize:    imageSize,
	}, nil
}
