package calib

import (
	"errors"
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

func TestCalibrate_NoSamples(t *testing.T) {
	solver := NewMockSolver()

	_, err := Calibrate(solver, NewCollection())
	if !errors.Is(err, ErrNoSamples) {
		t.Fatalf("Calibrate() error = %v, want ErrNoSamples", err)
	}

	if solver.Calls() != 0 {
		t.Errorf("solver called %d times on an empty collection", solver.Calls())
	}

	if _, err := Calibrate(solver, nil); !errors.Is(err, ErrNoSamples) {
		t.Errorf("Calibrate(nil) error = %v, want ErrNoSamples", err)
	}
}

func TestCalibrate_SolvesOnce(t *testing.T) {
	solver := NewMockSolver()
	c := NewCollection()
	size := image.Pt(640, 480)
	for _, name := range []string{"a", "b", "c"} {
		if err := c.Add(gridSample(name, 7, 7, size)); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	result, err := Calibrate(solver, c)
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}

	if solver.Calls() != 1 {
		t.Errorf("solver called %d times, want 1", solver.Calls())
	}
	if result.Views() != 3 {
		t.Errorf("Views() = %d, want 3", result.Views())
	}
	if result.ImageSize != size {
		t.Errorf("ImageSize = %v, want %v", result.ImageSize, size)
	}
}

func TestCalibrate_Divergence(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*MockSolver)
	}{
		{"zero rms", func(m *MockSolver) { m.SetRMS(0) }},
		{"nan rms", func(m *MockSolver) { m.SetRMS(math.NaN()) }},
		{"infinite rms", func(m *MockSolver) { m.SetRMS(math.Inf(1)) }},
		{"solver error", func(m *MockSolver) { m.SetError(ErrSolverDivergence) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			solver := NewMockSolver()
			tt.setup(solver)

			c := NewCollection()
			c.Add(gridSample("a", 7, 7, image.Pt(640, 480)))

			_, err := Calibrate(solver, c)
			if !errors.Is(err, ErrSolverDivergence) {
				t.Errorf("Calibrate() error = %v, want ErrSolverDivergence", err)
			}
		})
	}
}

func TestDenseRowsAndFlatten(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})

	rows := DenseRows(m)
	if len(rows) != 2 || len(rows[0]) != 3 || rows[1][2] != 6 {
		t.Errorf("DenseRows() = %v", rows)
	}

	flat := Flatten(m)
	want := []float64{1, 2, 3, 4, 5, 6}
	for i := range want {
		if flat[i] != want[i] {
			t.Fatalf("Flatten() = %v, want %v", flat, want)
		}
	}

	if DenseRows(nil) != nil || Flatten(nil) != nil {
		t.Error("nil matrix should give nil slices")
	}
}

// projectView renders the planar grid through a pinhole camera rotated about x then y.
func projectView(cols, rows int, fx, cx, cy, ax, ay float64, t [3]float64) Sample {
	cosX, sinX := math.Cos(ax), math.Sin(ax)
	cosY, sinY := math.Cos(ay), math.Sin(ay)

	s := Sample{ImageSize: image.Pt(640, 480)}
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			X, Y := float64(i), float64(j)

			// Rx
			y1 := Y * cosX
			z1 := Y * sinX
			// Ry
			x2 := X*cosY + z1*sinY
			z2 := -X*sinY + z1*cosY

			xc, yc, zc := x2+t[0], y1+t[1], z2+t[2]

			// Small deterministic jitter keeps the residual strictly positive.
			jitter := 0.02 * float64((i+j)%3-1)

			s.Reference = append(s.Reference, gocv.Point3f{X: float32(X), Y: float32(Y)})
			s.Detected = append(s.Detected, gocv.Point2f{
				X: float32(fx*xc/zc + cx + jitter),
				Y: float32(fx*yc/zc + cy - jitter),
			})
		}
	}
	return s
}

func TestOpenCVSolver_RecoversIntrinsics_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV calibration in short mode")
	}

	const fx, cx, cy = 800.0, 320.0, 240.0

	poses := []struct {
		ax, ay float64
		t      [3]float64
	}{
		{0.30, 0.00, [3]float64{-3, -2.5, 25}},
		{-0.30, 0.20, [3]float64{-3.5, -2, 24}},
		{0.10, -0.35, [3]float64{-2, -3, 26}},
		{0.25, 0.30, [3]float64{-3, -2, 23}},
		{-0.20, -0.20, [3]float64{-2.5, -2.5, 27}},
	}

	c := NewCollection()
	for _, p := range poses {
		if err := c.Add(projectView(7, 6, fx, cx, cy, p.ax, p.ay, p.t)); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	result, err := Calibrate(NewOpenCVSolver(), c)
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}

	gotFx, gotFy := result.FocalLength()
	if math.Abs(gotFx-fx)/fx > 0.02 || math.Abs(gotFy-fx)/fx > 0.02 {
		t.Errorf("focal length = (%.2f, %.2f), want ~%.0f", gotFx, gotFy, fx)
	}

	if result.Views() != len(poses) {
		t.Errorf("Views() = %d, want %d", result.Views(), len(poses))
	}
	if rows, cols := result.TVecs.Dims(); rows != len(poses) || cols != 3 {
		t.Errorf("TVecs is %dx%d, want %dx3", rows, cols, len(poses))
	}
	if result.RMS > 1 {
		t.Errorf("RMS = %f, want below 1 pixel", result.RMS)
	}
}
