package calib

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// Solver computes camera parameters from accumulated correspondences.
type Solver interface {
	// Solve runs a single calibration over all samples using one reference image size.
	Solve(samples []Sample, imageSize image.Point) (*Result, error)
}

// Calibrate runs the solver once over the collection.
// It refuses to run on an empty collection and treats an unusable result as divergence.
func Calibrate(solver Solver, c *Collection) (*Result, error) {
	if c == nil || c.Len() == 0 {
		return nil, ErrNoSamples
	}

	result, err := solver.Solve(c.Samples(), c.ImageSize())
	if err != nil {
		return nil, err
	}

	if err := checkResult(result, c.Len()); err != nil {
		return nil, err
	}

	return result, nil
}

// checkResult rejects results that cannot be persisted meaningfully.
func checkResult(r *Result, views int) error {
	if r == nil || r.CameraMatrix == nil || r.Distortion == nil {
		return fmt.Errorf("%w: solver returned no parameters", ErrSolverDivergence)
	}
	if math.IsNaN(r.RMS) || math.IsInf(r.RMS, 0) || r.RMS <= 0 {
		return fmt.Errorf("%w: reprojection error %v", ErrSolverDivergence, r.RMS)
	}
	if rows, cols := r.CameraMatrix.Dims(); rows != 3 || cols != 3 {
		return fmt.Errorf("%w: camera matrix is %dx%d", ErrSolverDivergence, rows, cols)
	}
	if fx, fy := r.FocalLength(); !(fx > 0) || !(fy > 0) {
		return fmt.Errorf("%w: focal length %g, %g", ErrSolverDivergence, fx, fy)
	}
	if r.Views() != views || r.TVecs == nil {
		return fmt.Errorf("%w: %d poses for %d samples", ErrSolverDivergence, r.Views(), views)
	}
	return nil
}

// OpenCVSolver calibrates with cv::calibrateCamera.
type OpenCVSolver struct {
	Flags gocv.CalibFlag
}

// NewOpenCVSolver creates a solver using OpenCV's default calibration flags.
func NewOpenCVSolver() *OpenCVSolver {
	return &OpenCVSolver{}
}

// Solve implements Solver.
func (s *OpenCVSolver) Solve(samples []Sample, imageSize image.Point) (*Result, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	objectPoints := gocv.NewPoints3fVector()
	defer objectPoints.Close()
	imagePoints := gocv.NewPoints2fVector()
	defer imagePoints.Close()

	for _, sample := range samples {
		ref := gocv.NewPoint3fVectorFromPoints(sample.Reference)
		objectPoints.Append(ref)
		ref.Close()

		det := gocv.NewPoint2fVectorFromPoints(sample.Detected)
		imagePoints.Append(det)
		det.Close()
	}

	cameraMatrix := gocv.NewMat()
	defer cameraMatrix.Close()
	distCoeffs := gocv.NewMat()
	defer distCoeffs.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	rms := gocv.CalibrateCamera(objectPoints, imagePoints, imageSize,
		&cameraMatrix, &distCoeffs, &rvecs, &tvecs, s.Flags)

	if cameraMatrix.Empty() || distCoeffs.Empty() {
		return nil, fmt.Errorf("%w: empty camera matrix", ErrSolverDivergence)
	}

	rv, err := vectorsToDense(rvecs)
	if err != nil {
		return nil, fmt.Errorf("rotation vectors: %w", err)
	}
	tv, err := vectorsToDense(tvecs)
	if err != nil {
		return nil, fmt.Errorf("translation vectors: %w", err)
	}

	return &Result{
		CameraMatrix: matToDense(cameraMatrix),
		Distortion:   matToDense(distCoeffs),
		RVecs:        rv,
		TVecs:        tv,
		RMS:          rms,
		ImageSize:    imageSize,
	}, nil
}

// matToDense copies a single-channel Mat into a gonum matrix.
func matToDense(m gocv.Mat) *mat.Dense {
	src := m
	if m.Type() != gocv.MatTypeCV64F {
		converted := gocv.NewMat()
		defer converted.Close()
		m.ConvertTo(&converted, gocv.MatTypeCV64F)
		src = converted
	}

	rows, cols := src.Rows(), src.Cols()
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, src.GetDoubleAt(i, j))
		}
	}
	return mat.NewDense(rows, cols, data)
}

// vectorsToDense flattens the per-view vectors OpenCV returns into an n x 3 matrix.
// OpenCV hands them back either as an n x 1 three-channel Mat or as an n x 3 Mat.
func vectorsToDense(m gocv.Mat) (*mat.Dense, error) {
	if m.Empty() {
		return nil, fmt.Errorf("%w: no per-view vectors", ErrSolverDivergence)
	}

	var data []float64
	switch {
	case m.Channels() == 3:
		for i := 0; i < m.Rows(); i++ {
			for j := 0; j < m.Cols(); j++ {
				v := m.GetVecdAt(i, j)
				data = append(data, v[0], v[1], v[2])
			}
		}
	case m.Cols() == 3:
		for i := 0; i < m.Rows(); i++ {
			for j := 0; j < 3; j++ {
				data = append(data, m.GetDoubleAt(i, j))
			}
		}
	default:
		return nil, fmt.Errorf("unexpected layout %dx%dx%d", m.Rows(), m.Cols(), m.Channels())
	}

	return mat.NewDense(len(data)/3, 3, data), nil
}
