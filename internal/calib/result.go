package calib

import (
	"image"

	"gonum.org/v1/gonum/mat"
)

// Result holds the camera parameters produced by one solver run.
type Result struct {
	// CameraMatrix is the 3x3 intrinsic matrix [fx 0 cx; 0 fy cy; 0 0 1].
	CameraMatrix *mat.Dense
	// Distortion is a 1xN row of lens distortion coefficients (k1 k2 p1 p2 k3 ...).
	Distortion *mat.Dense
	// RVecs and TVecs hold one Rodrigues rotation and one translation per sample (n x 3).
	RVecs *mat.Dense
	TVecs *mat.Dense

	RMS       float64
	ImageSize image.Point
}

// Views returns the number of per-frame poses in the result.
func (r *Result) Views() int {
	if r == nil || r.RVecs == nil {
		return 0
	}
	rows, _ := r.RVecs.Dims()
	return rows
}

// FocalLength returns fx and fy.
func (r *Result) FocalLength() (float64, float64) {
	return r.CameraMatrix.At(0, 0), r.CameraMatrix.At(1, 1)
}

// PrincipalPoint returns cx and cy.
func (r *Result) PrincipalPoint() (float64, float64) {
	return r.CameraMatrix.At(0, 2), r.CameraMatrix.At(1, 2)
}

// DenseRows copies a matrix into a row-major slice of slices.
func DenseRows(m mat.Matrix) [][]float64 {
	if m == nil {
		return nil
	}
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// Flatten copies a matrix into a single row-major slice.
func Flatten(m mat.Matrix) []float64 {
	if m == nil {
		return nil
	}
	rows, cols := m.Dims()
	out := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}
