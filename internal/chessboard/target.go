// Package chessboard detects a chessboard calibration target and describes its geometry.
package chessboard

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Target describes the calibration chessboard by its interior corners.
// A standard 8x8 board has 7x7 interior corners.
type Target struct {
	Cols       int     // interior corners along a row
	Rows       int     // interior corners along a column
	SquareSize float64 // physical edge length of one square, e.g. millimetres
}

// DefaultTarget returns a 7x7 interior-corner board with unit squares.
func DefaultTarget() Target {
	return Target{Cols: 7, Rows: 7, SquareSize: 1}
}

// Validate checks the target geometry.
func (t Target) Validate() error {
	if t.Cols < 2 || t.Rows < 2 {
		return fmt.Errorf("chessboard needs at least 2x2 interior corners, got %dx%d", t.Cols, t.Rows)
	}
	if t.SquareSize <= 0 {
		return fmt.Errorf("square size must be positive, got %g", t.SquareSize)
	}
	return nil
}

// PatternSize returns the interior corner grid in the form OpenCV expects.
func (t Target) PatternSize() image.Point {
	return image.Pt(t.Cols, t.Rows)
}

// Corners returns the number of interior corners.
func (t Target) Corners() int {
	return t.Cols * t.Rows
}

// ReferencePoints returns the 3D corner positions on the Z=0 plane, scaled by
// the square size. X advances fastest, matching the left-to-right, top-to-bottom
// order in which corners are detected.
func (t Target) ReferencePoints() []gocv.Point3f {
	points := make([]gocv.Point3f, 0, t.Corners())
	for j := 0; j < t.Rows; j++ {
		for i := 0; i < t.Cols; i++ {
			points = append(points, gocv.Point3f{
				X: float32(float64(i) * t.SquareSize),
				Y: float32(float64(j) * t.SquareSize),
				Z: 0,
			})
		}
	}
	return points
}
