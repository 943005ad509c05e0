package chessboard

import (
	"image"

	"gocv.io/x/gocv"
)

// Default sub-pixel refinement settings.
const (
	DefaultWindow  = 11
	DefaultMaxIter = 30
	DefaultEpsilon = 0.001
)

// CornerFinder locates the interior corners of a chessboard in a grayscale image.
type CornerFinder interface {
	// FindCorners returns the refined corners and whether the full pattern was found.
	// A missing pattern is a normal outcome, not an error.
	FindCorners(gray gocv.Mat, target Target) ([]gocv.Point2f, bool)
}

// RefineConfig controls the sub-pixel corner search.
type RefineConfig struct {
	// Window is the half side length of the search area; 11 searches 23x23 pixels.
	Window  int
	MaxIter int
	Epsilon float64
}

// DefaultRefineConfig returns an 11x11 window stopped after 30 iterations or 0.001 px movement.
func DefaultRefineConfig() RefineConfig {
	return RefineConfig{
		Window:  DefaultWindow,
		MaxIter: DefaultMaxIter,
		Epsilon: DefaultEpsilon,
	}
}

// OpenCVFinder finds corners with cv::findChessboardCorners and refines them with cv::cornerSubPix.
type OpenCVFinder struct {
	refine RefineConfig
}

// NewOpenCVFinder creates a finder with the given refinement settings.
func NewOpenCVFinder(refine RefineConfig) *OpenCVFinder {
	return &OpenCVFinder{refine: refine}
}

// FindCorners implements CornerFinder.
func (f *OpenCVFinder) FindCorners(gray gocv.Mat, target Target) ([]gocv.Point2f, bool) {
	if gray.Empty() {
		return nil, false
	}

	corners := gocv.NewMat()
	defer corners.Close()

	found := gocv.FindChessboardCorners(gray, target.PatternSize(), &corners,
		gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage)
	if !found || corners.Empty() {
		return nil, false
	}

	criteria := gocv.NewTermCriteria(f.criteriaType(), f.refine.MaxIter, f.refine.Epsilon)
	win := image.Pt(f.refine.Window, f.refine.Window)

	// zeroZone (-1,-1): no dead zone in the middle of the search window
	gocv.CornerSubPix(gray, &corners, win, image.Pt(-1, -1), criteria)

	pv := gocv.NewPoint2fVectorFromMat(corners)
	defer pv.Close()

	points := pv.ToPoints()
	if len(points) != target.Corners() {
		return nil, false
	}
	return points, true
}

func (f *OpenCVFinder) criteriaType() gocv.TermCriteriaType {
	var typ gocv.TermCriteriaType
	if f.refine.MaxIter > 0 {
		typ |= gocv.MaxIter
	}
	if f.refine.Epsilon > 0 {
		typ |= gocv.EPS
	}
	return typ
}
