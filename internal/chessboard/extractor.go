package chessboard

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// Extraction is the outcome of looking for the target in one image.
type Extraction struct {
	Found     bool
	Corners   []gocv.Point2f
	ImageSize image.Point
}

// Extractor turns images into detected corner sets for a fixed target.
type Extractor struct {
	target Target
	finder CornerFinder
}

// NewExtractor creates an Extractor for the target using the given finder.
func NewExtractor(target Target, finder CornerFinder) *Extractor {
	return &Extractor{
		target: target,
		finder: finder,
	}
}

// Target returns the calibration target this extractor looks for.
func (e *Extractor) Target() Target {
	return e.target
}

// Extract converts img to grayscale and searches it for the target.
// When the board is found the corners are drawn onto img.
func (e *Extractor) Extract(img *gocv.Mat) (Extraction, error) {
	if img == nil || img.Empty() {
		return Extraction{}, errors.New("empty image")
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if img.Channels() > 1 {
		gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	ext := Extraction{
		ImageSize: image.Pt(img.Cols(), img.Rows()),
	}

	corners, found := e.finder.FindCorners(gray, e.target)
	if !found {
		return ext, nil
	}

	ext.Found = true
	ext.Corners = corners

	if img.Channels() > 1 {
		drawCorners(img, e.target.PatternSize(), corners)
	}

	return ext, nil
}

// drawCorners renders the detected pattern with OpenCV's coloured overlay.
func drawCorners(img *gocv.Mat, pattern image.Point, corners []gocv.Point2f) {
	pv := gocv.NewPoint2fVectorFromPoints(corners)
	defer pv.Close()

	m := gocv.NewMatFromPoint2fVector(pv, true)
	defer m.Close()

	gocv.DrawChessboardCorners(img, pattern, m, true)
}
