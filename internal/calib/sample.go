// Package calib accumulates chessboard correspondences and turns them into camera parameters.
package calib

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Sample is one accepted calibration frame.
type Sample struct {
	Name      string
	Reference []gocv.Point3f
	Detected  []gocv.Point2f
	ImageSize image.Point
}

// Collection is the ordered, append-only set of samples for one run.
// The first sample fixes the image size every later sample must match.
type Collection struct {
	samples []Sample
	size    image.Point
}

// NewCollection creates an empty Collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Add appends a sample after checking its point sets and image size.
func (c *Collection) Add(s Sample) error {
	if len(s.Reference) == 0 || len(s.Reference) != len(s.Detected) {
		return fmt.Errorf("%w: %d reference, %d detected", ErrPointMismatch, len(s.Reference), len(s.Detected))
	}

	if s.ImageSize.X <= 0 || s.ImageSize.Y <= 0 {
		return fmt.Errorf("invalid image size %dx%d", s.ImageSize.X, s.ImageSize.Y)
	}

	if len(c.samples) == 0 {
		c.size = s.ImageSize
	} else if s.ImageSize != c.size {
		return fmt.Errorf("%w: got %dx%d, want %dx%d",
			ErrSizeMismatch, s.ImageSize.X, s.ImageSize.Y, c.size.X, c.size.Y)
	}

	c.samples = append(c.samples, s)
	return nil
}

// Len returns the number of accepted samples.
func (c *Collection) Len() int {
	return len(c.samples)
}

// Samples returns the accepted samples in acceptance order.
func (c *Collection) Samples() []Sample {
	return c.samples
}

// ImageSize returns the size shared by all samples, or the zero point when empty.
func (c *Collection) ImageSize() image.Point {
	return c.size
}
