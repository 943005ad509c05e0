package calib

import "errors"

var (
	// ErrDetectionMiss means the chessboard was not found in a frame. The frame is skipped.
	ErrDetectionMiss = errors.New("chessboard not detected")

	// ErrSolverDivergence means the solver did not produce usable parameters.
	ErrSolverDivergence = errors.New("calibration solver did not converge")

	// ErrNoSamples is returned when calibration is requested with no accepted samples.
	ErrNoSamples = errors.New("no calibration samples accepted")

	// ErrResourceUnavailable wraps failures to open a device, read a file or create a directory.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrPersistenceMissing is returned when a calibration archive is loaded but does not exist.
	ErrPersistenceMissing = errors.New("calibration archive not found")

	// ErrPointMismatch means a sample's reference and detected point sets differ in length.
	ErrPointMismatch = errors.New("reference and detected point counts differ")

	// ErrSizeMismatch means a frame's size differs from the collection's reference size.
	ErrSizeMismatch = errors.New("frame size differs from earlier samples")
)
