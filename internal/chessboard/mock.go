package chessboard

import (
	"gocv.io/x/gocv"
)

// MockFinder is a test implementation of the CornerFinder interface.
// It allows tests to control which calls report a detected board.
type MockFinder struct {
	found    bool
	sequence []bool
	calls    int
}

// NewMockFinder creates a MockFinder that always reports a detected board.
func NewMockFinder() *MockFinder {
	return &MockFinder{found: true}
}

// SetFound sets the result of every call not covered by a sequence.
func (m *MockFinder) SetFound(found bool) {
	m.found = found
}

// SetSequence sets per-call results; once exhausted the SetFound value applies.
func (m *MockFinder) SetSequence(seq []bool) {
	m.sequence = seq
	m.calls = 0
}

// Calls returns the number of FindCorners invocations.
func (m *MockFinder) Calls() int {
	return m.calls
}

// FindCorners returns an evenly spaced grid with the target's corner count when found.
func (m *MockFinder) FindCorners(gray gocv.Mat, target Target) ([]gocv.Point2f, bool) {
	found := m.found
	if m.calls < len(m.sequence) {
		found = m.sequence[m.calls]
	}
	m.calls++

	if !found {
		return nil, false
	}

	return GridCorners(target, 40, 40, 20), true
}

// GridCorners lays out the target's corners on an axis-aligned pixel grid.
func GridCorners(target Target, originX, originY, step float32) []gocv.Point2f {
	corners := make([]gocv.Point2f, 0, target.Corners())
	for j := 0; j < target.Rows; j++ {
		for i := 0; i < target.Cols; i++ {
			corners = append(corners, gocv.Point2f{
				X: originX + step*float32(i),
				Y: originY + step*float32(j),
			})
		}
	}
	return corners
}
