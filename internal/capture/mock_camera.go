package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// errNoFrames is returned by MockCamera once a non-looping playback is used up.
var errNoFrames = errors.New("mock camera has no more frames")

// MockCamera plays back a fixed list of frames in place of a device.
type MockCamera struct {
	frames   []*gocv.Mat
	index    int
	loop     bool
	openErr  error
	failures int
	opened   int
	reads    int
	open     bool
	mu       sync.Mutex
}

// NewMockCamera creates a camera over frames. With loop set, playback restarts
// after the last frame; otherwise reads fail once the frames are used up.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
	}
}

// SetOpenError makes Open fail, as an unplugged device would.
func (c *MockCamera) SetOpenError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

// SetReadFailures makes the next n reads fail before playback resumes.
func (c *MockCamera) SetReadFailures(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = n
}

// Open starts playback from the first frame.
func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.openErr != nil {
		return c.openErr
	}
	c.open = true
	c.index = 0
	c.opened++
	return nil
}

// Close stops playback.
func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// ReadFrame returns a clone of the next frame.
func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrCameraNotOpen
	}
	c.reads++

	if c.failures > 0 {
		c.failures--
		return nil, ErrEmptyFrame
	}

	if c.index >= len(c.frames) {
		if !c.loop || len(c.frames) == 0 {
			return nil, errNoFrames
		}
		c.index = 0
	}

	frame := c.frames[c.index].Clone()
	c.index++
	return &frame, nil
}

// IsOpen reports whether playback is running.
func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Opened returns how many times Open succeeded.
func (c *MockCamera) Opened() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Reads returns how many reads were attempted while open.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
