package capture

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/camcal/internal/calib"
)

// DefaultReadRetries is how many consecutive failed device reads are tolerated.
const DefaultReadRetries = 30

// Frame is one image handed to the calibration loop.
// The receiver owns Image and must close it.
type Frame struct {
	Image gocv.Mat
	Name  string
}

// FrameSource produces images one at a time.
// Next returns io.EOF once a finite source is exhausted.
type FrameSource interface {
	Next() (Frame, error)
	Close() error
}

// FileSource reads a fixed, ordered list of image files.
type FileSource struct {
	paths []string
	index int
}

// NewFileSource creates a source over the given image paths.
func NewFileSource(paths []string) *FileSource {
	return &FileSource{paths: paths}
}

// Len returns the number of files the source will produce.
func (s *FileSource) Len() int {
	return len(s.paths)
}

// Next decodes the next file as a colour image.
func (s *FileSource) Next() (Frame, error) {
	if s.index >= len(s.paths) {
		return Frame{}, io.EOF
	}

	path := s.paths[s.index]
	s.index++

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return Frame{}, fmt.Errorf("%w: cannot read image %s", calib.ErrResourceUnavailable, path)
	}

	return Frame{Image: img, Name: filepath.Base(path)}, nil
}

// Close implements FrameSource. FileSource holds no open handles.
func (s *FileSource) Close() error {
	return nil
}

// DeviceSource polls a camera for frames. It never runs out on its own.
type DeviceSource struct {
	camera  Camera
	retries int
	backoff time.Duration
	count   int
}

// NewDeviceSource opens the camera and wraps it as a FrameSource.
func NewDeviceSource(camera Camera) (*DeviceSource, error) {
	if err := camera.Open(); err != nil {
		return nil, fmt.Errorf("%w: open camera: %v", calib.ErrResourceUnavailable, err)
	}

	return &DeviceSource{
		camera:  camera,
		retries: DefaultReadRetries,
		backoff: 10 * time.Millisecond,
	}, nil
}

// SetRetries changes how many consecutive read failures are tolerated.
func (s *DeviceSource) SetRetries(retries int) {
	if retries < 1 {
		retries = 1
	}
	s.retries = retries
}

// Next reads the next frame, retrying transient read failures.
func (s *DeviceSource) Next() (Frame, error) {
	var lastErr error

	for attempt := 0; attempt < s.retries; attempt++ {
		mat, err := s.camera.ReadFrame()
		if err == nil {
			name := fmt.Sprintf("frame_%d", s.count)
			s.count++
			return Frame{Image: *mat, Name: name}, nil
		}

		lastErr = err
		if errors.Is(err, ErrCameraNotOpen) {
			break
		}
		time.Sleep(s.backoff)
	}

	return Frame{}, fmt.Errorf("%w: read camera: %v", calib.ErrResourceUnavailable, lastErr)
}

// Close releases the camera.
func (s *DeviceSource) Close() error {
	return s.camera.Close()
}
