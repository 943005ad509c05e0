// Package capture supplies calibration frames from files or a camera using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Requested resolution when none is configured.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEmptyFrame is returned when the device hands back a frame with no pixels.
	ErrEmptyFrame = errors.New("captured frame is empty")
)

// Camera is a frame-producing device.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// DeviceCamera reads frames from a local video device through gocv.VideoCapture.
type DeviceCamera struct {
	deviceID int
	want     image.Point
	got      image.Point
	capture  *gocv.VideoCapture
	mu       sync.Mutex
}

// NewCamera creates a camera for deviceID requesting width x height.
// Non-positive dimensions fall back to 640x480.
func NewCamera(deviceID, width, height int) *DeviceCamera {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}

	return &DeviceCamera{
		deviceID: deviceID,
		want:     image.Pt(width, height),
	}
}

// Open opens the device and requests the configured resolution.
// Opening an open camera is a no-op.
func (c *DeviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("open device %d: %w", c.deviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("device %d did not open", c.deviceID)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.want.X))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.want.Y))

	// Drivers may settle on a different mode than requested.
	c.got = image.Pt(int(vc.Get(gocv.VideoCaptureFrameWidth)), int(vc.Get(gocv.VideoCaptureFrameHeight)))
	c.capture = vc

	return nil
}

// Close releases the device.
func (c *DeviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	return err
}

// ReadFrame grabs one frame. The caller closes the returned Mat.
func (c *DeviceCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	frame := gocv.NewMat()
	if ok := c.capture.Read(&frame); !ok {
		frame.Close()
		return nil, fmt.Errorf("read device %d failed", c.deviceID)
	}
	if frame.Empty() {
		frame.Close()
		return nil, ErrEmptyFrame
	}

	return &frame, nil
}

// IsOpen reports whether the device is open.
func (c *DeviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.capture != nil
}

// Requested returns the resolution asked of the driver.
func (c *DeviceCamera) Requested() image.Point {
	return c.want
}

// Resolution returns the frame size the driver reported after Open,
// or the zero point while closed.
func (c *DeviceCamera) Resolution() image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return image.Point{}
	}
	return c.got
}
