package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// NoKey is returned by PollKey when no key was pressed.
const NoKey = -1

// Display shows images and reports key presses.
type Display interface {
	Show(window string, img gocv.Mat)
	// PollKey waits up to delayMs for a key; 0 waits indefinitely.
	PollKey(delayMs int) int
	Close() error
}

// WindowDisplay renders into HighGUI windows, created on first use.
type WindowDisplay struct {
	windows map[string]*gocv.Window
	first   *gocv.Window
}

// NewWindowDisplay creates a display with no open windows.
func NewWindowDisplay() *WindowDisplay {
	return &WindowDisplay{
		windows: make(map[string]*gocv.Window),
	}
}

// Show displays img in the named window.
func (d *WindowDisplay) Show(window string, img gocv.Mat) {
	w, ok := d.windows[window]
	if !ok {
		w = gocv.NewWindow(window)
		d.windows[window] = w
		if d.first == nil {
			d.first = w
		}
	}
	w.IMShow(img)
}

// PollKey waits for a key press. HighGUI key events are process-wide,
// so polling the first window covers all of them.
func (d *WindowDisplay) PollKey(delayMs int) int {
	if d.first == nil {
		return NoKey
	}
	key := d.first.WaitKey(delayMs)
	if key < 0 {
		return NoKey
	}
	return key & 0xFF
}

// Close destroys every window.
func (d *WindowDisplay) Close() error {
	var firstErr error
	for name, w := range d.windows {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.windows, name)
	}
	d.first = nil
	return firstErr
}

// HeadlessDisplay shows nothing and replays scripted key presses.
type HeadlessDisplay struct {
	keys   []int
	shown  map[string]int
	polls  int
	closed bool
	mu     sync.Mutex
}

// NewHeadlessDisplay creates a display that returns keys in order, then NoKey.
func NewHeadlessDisplay(keys ...int) *HeadlessDisplay {
	return &HeadlessDisplay{
		keys:  keys,
		shown: make(map[string]int),
	}
}

// Show records that an image was shown in window.
func (d *HeadlessDisplay) Show(window string, img gocv.Mat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown[window]++
}

// PollKey returns the next scripted key without waiting.
func (d *HeadlessDisplay) PollKey(delayMs int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.polls++
	if len(d.keys) == 0 {
		return NoKey
	}
	key := d.keys[0]
	d.keys = d.keys[1:]
	return key
}

// Close implements Display.
func (d *HeadlessDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Shown returns how many images were shown in window.
func (d *HeadlessDisplay) Shown(window string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown[window]
}

// Polls returns how many times PollKey was called.
func (d *HeadlessDisplay) Polls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.polls
}

// Closed reports whether Close was called.
func (d *HeadlessDisplay) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
