package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/ayusman/camcal/internal/calib"
)

var sampleName = regexp.MustCompile(`^chess_(\d+)\.jpg$`)

// FrameWriter saves accepted frames as chess_<n>.jpg with increasing n.
// Numbering continues after the highest index already in the directory.
type FrameWriter struct {
	dir   string
	next  int
	saved int
}

// NewFrameWriter creates a writer for dir.
func NewFrameWriter(dir string) (*FrameWriter, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	next := 0
	for _, entry := range entries {
		m := sampleName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
			next = n + 1
		}
	}

	return &FrameWriter{dir: dir, next: next}, nil
}

// NextName returns the file name the next Save will use.
func (w *FrameWriter) NextName() string {
	return fmt.Sprintf("chess_%d.jpg", w.next)
}

// Save writes img and returns its path.
func (w *FrameWriter) Save(img gocv.Mat) (string, error) {
	path := filepath.Join(w.dir, w.NextName())
	if ok := gocv.IMWrite(path, img); !ok {
		return "", fmt.Errorf("%w: failed to write %s", calib.ErrResourceUnavailable, path)
	}

	w.next++
	w.saved++
	return path, nil
}

// Saved returns the number of frames written by this writer.
func (w *FrameWriter) Saved() int {
	return w.saved
}
