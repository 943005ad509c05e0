// Package source decides where calibration samples come from.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayusman/camcal/internal/calib"
)

// Mode selects how samples are acquired.
type Mode int

const (
	// ModeLoad reads previously saved images from the samples directory.
	ModeLoad Mode = iota
	// ModeCapture grabs new images from a camera.
	ModeCapture
)

func (m Mode) String() string {
	switch m {
	case ModeLoad:
		return "load"
	case ModeCapture:
		return "capture"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// DirState describes the samples directory as found on startup.
type DirState struct {
	Existed bool // false when Inspect had to create it
	Images  int
}

// DetermineMode picks the acquisition mode. The directory contents always win
// over the user's preference: no images means capture, any image means load.
func DetermineMode(state DirState, preferLoad bool) Mode {
	if !state.Existed || state.Images == 0 {
		return ModeCapture
	}
	return ModeLoad
}

// Overrides reports whether the directory contents contradict the user's preference.
func Overrides(state DirState, preferLoad bool) bool {
	return (DetermineMode(state, preferLoad) == ModeLoad) != preferLoad
}

// Inspect reports the state of dir, creating it when it does not exist.
func Inspect(dir string) (DirState, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return DirState{}, fmt.Errorf("%w: create %s: %v", calib.ErrResourceUnavailable, dir, err)
		}
		return DirState{Existed: false}, nil
	}
	if err != nil {
		return DirState{}, fmt.Errorf("%w: stat %s: %v", calib.ErrResourceUnavailable, dir, err)
	}
	if !info.IsDir() {
		return DirState{}, fmt.Errorf("%w: %s is not a directory", calib.ErrResourceUnavailable, dir)
	}

	images, err := ListImages(dir)
	if err != nil {
		return DirState{}, err
	}

	return DirState{Existed: true, Images: len(images)}, nil
}

// ListImages returns the paths of the sample files in dir in directory listing order.
// Subdirectories and hidden files are skipped.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", calib.ErrResourceUnavailable, dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	return paths, nil
}
