package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/camcal/internal/calib"
)

// Archive array names, shared with numpy consumers of the file.
const (
	KeyCameraMatrix = "camMatrix"
	KeyDistortion   = "distCoef"
	KeyRotations    = "rVector"
	KeyTranslations = "tVector"
)

// Archive is the .npz file holding the latest calibration.
type Archive struct {
	path string
}

// NewArchive returns an archive stored at path.
func NewArchive(path string) *Archive {
	return &Archive{path: path}
}

// Path returns the archive location.
func (a *Archive) Path() string {
	return a.path
}

// Exists reports whether the archive file is present.
func (a *Archive) Exists() bool {
	_, err := os.Stat(a.path)
	return err == nil
}

// Save writes the four result arrays, replacing any previous archive.
// The file is written beside the target and renamed into place.
func (a *Archive) Save(result *calib.Result) error {
	arrays := []struct {
		name string
		m    *mat.Dense
	}{
		{KeyCameraMatrix, result.CameraMatrix},
		{KeyDistortion, result.Distortion},
		{KeyRotations, result.RVecs},
		{KeyTranslations, result.TVecs},
	}
	for _, arr := range arrays {
		if arr.m == nil {
			return fmt.Errorf("result has no %s array", arr.name)
		}
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", calib.ErrResourceUnavailable, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".calib-*.npz")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := npz.NewWriter(tmp)
	for _, arr := range arrays {
		if err := w.Write(arr.name, arr.m); err != nil {
			tmp.Close()
			return fmt.Errorf("write %s: %w", arr.name, err)
		}
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	if err := os.Rename(tmpName, a.path); err != nil {
		return fmt.Errorf("replace %s: %w", a.path, err)
	}
	return nil
}

// Load reads the archive back. RMS and image size are not stored and stay zero.
func (a *Archive) Load() (*calib.Result, error) {
	if _, err := os.Stat(a.path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", calib.ErrPersistenceMissing, a.path)
	}

	r, err := npz.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.path, err)
	}
	defer r.Close()

	result := &calib.Result{}
	targets := []struct {
		name string
		dst  **mat.Dense
	}{
		{KeyCameraMatrix, &result.CameraMatrix},
		{KeyDistortion, &result.Distortion},
		{KeyRotations, &result.RVecs},
		{KeyTranslations, &result.TVecs},
	}

	for _, tgt := range targets {
		var m mat.Dense
		if err := r.Read(tgt.name, &m); err != nil {
			return nil, fmt.Errorf("read %s from %s: %w", tgt.name, a.path, err)
		}
		*tgt.dst = &m
	}

	return result, nil
}
