package store

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/camcal/internal/calib"
)

// Print writes the four archive arrays under their archive names.
func Print(w io.Writer, result *calib.Result) {
	sections := []struct {
		name string
		m    *mat.Dense
	}{
		{KeyCameraMatrix, result.CameraMatrix},
		{KeyDistortion, result.Distortion},
		{KeyRotations, result.RVecs},
		{KeyTranslations, result.TVecs},
	}

	for _, s := range sections {
		fmt.Fprintf(w, "%s:\n", s.name)
		if s.m == nil {
			fmt.Fprintln(w, "  (empty)")
			continue
		}
		fmt.Fprintf(w, "  %v\n", mat.Formatted(s.m, mat.Prefix("  "), mat.Squeeze()))
	}
}
