package app

import (
	"log"

	"github.com/ayusman/camcal/internal/calib"
	"github.com/ayusman/camcal/internal/store"
)

// calibrate solves for the camera parameters once, writes the archive,
// prints it back and records the run.
func (s *Session) calibrate() (*calib.Result, error) {
	result, err := calib.Calibrate(s.solver, s.collection)
	if err != nil {
		s.notify("calibration_failed", err.Error())
		return nil, err
	}

	fx, fy := result.FocalLength()
	log.Printf("Calibrated from %d samples: rms=%.4f fx=%.2f fy=%.2f", s.collection.Len(), result.RMS, fx, fy)

	archive := store.NewArchive(s.settings.ArchivePath())
	if err := archive.Save(result); err != nil {
		return nil, err
	}

	saved, err := archive.Load()
	if err != nil {
		return nil, err
	}
	s.printf("The camera was calibrated:\n\n")
	store.Print(s.out, saved)

	s.record = store.NewCalibration(s.target, result, archive.Path())
	if s.cfg.Store != nil {
		if err := s.cfg.Store.Calibrations().Create(s.record); err != nil {
			log.Printf("Failed to record calibration history: %v", err)
		}
	}

	if s.cfg.Publisher != nil {
		if err := s.cfg.Publisher.Publish(s.record); err != nil {
			log.Printf("Failed to publish calibration: %v", err)
		}
	}

	s.notify("calibrated", s.record)
	return result, nil
}
