package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/ayusman/camcal/internal/calib"
	"github.com/ayusman/camcal/internal/capture"
	"github.com/ayusman/camcal/internal/chessboard"
	"github.com/ayusman/camcal/internal/source"
)

// captureLoop shows live frames until the stop key. Each frame the user saves
// while the board is detected and still becomes a sample and a chess_<n>.jpg file.
func (s *Session) captureLoop(ctx context.Context) error {
	s.printf("There's no image in the %s folder yet.\n", s.settings.SamplesDir)

	camera := s.cfg.Camera
	if camera == nil {
		camera = capture.NewCamera(s.settings.CameraID, s.settings.FrameWidth, s.settings.FrameHeight)
	}

	src, err := capture.NewDeviceSource(camera)
	if err != nil {
		return err
	}
	defer src.Close()

	if dc, ok := camera.(*capture.DeviceCamera); ok {
		if got := dc.Resolution(); got != dc.Requested() {
			log.Printf("Camera %d delivers %dx%d instead of %dx%d", s.settings.CameraID, got.X, got.Y, dc.Requested().X, dc.Requested().Y)
		}
	}

	writer, err := capture.NewFrameWriter(s.settings.SamplesDir)
	if err != nil {
		return fmt.Errorf("%w: %v", calib.ErrResourceUnavailable, err)
	}

	motion := capture.NewMotionDetector(s.settings.StillThreshold)
	defer motion.Close()

	for {
		select {
		case <-ctx.Done():
			s.transition(StateDone)
			return ctx.Err()
		default:
		}

		s.transition(StateWaitingFrame)
		frame, err := src.Next()
		if err != nil {
			s.transition(StateDone)
			return err
		}

		stop, err := s.captureFrame(frame, writer, motion)
		frame.Image.Close()
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}

	s.printf("%d images were saved\n", writer.Saved())
	return nil
}

// captureFrame detects the board in one live frame and acts on the key pressed.
// It reports whether the user asked to stop.
func (s *Session) captureFrame(frame capture.Frame, writer *capture.FrameWriter, motion *capture.MotionDetector) (bool, error) {
	s.transition(StateDetecting)

	annotated := frame.Image.Clone()
	defer annotated.Close()

	still := motion.Still(frame.Image)

	ext, err := s.extractor.Extract(&annotated)
	if err != nil {
		log.Printf("Skipping %s: %v", frame.Name, err)
		s.transition(StateRejected)
		return false, nil
	}

	s.display.Show(WindowFrame, frame.Image)
	s.display.Show(WindowCorners, annotated)
	if s.cfg.Preview != nil {
		s.cfg.Preview.Update(annotated)
	}

	// One poll per frame; the result is branched on below.
	key := s.display.PollKey(1)

	switch key {
	case s.stopKey:
		s.transition(StateDone)
		return true, nil

	case s.saveKey:
		if !ext.Found {
			s.printf("Chessboard not detected, frame not saved\n")
			s.accept(frame.Name, ext, false)
			return false, nil
		}
		if !still {
			s.printf("Board is moving (%.1f%% of pixels changed), hold it still and save again\n", motion.Last())
			s.transition(StateRejected)
			return false, nil
		}

		name := writer.NextName()
		if !s.accept(name, ext, false) {
			return false, nil
		}

		path, err := writer.Save(frame.Image)
		if err != nil {
			return false, err
		}
		s.printf("Saving image %s\n", filepath.Base(path))
		s.notify("frame_saved", path)

	default:
		s.accept(frame.Name, ext, true)
	}

	return false, nil
}

// loadLoop feeds every image in the samples directory through the extractor.
func (s *Session) loadLoop(ctx context.Context) error {
	paths, err := source.ListImages(s.settings.SamplesDir)
	if err != nil {
		return err
	}
	s.printf("There are %d images in the folder already\n", len(paths))

	src := capture.NewFileSource(paths)
	defer src.Close()

	for {
		select {
		case <-ctx.Done():
			s.transition(StateDone)
			return ctx.Err()
		default:
		}

		s.transition(StateWaitingFrame)
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			s.transition(StateDone)
			break
		}
		if err != nil {
			s.transition(StateDone)
			return err
		}

		stop, err := s.loadFrame(frame)
		frame.Image.Close()
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}

	s.printf("%d of %d images accepted\n", s.collection.Len(), src.Len())
	return nil
}

// loadFrame extracts one stored image and, with a display, waits for a key.
// It reports whether the user asked to stop.
func (s *Session) loadFrame(frame capture.Frame) (bool, error) {
	s.transition(StateDetecting)

	ext, err := s.extractor.Extract(&frame.Image)
	if err != nil {
		return false, fmt.Errorf("%s: %w", frame.Name, err)
	}
	s.accept(frame.Name, ext, false)

	s.display.Show(WindowImage, frame.Image)
	if s.cfg.Preview != nil {
		s.cfg.Preview.Update(frame.Image)
	}

	if s.settings.Headless {
		return false, nil
	}

	if key := s.display.PollKey(s.settings.LoadDelayMs); key == s.stopKey {
		s.transition(StateDone)
		return true, nil
	}
	return false, nil
}

// accept adds a found, non-preview extraction to the collection.
func (s *Session) accept(name string, ext chessboard.Extraction, preview bool) bool {
	if !ext.Found {
		s.debugf("%s: %v", name, calib.ErrDetectionMiss)
		s.transition(StateRejected)
		return false
	}
	if preview {
		s.transition(StateRejected)
		return false
	}

	err := s.collection.Add(calib.Sample{
		Name:      name,
		Reference: s.reference,
		Detected:  ext.Corners,
		ImageSize: ext.ImageSize,
	})
	if err != nil {
		log.Printf("Rejected %s: %v", name, err)
		s.transition(StateRejected)
		return false
	}

	s.transition(StateAccepted)
	s.notify("sample_accepted", map[string]any{
		"name":    name,
		"samples": s.collection.Len(),
	})
	return true
}
