// Package app runs one calibration session: pick the sample source, acquire
// and accumulate frames, then solve and persist the camera parameters.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"gocv.io/x/gocv"

	"github.com/ayusman/camcal/internal/calib"
	"github.com/ayusman/camcal/internal/capture"
	"github.com/ayusman/camcal/internal/chessboard"
	"github.com/ayusman/camcal/internal/config"
	"github.com/ayusman/camcal/internal/publish"
	"github.com/ayusman/camcal/internal/source"
	"github.com/ayusman/camcal/internal/store"
)

// Display window names.
const (
	WindowFrame   = "Frame"
	WindowCorners = "FrameCorners"
	WindowImage   = "Image"
)

// Notifier receives session events such as state changes and accepted samples.
type Notifier interface {
	Notify(kind string, data any)
}

// FrameSink receives the annotated frame currently on screen.
type FrameSink interface {
	Update(frame gocv.Mat)
}

// Config holds the collaborators for a session. Only Settings is required.
type Config struct {
	Settings config.Config

	Store     *store.Store
	Display   capture.Display
	Camera    capture.Camera
	Finder    chessboard.CornerFinder
	Solver    calib.Solver
	Publisher publish.Publisher
	Preview   FrameSink
	Events    Notifier

	// Out receives user-facing messages and the printed archive.
	Out io.Writer
}

// Session owns the configuration and sample collection for a single run.
type Session struct {
	cfg        Config
	settings   config.Config
	target     chessboard.Target
	reference  []gocv.Point3f
	extractor  *chessboard.Extractor
	solver     calib.Solver
	display    capture.Display
	out        io.Writer
	collection *calib.Collection
	state      State
	mode       source.Mode
	stopKey    int
	saveKey    int
	record     *store.Calibration
}

// New creates a session, filling unset collaborators with the OpenCV defaults.
func New(cfg Config) *Session {
	settings := cfg.Settings

	target := chessboard.Target{
		Cols:       settings.BoardCols,
		Rows:       settings.BoardRows,
		SquareSize: settings.SquareSize,
	}

	finder := cfg.Finder
	if finder == nil {
		finder = chessboard.NewOpenCVFinder(chessboard.RefineConfig{
			Window:  settings.SubPixWindow,
			MaxIter: settings.SubPixMaxIter,
			Epsilon: settings.SubPixEpsilon,
		})
	}

	solver := cfg.Solver
	if solver == nil {
		solver = calib.NewOpenCVSolver()
	}

	display := cfg.Display
	if display == nil {
		display = capture.NewHeadlessDisplay()
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	return &Session{
		cfg:        cfg,
		settings:   settings,
		target:     target,
		reference:  target.ReferencePoints(),
		extractor:  chessboard.NewExtractor(target, finder),
		solver:     solver,
		display:    display,
		out:        out,
		collection: calib.NewCollection(),
		state:      StateWaitingFrame,
		stopKey:    keyCode(settings.StopKey),
		saveKey:    keyCode(settings.SaveKey),
	}
}

// Run selects the source, acquires samples and calibrates.
// The display is closed before Run returns.
func (s *Session) Run(ctx context.Context) (*calib.Result, error) {
	defer func() {
		if err := s.display.Close(); err != nil {
			log.Printf("Error closing display: %v", err)
		}
	}()

	if err := s.target.Validate(); err != nil {
		return nil, err
	}

	state, err := source.Inspect(s.settings.SamplesDir)
	if err != nil {
		return nil, err
	}

	s.mode = source.DetermineMode(state, s.settings.HaveImages)
	if source.Overrides(state, s.settings.HaveImages) {
		log.Printf("samples directory %s overrides the have-images answer: using %s mode", s.settings.SamplesDir, s.mode)
	}
	s.notify("mode", s.mode.String())

	switch s.mode {
	case source.ModeLoad:
		err = s.loadLoop(ctx)
	default:
		err = s.captureLoop(ctx)
	}
	if err != nil {
		return nil, err
	}

	return s.calibrate()
}

// Mode returns the source mode chosen by Run.
func (s *Session) Mode() source.Mode {
	return s.mode
}

// Collection returns the samples accepted so far.
func (s *Session) Collection() *calib.Collection {
	return s.collection
}

// State returns the acquisition state.
func (s *Session) State() State {
	return s.state
}

// Record returns the history record of the finished run, or nil.
func (s *Session) Record() *store.Calibration {
	return s.record
}

func (s *Session) notify(kind string, data any) {
	if s.cfg.Events != nil {
		s.cfg.Events.Notify(kind, data)
	}
}

func (s *Session) debugf(format string, args ...any) {
	if s.settings.Debug {
		log.Printf(format, args...)
	}
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// keyCode returns the key code for a single-character binding.
func keyCode(key string) int {
	if key == "" {
		return capture.NoKey
	}
	return int(key[0])
}
