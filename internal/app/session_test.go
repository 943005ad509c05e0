package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/camcal/internal/calib"
	"github.com/ayusman/camcal/internal/capture"
	"github.com/ayusman/camcal/internal/chessboard"
	"github.com/ayusman/camcal/internal/config"
	"github.com/ayusman/camcal/internal/publish"
	"github.com/ayusman/camcal/internal/source"
	"github.com/ayusman/camcal/internal/store"
)

// eventLog records session events.
type eventLog struct {
	mu    sync.Mutex
	kinds []string
}

func (e *eventLog) Notify(kind string, data any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kinds = append(e.kinds, kind)
}

func (e *eventLog) count(kind string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, k := range e.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

// frameLog records preview updates.
type frameLog struct {
	updates int
}

func (f *frameLog) Update(frame gocv.Mat) {
	f.updates++
}

func testSettings(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	s := config.Default()
	s.SamplesDir = filepath.Join(dir, "chessboards")
	s.ResultsDir = filepath.Join(dir, "calibData")
	return s
}

// blankCamera returns a looping camera that yields one black 640x480 frame.
func blankCamera(t *testing.T) *capture.MockCamera {
	t.Helper()
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return capture.NewMockCamera([]*gocv.Mat{&frame}, true)
}

func writeSamples(t *testing.T, dir string, sizes ...[2]int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for i, size := range sizes {
		img := gocv.NewMatWithSize(size[1], size[0], gocv.MatTypeCV8UC3)
		path := filepath.Join(dir, "img_"+string(rune('a'+i))+".jpg")
		ok := gocv.IMWrite(path, img)
		img.Close()
		if !ok {
			t.Fatalf("IMWrite(%s) failed", path)
		}
	}
}

func savedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestSession_CaptureAcceptsSavedFrames(t *testing.T) {
	settings := testSettings(t)

	s, err := store.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	display := capture.NewHeadlessDisplay(capture.NoKey, 's', capture.NoKey, 's', 's', capture.NoKey, 'q')
	solver := calib.NewMockSolver()
	recorder := publish.NewRecorder()
	events := &eventLog{}
	preview := &frameLog{}
	var out bytes.Buffer

	session := New(Config{
		Settings:  settings,
		Store:     s,
		Display:   display,
		Camera:    blankCamera(t),
		Finder:    chessboard.NewMockFinder(),
		Solver:    solver,
		Publisher: recorder,
		Preview:   preview,
		Events:    events,
		Out:       &out,
	})

	result, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if session.Mode() != source.ModeCapture {
		t.Errorf("Mode() = %s, want capture", session.Mode())
	}
	if session.Collection().Len() != 3 {
		t.Errorf("Collection().Len() = %d, want 3", session.Collection().Len())
	}
	if solver.Calls() != 1 {
		t.Errorf("solver called %d times, want 1", solver.Calls())
	}
	if result.Views() != 3 {
		t.Errorf("result has %d views, want 3", result.Views())
	}

	want := []string{"chess_0.jpg", "chess_1.jpg", "chess_2.jpg"}
	if got := savedFiles(t, settings.SamplesDir); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("saved files = %v, want %v", got, want)
	}

	loaded, err := store.NewArchive(settings.ArchivePath()).Load()
	if err != nil {
		t.Fatalf("archive Load() error = %v", err)
	}
	if r, _ := loaded.RVecs.Dims(); r != 3 {
		t.Errorf("rVector rows = %d, want 3", r)
	}
	if r, _ := loaded.TVecs.Dims(); r != 3 {
		t.Errorf("tVector rows = %d, want 3", r)
	}

	latest, err := s.Calibrations().Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Samples != 3 || latest.ID != session.Record().ID {
		t.Errorf("history record = %+v", latest)
	}
	if len(recorder.Published()) != 1 {
		t.Errorf("published %d calibrations, want 1", len(recorder.Published()))
	}

	if events.count("sample_accepted") != 3 || events.count("frame_saved") != 3 {
		t.Errorf("events: %d accepted, %d saved, want 3 each",
			events.count("sample_accepted"), events.count("frame_saved"))
	}
	if events.count("calibrated") != 1 {
		t.Errorf("calibrated events = %d, want 1", events.count("calibrated"))
	}

	if display.Polls() != 7 {
		t.Errorf("PollKey called %d times for 7 frames, want 7", display.Polls())
	}
	if display.Shown(WindowFrame) != 7 || display.Shown(WindowCorners) != 7 {
		t.Errorf("shown %d/%d frames, want 7/7", display.Shown(WindowFrame), display.Shown(WindowCorners))
	}
	if preview.updates != 7 {
		t.Errorf("preview updates = %d, want 7", preview.updates)
	}
	if !display.Closed() {
		t.Error("display should be closed after Run")
	}
	if session.State() != StateDone {
		t.Errorf("State() = %s, want done", session.State())
	}

	if !strings.Contains(out.String(), "camMatrix:") {
		t.Errorf("output should print the archive:\n%s", out.String())
	}
}

func TestSession_PreviewFramesAreNotAccumulated(t *testing.T) {
	settings := testSettings(t)
	finder := chessboard.NewMockFinder()

	session := New(Config{
		Settings: settings,
		Display:  capture.NewHeadlessDisplay(capture.NoKey, capture.NoKey, capture.NoKey, 'q'),
		Camera:   blankCamera(t),
		Finder:   finder,
		Solver:   calib.NewMockSolver(),
		Out:      &bytes.Buffer{},
	})

	_, err := session.Run(context.Background())
	if !errors.Is(err, calib.ErrNoSamples) {
		t.Fatalf("Run() error = %v, want ErrNoSamples", err)
	}
	if finder.Calls() != 4 {
		t.Errorf("finder called %d times, want 4", finder.Calls())
	}
	if session.Collection().Len() != 0 {
		t.Errorf("preview frames reached the collection: %d", session.Collection().Len())
	}
	if _, err := os.Stat(settings.ArchivePath()); !os.IsNotExist(err) {
		t.Error("no archive should be written without samples")
	}
}

func TestSession_SaveWithoutBoard(t *testing.T) {
	settings := testSettings(t)
	finder := chessboard.NewMockFinder()
	finder.SetSequence([]bool{false, true})
	var out bytes.Buffer

	session := New(Config{
		Settings: settings,
		Display:  capture.NewHeadlessDisplay('s', 's', 'q'),
		Camera:   blankCamera(t),
		Finder:   finder,
		Solver:   calib.NewMockSolver(),
		Out:      &out,
	})

	if _, err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if session.Collection().Len() != 1 {
		t.Errorf("Collection().Len() = %d, want 1", session.Collection().Len())
	}
	if got := savedFiles(t, settings.SamplesDir); len(got) != 1 || got[0] != "chess_0.jpg" {
		t.Errorf("saved files = %v, want [chess_0.jpg]", got)
	}
	if !strings.Contains(out.String(), "not detected") {
		t.Errorf("output should explain the refused save:\n%s", out.String())
	}
}

func TestSession_HiddenFilesDoNotCount(t *testing.T) {
	settings := testSettings(t)
	settings.HaveImages = false

	// Hidden files do not count as samples, so the directory is still empty.
	if err := os.MkdirAll(settings.SamplesDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(settings.SamplesDir, ".keep"), nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	session := New(Config{
		Settings: settings,
		Display:  capture.NewHeadlessDisplay('s', 'q'),
		Camera:   blankCamera(t),
		Finder:   chessboard.NewMockFinder(),
		Solver:   calib.NewMockSolver(),
		Out:      &bytes.Buffer{},
	})

	if _, err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if session.Mode() != source.ModeCapture {
		t.Errorf("Mode() = %s, want capture", session.Mode())
	}
}

func TestSession_LoadMode(t *testing.T) {
	settings := testSettings(t)
	settings.HaveImages = false // directory contents win
	settings.Headless = true
	writeSamples(t, settings.SamplesDir, [2]int{640, 480}, [2]int{640, 480}, [2]int{640, 480}, [2]int{640, 480})

	finder := chessboard.NewMockFinder()
	finder.SetSequence([]bool{true, false, true, true})
	solver := calib.NewMockSolver()
	display := capture.NewHeadlessDisplay()

	session := New(Config{
		Settings: settings,
		Display:  display,
		Finder:   finder,
		Solver:   solver,
		Out:      &bytes.Buffer{},
	})

	result, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if session.Mode() != source.ModeLoad {
		t.Errorf("Mode() = %s, want load", session.Mode())
	}
	// One miss out of four images.
	if session.Collection().Len() != 3 {
		t.Errorf("Collection().Len() = %d, want 3", session.Collection().Len())
	}
	if result.Views() != 3 || solver.Calls() != 1 {
		t.Errorf("views = %d, solver calls = %d, want 3 and 1", result.Views(), solver.Calls())
	}
	if display.Polls() != 0 {
		t.Errorf("headless load should not wait for keys, polled %d times", display.Polls())
	}
	if display.Shown(WindowImage) != 4 {
		t.Errorf("Shown(Image) = %d, want 4", display.Shown(WindowImage))
	}
	if session.Record() == nil {
		t.Error("Record() should be set after a successful run")
	}
}

func TestSession_LoadStopKey(t *testing.T) {
	settings := testSettings(t)
	writeSamples(t, settings.SamplesDir, [2]int{320, 240}, [2]int{320, 240}, [2]int{320, 240})

	display := capture.NewHeadlessDisplay(capture.NoKey, 'q')
	session := New(Config{
		Settings: settings,
		Display:  display,
		Finder:   chessboard.NewMockFinder(),
		Solver:   calib.NewMockSolver(),
		Out:      &bytes.Buffer{},
	})

	if _, err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if session.Collection().Len() != 2 {
		t.Errorf("Collection().Len() = %d, want 2 after stopping on the second image", session.Collection().Len())
	}
	if display.Polls() != 2 {
		t.Errorf("Polls() = %d, want 2", display.Polls())
	}
}

func TestSession_LoadRejectsSizeMismatch(t *testing.T) {
	settings := testSettings(t)
	settings.Headless = true
	writeSamples(t, settings.SamplesDir, [2]int{640, 480}, [2]int{320, 240}, [2]int{640, 480})

	session := New(Config{
		Settings: settings,
		Finder:   chessboard.NewMockFinder(),
		Solver:   calib.NewMockSolver(),
		Out:      &bytes.Buffer{},
	})

	result, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if session.Collection().Len() != 2 {
		t.Errorf("Collection().Len() = %d, want 2", session.Collection().Len())
	}
	if result.ImageSize.X != 640 || result.ImageSize.Y != 480 {
		t.Errorf("ImageSize = %v, want 640x480", result.ImageSize)
	}
}

func TestSession_SolverDivergence(t *testing.T) {
	settings := testSettings(t)
	settings.Headless = true
	writeSamples(t, settings.SamplesDir, [2]int{640, 480})

	solver := calib.NewMockSolver()
	solver.SetRMS(-1)
	events := &eventLog{}

	session := New(Config{
		Settings: settings,
		Finder:   chessboard.NewMockFinder(),
		Solver:   solver,
		Events:   events,
		Out:      &bytes.Buffer{},
	})

	_, err := session.Run(context.Background())
	if !errors.Is(err, calib.ErrSolverDivergence) {
		t.Fatalf("Run() error = %v, want ErrSolverDivergence", err)
	}
	if _, err := os.Stat(settings.ArchivePath()); !os.IsNotExist(err) {
		t.Error("a diverged calibration must not be persisted")
	}
	if events.count("calibration_failed") != 1 {
		t.Errorf("calibration_failed events = %d, want 1", events.count("calibration_failed"))
	}
}

func TestSession_CameraUnavailable(t *testing.T) {
	settings := testSettings(t)
	camera := capture.NewMockCamera(nil, false)
	camera.SetOpenError(errors.New("no such device"))

	display := capture.NewHeadlessDisplay()
	session := New(Config{
		Settings: settings,
		Display:  display,
		Camera:   camera,
		Finder:   chessboard.NewMockFinder(),
		Solver:   calib.NewMockSolver(),
		Out:      &bytes.Buffer{},
	})

	_, err := session.Run(context.Background())
	if !errors.Is(err, calib.ErrResourceUnavailable) {
		t.Fatalf("Run() error = %v, want ErrResourceUnavailable", err)
	}
	if !display.Closed() {
		t.Error("display should be closed on the error path")
	}
}

func TestSession_Cancelled(t *testing.T) {
	settings := testSettings(t)
	solver := calib.NewMockSolver()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := New(Config{
		Settings: settings,
		Camera:   blankCamera(t),
		Finder:   chessboard.NewMockFinder(),
		Solver:   solver,
		Out:      &bytes.Buffer{},
	})

	_, err := session.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if solver.Calls() != 0 {
		t.Error("a cancelled run must not calibrate")
	}
}

func TestSession_InvalidTarget(t *testing.T) {
	settings := testSettings(t)
	settings.SquareSize = 0

	session := New(Config{Settings: settings, Out: &bytes.Buffer{}})
	if _, err := session.Run(context.Background()); err == nil {
		t.Error("Run() should reject a zero square size")
	}
}
