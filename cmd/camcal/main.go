package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ayusman/camcal/internal/app"
	"github.com/ayusman/camcal/internal/calib"
	"github.com/ayusman/camcal/internal/capture"
	"github.com/ayusman/camcal/internal/config"
	"github.com/ayusman/camcal/internal/publish"
	"github.com/ayusman/camcal/internal/server"
	"github.com/ayusman/camcal/internal/source"
	"github.com/ayusman/camcal/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("camcal: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "KEY=VALUE config file")
	squareSize := flag.Float64("sdmm", 1, "size of one chessboard square, e.g. in millimetres")
	haveImages := flag.String("haveimgs", "y", "whether the samples directory already holds images (y or n); the directory contents decide")
	samplesDir := flag.String("samples", "", "directory of chessboard images")
	resultsDir := flag.String("results", "", "directory for calibData.npz and the history database")
	cols := flag.Int("cols", 0, "interior corners along a row")
	rows := flag.Int("rows", 0, "interior corners along a column")
	cameraID := flag.Int("camera", 0, "capture device id")
	headless := flag.Bool("headless", false, "run without windows (load mode only)")
	show := flag.Bool("show", false, "print the stored calibration archive and exit")
	history := flag.Bool("history", false, "list recorded calibrations and exit")
	serveAddr := flag.String("serve", "", "serve the preview stream and history API on this address, e.g. :8080")
	webDir := flag.String("web", "", "static files to serve alongside the API")
	broker := flag.String("mqtt", "", "MQTT broker URL to publish the calibration to, e.g. tcp://localhost:1883")
	topic := flag.String("mqtt-topic", "", "MQTT topic for the calibration")
	debug := flag.Bool("debug", false, "log every state change")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	// Flags given on the command line override the config file.
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		var err error
		switch f.Name {
		case "sdmm":
			err = cfg.Set("SQUARE_SIZE", strconv.FormatFloat(*squareSize, 'g', -1, 64))
		case "haveimgs":
			err = cfg.Set("HAVE_IMAGES", *haveImages)
		case "samples":
			cfg.SamplesDir = *samplesDir
		case "results":
			cfg.ResultsDir = *resultsDir
		case "cols":
			cfg.BoardCols = *cols
		case "rows":
			cfg.BoardRows = *rows
		case "camera":
			cfg.CameraID = *cameraID
		case "headless":
			cfg.Headless = *headless
		case "serve":
			cfg.ServeAddr = *serveAddr
		case "mqtt":
			cfg.MQTTBroker = *broker
		case "mqtt-topic":
			cfg.MQTTTopic = *topic
		case "debug":
			cfg.Debug = *debug
		}
		if err != nil && flagErr == nil {
			flagErr = fmt.Errorf("-%s: %w", f.Name, err)
		}
	})
	if flagErr != nil {
		return flagErr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if *show {
		result, err := store.NewArchive(cfg.ArchivePath()).Load()
		if err != nil {
			return err
		}
		store.Print(os.Stdout, result)
		return nil
	}

	if err := os.MkdirAll(cfg.ResultsDir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", calib.ErrResourceUnavailable, cfg.ResultsDir, err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	if *history {
		return printHistory(st)
	}

	// Capture needs a window to read the save and stop keys from.
	if cfg.Headless {
		state, err := source.Inspect(cfg.SamplesDir)
		if err != nil {
			return err
		}
		if source.DetermineMode(state, cfg.HaveImages) == source.ModeCapture {
			return fmt.Errorf("%s has no images and capture mode needs a display; run without -headless", cfg.SamplesDir)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionCfg := app.Config{
		Settings: cfg,
		Store:    st,
		Out:      os.Stdout,
	}
	if cfg.Headless {
		sessionCfg.Display = capture.NewHeadlessDisplay()
	} else {
		sessionCfg.Display = capture.NewWindowDisplay()
	}

	if cfg.ServeAddr != "" {
		preview := server.NewPreview()
		hub := server.NewHub()
		sessionCfg.Preview = preview
		sessionCfg.Events = hub

		httpServer := server.New(server.Config{
			StaticDir: *webDir,
			Store:     st,
			Preview:   preview,
			Events:    hub,
		}).HTTPServer(cfg.ServeAddr)

		go func() {
			log.Printf("Serving preview and history on %s", cfg.ServeAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}()
	}

	if cfg.MQTTBroker != "" {
		publisher, err := publish.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			log.Printf("MQTT disabled: %v", err)
		} else {
			sessionCfg.Publisher = publisher
			defer publisher.Close()
		}
	}

	session := app.New(sessionCfg)
	if _, err := session.Run(ctx); err != nil {
		if errors.Is(err, calib.ErrNoSamples) {
			return fmt.Errorf("%w: save some frames with %q or add images to %s", err, cfg.SaveKey, cfg.SamplesDir)
		}
		return err
	}

	if rec := session.Record(); rec != nil {
		fmt.Printf("\nCalibration %s saved to %s\n", rec.ID, cfg.ArchivePath())
	}
	return nil
}

func printHistory(st *store.Store) error {
	calibrations, err := st.Calibrations().List()
	if err != nil {
		return err
	}
	if len(calibrations) == 0 {
		fmt.Println("No calibrations recorded yet")
		return nil
	}

	for _, c := range calibrations {
		fx, fy := 0.0, 0.0
		if len(c.CameraMatrix) == 3 {
			fx, fy = c.CameraMatrix[0][0], c.CameraMatrix[1][1]
		}
		fmt.Printf("%s  %s  %dx%d board  %d samples  %dx%d  rms=%.4f  fx=%.1f fy=%.1f\n",
			c.CreatedAt.Format(time.RFC3339), c.ID, c.BoardCols, c.BoardRows, c.Samples,
			c.ImageWidth, c.ImageHeight, c.RMS, fx, fy)
	}
	return nil
}
