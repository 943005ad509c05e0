// Package config holds the settings for a calibration run.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all calibration run settings.
type Config struct {
	// Filesystem
	SamplesDir  string
	ResultsDir  string
	ArchiveName string
	DBName      string

	// Calibration target: interior corner counts and square size
	BoardCols  int
	BoardRows  int
	SquareSize float64

	// HaveImages is the user's advisory answer to "are there samples already".
	// Directory inspection always has the final word.
	HaveImages bool

	// Camera
	CameraID    int
	FrameWidth  int
	FrameHeight int

	// Sub-pixel refinement
	SubPixWindow  int
	SubPixMaxIter int
	SubPixEpsilon float64

	// Interactive controls
	StopKey     string
	SaveKey     string
	Headless    bool
	LoadDelayMs int // 0 waits for a key on every loaded image

	// StillThreshold is the changed-pixel percentage above which a save is
	// refused because the board is moving. 0 disables the check.
	StillThreshold float64

	// Optional outputs
	ServeAddr    string
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	Debug bool
}

// Default returns the settings used when no config file or flag overrides them.
func Default() Config {
	return Config{
		SamplesDir:     "./chessboards",
		ResultsDir:     "./calibData",
		ArchiveName:    "calibData.npz",
		DBName:         "calibrations.db",
		BoardCols:      7,
		BoardRows:      7,
		SquareSize:     1,
		HaveImages:     true,
		CameraID:       0,
		FrameWidth:     640,
		FrameHeight:    480,
		SubPixWindow:   11,
		SubPixMaxIter:  30,
		SubPixEpsilon:  0.001,
		StopKey:        "q",
		SaveKey:        "s",
		LoadDelayMs:    0,
		StillThreshold: 2.0,
		MQTTTopic:      "camcal/calibration",
		MQTTClientID:   "camcal",
	}
}

// Load reads a KEY=VALUE config file on top of the defaults.
// Blank lines and lines starting with # are ignored.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.Set(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Set assigns a single setting by its config file key.
func (c *Config) Set(key, value string) error {
	var err error

	switch key {
	// Filesystem
	case "SAMPLES_DIR":
		c.SamplesDir = value
	case "RESULTS_DIR":
		c.ResultsDir = value
	case "ARCHIVE_NAME":
		c.ArchiveName = value
	case "DB_NAME":
		c.DBName = value

	// Target
	case "BOARD_COLS":
		c.BoardCols, err = parseInt(key, value)
	case "BOARD_ROWS":
		c.BoardRows, err = parseInt(key, value)
	case "SQUARE_SIZE":
		c.SquareSize, err = parseFloat(key, value)
	case "HAVE_IMAGES":
		c.HaveImages, err = ParseYesNo(value)

	// Camera
	case "CAMERA_ID":
		c.CameraID, err = parseInt(key, value)
	case "FRAME_WIDTH":
		c.FrameWidth, err = parseInt(key, value)
	case "FRAME_HEIGHT":
		c.FrameHeight, err = parseInt(key, value)

	// Refinement
	case "SUBPIX_WINDOW":
		c.SubPixWindow, err = parseInt(key, value)
	case "SUBPIX_MAX_ITER":
		c.SubPixMaxIter, err = parseInt(key, value)
	case "SUBPIX_EPSILON":
		c.SubPixEpsilon, err = parseFloat(key, value)

	// Controls
	case "STOP_KEY":
		c.StopKey = value
	case "SAVE_KEY":
		c.SaveKey = value
	case "HEADLESS":
		c.Headless, err = ParseYesNo(value)
	case "LOAD_DELAY_MS":
		c.LoadDelayMs, err = parseInt(key, value)
	case "STILL_THRESHOLD":
		c.StillThreshold, err = parseFloat(key, value)

	// Outputs
	case "SERVE_ADDR":
		c.ServeAddr = value
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_TOPIC":
		c.MQTTTopic = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value

	case "DEBUG":
		c.Debug, err = ParseYesNo(value)

	default:
		return fmt.Errorf("unknown config key %q", key)
	}

	return err
}

// Validate checks that the settings describe a usable run.
func (c *Config) Validate() error {
	if c.SamplesDir == "" {
		return fmt.Errorf("SAMPLES_DIR must not be empty")
	}
	if c.ResultsDir == "" {
		return fmt.Errorf("RESULTS_DIR must not be empty")
	}
	if c.ArchiveName == "" {
		return fmt.Errorf("ARCHIVE_NAME must not be empty")
	}
	if c.BoardCols < 2 || c.BoardRows < 2 {
		return fmt.Errorf("board needs at least 2x2 interior corners, got %dx%d", c.BoardCols, c.BoardRows)
	}
	if c.SquareSize <= 0 {
		return fmt.Errorf("SQUARE_SIZE must be positive, got %g", c.SquareSize)
	}
	if c.SubPixWindow <= 0 {
		return fmt.Errorf("SUBPIX_WINDOW must be positive, got %d", c.SubPixWindow)
	}
	if c.SubPixMaxIter <= 0 && c.SubPixEpsilon <= 0 {
		return fmt.Errorf("sub-pixel refinement needs SUBPIX_MAX_ITER or SUBPIX_EPSILON")
	}
	if len(c.StopKey) != 1 || len(c.SaveKey) != 1 {
		return fmt.Errorf("STOP_KEY and SAVE_KEY must be single characters")
	}
	if c.StopKey == c.SaveKey {
		return fmt.Errorf("STOP_KEY and SAVE_KEY must differ, both are %q", c.StopKey)
	}
	if c.LoadDelayMs < 0 {
		return fmt.Errorf("LOAD_DELAY_MS must not be negative, got %d", c.LoadDelayMs)
	}
	if c.StillThreshold < 0 {
		return fmt.Errorf("STILL_THRESHOLD must not be negative, got %g", c.StillThreshold)
	}
	return nil
}

// ArchivePath is the location of the calibration archive.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.ResultsDir, c.ArchiveName)
}

// DBPath is the location of the calibration history database.
func (c *Config) DBPath() string {
	return filepath.Join(c.ResultsDir, c.DBName)
}

// ParseYesNo accepts y/yes/true/1 and n/no/false/0, case-insensitively.
func ParseYesNo(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "y", "yes", "true", "1":
		return true, nil
	case "n", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected y or n, got %q", value)
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}
