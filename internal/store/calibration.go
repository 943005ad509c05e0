package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/camcal/internal/calib"
	"github.com/ayusman/camcal/internal/chessboard"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Calibration is the history record of one persisted calibration run.
type Calibration struct {
	ID           string      `json:"id"`
	BoardCols    int         `json:"board_cols"`
	BoardRows    int         `json:"board_rows"`
	SquareSize   float64     `json:"square_size"`
	Samples      int         `json:"samples"`
	ImageWidth   int         `json:"image_width"`
	ImageHeight  int         `json:"image_height"`
	RMS          float64     `json:"rms"`
	ArchivePath  string      `json:"archive_path"`
	CameraMatrix [][]float64 `json:"camera_matrix"`
	Distortion   []float64   `json:"distortion"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NewCalibration builds a history record for result with a fresh id.
func NewCalibration(target chessboard.Target, result *calib.Result, archivePath string) *Calibration {
	return &Calibration{
		ID:           uuid.New().String(),
		BoardCols:    target.Cols,
		BoardRows:    target.Rows,
		SquareSize:   target.SquareSize,
		Samples:      result.Views(),
		ImageWidth:   result.ImageSize.X,
		ImageHeight:  result.ImageSize.Y,
		RMS:          result.RMS,
		ArchivePath:  archivePath,
		CameraMatrix: calib.DenseRows(result.CameraMatrix),
		Distortion:   calib.Flatten(result.Distortion),
	}
}

// CalibrationRepository provides CRUD operations for calibration records.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

const calibrationColumns = `id, board_cols, board_rows, square_size, samples, image_width, image_height,
	rms, archive_path, camera_matrix, distortion, created_at`

// Create inserts a calibration record. An empty ID is filled in.
func (r *CalibrationRepository) Create(c *Calibration) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now()

	camera, err := json.Marshal(c.CameraMatrix)
	if err != nil {
		return fmt.Errorf("encode camera matrix: %w", err)
	}
	distortion, err := json.Marshal(c.Distortion)
	if err != nil {
		return fmt.Errorf("encode distortion: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO calibrations (`+calibrationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BoardCols, c.BoardRows, c.SquareSize, c.Samples, c.ImageWidth, c.ImageHeight,
		c.RMS, c.ArchivePath, string(camera), string(distortion), c.CreatedAt,
	)
	return err
}

// GetByID retrieves a calibration by its ID.
func (r *CalibrationRepository) GetByID(id string) (*Calibration, error) {
	row := r.db.QueryRow(`SELECT `+calibrationColumns+` FROM calibrations WHERE id = ?`, id)
	return scanCalibration(row)
}

// Latest retrieves the most recently recorded calibration.
func (r *CalibrationRepository) Latest() (*Calibration, error) {
	row := r.db.QueryRow(`SELECT ` + calibrationColumns + ` FROM calibrations
		ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	return scanCalibration(row)
}

// List retrieves all calibrations, newest first.
func (r *CalibrationRepository) List() ([]*Calibration, error) {
	rows, err := r.db.Query(`SELECT ` + calibrationColumns + ` FROM calibrations
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calibrations []*Calibration
	for rows.Next() {
		c, err := scanCalibration(rows)
		if err != nil {
			return nil, err
		}
		calibrations = append(calibrations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return calibrations, nil
}

// Delete removes a calibration record by its ID. The archive file is left alone.
func (r *CalibrationRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM calibrations WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCalibration(s scanner) (*Calibration, error) {
	c := &Calibration{}
	var camera, distortion string

	err := s.Scan(&c.ID, &c.BoardCols, &c.BoardRows, &c.SquareSize, &c.Samples,
		&c.ImageWidth, &c.ImageHeight, &c.RMS, &c.ArchivePath, &camera, &distortion, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(camera), &c.CameraMatrix); err != nil {
		return nil, fmt.Errorf("decode camera matrix of %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(distortion), &c.Distortion); err != nil {
		return nil, fmt.Errorf("decode distortion of %s: %w", c.ID, err)
	}

	return c, nil
}
