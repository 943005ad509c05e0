package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Calibrations table - one row per persisted calibration run
		`CREATE TABLE IF NOT EXISTS calibrations (
			id TEXT PRIMARY KEY,
			board_cols INTEGER NOT NULL,
			board_rows INTEGER NOT NULL,
			square_size REAL NOT NULL,
			samples INTEGER NOT NULL,
			image_width INTEGER NOT NULL,
			image_height INTEGER NOT NULL,
			rms REAL NOT NULL,
			archive_path TEXT NOT NULL,
			camera_matrix TEXT NOT NULL DEFAULT '[]',
			distortion TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_calibrations_created_at ON calibrations(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
