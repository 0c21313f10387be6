package store

func (s *Store) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			pitch_inverted INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// One row per command change, not per frame.
		`CREATE TABLE IF NOT EXISTS command_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			command TEXT NOT NULL,
			threat_x INTEGER,
			threat_y INTEGER,
			dangerous INTEGER NOT NULL DEFAULT 0,
			objects INTEGER NOT NULL DEFAULT 0,
			recorded_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_command_log_session_id ON command_log(session_id, seq)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
