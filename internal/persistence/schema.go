package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		instruction TEXT NOT NULL,
		source_path TEXT,
		output_name TEXT,
		outcome TEXT NOT NULL,
		reason TEXT,
		artifact_path TEXT,
		attempts INTEGER NOT NULL,
		total_tokens INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		stage TEXT NOT NULL,
		candidate TEXT,
		defects TEXT,
		compile_status TEXT,
		diagnostic TEXT,
		error TEXT,
		tokens INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts(session_id, idx);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
