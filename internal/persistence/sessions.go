package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/byewind1/gdl-agent/internal/agent"
)

// SaveSession stores a finished session and its full attempt history.
// Sessions are written once, after the terminal outcome; re-saving the same
// ID replaces the previous record and its attempts.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess *agent.Session) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Begin transaction with serializable isolation (BEGIN IMMEDIATE)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, instruction, source_path, output_name, outcome, reason, artifact_path, attempts, total_tokens, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			instruction = excluded.instruction,
			source_path = excluded.source_path,
			output_name = excluded.output_name,
			outcome = excluded.outcome,
			reason = excluded.reason,
			artifact_path = excluded.artifact_path,
			attempts = excluded.attempts,
			total_tokens = excluded.total_tokens,
			duration_ms = excluded.duration_ms,
			started_at = excluded.started_at
	`, sess.ID, sess.Task.Instruction, sess.Task.SourcePath, sess.Task.OutputName,
		string(sess.Outcome), sess.Reason, sess.ArtifactPath, len(sess.Attempts),
		sess.TotalTokens, sess.Duration.Milliseconds(), sess.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	// Replace the attempt rows wholesale; the history itself is append-only
	// inside a run, so this only matters for an ID collision.
	_, err = tx.ExecContext(ctx, `DELETE FROM attempts WHERE session_id = ?`, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to clear old attempts: %w", err)
	}

	for _, a := range sess.Attempts {
		defects := make([]string, len(a.Defects))
		for i, d := range a.Defects {
			defects[i] = d.String()
		}

		compileStatus, diagnostic := "", ""
		if a.Compile != nil {
			compileStatus = a.Compile.Status.String()
			diagnostic = a.Compile.Summary()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO attempts (session_id, idx, stage, candidate, defects, compile_status, diagnostic, error, tokens, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, sess.ID, a.Index, string(a.Stage), a.Candidate, strings.Join(defects, "\n"),
			compileStatus, diagnostic, a.Err, a.Tokens, a.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to insert attempt %d: %w", a.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSession retrieves a stored session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rec := &SessionRecord{}
	var durationMS int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, instruction, source_path, output_name, outcome, reason, artifact_path, attempts, total_tokens, duration_ms, started_at
		FROM sessions
		WHERE id = ?
	`, sessionID).Scan(&rec.ID, &rec.Instruction, &rec.SourcePath, &rec.OutputName,
		&rec.Outcome, &rec.Reason, &rec.ArtifactPath, &rec.Attempts,
		&rec.TotalTokens, &durationMS, &rec.StartedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}

// ListSessions returns stored sessions, newest first. limit <= 0 lists all.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, instruction, source_path, output_name, outcome, reason, artifact_path, attempts, total_tokens, duration_ms, started_at
		FROM sessions
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionRecord{}
	for rows.Next() {
		var rec SessionRecord
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.Instruction, &rec.SourcePath, &rec.OutputName,
			&rec.Outcome, &rec.Reason, &rec.ArtifactPath, &rec.Attempts,
			&rec.TotalTokens, &durationMS, &rec.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		sessions = append(sessions, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// GetAttempts retrieves all attempts of a session in order.
// Returns empty slice (not nil) if the session has no attempts.
func (s *SQLiteStore) GetAttempts(ctx context.Context, sessionID string) ([]AttemptRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, idx, stage, candidate, defects, compile_status, diagnostic, error, tokens, duration_ms
		FROM attempts
		WHERE session_id = ?
		ORDER BY idx ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []AttemptRecord{}
	for rows.Next() {
		var rec AttemptRecord
		var durationMS int64
		if err := rows.Scan(&rec.SessionID, &rec.Index, &rec.Stage, &rec.Candidate,
			&rec.Defects, &rec.CompileStatus, &rec.Diagnostic, &rec.Error,
			&rec.Tokens, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		attempts = append(attempts, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}
