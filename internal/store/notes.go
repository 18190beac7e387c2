package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/glean/internal/checksum"
)

// GetNote returns the stored note of a session and whether one exists.
func (db *DB) GetNote(ctx context.Context, sessionID string) (string, bool, error) {
	var content string
	err := db.conn.QueryRowContext(ctx, `SELECT content FROM notes WHERE session_id = ?`, sessionID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get note: %w", err)
	}
	return content, true, nil
}

// SaveNote upserts the note and touches the owning session.
func (db *DB) SaveNote(ctx context.Context, sessionID, content string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (session_id, content, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			content    = excluded.content,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, sessionID, content, checksum.Sum(content), now)
	if err != nil {
		return fmt.Errorf("store: save note: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID); err != nil {
		return fmt.Errorf("store: touch session: %w", err)
	}
	return tx.Commit()
}
