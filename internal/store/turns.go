package store

import (
	"context"
	"fmt"

	"github.com/starford/glean/internal/models"
)

// InsertTurn stores t. A turn whose id already exists is ignored.
func (db *DB) InsertTurn(ctx context.Context, t models.Turn) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO turns (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.ID, t.SessionID, string(t.Role), t.Content, t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: insert turn: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 && db.turnHook != nil {
		db.turnHook(t)
	}
	return nil
}

// ListTurns returns a session's conversation in creation order.
func (db *DB) ListTurns(ctx context.Context, sessionID string) ([]models.Turn, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY created_at, rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list turns: %w", err)
	}
	defer rows.Close()

	out := []models.Turn{}
	for rows.Next() {
		var t models.Turn
		var role string
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Role = models.Role(role)
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTurns clears a session's conversation.
func (db *DB) DeleteTurns(ctx context.Context, sessionID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("store: delete turns: %w", err)
	}
	return nil
}
