package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/glean/internal/apperr"
	"github.com/starford/glean/internal/models"
)

// InsertEntity stores e with its attributes encoded as JSON.
func (db *DB) InsertEntity(ctx context.Context, e models.Entity) error {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("store: encode attributes: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO entities (id, session_id, screenshot_id, type, attributes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.ScreenshotID, e.Type, string(attrsJSON), e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: insert entity: %w", err)
	}
	return nil
}

// ListEntities returns a session's entities in creation order.
func (db *DB) ListEntities(ctx context.Context, sessionID string) ([]models.Entity, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session_id, screenshot_id, type, attributes, created_at
		FROM entities
		WHERE session_id = ?
		ORDER BY created_at, rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list entities: %w", err)
	}
	defer rows.Close()

	out := []models.Entity{}
	for rows.Next() {
		var e models.Entity
		var attrs string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ScreenshotID, &e.Type, &attrs, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
			return nil, fmt.Errorf("store: decode attributes of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertScreenshot stores s.
func (db *DB) InsertScreenshot(ctx context.Context, s models.Screenshot) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO screenshots (id, session_id, path, raw_text, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.SessionID, s.Path, s.RawText, s.Summary, s.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: insert screenshot: %w", err)
	}
	return nil
}

// GetScreenshot returns one screenshot of a session.
func (db *DB) GetScreenshot(ctx context.Context, sessionID, id string) (models.Screenshot, error) {
	var s models.Screenshot
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, session_id, path, raw_text, summary, created_at
		FROM screenshots
		WHERE session_id = ? AND id = ?
	`, sessionID, id).Scan(&s.ID, &s.SessionID, &s.Path, &s.RawText, &s.Summary, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Screenshot{}, fmt.Errorf("store: screenshot %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Screenshot{}, fmt.Errorf("store: get screenshot: %w", err)
	}
	return s, nil
}

// ListScreenshots returns a session's screenshots in upload order.
func (db *DB) ListScreenshots(ctx context.Context, sessionID string) ([]models.Screenshot, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session_id, path, raw_text, summary, created_at
		FROM screenshots
		WHERE session_id = ?
		ORDER BY created_at, rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list screenshots: %w", err)
	}
	defer rows.Close()

	out := []models.Screenshot{}
	for rows.Next() {
		var s models.Screenshot
		if err := rows.Scan(&s.ID, &s.SessionID, &s.Path, &s.RawText, &s.Summary, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
