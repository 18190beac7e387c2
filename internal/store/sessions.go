package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/glean/internal/apperr"
	"github.com/starford/glean/internal/models"
)

// SessionPatch carries the optional fields of a session update.
type SessionPatch struct {
	Name     *string
	Category *string
}

// CreateSession inserts s. A duplicate id yields apperr.ErrAlreadyExists.
func (db *DB) CreateSession(ctx context.Context, s models.Session) error {
	var exists int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, s.ID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("store: create session %s: %w", s.ID, apperr.ErrAlreadyExists)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: create session: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, name, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.Name, s.Category, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// GetSession returns the session or apperr.ErrNotFound.
func (db *DB) GetSession(ctx context.Context, id string) (models.Session, error) {
	var s models.Session
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, category, created_at, updated_at FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.Name, &s.Category, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, fmt.Errorf("store: session %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("store: get session: %w", err)
	}
	return s, nil
}

// ListSessions returns sessions, most recently updated first, plus the total.
func (db *DB) ListSessions(ctx context.Context, limit, offset int) ([]models.Session, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM sessions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count sessions: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, category, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC, id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	out := []models.Session{}
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.Name, &s.Category, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// UpdateSession applies p to the session and returns the result.
func (db *DB) UpdateSession(ctx context.Context, id string, p SessionPatch, now time.Time) (models.Session, error) {
	s, err := db.GetSession(ctx, id)
	if err != nil {
		return models.Session{}, err
	}
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	s.UpdatedAt = now.UTC()

	_, err = db.conn.ExecContext(ctx, `
		UPDATE sessions SET name = ?, category = ?, updated_at = ? WHERE id = ?
	`, s.Name, s.Category, s.UpdatedAt, id)
	if err != nil {
		return models.Session{}, fmt.Errorf("store: update session: %w", err)
	}
	return s, nil
}

// DeleteSession removes the session together with its note, turns,
// screenshots and entities.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: session %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
