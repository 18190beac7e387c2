// Package models defines the domain types for glean.
package models

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for any persisted record.
func NewID() string {
	return uuid.New().String()
}

// Session groups screenshots, entities, a note and a conversation.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Screenshot is an uploaded image and the text the analyzer read from it.
type Screenshot struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Path      string    `json:"path"`
	RawText   string    `json:"raw_text,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
