package models

import "time"

// EntityTypeSummary tags entities produced by the summarize flow rather than
// extracted from a screenshot.
const EntityTypeSummary = "summary"

// Entity is a structured record (hotel, product, ...) extracted from a
// screenshot, or a generated summary of other entities.
type Entity struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"session_id"`
	ScreenshotID string         `json:"screenshot_id,omitempty"`
	Type         string         `json:"type"`
	Attributes   map[string]any `json:"attributes"`
	CreatedAt    time.Time      `json:"created_at"`
}

// IsSummary reports whether e was generated by the summarize flow.
func (e Entity) IsSummary() bool {
	return e.Type == EntityTypeSummary
}
