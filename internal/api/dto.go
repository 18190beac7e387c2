package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/glean/internal/models"
	"github.com/starford/glean/internal/render"
)

// CreateSessionRequest is the request body for creating a session.
type CreateSessionRequest struct {
	Name     string `json:"name" example:"Lisbon trip" validate:"required"`
	Category string `json:"category,omitempty" example:"travel"`
}

// Validate checks the request fields.
func (r CreateSessionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Category, validation.Length(0, 100)),
	)
}

// UpdateSessionRequest is the request body for PATCH /sessions/{id}.
type UpdateSessionRequest struct {
	Name     *string `json:"name,omitempty" example:"Porto trip"`
	Category *string `json:"category,omitempty" example:"travel"`
}

// Validate checks the request fields.
func (r UpdateSessionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Category, validation.Length(0, 100)),
	)
}

// SessionListResponse wraps paginated session listings.
type SessionListResponse struct {
	Sessions []models.Session `json:"sessions" validate:"required"`
	Total    int              `json:"total" example:"42" validate:"required"`
}

// UpdateNoteRequest is the request body for a manual note edit.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Notes\nHotel A looks good" validate:"required"`
}

// AppendNoteRequest is the request body for appending to a note.
type AppendNoteRequest struct {
	Text string `json:"text" example:"Remember to compare breakfast" validate:"required"`
}

// Validate checks the request fields.
func (r AppendNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required),
	)
}

// RenderResponse wraps the rendered note.
type RenderResponse struct {
	Nodes []render.Node `json:"nodes" validate:"required"`
}

// SendMessageRequest is the request body for POST /sessions/{id}/messages.
type SendMessageRequest struct {
	Message string `json:"message" example:"Which hotel is cheaper?" validate:"required"`
}

// SummarizeRequest selects the entities to summarize; empty means all.
type SummarizeRequest struct {
	EntityIDs []string `json:"entity_ids,omitempty"`
}

// TurnListResponse wraps the conversation.
type TurnListResponse struct {
	Turns []models.Turn `json:"turns" validate:"required"`
}

// EntityListResponse wraps a session's entities.
type EntityListResponse struct {
	Entities []models.Entity `json:"entities" validate:"required"`
}

// ScreenshotListResponse wraps a session's screenshots.
type ScreenshotListResponse struct {
	Screenshots []models.Screenshot `json:"screenshots" validate:"required"`
}
