package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/glean/internal/ingest"
	"github.com/starford/glean/internal/models"
	"github.com/starford/glean/internal/session"
	"github.com/starford/glean/internal/sse"
	"github.com/starford/glean/internal/storage"
	"github.com/starford/glean/internal/store"
)

// Store is the persistence used directly by handlers.
type Store interface {
	CreateSession(ctx context.Context, s models.Session) error
	GetSession(ctx context.Context, id string) (models.Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]models.Session, int, error)
	UpdateSession(ctx context.Context, id string, p store.SessionPatch, now time.Time) (models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	ListEntities(ctx context.Context, sessionID string) ([]models.Entity, error)
	GetScreenshot(ctx context.Context, sessionID, id string) (models.Screenshot, error)
	ListScreenshots(ctx context.Context, sessionID string) ([]models.Screenshot, error)
}

// Sessions hands out active sessions.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Deactivate(ctx context.Context, id string) error
}

// Ingestor stores uploaded screenshots.
type Ingestor interface {
	Ingest(ctx context.Context, sessionID, filename string, data []byte) (*ingest.Result, error)
}

// Publisher receives session lifecycle events.
type Publisher interface {
	PublishSessionEvent(kind, sessionID string, data any)
}

// Handler holds API route handlers.
type Handler struct {
	store     Store
	sessions  Sessions
	ingestor  Ingestor
	blobs     storage.Provider
	publisher Publisher
	logger    *slog.Logger
}

// NewHandler creates a new Handler. publisher and logger may be nil.
func NewHandler(st Store, sessions Sessions, ingestor Ingestor, blobs storage.Provider, publisher Publisher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:     st,
		sessions:  sessions,
		ingestor:  ingestor,
		blobs:     blobs,
		publisher: publisher,
		logger:    logger,
	}
}

func (h *Handler) publish(kind, sessionID string, data any) {
	if h.publisher != nil {
		h.publisher.PublishSessionEvent(kind, sessionID, data)
	}
}

// ListSessions handles GET /api/sessions.
//
//	@Summary		List sessions, most recently updated first
//	@Tags			sessions
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	SessionListResponse
//	@Security		BearerAuth
//	@Router			/sessions [get]
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.store.ListSessions(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err, "list sessions")
		return
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: items, Total: total})
}

// CreateSession handles POST /api/sessions.
//
//	@Summary		Create a session
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateSessionRequest	true	"Session to create"
//	@Success		201		{object}	models.Session
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	now := time.Now().UTC()
	s := models.Session{
		ID:        models.NewID(),
		Name:      req.Name,
		Category:  req.Category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateSession(r.Context(), s); err != nil {
		h.writeError(w, err, "create session")
		return
	}
	h.publish(sse.TypeSessionCreated, s.ID, s)
	writeJSON(w, http.StatusCreated, s)
}

// GetSession handles GET /api/sessions/{id}.
//
//	@Summary		Get a session
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	models.Session
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get session", slog.String("session_id", id))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSession handles PATCH /api/sessions/{id}. An active session is
// closed so the next access picks up the new name and category.
//
//	@Summary		Rename or recategorize a session
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Session ID"
//	@Param			body	body		UpdateSessionRequest	true	"Fields to change"
//	@Success		200		{object}	models.Session
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [patch]
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	s, err := h.store.UpdateSession(r.Context(), id, store.SessionPatch{Name: req.Name, Category: req.Category}, time.Now())
	if err != nil {
		h.writeError(w, err, "update session", slog.String("session_id", id))
		return
	}
	if err := h.sessions.Deactivate(r.Context(), id); err != nil {
		h.logger.Warn("deactivate after update failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
	}
	h.publish(sse.TypeSessionUpdated, id, s)
	writeJSON(w, http.StatusOK, s)
}

// DeleteSession handles DELETE /api/sessions/{id}.
//
//	@Summary		Delete a session with its note, conversation and screenshots
//	@Tags			sessions
//	@Param			id	path	string	true	"Session ID"
//	@Success		204	"Session deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [delete]
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Deactivate(r.Context(), id); err != nil {
		h.logger.Warn("deactivate before delete failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
	}
	if err := h.store.DeleteSession(r.Context(), id); err != nil {
		h.writeError(w, err, "delete session", slog.String("session_id", id))
		return
	}
	if err := h.blobs.DeleteDir(id); err != nil {
		h.logger.Warn("delete screenshots failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
	}
	h.publish(sse.TypeSessionDeleted, id, map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// ListEntities handles GET /api/sessions/{id}/entities.
//
//	@Summary		List extracted entities and summaries
//	@Tags			entities
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	EntityListResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/entities [get]
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetSession(r.Context(), id); err != nil {
		h.writeError(w, err, "list entities", slog.String("session_id", id))
		return
	}
	items, err := h.store.ListEntities(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "list entities", slog.String("session_id", id))
		return
	}
	writeJSON(w, http.StatusOK, EntityListResponse{Entities: items})
}
