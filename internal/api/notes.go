package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/glean/internal/render"
	"github.com/starford/glean/internal/session"
)

// activeSession resolves {id} to an active session or writes the error.
func (h *Handler) activeSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	s, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "open session", slog.String("session_id", id))
		return nil, false
	}
	return s, true
}

func writeNote(w http.ResponseWriter, v session.NoteView) {
	w.Header().Set("ETag", `"`+v.Checksum+`"`)
	writeJSON(w, http.StatusOK, v)
}

// GetNote handles GET /api/sessions/{id}/note.
//
//	@Summary		Get the session note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	session.NoteView
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/note [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	writeNote(w, s.Note())
}

// UpdateNote handles PUT /api/sessions/{id}/note. The edit is applied in
// memory at once and persisted after the autosave delay.
//
//	@Summary		Edit the note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Session ID"
//	@Param			If-Match	header		string				false	"SHA-256 checksum of the note being edited"
//	@Param			body		body		UpdateNoteRequest	true	"New content"
//	@Success		200			{object}	session.NoteView
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/note [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	if err := s.UpdateNote(req.Content, r.Header.Get("If-Match")); err != nil {
		h.writeError(w, err, "update note", slog.String("session_id", s.ID()))
		return
	}
	writeNote(w, s.Note())
}

// AppendNote handles POST /api/sessions/{id}/note/append.
//
//	@Summary		Append a block to the note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Session ID"
//	@Param			body	body		AppendNoteRequest	true	"Text to append"
//	@Success		200		{object}	session.NoteView
//	@Security		BearerAuth
//	@Router			/sessions/{id}/note/append [post]
func (h *Handler) AppendNote(w http.ResponseWriter, r *http.Request) {
	var req AppendNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	s, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	if err := s.AppendNote(r.Context(), req.Text); err != nil {
		h.writeError(w, err, "append note", slog.String("session_id", s.ID()))
		return
	}
	writeNote(w, s.Note())
}

// FlushNote handles POST /api/sessions/{id}/note/flush.
//
//	@Summary		Persist a pending note edit now
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	session.NoteView
//	@Security		BearerAuth
//	@Router			/sessions/{id}/note/flush [post]
func (h *Handler) FlushNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	if err := s.FlushNote(r.Context()); err != nil {
		h.writeError(w, err, "flush note", slog.String("session_id", s.ID()))
		return
	}
	writeNote(w, s.Note())
}

// RenderNote handles GET /api/sessions/{id}/note/render.
//
//	@Summary		Render the note into display nodes
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	RenderResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/note/render [get]
func (h *Handler) RenderNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	nodes := s.Render()
	if nodes == nil {
		nodes = []render.Node{}
	}
	writeJSON(w, http.StatusOK, RenderResponse{Nodes: nodes})
}
