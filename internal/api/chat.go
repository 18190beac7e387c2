package api

import (
	"log/slog"
	"net/http"
)

// ListTurns handles GET /api/sessions/{id}/turns.
//
//	@Summary		List the conversation
//	@Tags			conversation
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	TurnListResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/turns [get]
func (h *Handler) ListTurns(w http.ResponseWriter, r *http.Request) {
	s, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, TurnListResponse{Turns: s.Turns()})
}

// ClearTurns handles DELETE /api/sessions/{id}/turns.
//
//	@Summary		Clear the conversation
//	@Tags			conversation
//	@Param			id	path	string	true	"Session ID"
//	@Success		204	"Conversation cleared"
//	@Security		BearerAuth
//	@Router			/sessions/{id}/turns [delete]
func (h *Handler) ClearTurns(w http.ResponseWriter, r *http.Request) {
	s, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	if err := s.ClearTurns(r.Context()); err != nil {
		h.writeError(w, err, "clear turns", slog.String("session_id", s.ID()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage handles POST /api/sessions/{id}/messages.
//
//	@Summary		Send a message to the assistant
//	@Description	Remote failures come back as an assistant turn with failed=true, not as an HTTP error.
//	@Tags			conversation
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Session ID"
//	@Param			body	body		SendMessageRequest	true	"User message"
//	@Success		200		{object}	conversation.Result
//	@Security		BearerAuth
//	@Router			/sessions/{id}/messages [post]
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	res, err := s.Send(r.Context(), req.Message)
	if err != nil {
		h.writeError(w, err, "send message", slog.String("session_id", s.ID()))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Summarize handles POST /api/sessions/{id}/summarize.
//
//	@Summary		Summarize extracted entities
//	@Tags			conversation
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Session ID"
//	@Param			body	body		SummarizeRequest	false	"Entity selection"
//	@Success		200		{object}	conversation.Result
//	@Security		BearerAuth
//	@Router			/sessions/{id}/summarize [post]
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req SummarizeRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	s, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	res, err := s.Summarize(r.Context(), req.EntityIDs)
	if err != nil {
		h.writeError(w, err, "summarize", slog.String("session_id", s.ID()))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
