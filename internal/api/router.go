package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/sessions", h.ListSessions)
	r.Post("/sessions", h.CreateSession)

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Patch("/", h.UpdateSession)
		r.Delete("/", h.DeleteSession)

		r.Get("/note", h.GetNote)
		r.Put("/note", h.UpdateNote)
		r.Post("/note/append", h.AppendNote)
		r.Post("/note/flush", h.FlushNote)
		r.Get("/note/render", h.RenderNote)

		r.Get("/turns", h.ListTurns)
		r.Delete("/turns", h.ClearTurns)
		r.Post("/messages", h.SendMessage)
		r.Post("/summarize", h.Summarize)

		r.Get("/entities", h.ListEntities)
		r.Get("/screenshots", h.ListScreenshots)
		r.Post("/screenshots", h.UploadScreenshot)
		r.Get("/screenshots/{shotID}/image", h.ScreenshotImage)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
