package api

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/starford/glean/internal/apperr"
	"github.com/starford/glean/internal/ingest"
)

const maxUploadBytes = ingest.MaxImageSize + 1<<20

// UploadScreenshot handles POST /api/sessions/{id}/screenshots
// (multipart/form-data, field "file").
//
//	@Summary		Upload and analyse a screenshot
//	@Tags			screenshots
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		string	true	"Session ID"
//	@Param			file	formData	file	true	"Image file"
//	@Success		201		{object}	ingest.Result
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/screenshots [post]
func (h *Handler) UploadScreenshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	res, err := h.ingestor.Ingest(r.Context(), id, header.Filename, data)
	if err != nil {
		h.writeError(w, err, "ingest screenshot", slog.String("session_id", id))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListScreenshots handles GET /api/sessions/{id}/screenshots.
//
//	@Summary		List uploaded screenshots
//	@Tags			screenshots
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	ScreenshotListResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/screenshots [get]
func (h *Handler) ListScreenshots(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetSession(r.Context(), id); err != nil {
		h.writeError(w, err, "list screenshots", slog.String("session_id", id))
		return
	}
	items, err := h.store.ListScreenshots(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "list screenshots", slog.String("session_id", id))
		return
	}
	writeJSON(w, http.StatusOK, ScreenshotListResponse{Screenshots: items})
}

// ScreenshotImage handles GET /api/sessions/{id}/screenshots/{shotID}/image.
//
//	@Summary		Download a screenshot image
//	@Tags			screenshots
//	@Produce		image/png,image/jpeg,image/gif,image/webp
//	@Param			id		path	string	true	"Session ID"
//	@Param			shotID	path	string	true	"Screenshot ID"
//	@Success		200		"Image bytes"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/screenshots/{shotID}/image [get]
func (h *Handler) ScreenshotImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	shotID := chi.URLParam(r, "shotID")

	shot, err := h.store.GetScreenshot(r.Context(), id, shotID)
	if err != nil {
		h.writeError(w, err, "get screenshot", slog.String("session_id", id), slog.String("screenshot_id", shotID))
		return
	}
	blob, err := h.blobs.Open(shot.Path)
	if errors.Is(err, fs.ErrNotExist) {
		err = fmt.Errorf("blob %s: %w", shot.Path, apperr.ErrNotFound)
	}
	if err != nil {
		h.writeError(w, err, "open screenshot", slog.String("session_id", id), slog.String("screenshot_id", shotID))
		return
	}
	defer blob.Close()

	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeContent(w, r, path.Base(shot.Path), blob.Info.UpdatedAt, blob)
}
