// Package ingest turns uploaded screenshots into stored blobs, screenshot
// records and extracted entities.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/glean/internal/aiclient"
	"github.com/starford/glean/internal/models"
	"github.com/starford/glean/internal/sse"
	"github.com/starford/glean/internal/storage"
)

// ErrInvalidImage is returned for uploads that are not an accepted image.
var ErrInvalidImage = errors.New("invalid image")

// Analyzer extracts text and entities from an image.
type Analyzer interface {
	Analyze(ctx context.Context, req aiclient.AnalyzeRequest) (*aiclient.AnalyzeResponse, error)
}

// Store is the persistence the ingestor writes to.
type Store interface {
	GetSession(ctx context.Context, id string) (models.Session, error)
	InsertScreenshot(ctx context.Context, s models.Screenshot) error
	InsertEntity(ctx context.Context, e models.Entity) error
}

// Publisher receives change notifications.
type Publisher interface {
	PublishSessionEvent(kind, sessionID string, data any)
}

// Result describes one ingested screenshot.
type Result struct {
	Screenshot models.Screenshot `json:"screenshot"`
	Entities   []models.Entity   `json:"entities"`
	// Analyzed is false when the analyzer failed; the screenshot is still kept.
	Analyzed bool `json:"analyzed"`
}

// Ingestor stores and analyses screenshots.
type Ingestor struct {
	store     Store
	blobs     storage.Provider
	ai        Analyzer
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Ingestor. publisher may be nil.
func New(store Store, blobs storage.Provider, ai Analyzer, publisher Publisher, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:     store,
		blobs:     blobs,
		ai:        ai,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest validates data, writes the blob, asks the analyzer for text and
// entities, and persists the results under sessionID.
func (in *Ingestor) Ingest(ctx context.Context, sessionID, filename string, data []byte) (*Result, error) {
	if _, err := in.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("ingest: %w: empty file", ErrInvalidImage)
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("ingest: %w: %d bytes exceeds %d", ErrInvalidImage, len(data), MaxImageSize)
	}

	filename = sanitizeFilename(filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !Supported(filename) {
		return nil, fmt.Errorf("ingest: %w: unsupported extension %q", ErrInvalidImage, ext)
	}
	if err := validateMagicBytes(data, ext); err != nil {
		return nil, fmt.Errorf("ingest: %w: %v", ErrInvalidImage, err)
	}

	shot := models.Screenshot{
		ID:        models.NewID(),
		SessionID: sessionID,
		CreatedAt: in.now(),
	}
	shot.Path = storage.Key(sessionID, shot.ID+ext)
	if err := in.blobs.Write(shot.Path, data); err != nil {
		return nil, fmt.Errorf("ingest: write blob: %w", err)
	}

	res := &Result{Entities: []models.Entity{}}
	analysis, err := in.ai.Analyze(ctx, aiclient.AnalyzeRequest{Image: encodeDataURI(data, ext)})
	if err != nil {
		in.logger.Warn("ingest: analyze failed",
			slog.String("session_id", sessionID),
			slog.String("file", filename),
			slog.String("error", err.Error()))
	} else {
		res.Analyzed = true
		shot.RawText = analysis.RawText
		shot.Summary = analysis.Summary
	}

	if err := in.store.InsertScreenshot(ctx, shot); err != nil {
		_ = in.blobs.Delete(shot.Path)
		return nil, fmt.Errorf("ingest: save screenshot: %w", err)
	}
	res.Screenshot = shot

	if analysis != nil {
		for _, ei := range analysis.Entities {
			e := models.Entity{
				ID:           models.NewID(),
				SessionID:    sessionID,
				ScreenshotID: shot.ID,
				Type:         ei.Type,
				Attributes:   ei.Attributes,
				CreatedAt:    in.now(),
			}
			if err := in.store.InsertEntity(ctx, e); err != nil {
				in.logger.Warn("ingest: save entity failed",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()))
				continue
			}
			res.Entities = append(res.Entities, e)
		}
	}

	if in.publisher != nil {
		in.publisher.PublishSessionEvent(sse.TypeEntitiesUpdated, sessionID, map[string]any{
			"screenshot_id": shot.ID,
			"entities":      len(res.Entities),
		})
	}

	in.logger.Info("ingest: screenshot stored",
		slog.String("session_id", sessionID),
		slog.String("path", shot.Path),
		slog.Int("entities", len(res.Entities)))
	return res, nil
}
