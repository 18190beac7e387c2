package store

import (
	"context"
	"time"

	"github.com/starford/glean/internal/models"
)

// Repository is the persistence surface used by the service layers.
// Consumers should depend on this interface rather than the concrete *DB.
type Repository interface {
	CreateSession(ctx context.Context, s models.Session) error
	GetSession(ctx context.Context, id string) (models.Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]models.Session, int, error)
	UpdateSession(ctx context.Context, id string, p SessionPatch, now time.Time) (models.Session, error)
	DeleteSession(ctx context.Context, id string) error

	GetNote(ctx context.Context, sessionID string) (string, bool, error)
	SaveNote(ctx context.Context, sessionID, content string) error

	InsertTurn(ctx context.Context, t models.Turn) error
	ListTurns(ctx context.Context, sessionID string) ([]models.Turn, error)
	DeleteTurns(ctx context.Context, sessionID string) error

	InsertEntity(ctx context.Context, e models.Entity) error
	ListEntities(ctx context.Context, sessionID string) ([]models.Entity, error)
	InsertScreenshot(ctx context.Context, s models.Screenshot) error
	GetScreenshot(ctx context.Context, sessionID, id string) (models.Screenshot, error)
	ListScreenshots(ctx context.Context, sessionID string) ([]models.Screenshot, error)

	Ping() error
	Close() error
}

// Verify *DB satisfies Repository at compile time.
var _ Repository = (*DB)(nil)
