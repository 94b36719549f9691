package storage

import (
	"context"

	"triagebot/internal/models"
)

// Store persists classification outcomes. Seen backs message dedup so that
// routing side effects happen at most once per message, including across
// restarts when Postgres is configured. Store failures are advisory: the
// pipeline logs them and keeps going.
type Store interface {
	SaveClassification(ctx context.Context, rec *models.ClassificationRecord) error
	Seen(ctx context.Context, messageID string) (bool, error)
	RecentClassifications(ctx context.Context, limit int) ([]*models.ClassificationRecord, error)
	Close() error
}
