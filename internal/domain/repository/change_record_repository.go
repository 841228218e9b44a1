package repository

import (
	"context"
	"time"

	"github.com/limitd/limitd/internal/domain/models"
)

// ChangeRecordRepository reads the append-only configuration audit trail.
// Records are written exclusively through ConfigRepository mutations; this
// interface is read-only by design.
type ChangeRecordRepository interface {
	// ListRecent returns the newest records, newest first.
	ListRecent(ctx context.Context, limit int) ([]models.ConfigChangeRecord, error)

	// ListRange returns records with ChangedAt in [from, to), newest first.
	ListRange(ctx context.Context, from, to time.Time) ([]models.ConfigChangeRecord, error)

	// ListByConfig returns records for one config, newest first.
	ListByConfig(ctx context.Context, configName string, limit int) ([]models.ConfigChangeRecord, error)
}
