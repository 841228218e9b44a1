package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/internal/domain/repository"
	"github.com/limitd/limitd/pkg/errors"
)

// ChangeRecordRepoImpl reads the append-only audit trail. Records are only
// ever written through ConfigRepoImpl transactions.
type ChangeRecordRepoImpl struct {
	db *gorm.DB
}

// NewChangeRecordRepository creates a PostgreSQL-based change record repository.
func NewChangeRecordRepository(db *gorm.DB) repository.ChangeRecordRepository {
	return &ChangeRecordRepoImpl{db: db}
}

// ListRecent implements repository.ChangeRecordRepository.
func (r *ChangeRecordRepoImpl) ListRecent(ctx context.Context, limit int) ([]models.ConfigChangeRecord, error) {
	var records []models.ConfigChangeRecord
	err := r.db.WithContext(ctx).
		Order("changed_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.ErrDatabase(err)
	}
	return records, nil
}

// ListRange implements repository.ChangeRecordRepository.
func (r *ChangeRecordRepoImpl) ListRange(ctx context.Context, from, to time.Time) ([]models.ConfigChangeRecord, error) {
	var records []models.ConfigChangeRecord
	err := r.db.WithContext(ctx).
		Where("changed_at >= ? AND changed_at < ?", from, to).
		Order("changed_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, errors.ErrDatabase(err)
	}
	return records, nil
}

// ListByConfig implements repository.ChangeRecordRepository.
func (r *ChangeRecordRepoImpl) ListByConfig(ctx context.Context, configName string, limit int) ([]models.ConfigChangeRecord, error) {
	var records []models.ConfigChangeRecord
	err := r.db.WithContext(ctx).
		Where("config_name = ?", configName).
		Order("changed_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.ErrDatabase(err)
	}
	return records, nil
}
