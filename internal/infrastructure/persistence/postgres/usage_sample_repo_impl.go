package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/internal/domain/repository"
	"github.com/limitd/limitd/pkg/errors"
)

// UsageSampleRepoImpl accumulates per-config hourly usage rollups. Record
// upserts into the (config_name, bucket) row so concurrent enforcement paths
// increment the same counters without a read-modify-write race.
type UsageSampleRepoImpl struct {
	db *gorm.DB
}

// NewUsageSampleRepository creates a PostgreSQL-based usage sample repository.
func NewUsageSampleRepository(db *gorm.DB) repository.UsageSampleRepository {
	return &UsageSampleRepoImpl{db: db}
}

// Record implements repository.UsageSampleRepository.
func (r *UsageSampleRepoImpl) Record(ctx context.Context, configName string, at time.Time, allowed, errored bool) error {
	sample := models.UsageSample{
		ConfigName: configName,
		Bucket:     models.BucketFor(at),
		Requests:   1,
	}
	if errored {
		sample.Errors = 1
	} else if allowed {
		sample.Allowed = 1
	} else {
		sample.Blocked = 1
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "config_name"}, {Name: "bucket"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"requests": gorm.Expr("usage_samples.requests + ?", sample.Requests),
			"allowed":  gorm.Expr("usage_samples.allowed + ?", sample.Allowed),
			"blocked":  gorm.Expr("usage_samples.blocked + ?", sample.Blocked),
			"errors":   gorm.Expr("usage_samples.errors + ?", sample.Errors),
		}),
	}).Create(&sample).Error
	if err != nil {
		return errors.ErrDatabase(err)
	}
	return nil
}

// ListRange implements repository.UsageSampleRepository.
func (r *UsageSampleRepoImpl) ListRange(ctx context.Context, from, to time.Time) ([]models.UsageSample, error) {
	var samples []models.UsageSample
	err := r.db.WithContext(ctx).
		Where("bucket >= ? AND bucket < ?", from, to).
		Order("bucket").
		Find(&samples).Error
	if err != nil {
		return nil, errors.ErrDatabase(err)
	}
	return samples, nil
}
