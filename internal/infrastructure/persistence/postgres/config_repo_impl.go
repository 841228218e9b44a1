package postgres

import (
	"context"
	stderrors "errors"
	"strings"

	"gorm.io/gorm"

	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/internal/domain/repository"
	"github.com/limitd/limitd/pkg/errors"
	"github.com/limitd/limitd/pkg/logger"
)

// ConfigRepoImpl implements ConfigRepository on PostgreSQL. Config and audit
// rows are written in one transaction; writes for the same name serialize on
// the config row, so concurrent edits become last-writer-wins with every
// superseded state still captured in the audit trail.
type ConfigRepoImpl struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewConfigRepository creates a PostgreSQL-based config repository.
func NewConfigRepository(db *gorm.DB, log logger.Logger) repository.ConfigRepository {
	return &ConfigRepoImpl{
		db:     db,
		logger: log.WithComponent("config_repo"),
	}
}

// Create implements repository.ConfigRepository.
func (r *ConfigRepoImpl) Create(ctx context.Context, cfg *models.RateLimitConfig, record *models.ConfigChangeRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(cfg).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return errors.ErrConfigExists(cfg.Name)
		}
		r.logger.Error(ctx, "failed to create config", err, logger.String("name", cfg.Name))
		return errors.ErrDatabase(err)
	}

	r.logger.Info(ctx, "config created",
		logger.String("name", cfg.Name),
		logger.String("changed_by", record.ChangedBy))
	return nil
}

// Update implements repository.ConfigRepository.
func (r *ConfigRepoImpl) Update(ctx context.Context, cfg *models.RateLimitConfig, record *models.ConfigChangeRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RateLimitConfig{}).
			Where("name = ?", cfg.Name).
			Select("*").
			Omit("name", "created_at").
			Updates(cfg)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.ErrConfigNotFound(cfg.Name)
		}
		return tx.Create(record).Error
	})
	if err != nil {
		if _, ok := errors.AsAppError(err); ok {
			return err
		}
		if isDuplicate(err) {
			return errors.ErrConflict("prefix already in use by another config")
		}
		r.logger.Error(ctx, "failed to update config", err, logger.String("name", cfg.Name))
		return errors.ErrDatabase(err)
	}

	r.logger.Info(ctx, "config updated",
		logger.String("name", cfg.Name),
		logger.String("changed_by", record.ChangedBy))
	return nil
}

// Delete implements repository.ConfigRepository.
func (r *ConfigRepoImpl) Delete(ctx context.Context, name string, record *models.ConfigChangeRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("name = ?", name).Delete(&models.RateLimitConfig{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.ErrConfigNotFound(name)
		}
		return tx.Create(record).Error
	})
	if err != nil {
		if _, ok := errors.AsAppError(err); ok {
			return err
		}
		r.logger.Error(ctx, "failed to delete config", err, logger.String("name", name))
		return errors.ErrDatabase(err)
	}

	r.logger.Info(ctx, "config deleted",
		logger.String("name", name),
		logger.String("changed_by", record.ChangedBy))
	return nil
}

// FindByName implements repository.ConfigRepository.
func (r *ConfigRepoImpl) FindByName(ctx context.Context, name string) (*models.RateLimitConfig, error) {
	var cfg models.RateLimitConfig
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&cfg).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrConfigNotFound(name)
		}
		return nil, errors.ErrDatabase(err)
	}
	return &cfg, nil
}

// List implements repository.ConfigRepository.
func (r *ConfigRepoImpl) List(ctx context.Context, filter repository.ConfigFilter) ([]models.RateLimitConfig, error) {
	q := r.db.WithContext(ctx).Model(&models.RateLimitConfig{})

	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Enabled != nil {
		q = q.Where("enabled = ?", *filter.Enabled)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(display_name) LIKE ?", pattern, pattern)
	}

	var configs []models.RateLimitConfig
	if err := q.Order("name").Find(&configs).Error; err != nil {
		return nil, errors.ErrDatabase(err)
	}
	return configs, nil
}

// Count implements repository.ConfigRepository.
func (r *ConfigRepoImpl) Count(ctx context.Context) (int64, int64, error) {
	var total, enabled int64
	if err := r.db.WithContext(ctx).Model(&models.RateLimitConfig{}).Count(&total).Error; err != nil {
		return 0, 0, errors.ErrDatabase(err)
	}
	if err := r.db.WithContext(ctx).Model(&models.RateLimitConfig{}).Where("enabled = ?", true).Count(&enabled).Error; err != nil {
		return 0, 0, errors.ErrDatabase(err)
	}
	return total, enabled, nil
}

// isDuplicate detects unique constraint violations across postgres and
// sqlite (used in tests).
func isDuplicate(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
