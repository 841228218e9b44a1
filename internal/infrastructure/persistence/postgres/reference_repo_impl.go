package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/internal/domain/repository"
	"github.com/limitd/limitd/pkg/errors"
)

// ReferenceRepoImpl serves the read-only projections of applications, roles
// and services that the admin UI uses to populate override pickers.
type ReferenceRepoImpl struct {
	db *gorm.DB
}

// NewReferenceRepository creates a PostgreSQL-based reference data repository.
func NewReferenceRepository(db *gorm.DB) repository.ReferenceRepository {
	return &ReferenceRepoImpl{db: db}
}

// ListApplications implements repository.ReferenceRepository.
func (r *ReferenceRepoImpl) ListApplications(ctx context.Context) ([]models.Application, error) {
	var apps []models.Application
	if err := r.db.WithContext(ctx).Order("name").Find(&apps).Error; err != nil {
		return nil, errors.ErrDatabase(err)
	}
	return apps, nil
}

// ListRoles implements repository.ReferenceRepository.
func (r *ReferenceRepoImpl) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.WithContext(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, errors.ErrDatabase(err)
	}
	return roles, nil
}

// ListServices implements repository.ReferenceRepository.
func (r *ReferenceRepoImpl) ListServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	if err := r.db.WithContext(ctx).Order("name").Find(&services).Error; err != nil {
		return nil, errors.ErrDatabase(err)
	}
	return services, nil
}
