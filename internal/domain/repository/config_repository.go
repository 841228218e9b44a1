// Package repository defines the persistence interfaces for the limitd
// rate limiting service.
package repository

import (
	"context"

	"github.com/limitd/limitd/internal/domain/models"
)

// ConfigFilter narrows a config listing.
type ConfigFilter struct {
	// Type filters by configuration type when non-empty.
	Type string
	// Enabled filters by the master switch when non-nil.
	Enabled *bool
	// Search matches name or display name substrings when non-empty.
	Search string
}

// ConfigRepository persists RateLimitConfig documents together with their
// audit records. Every mutation takes the change record produced by the
// caller and writes both in one transaction, so an audit record can never be
// skipped and a failed write never leaves a dangling record.
type ConfigRepository interface {
	// Create inserts a new config and its creation record atomically.
	// Fails with a conflict error when the name or prefix already exists.
	Create(ctx context.Context, cfg *models.RateLimitConfig, record *models.ConfigChangeRecord) error

	// Update replaces an existing config and appends its change record
	// atomically. Fails with not-found when the name is unknown.
	Update(ctx context.Context, cfg *models.RateLimitConfig, record *models.ConfigChangeRecord) error

	// Delete removes a config and appends its deletion record atomically.
	Delete(ctx context.Context, name string, record *models.ConfigChangeRecord) error

	// FindByName fetches one config. Fails with not-found when unknown.
	FindByName(ctx context.Context, name string) (*models.RateLimitConfig, error)

	// List returns configs matching the filter, ordered by name.
	List(ctx context.Context, filter ConfigFilter) ([]models.RateLimitConfig, error)

	// Count returns the total and enabled config counts.
	Count(ctx context.Context) (total int64, enabled int64, err error)
}
