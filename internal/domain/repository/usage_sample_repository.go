package repository

import (
	"context"
	"time"

	"github.com/limitd/limitd/internal/domain/models"
)

// UsageSampleRepository owns the time-bucketed request rollups that feed
// analytics. Samples are advisory only; enforcement never reads them.
type UsageSampleRepository interface {
	// Record folds one request outcome into the hourly bucket for the
	// config, creating the bucket row on first use.
	Record(ctx context.Context, configName string, at time.Time, allowed bool, errored bool) error

	// ListRange returns samples with Bucket in [from, to), oldest first.
	ListRange(ctx context.Context, from, to time.Time) ([]models.UsageSample, error)
}

// ReferenceRepository reads the projection tables of external entities that
// override forms reference (applications, roles, services).
type ReferenceRepository interface {
	ListApplications(ctx context.Context) ([]models.Application, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	ListServices(ctx context.Context) ([]models.Service, error)
}
