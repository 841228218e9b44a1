package service

import (
	"context"

	"github.com/limitd/limitd/internal/domain/models"
)

// AuditPublisher streams configuration change records to external consumers.
// The database audit trail is the source of truth; publishing is best-effort
// and must never fail a config mutation.
type AuditPublisher interface {
	// Publish emits one change record.
	Publish(ctx context.Context, record *models.ConfigChangeRecord) error

	// Close releases the underlying transport.
	Close() error
}

// noopAuditPublisher drops everything. Used when the event stream is disabled.
type noopAuditPublisher struct{}

// NewNoopAuditPublisher returns a publisher that discards all records.
func NewNoopAuditPublisher() AuditPublisher {
	return noopAuditPublisher{}
}

func (noopAuditPublisher) Publish(context.Context, *models.ConfigChangeRecord) error { return nil }
func (noopAuditPublisher) Close() error                                              { return nil }
