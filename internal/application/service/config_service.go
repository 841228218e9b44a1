// Package service implements the application-layer use cases of the limitd
// rate limiting service, orchestrating the domain services, repositories and
// infrastructure adapters.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/limitd/limitd/internal/application/dto"
	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/internal/domain/repository"
	domainsvc "github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/internal/infrastructure/monitoring"
	"github.com/limitd/limitd/pkg/constants"
	"github.com/limitd/limitd/pkg/errors"
	"github.com/limitd/limitd/pkg/logger"
)

// ConfigAppService owns every configuration mutation. All writes flow through
// here so the audit trail is never skipped: each successful mutation persists
// exactly one ConfigChangeRecord in the same transaction as the config row,
// then publishes it to the audit stream best-effort.
type ConfigAppService struct {
	repo      repository.ConfigRepository
	store     domainsvc.CounterStore
	keygen    domainsvc.KeyGenerator
	publisher domainsvc.AuditPublisher
	metrics   *monitoring.Metrics
	logger    logger.Logger
}

// NewConfigAppService creates the configuration application service.
func NewConfigAppService(
	repo repository.ConfigRepository,
	store domainsvc.CounterStore,
	keygen domainsvc.KeyGenerator,
	publisher domainsvc.AuditPublisher,
	metrics *monitoring.Metrics,
	log logger.Logger,
) *ConfigAppService {
	return &ConfigAppService{
		repo:      repo,
		store:     store,
		keygen:    keygen,
		publisher: publisher,
		metrics:   metrics,
		logger:    log.WithComponent("config_service"),
	}
}

// Create validates and persists a new configuration.
func (s *ConfigAppService) Create(ctx context.Context, req *dto.CreateConfigRequest, changedBy string) (*models.RateLimitConfig, error) {
	cfg := &models.RateLimitConfig{
		Name:                   req.Name,
		DisplayName:            req.DisplayName,
		Description:            req.Description,
		Type:                   constants.ConfigType(req.Type),
		WindowMs:               req.WindowMs,
		Max:                    req.Max,
		KeyStrategy:            constants.KeyStrategy(req.KeyStrategy),
		CustomKeyGenerator:     req.CustomKeyGenerator,
		Message:                req.Message,
		SkipSuccessfulRequests: req.SkipSuccessfulRequests,
		SkipFailedRequests:     req.SkipFailedRequests,
		ExecEvenly:             req.ExecEvenly,
		BlockDurationMs:        req.BlockDurationMs,
		Prefix:                 req.Prefix,
		ApplicationLimits:      req.ApplicationLimits,
		RoleLimits:             req.RoleLimits,
		ComponentLimits:        req.ComponentLimits,
		EnvironmentOverrides:   req.EnvironmentOverrides,
		Enabled:                true,
		UpdatedBy:              changedBy,
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if cfg.Prefix == "" {
		cfg.Prefix = models.DefaultPrefix(cfg.Name)
	}

	if err := s.validate(cfg); err != nil {
		return nil, err
	}

	record := s.newRecord(cfg, constants.ChangeActionCreate, changedBy, req.ChangeReason,
		models.ComputeChanges(nil, cfg))

	if err := s.repo.Create(ctx, cfg, record); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, record)
	return cfg, nil
}

// Update merges a patch into an existing configuration. Name is immutable;
// absent fields keep their stored value. A no-op patch writes nothing.
func (s *ConfigAppService) Update(ctx context.Context, name string, req *dto.UpdateConfigRequest, changedBy string) (*models.RateLimitConfig, error) {
	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}

	updated := *existing
	applyPatch(&updated, req)
	updated.UpdatedBy = changedBy

	if err := s.validate(&updated); err != nil {
		return nil, err
	}

	changes := models.ComputeChanges(existing, &updated)
	if len(changes) == 0 {
		return existing, nil
	}

	record := s.newRecord(&updated, constants.ChangeActionUpdate, changedBy, req.ChangeReason, changes)

	if err := s.repo.Update(ctx, &updated, record); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, record)
	return &updated, nil
}

// Toggle flips the enabled switch. Audited like any other update.
func (s *ConfigAppService) Toggle(ctx context.Context, name string, enabled bool, changedBy, reason string) (*models.RateLimitConfig, error) {
	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if existing.Enabled == enabled {
		return existing, nil
	}

	updated := *existing
	updated.Enabled = enabled
	updated.UpdatedBy = changedBy

	record := s.newRecord(&updated, constants.ChangeActionToggle, changedBy, reason,
		models.ComputeChanges(existing, &updated))

	if err := s.repo.Update(ctx, &updated, record); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, record)
	return &updated, nil
}

// Delete removes a configuration and clears its counter namespace so stale
// counters cannot leak into a future config reusing the same prefix.
func (s *ConfigAppService) Delete(ctx context.Context, name, changedBy, reason string) error {
	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return err
	}

	record := s.newRecord(existing, constants.ChangeActionDelete, changedBy, reason,
		models.ComputeChanges(existing, nil))

	if err := s.repo.Delete(ctx, name, record); err != nil {
		return err
	}

	cleared, err := s.store.ResetPrefix(ctx, existing.Prefix)
	if err != nil {
		// The config row is gone; a leftover counter only wastes store
		// memory until its TTL fires. Log and move on.
		s.logger.Warn(ctx, "failed to clear counter namespace after delete",
			logger.String("config", name),
			logger.String("prefix", existing.Prefix),
			logger.Error(err))
	} else if cleared > 0 {
		s.logger.Info(ctx, "cleared counter namespace",
			logger.String("config", name),
			logger.Int("cleared", cleared))
	}

	s.afterMutation(ctx, record)
	return nil
}

// Get fetches one configuration by name.
func (s *ConfigAppService) Get(ctx context.Context, name string) (*models.RateLimitConfig, error) {
	return s.repo.FindByName(ctx, name)
}

// List returns configurations matching the filter.
func (s *ConfigAppService) List(ctx context.Context, filter repository.ConfigFilter) ([]models.RateLimitConfig, error) {
	return s.repo.List(ctx, filter)
}

// ResolveEffective loads a config and merges its environment override.
func (s *ConfigAppService) ResolveEffective(ctx context.Context, name string, environment constants.Environment) (*models.EffectiveConfig, error) {
	cfg, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return cfg.ResolveEffective(environment), nil
}

// validate runs the model checks plus the expression compile check that only
// the keygen port can perform.
func (s *ConfigAppService) validate(cfg *models.RateLimitConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.CustomKeyGenerator != "" && s.keygen != nil {
		if err := s.keygen.Validate(cfg.CustomKeyGenerator); err != nil {
			return errors.ErrValidationField("custom_key_generator", err.Error())
		}
	}
	return nil
}

func (s *ConfigAppService) newRecord(cfg *models.RateLimitConfig, action constants.ChangeAction, changedBy, reason string, changes map[string]models.FieldChange) *models.ConfigChangeRecord {
	return &models.ConfigChangeRecord{
		ID:                uuid.NewString(),
		ConfigName:        cfg.Name,
		ConfigDisplayName: cfg.DisplayName,
		ConfigType:        cfg.Type,
		Action:            action,
		ChangedBy:         changedBy,
		ChangedAt:         time.Now().UTC(),
		Reason:            reason,
		Changes:           changes,
	}
}

// afterMutation handles the side effects of a committed mutation. Stream
// publishing is best-effort: the database record is the source of truth.
func (s *ConfigAppService) afterMutation(ctx context.Context, record *models.ConfigChangeRecord) {
	if s.metrics != nil {
		s.metrics.RecordConfigMutation(string(record.Action))
	}
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, record)
	}
}

func applyPatch(cfg *models.RateLimitConfig, req *dto.UpdateConfigRequest) {
	if req.DisplayName != nil {
		cfg.DisplayName = *req.DisplayName
	}
	if req.Description != nil {
		cfg.Description = *req.Description
	}
	if req.Type != nil {
		cfg.Type = constants.ConfigType(*req.Type)
	}
	if req.WindowMs != nil {
		cfg.WindowMs = *req.WindowMs
	}
	if req.Max != nil {
		cfg.Max = *req.Max
	}
	if req.KeyStrategy != nil {
		cfg.KeyStrategy = constants.KeyStrategy(*req.KeyStrategy)
	}
	if req.CustomKeyGenerator != nil {
		cfg.CustomKeyGenerator = *req.CustomKeyGenerator
	}
	if req.Message != nil {
		cfg.Message = *req.Message
	}
	if req.SkipSuccessfulRequests != nil {
		cfg.SkipSuccessfulRequests = *req.SkipSuccessfulRequests
	}
	if req.SkipFailedRequests != nil {
		cfg.SkipFailedRequests = *req.SkipFailedRequests
	}
	if req.ExecEvenly != nil {
		cfg.ExecEvenly = *req.ExecEvenly
	}
	if req.BlockDurationMs != nil {
		cfg.BlockDurationMs = *req.BlockDurationMs
	}
	if req.Prefix != nil {
		cfg.Prefix = *req.Prefix
	}
	if req.ApplicationLimits != nil {
		cfg.ApplicationLimits = *req.ApplicationLimits
	}
	if req.RoleLimits != nil {
		cfg.RoleLimits = *req.RoleLimits
	}
	if req.ComponentLimits != nil {
		cfg.ComponentLimits = *req.ComponentLimits
	}
	if req.EnvironmentOverrides != nil {
		cfg.EnvironmentOverrides = *req.EnvironmentOverrides
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
}
