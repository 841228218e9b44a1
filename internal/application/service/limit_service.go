package service

import (
	"context"
	"strings"

	"github.com/limitd/limitd/internal/application/dto"
	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/internal/domain/repository"
	domainsvc "github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/internal/infrastructure/monitoring"
	"github.com/limitd/limitd/pkg/constants"
	"github.com/limitd/limitd/pkg/logger"
)

// LimitAppService inspects and resets live counter state. Records are
// materialized from the counter store on demand and joined with the
// persisted configs; nothing here is stored.
type LimitAppService struct {
	repo        repository.ConfigRepository
	store       domainsvc.CounterStore
	environment constants.Environment
	metrics     *monitoring.Metrics
	logger      logger.Logger
}

// NewLimitAppService creates the active limit inspection service.
func NewLimitAppService(
	repo repository.ConfigRepository,
	store domainsvc.CounterStore,
	environment constants.Environment,
	metrics *monitoring.Metrics,
	log logger.Logger,
) *LimitAppService {
	return &LimitAppService{
		repo:        repo,
		store:       store,
		environment: environment,
		metrics:     metrics,
		logger:      log.WithComponent("limit_service"),
	}
}

// ListActive enumerates currently tracked buckets, joined with their configs.
// configName scopes the listing to one config's namespace; empty lists all.
func (s *LimitAppService) ListActive(ctx context.Context, configName string) ([]models.ActiveLimitRecord, error) {
	var configs []models.RateLimitConfig
	if configName != "" {
		cfg, err := s.repo.FindByName(ctx, configName)
		if err != nil {
			return nil, err
		}
		configs = []models.RateLimitConfig{*cfg}
	} else {
		var err error
		configs, err = s.repo.List(ctx, repository.ConfigFilter{})
		if err != nil {
			return nil, err
		}
	}

	records := make([]models.ActiveLimitRecord, 0)
	for i := range configs {
		cfg := &configs[i]
		eff := cfg.ResolveEffective(s.environment)

		keys, err := s.store.ListActive(ctx, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			bucketKey := strings.TrimPrefix(k.Key, cfg.Prefix)
			records = append(records, models.ActiveLimitRecord{
				Key:          k.Key,
				BucketKey:    bucketKey,
				ConfigName:   cfg.Name,
				CurrentCount: k.CurrentCount,
				MaxAllowed:   maxForBucket(eff, bucketKey),
				ResetTime:    k.ResetTime,
				Blocked:      k.Blocked,
			})
		}
	}
	return records, nil
}

// Status reports one bucket's current state without mutating it.
func (s *LimitAppService) Status(ctx context.Context, configName, key string) (*dto.KeyStatusResponse, error) {
	cfg, err := s.repo.FindByName(ctx, configName)
	if err != nil {
		return nil, err
	}
	eff := cfg.ResolveEffective(s.environment)

	status := &dto.KeyStatusResponse{
		ConfigName: configName,
		Key:        key,
		MaxAllowed: maxForBucket(eff, key),
	}

	decision, err := s.store.Peek(ctx, cfg.Prefix+key)
	if err != nil {
		return nil, err
	}
	if decision == nil {
		return status, nil
	}

	status.Active = true
	status.CurrentCount = decision.CurrentCount
	status.ResetTime = decision.ResetTime
	status.Blocked = decision.Blocked
	return status, nil
}

// Reset clears one bucket, as if its window had expired.
func (s *LimitAppService) Reset(ctx context.Context, configName, key, resetBy string) (*dto.ResetResponse, error) {
	cfg, err := s.repo.FindByName(ctx, configName)
	if err != nil {
		return nil, err
	}

	if err := s.store.Reset(ctx, cfg.Prefix+key); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordReset(configName, "key")
	}
	s.logger.Info(ctx, "counter reset",
		logger.String("config", configName),
		logger.String("key", key),
		logger.String("reset_by", resetBy))

	return &dto.ResetResponse{ConfigName: configName, Key: key, Cleared: 1}, nil
}

// ResetAll clears every bucket in one config's namespace. Each key reset is
// independently atomic, so a cancelled run leaves no partial damage.
func (s *LimitAppService) ResetAll(ctx context.Context, configName, resetBy string) (*dto.ResetResponse, error) {
	cfg, err := s.repo.FindByName(ctx, configName)
	if err != nil {
		return nil, err
	}

	cleared, err := s.store.ResetPrefix(ctx, cfg.Prefix)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordReset(configName, "prefix")
	}
	s.logger.Info(ctx, "counter namespace reset",
		logger.String("config", configName),
		logger.Int("cleared", cleared),
		logger.String("reset_by", resetBy))

	return &dto.ResetResponse{ConfigName: configName, Cleared: cleared}, nil
}

// maxForBucket applies the override precedence to a stored bucket key by
// reading its dimension prefix. Dangling overrides simply do not match.
func maxForBucket(eff *models.EffectiveConfig, bucketKey string) int {
	parts := strings.Split(bucketKey, ":")
	if len(parts) < 2 {
		return eff.Max
	}

	switch parts[0] {
	case constants.DimensionComponent:
		serviceID := parts[1]
		procedure := ""
		if len(parts) > 2 {
			procedure = parts[2]
		}
		for _, l := range eff.ComponentLimits {
			if l.ServiceID != serviceID {
				continue
			}
			if l.ProcedureName == "" || l.ProcedureName == procedure {
				return l.Max
			}
		}
	case constants.DimensionRole:
		for _, l := range eff.RoleLimits {
			if l.RoleID == parts[1] {
				return l.Max
			}
		}
	case constants.DimensionApplication:
		for _, l := range eff.ApplicationLimits {
			if l.ApplicationID == parts[1] {
				return l.Max
			}
		}
	}
	return eff.Max
}
