package service

import (
	"context"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/internal/domain/repository"
	domainsvc "github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/internal/infrastructure/monitoring"
	"github.com/limitd/limitd/pkg/constants"
	"github.com/limitd/limitd/pkg/logger"
)

// Outcome is the decision the enforcement middleware acts on for one request.
type Outcome struct {
	// Passthrough means no limit applied: unknown config or disabled.
	Passthrough bool

	Allowed bool
	Blocked bool

	ConfigName string
	// Key is the full store key, prefix included.
	Key string
	// BucketKey is the derived dimension part without the prefix.
	BucketKey string

	// Limit is the effective max after override precedence.
	Limit        int
	CurrentCount int64
	ResetTime    time.Time

	Message string

	// FailedOpen marks a decision taken because the store was unreachable.
	FailedOpen bool

	skipSuccessful bool
	skipFailed     bool
}

// Remaining is the allowance left in the current window, never negative.
func (o *Outcome) Remaining() int64 {
	remaining := int64(o.Limit) - o.CurrentCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfter is how long a throttled caller should back off.
func (o *Outcome) RetryAfter(now time.Time) time.Duration {
	d := o.ResetTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// EnforcementAppService is the per-request decision path. Resolved configs
// are cached for a short TTL so edits become visible to new requests within
// seconds without a repository read per request.
type EnforcementAppService struct {
	repo        repository.ConfigRepository
	store       domainsvc.CounterStore
	engine      *domainsvc.KeyStrategyEngine
	usage       repository.UsageSampleRepository
	cache       *gocache.Cache
	environment constants.Environment
	failMode    constants.FailMode
	metrics     *monitoring.Metrics
	logger      logger.Logger
}

// notFoundMarker is cached for unknown config names so a misconfigured route
// does not hammer the repository on every request.
var notFoundMarker = &models.EffectiveConfig{}

// NewEnforcementAppService creates the enforcement service.
func NewEnforcementAppService(
	repo repository.ConfigRepository,
	store domainsvc.CounterStore,
	engine *domainsvc.KeyStrategyEngine,
	usage repository.UsageSampleRepository,
	environment constants.Environment,
	failMode constants.FailMode,
	cacheTTL time.Duration,
	metrics *monitoring.Metrics,
	log logger.Logger,
) *EnforcementAppService {
	if cacheTTL <= 0 {
		cacheTTL = constants.DefaultConfigCacheTTL
	}
	return &EnforcementAppService{
		repo:        repo,
		store:       store,
		engine:      engine,
		usage:       usage,
		cache:       gocache.New(cacheTTL, 2*cacheTTL),
		environment: environment,
		failMode:    failMode,
		metrics:     metrics,
		logger:      log.WithComponent("enforcement"),
	}
}

// Check decides whether one request may proceed under the named config.
// It never returns an error for store or key-derivation trouble; those are
// absorbed by the fail-open/closed policy and the IP fallback respectively.
func (s *EnforcementAppService) Check(ctx context.Context, configName string, req *domainsvc.RequestContext) *Outcome {
	start := time.Now()

	eff := s.resolvedConfig(ctx, configName)
	if eff == nil || !eff.Enabled {
		return &Outcome{Passthrough: true, Allowed: true, ConfigName: configName}
	}

	bucketKey := s.engine.DeriveKey(ctx, eff, req)
	fullKey := eff.Prefix + bucketKey
	max := domainsvc.EffectiveMax(eff, req)

	var decision *domainsvc.Decision
	var err error
	if eff.ExecEvenly {
		decision, err = s.store.CheckEvenSpacing(ctx, fullKey, eff.Window(), max)
	} else {
		decision, err = s.store.IncrementAndCheck(ctx, fullKey, eff.Window(), max, eff.BlockDuration())
	}

	outcome := &Outcome{
		ConfigName:     eff.Name,
		Key:            fullKey,
		BucketKey:      bucketKey,
		Limit:          max,
		Message:        eff.Message,
		skipSuccessful: eff.SkipSuccessfulRequests,
		skipFailed:     eff.SkipFailedRequests,
	}

	if err != nil {
		outcome.FailedOpen = domainsvc.FailOpen(eff.Type, s.failMode)
		outcome.Allowed = outcome.FailedOpen
		outcome.ResetTime = time.Now().Add(eff.Window())
		policy := "closed"
		if outcome.FailedOpen {
			policy = "open"
		}
		if s.metrics != nil {
			s.metrics.RecordStoreError(eff.Name, policy)
		}
		s.logger.Warn(ctx, "counter store unreachable, applying fail policy",
			logger.String("config", eff.Name),
			logger.String("policy", policy),
			logger.Error(err))
		return outcome
	}

	outcome.Allowed = decision.Allowed
	outcome.Blocked = decision.Blocked
	outcome.CurrentCount = decision.CurrentCount
	outcome.ResetTime = decision.ResetTime

	if s.metrics != nil {
		result := "allowed"
		if !decision.Allowed {
			result = "blocked"
		}
		s.metrics.RecordDecision(eff.Name, string(eff.KeyStrategy), result, time.Since(start))
	}

	return outcome
}

// RecordOutcome is the response-finish hook. It folds the final status into
// the usage rollups and applies the skip-successful/skip-failed correction
// by retroactively decrementing the counter.
func (s *EnforcementAppService) RecordOutcome(ctx context.Context, outcome *Outcome, statusCode int) {
	if outcome == nil || outcome.Passthrough {
		return
	}

	if s.usage != nil {
		errored := statusCode >= http.StatusInternalServerError
		if err := s.usage.Record(ctx, outcome.ConfigName, time.Now(), outcome.Allowed, errored); err != nil {
			s.logger.Warn(ctx, "failed to record usage sample",
				logger.String("config", outcome.ConfigName),
				logger.Error(err))
		}
	}

	if !outcome.Allowed || outcome.FailedOpen {
		return
	}

	succeeded := statusCode < http.StatusBadRequest
	if (outcome.skipSuccessful && succeeded) || (outcome.skipFailed && !succeeded) {
		if err := s.store.Decrement(ctx, outcome.Key); err != nil {
			s.logger.Warn(ctx, "failed to decrement skipped request",
				logger.String("key", outcome.Key),
				logger.Error(err))
		}
	}
}

// InvalidateConfig drops one cached resolve so the next request re-reads the
// repository. Called after admin mutations on the same instance.
func (s *EnforcementAppService) InvalidateConfig(name string) {
	s.cache.Delete(name)
}

// resolvedConfig returns the environment-resolved config, nil when unknown.
func (s *EnforcementAppService) resolvedConfig(ctx context.Context, name string) *models.EffectiveConfig {
	if cached, ok := s.cache.Get(name); ok {
		if s.metrics != nil {
			s.metrics.RecordConfigCacheRead(true)
		}
		eff := cached.(*models.EffectiveConfig)
		if eff == notFoundMarker {
			return nil
		}
		return eff
	}
	if s.metrics != nil {
		s.metrics.RecordConfigCacheRead(false)
	}

	cfg, err := s.repo.FindByName(ctx, name)
	if err != nil {
		s.cache.SetDefault(name, notFoundMarker)
		s.logger.Warn(ctx, "config not resolvable, passing through",
			logger.String("config", name),
			logger.Error(err))
		return nil
	}

	eff := cfg.ResolveEffective(s.environment)
	s.cache.SetDefault(name, eff)
	return eff
}
