package service

import (
	"context"
	"fmt"

	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/pkg/constants"
	"github.com/limitd/limitd/pkg/logger"
)

// RequestContext is the read-only view of an inbound request the key strategy
// engine (and custom key generators) operate on.
type RequestContext struct {
	ApplicationID string
	RoleID        string
	ServiceID     string
	ProcedureName string
	ClientIP      string
	Method        string
	Path          string

	// Headers and Query are restricted snapshots exposed to custom key
	// generator expressions. First value wins for repeated keys.
	Headers map[string]string
	Query   map[string]string
}

// KeyGenerator evaluates an operator-supplied expression against a request
// context. Implementations must be side-effect free and bounded in time; any
// error or timeout makes the engine fall back to IP keying.
type KeyGenerator interface {
	// Validate checks an expression at config-write time.
	Validate(expression string) error

	// Generate evaluates the expression for one request.
	Generate(ctx context.Context, expression string, req *RequestContext) (string, error)
}

// KeyStrategyEngine derives counter bucket keys and effective limits from an
// effective config plus a request context. Derivation is pure except for the
// custom strategy, which delegates to the KeyGenerator port.
type KeyStrategyEngine struct {
	keygen KeyGenerator
	logger logger.Logger
}

// NewKeyStrategyEngine creates a key strategy engine. keygen may be nil when
// no custom-strategy configs exist; custom derivation then falls back to IP.
func NewKeyStrategyEngine(keygen KeyGenerator, log logger.Logger) *KeyStrategyEngine {
	return &KeyStrategyEngine{
		keygen: keygen,
		logger: log.WithComponent("key_strategy"),
	}
}

// DeriveKey computes the bucket key for a request under the given config.
// It never fails: every degenerate case falls back to IP keying so a request
// is never dropped because of key derivation trouble.
func (e *KeyStrategyEngine) DeriveKey(ctx context.Context, cfg *models.EffectiveConfig, req *RequestContext) string {
	switch cfg.KeyStrategy {
	case constants.KeyStrategyApplication:
		if req.ApplicationID != "" {
			return fmt.Sprintf("%s:%s", constants.DimensionApplication, req.ApplicationID)
		}
		return e.ipKey(req)

	case constants.KeyStrategyRole:
		if req.RoleID != "" {
			return fmt.Sprintf("%s:%s", constants.DimensionRole, req.RoleID)
		}
		return e.ipKey(req)

	case constants.KeyStrategyComponent:
		if req.ServiceID == "" {
			return e.ipKey(req)
		}
		if req.ProcedureName == "" {
			return fmt.Sprintf("%s:%s", constants.DimensionComponent, req.ServiceID)
		}
		return fmt.Sprintf("%s:%s:%s", constants.DimensionComponent, req.ServiceID, req.ProcedureName)

	case constants.KeyStrategyCustom:
		return e.customKey(ctx, cfg, req)

	default:
		return e.ipKey(req)
	}
}

func (e *KeyStrategyEngine) ipKey(req *RequestContext) string {
	return fmt.Sprintf("%s:%s", constants.DimensionIP, req.ClientIP)
}

func (e *KeyStrategyEngine) customKey(ctx context.Context, cfg *models.EffectiveConfig, req *RequestContext) string {
	if e.keygen == nil || cfg.CustomKeyGenerator == "" {
		e.logger.Warn(ctx, "custom key strategy without generator, falling back to IP",
			logger.String("config", cfg.Name))
		return e.ipKey(req)
	}

	key, err := e.keygen.Generate(ctx, cfg.CustomKeyGenerator, req)
	if err != nil {
		e.logger.Warn(ctx, "custom key generator failed, falling back to IP",
			logger.String("config", cfg.Name),
			logger.Error(err))
		return e.ipKey(req)
	}

	if key == "" {
		e.logger.Warn(ctx, "custom key generator returned empty key, falling back to IP",
			logger.String("config", cfg.Name))
		return e.ipKey(req)
	}

	return key
}

// overrideProvider resolves one override dimension. Providers are evaluated
// in precedence order; the first match wins.
type overrideProvider func(cfg *models.EffectiveConfig, req *RequestContext) (int, bool)

// overrideProviders is ordered most-specific first:
// component > role > application > global default.
var overrideProviders = []overrideProvider{
	componentOverride,
	roleOverride,
	applicationOverride,
}

// EffectiveMax selects the single max that applies to this request. Only one
// override wins, never a sum or average; a dangling reference simply does not
// match and the next provider is consulted.
func EffectiveMax(cfg *models.EffectiveConfig, req *RequestContext) int {
	for _, provider := range overrideProviders {
		if max, ok := provider(cfg, req); ok {
			return max
		}
	}
	return cfg.Max
}

func componentOverride(cfg *models.EffectiveConfig, req *RequestContext) (int, bool) {
	if req.ServiceID == "" {
		return 0, false
	}
	for _, l := range cfg.ComponentLimits {
		if l.ServiceID != req.ServiceID {
			continue
		}
		if l.ProcedureName == "" || l.ProcedureName == req.ProcedureName {
			return l.Max, true
		}
	}
	return 0, false
}

func roleOverride(cfg *models.EffectiveConfig, req *RequestContext) (int, bool) {
	if req.RoleID == "" {
		return 0, false
	}
	for _, l := range cfg.RoleLimits {
		if l.RoleID == req.RoleID {
			return l.Max, true
		}
	}
	return 0, false
}

func applicationOverride(cfg *models.EffectiveConfig, req *RequestContext) (int, bool) {
	if req.ApplicationID == "" {
		return 0, false
	}
	for _, l := range cfg.ApplicationLimits {
		if l.ApplicationID == req.ApplicationID {
			return l.Max, true
		}
	}
	return 0, false
}
