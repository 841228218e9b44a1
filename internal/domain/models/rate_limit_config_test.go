package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/pkg/constants"
	"github.com/limitd/limitd/pkg/errors"
)

func validConfig() *models.RateLimitConfig {
	return &models.RateLimitConfig{
		Name:        "api-default",
		DisplayName: "API Default",
		Type:        constants.ConfigTypeAPI,
		WindowMs:    60000,
		Max:         100,
		KeyStrategy: constants.KeyStrategyIP,
		Prefix:      models.DefaultPrefix("api-default"),
		Enabled:     true,
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		mutate  func(*models.RateLimitConfig)
		field   string
	}{
		{"uppercase name", func(c *models.RateLimitConfig) { c.Name = "Api-Default" }, "name"},
		{"name with spaces", func(c *models.RateLimitConfig) { c.Name = "api default" }, "name"},
		{"empty name", func(c *models.RateLimitConfig) { c.Name = "" }, "name"},
		{"zero window", func(c *models.RateLimitConfig) { c.WindowMs = 0 }, "window_ms"},
		{"negative window", func(c *models.RateLimitConfig) { c.WindowMs = -1 }, "window_ms"},
		{"zero max", func(c *models.RateLimitConfig) { c.Max = 0 }, "max"},
		{"negative block duration", func(c *models.RateLimitConfig) { c.BlockDurationMs = -1 }, "block_duration_ms"},
		{"unknown type", func(c *models.RateLimitConfig) { c.Type = "bogus" }, "type"},
		{"unknown key strategy", func(c *models.RateLimitConfig) { c.KeyStrategy = "bogus" }, "key_strategy"},
		{"custom strategy without generator", func(c *models.RateLimitConfig) {
			c.KeyStrategy = constants.KeyStrategyCustom
		}, "custom_key_generator"},
		{"generator without custom strategy", func(c *models.RateLimitConfig) {
			c.CustomKeyGenerator = `applicationId`
		}, "custom_key_generator"},
		{"application limit without id", func(c *models.RateLimitConfig) {
			c.ApplicationLimits = []models.ApplicationLimit{{Max: 10}}
		}, "application_limits"},
		{"role limit with zero max", func(c *models.RateLimitConfig) {
			c.RoleLimits = []models.RoleLimit{{RoleID: "operator"}}
		}, "role_limits"},
		{"component limit without service", func(c *models.RateLimitConfig) {
			c.ComponentLimits = []models.ComponentLimit{{ProcedureName: "create", Max: 5}}
		}, "component_limits"},
		{"environment override with zero max", func(c *models.RateLimitConfig) {
			zero := 0
			c.EnvironmentOverrides = map[string]models.EnvironmentOverride{
				"production": {Enabled: true, Max: &zero},
			}
		}, "environment_overrides"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			appErr, ok := errors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestResolveEffective(t *testing.T) {
	max := 10
	window := int64(1000)

	cfg := validConfig()
	cfg.EnvironmentOverrides = map[string]models.EnvironmentOverride{
		"development": {Enabled: false},
		"production":  {Enabled: true, Max: &max, WindowMs: &window},
	}

	t.Run("no override for environment inherits base", func(t *testing.T) {
		eff := cfg.ResolveEffective("staging")
		assert.True(t, eff.Enabled)
		assert.Equal(t, 100, eff.Max)
		assert.Equal(t, int64(60000), eff.WindowMs)
	})

	t.Run("override replaces max and window", func(t *testing.T) {
		eff := cfg.ResolveEffective(constants.EnvironmentProduction)
		assert.True(t, eff.Enabled)
		assert.Equal(t, 10, eff.Max)
		assert.Equal(t, int64(1000), eff.WindowMs)
	})

	t.Run("environment disable wins", func(t *testing.T) {
		eff := cfg.ResolveEffective(constants.EnvironmentDevelopment)
		assert.False(t, eff.Enabled)
	})

	t.Run("base disable wins over environment enable", func(t *testing.T) {
		disabled := validConfig()
		disabled.Enabled = false
		disabled.EnvironmentOverrides = map[string]models.EnvironmentOverride{
			"production": {Enabled: true},
		}
		eff := disabled.ResolveEffective(constants.EnvironmentProduction)
		assert.False(t, eff.Enabled)
	})

	t.Run("default message applied", func(t *testing.T) {
		eff := cfg.ResolveEffective(constants.EnvironmentProduction)
		assert.Equal(t, constants.DefaultRateLimitMessage, eff.Message)
	})
}

func TestComputeChanges(t *testing.T) {
	t.Run("creation diffs from nil", func(t *testing.T) {
		cfg := validConfig()
		changes := models.ComputeChanges(nil, cfg)

		require.Contains(t, changes, "max")
		assert.Nil(t, changes["max"].From)
		assert.Equal(t, 100, changes["max"].To)
	})

	t.Run("deletion diffs to nil", func(t *testing.T) {
		cfg := validConfig()
		changes := models.ComputeChanges(cfg, nil)

		require.Contains(t, changes, "window_ms")
		assert.Equal(t, int64(60000), changes["window_ms"].From)
		assert.Nil(t, changes["window_ms"].To)
	})

	t.Run("only changed fields recorded", func(t *testing.T) {
		before := validConfig()
		after := validConfig()
		after.Max = 50
		after.Message = "slow down"

		changes := models.ComputeChanges(before, after)
		assert.Len(t, changes, 2)
		assert.Contains(t, changes, "max")
		assert.Contains(t, changes, "message")
	})

	t.Run("nil and empty collections compare equal", func(t *testing.T) {
		before := validConfig()
		after := validConfig()
		after.ApplicationLimits = []models.ApplicationLimit{}
		after.EnvironmentOverrides = map[string]models.EnvironmentOverride{}

		assert.Empty(t, models.ComputeChanges(before, after))
	})

	t.Run("identical configs produce no diff", func(t *testing.T) {
		cfg := validConfig()
		cfg.CreatedAt = time.Now()
		assert.Empty(t, models.ComputeChanges(cfg, cfg))
	})
}
