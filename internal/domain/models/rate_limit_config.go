// Package models defines the domain models for the limitd rate limiting service.
package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/limitd/limitd/pkg/constants"
	"github.com/limitd/limitd/pkg/errors"
)

// nameRe constrains config names to slug form: lowercase letters, digits,
// hyphen, underscore. Names are immutable after creation.
var nameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ApplicationLimit overrides max for one application.
type ApplicationLimit struct {
	ApplicationID string `json:"application_id"`
	Max           int    `json:"max"`
}

// RoleLimit overrides max for one role.
type RoleLimit struct {
	RoleID string `json:"role_id"`
	Max    int    `json:"max"`
}

// ComponentLimit overrides max for one service procedure.
type ComponentLimit struct {
	ServiceID     string `json:"service_id"`
	ProcedureName string `json:"procedure_name"`
	Max           int    `json:"max"`
}

// EnvironmentOverride gates and retunes a config for one deployment environment.
// Max and WindowMs are optional; nil means "inherit the base value".
type EnvironmentOverride struct {
	Enabled  bool   `json:"enabled"`
	Max      *int   `json:"max,omitempty"`
	WindowMs *int64 `json:"window_ms,omitempty"`
}

// RateLimitConfig is a named, versioned rate limiting rule. Name is the
// identity and never changes after creation; all mutations flow through the
// configuration repository so the audit trail is never skipped.
type RateLimitConfig struct {
	Name        string `json:"name" gorm:"primaryKey;size:128"`
	DisplayName string `json:"display_name" gorm:"size:256"`
	Description string `json:"description"`

	Type constants.ConfigType `json:"type" gorm:"size:32;index"`

	WindowMs int64 `json:"window_ms"`
	Max      int   `json:"max"`

	KeyStrategy constants.KeyStrategy `json:"key_strategy" gorm:"size:32"`

	// CustomKeyGenerator is a CEL expression over the request context,
	// required iff KeyStrategy is custom. Validated at config-write time;
	// evaluated under a hard timeout at enforcement time.
	CustomKeyGenerator string `json:"custom_key_generator,omitempty"`

	// Message is returned to throttled callers.
	Message string `json:"message"`

	SkipSuccessfulRequests bool `json:"skip_successful_requests"`
	SkipFailedRequests     bool `json:"skip_failed_requests"`
	ExecEvenly             bool `json:"exec_evenly"`

	// BlockDurationMs is the extra lockout after the limit is hit.
	// Zero means the counter simply resets at window end.
	BlockDurationMs int64 `json:"block_duration_ms"`

	// Prefix namespaces this config's keys in the counter store. Derived
	// from Name by convention (rl:<name>:) but overridable; unique across
	// configs so counters never collide.
	Prefix string `json:"prefix" gorm:"uniqueIndex;size:160"`

	ApplicationLimits []ApplicationLimit `json:"application_limits" gorm:"serializer:json"`
	RoleLimits        []RoleLimit        `json:"role_limits" gorm:"serializer:json"`
	ComponentLimits   []ComponentLimit   `json:"component_limits" gorm:"serializer:json"`

	EnvironmentOverrides map[string]EnvironmentOverride `json:"environment_overrides" gorm:"serializer:json"`

	Enabled bool `json:"enabled" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by" gorm:"size:128"`
}

// TableName sets the table name for GORM.
func (RateLimitConfig) TableName() string {
	return "rate_limit_configs"
}

// DefaultPrefix derives the counter namespace from a config name.
func DefaultPrefix(name string) string {
	return fmt.Sprintf(constants.DefaultKeyPrefixFormat, name)
}

// Window returns the counting window as a duration.
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

// BlockDuration returns the post-limit lockout as a duration.
func (c *RateLimitConfig) BlockDuration() time.Duration {
	return time.Duration(c.BlockDurationMs) * time.Millisecond
}

// RateLimitMessage returns the configured throttle message, falling back to
// the system default.
func (c *RateLimitConfig) RateLimitMessage() string {
	if c.Message != "" {
		return c.Message
	}
	return constants.DefaultRateLimitMessage
}

// Validate checks the config shape. Returned errors carry the failing field.
func (c *RateLimitConfig) Validate() error {
	if !nameRe.MatchString(c.Name) {
		return errors.ErrValidationField("name",
			"name must contain only lowercase letters, digits, hyphen, underscore")
	}

	if c.WindowMs <= 0 {
		return errors.ErrValidationField("window_ms", "window_ms must be positive")
	}

	if c.Max <= 0 {
		return errors.ErrValidationField("max", "max must be positive")
	}

	if c.BlockDurationMs < 0 {
		return errors.ErrValidationField("block_duration_ms", "block_duration_ms must not be negative")
	}

	if !validConfigType(c.Type) {
		return errors.ErrValidationField("type", fmt.Sprintf("unknown config type: %s", c.Type))
	}

	if !validKeyStrategy(c.KeyStrategy) {
		return errors.ErrValidationField("key_strategy", fmt.Sprintf("unknown key strategy: %s", c.KeyStrategy))
	}

	if c.KeyStrategy == constants.KeyStrategyCustom && c.CustomKeyGenerator == "" {
		return errors.ErrValidationField("custom_key_generator",
			"custom_key_generator is required when key_strategy is custom")
	}

	if c.KeyStrategy != constants.KeyStrategyCustom && c.CustomKeyGenerator != "" {
		return errors.ErrValidationField("custom_key_generator",
			"custom_key_generator is only allowed when key_strategy is custom")
	}

	for _, l := range c.ApplicationLimits {
		if l.ApplicationID == "" || l.Max <= 0 {
			return errors.ErrValidationField("application_limits",
				"application limit entries require application_id and positive max")
		}
	}

	for _, l := range c.RoleLimits {
		if l.RoleID == "" || l.Max <= 0 {
			return errors.ErrValidationField("role_limits",
				"role limit entries require role_id and positive max")
		}
	}

	for _, l := range c.ComponentLimits {
		if l.ServiceID == "" || l.Max <= 0 {
			return errors.ErrValidationField("component_limits",
				"component limit entries require service_id and positive max")
		}
	}

	for env, o := range c.EnvironmentOverrides {
		if o.Max != nil && *o.Max <= 0 {
			return errors.ErrValidationField("environment_overrides",
				fmt.Sprintf("environment %s: max override must be positive", env))
		}
		if o.WindowMs != nil && *o.WindowMs <= 0 {
			return errors.ErrValidationField("environment_overrides",
				fmt.Sprintf("environment %s: window_ms override must be positive", env))
		}
	}

	return nil
}

func validConfigType(t constants.ConfigType) bool {
	for _, v := range constants.ConfigTypes {
		if t == v {
			return true
		}
	}
	return false
}

func validKeyStrategy(s constants.KeyStrategy) bool {
	for _, v := range constants.KeyStrategies {
		if s == v {
			return true
		}
	}
	return false
}

// ResolveEffective merges the stored config with the override for the given
// environment. Enabled is the logical AND of the base flag and the
// environment flag; max and window overrides replace the base when present.
// Enforcement must consume this view, never the raw stored document.
func (c *RateLimitConfig) ResolveEffective(environment constants.Environment) *EffectiveConfig {
	eff := &EffectiveConfig{
		Name:                   c.Name,
		Type:                   c.Type,
		WindowMs:               c.WindowMs,
		Max:                    c.Max,
		KeyStrategy:            c.KeyStrategy,
		CustomKeyGenerator:     c.CustomKeyGenerator,
		Message:                c.RateLimitMessage(),
		SkipSuccessfulRequests: c.SkipSuccessfulRequests,
		SkipFailedRequests:     c.SkipFailedRequests,
		ExecEvenly:             c.ExecEvenly,
		BlockDurationMs:        c.BlockDurationMs,
		Prefix:                 c.Prefix,
		ApplicationLimits:      c.ApplicationLimits,
		RoleLimits:             c.RoleLimits,
		ComponentLimits:        c.ComponentLimits,
		Enabled:                c.Enabled,
		Environment:            environment,
	}

	if o, ok := c.EnvironmentOverrides[string(environment)]; ok {
		eff.Enabled = c.Enabled && o.Enabled
		if o.Max != nil {
			eff.Max = *o.Max
		}
		if o.WindowMs != nil {
			eff.WindowMs = *o.WindowMs
		}
	}

	return eff
}

// EffectiveConfig is the environment-resolved view of a RateLimitConfig
// consumed by the enforcement path.
type EffectiveConfig struct {
	Name                   string                `json:"name"`
	Type                   constants.ConfigType  `json:"type"`
	WindowMs               int64                 `json:"window_ms"`
	Max                    int                   `json:"max"`
	KeyStrategy            constants.KeyStrategy `json:"key_strategy"`
	CustomKeyGenerator     string                `json:"custom_key_generator,omitempty"`
	Message                string                `json:"message"`
	SkipSuccessfulRequests bool                  `json:"skip_successful_requests"`
	SkipFailedRequests     bool                  `json:"skip_failed_requests"`
	ExecEvenly             bool                  `json:"exec_evenly"`
	BlockDurationMs        int64                 `json:"block_duration_ms"`
	Prefix                 string                `json:"prefix"`
	ApplicationLimits      []ApplicationLimit    `json:"application_limits"`
	RoleLimits             []RoleLimit           `json:"role_limits"`
	ComponentLimits        []ComponentLimit      `json:"component_limits"`
	Enabled                bool                  `json:"enabled"`
	Environment            constants.Environment `json:"environment"`
}

// Window returns the effective counting window as a duration.
func (e *EffectiveConfig) Window() time.Duration {
	return time.Duration(e.WindowMs) * time.Millisecond
}

// BlockDuration returns the effective post-limit lockout as a duration.
func (e *EffectiveConfig) BlockDuration() time.Duration {
	return time.Duration(e.BlockDurationMs) * time.Millisecond
}
