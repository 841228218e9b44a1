package models

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/limitd/limitd/pkg/constants"
)

// FieldChange records one field's prior and new value inside a change record.
type FieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// ConfigChangeRecord is the immutable audit record of one configuration
// mutation. Exactly one is created per successful create/update/toggle/delete
// and it is never mutated or deleted afterwards. It is the sole input to
// historical trend reporting.
type ConfigChangeRecord struct {
	ID                string                 `json:"id" gorm:"primaryKey;size:36"`
	ConfigName        string                 `json:"config_name" gorm:"size:128;index"`
	ConfigDisplayName string                 `json:"config_display_name" gorm:"size:256"`
	ConfigType        constants.ConfigType   `json:"config_type" gorm:"size:32"`
	Action            constants.ChangeAction `json:"action" gorm:"size:16"`
	ChangedBy         string                 `json:"changed_by" gorm:"size:128;index"`
	ChangedAt         time.Time              `json:"changed_at" gorm:"index"`
	Reason            string                 `json:"reason,omitempty"`

	Changes map[string]FieldChange `json:"changes" gorm:"serializer:json"`
}

// TableName sets the table name for GORM.
func (ConfigChangeRecord) TableName() string {
	return "config_change_records"
}

// ComputeChanges produces the field-level diff between two config versions.
// Either side may be nil (creation has no prior state, deletion no new state).
func ComputeChanges(before, after *RateLimitConfig) map[string]FieldChange {
	changes := make(map[string]FieldChange)

	fields := []struct {
		name   string
		before interface{}
		after  interface{}
	}{
		{"display_name", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.DisplayName }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.DisplayName })},
		{"description", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.Description }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.Description })},
		{"type", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.Type }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.Type })},
		{"window_ms", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.WindowMs }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.WindowMs })},
		{"max", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.Max }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.Max })},
		{"key_strategy", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.KeyStrategy }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.KeyStrategy })},
		{"custom_key_generator", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.CustomKeyGenerator }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.CustomKeyGenerator })},
		{"message", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.Message }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.Message })},
		{"skip_successful_requests", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.SkipSuccessfulRequests }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.SkipSuccessfulRequests })},
		{"skip_failed_requests", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.SkipFailedRequests }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.SkipFailedRequests })},
		{"exec_evenly", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.ExecEvenly }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.ExecEvenly })},
		{"block_duration_ms", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.BlockDurationMs }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.BlockDurationMs })},
		{"prefix", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.Prefix }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.Prefix })},
		{"application_limits", jsonField(before, func(c *RateLimitConfig) interface{} { return c.ApplicationLimits }), jsonField(after, func(c *RateLimitConfig) interface{} { return c.ApplicationLimits })},
		{"role_limits", jsonField(before, func(c *RateLimitConfig) interface{} { return c.RoleLimits }), jsonField(after, func(c *RateLimitConfig) interface{} { return c.RoleLimits })},
		{"component_limits", jsonField(before, func(c *RateLimitConfig) interface{} { return c.ComponentLimits }), jsonField(after, func(c *RateLimitConfig) interface{} { return c.ComponentLimits })},
		{"environment_overrides", jsonField(before, func(c *RateLimitConfig) interface{} { return c.EnvironmentOverrides }), jsonField(after, func(c *RateLimitConfig) interface{} { return c.EnvironmentOverrides })},
		{"enabled", fieldOf(before, func(c *RateLimitConfig) interface{} { return c.Enabled }), fieldOf(after, func(c *RateLimitConfig) interface{} { return c.Enabled })},
	}

	for _, f := range fields {
		if !reflect.DeepEqual(f.before, f.after) {
			changes[f.name] = FieldChange{From: f.before, To: f.after}
		}
	}

	return changes
}

func fieldOf(c *RateLimitConfig, get func(*RateLimitConfig) interface{}) interface{} {
	if c == nil {
		return nil
	}
	return get(c)
}

// jsonField normalizes slice/map fields through JSON so nil and empty compare
// equal and the stored diff is directly renderable.
func jsonField(c *RateLimitConfig, get func(*RateLimitConfig) interface{}) interface{} {
	if c == nil {
		return nil
	}
	v := get(c)
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" || string(raw) == "[]" || string(raw) == "{}" {
		return nil
	}
	return string(raw)
}
