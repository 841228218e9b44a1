package dto

import (
	"github.com/limitd/limitd/internal/domain/models"
)

// CreateConfigRequest is the payload for POST /configs.
type CreateConfigRequest struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Type        string `json:"type" binding:"required"`

	WindowMs int64 `json:"window_ms" binding:"required"`
	Max      int   `json:"max" binding:"required"`

	KeyStrategy        string `json:"key_strategy" binding:"required"`
	CustomKeyGenerator string `json:"custom_key_generator"`

	Message string `json:"message"`

	SkipSuccessfulRequests bool  `json:"skip_successful_requests"`
	SkipFailedRequests     bool  `json:"skip_failed_requests"`
	ExecEvenly             bool  `json:"exec_evenly"`
	BlockDurationMs        int64 `json:"block_duration_ms"`

	Prefix string `json:"prefix"`

	ApplicationLimits []models.ApplicationLimit `json:"application_limits"`
	RoleLimits        []models.RoleLimit        `json:"role_limits"`
	ComponentLimits   []models.ComponentLimit   `json:"component_limits"`

	EnvironmentOverrides map[string]models.EnvironmentOverride `json:"environment_overrides"`

	Enabled *bool `json:"enabled"`

	ChangeReason string `json:"change_reason"`
}

// UpdateConfigRequest is the payload for PUT /configs/:id. All fields are
// optional; absent fields keep their stored value. Name is taken from the
// path and never changes.
type UpdateConfigRequest struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
	Type        *string `json:"type"`

	WindowMs *int64 `json:"window_ms"`
	Max      *int   `json:"max"`

	KeyStrategy        *string `json:"key_strategy"`
	CustomKeyGenerator *string `json:"custom_key_generator"`

	Message *string `json:"message"`

	SkipSuccessfulRequests *bool  `json:"skip_successful_requests"`
	SkipFailedRequests     *bool  `json:"skip_failed_requests"`
	ExecEvenly             *bool  `json:"exec_evenly"`
	BlockDurationMs        *int64 `json:"block_duration_ms"`

	Prefix *string `json:"prefix"`

	ApplicationLimits *[]models.ApplicationLimit `json:"application_limits"`
	RoleLimits        *[]models.RoleLimit        `json:"role_limits"`
	ComponentLimits   *[]models.ComponentLimit   `json:"component_limits"`

	EnvironmentOverrides *map[string]models.EnvironmentOverride `json:"environment_overrides"`

	Enabled *bool `json:"enabled"`

	ChangeReason string `json:"change_reason"`
}

// ToggleConfigRequest is the payload for POST /configs/:id/toggle.
type ToggleConfigRequest struct {
	Enabled      *bool  `json:"enabled" binding:"required"`
	ChangeReason string `json:"change_reason"`
}

// DeleteConfigRequest carries the optional audit reason for a delete.
type DeleteConfigRequest struct {
	ChangeReason string `json:"change_reason"`
}

// ListConfigsQuery binds the GET /configs filter parameters.
type ListConfigsQuery struct {
	Type    string `form:"type"`
	Enabled *bool  `form:"enabled"`
	Search  string `form:"search"`
}

// ConfigListResponse wraps a config listing with its counts.
type ConfigListResponse struct {
	Configs []models.RateLimitConfig `json:"configs"`
	Total   int                      `json:"total"`
}
