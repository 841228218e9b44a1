package dto

import (
	"time"

	"github.com/limitd/limitd/internal/domain/models"
)

// OverviewResponse is the GET /analytics dashboard summary.
type OverviewResponse struct {
	TotalConfigs      int64                       `json:"total_configs"`
	EnabledConfigs    int64                       `json:"enabled_configs"`
	ActiveLimitsCount int                         `json:"active_limits_count"`
	RecentChanges     []models.ConfigChangeRecord `json:"recent_changes"`
	TopLimited        []TopLimitedEntry           `json:"top_limited"`
	Distribution      []DistributionBand          `json:"distribution"`
	RangeUsage        UsageTotals                 `json:"range_usage"`
}

// TopLimitedEntry is one bucket in the top-consumers ranking.
type TopLimitedEntry struct {
	Key          string  `json:"key"`
	ConfigName   string  `json:"config_name"`
	CurrentCount int64   `json:"current_count"`
	MaxAllowed   int     `json:"max_allowed"`
	Utilization  float64 `json:"utilization"`
}

// DistributionBand is one utilization histogram band.
type DistributionBand struct {
	Band  string `json:"band"`
	Count int    `json:"count"`
}

// UsageTotals sums request outcomes over a time range.
type UsageTotals struct {
	Requests int64 `json:"requests"`
	Allowed  int64 `json:"allowed"`
	Blocked  int64 `json:"blocked"`
	Errors   int64 `json:"errors"`
}

// HistoryResponse is the GET /history trend payload.
type HistoryResponse struct {
	TimeRange   string                      `json:"time_range"`
	Granularity string                      `json:"granularity"`
	ConfigStats []HistoryBucket             `json:"config_stats"`
	UsageData   []UsageBucket               `json:"usage_data"`
	Changes     []models.ConfigChangeRecord `json:"changes"`
	Summary     HistorySummary              `json:"summary"`
}

// HistoryBucket counts config changes in one time bucket.
type HistoryBucket struct {
	Bucket  time.Time `json:"bucket"`
	Changes int       `json:"changes"`
}

// UsageBucket is request volume in one time bucket.
type UsageBucket struct {
	Bucket   time.Time `json:"bucket"`
	Requests int64     `json:"requests"`
	Allowed  int64     `json:"allowed"`
	Blocked  int64     `json:"blocked"`
	Errors   int64     `json:"errors"`
}

// HistorySummary aggregates a history range.
type HistorySummary struct {
	TotalChanges     int    `json:"total_changes"`
	MostChangedName  string `json:"most_changed_config"`
	MostActiveEditor string `json:"most_active_editor"`
}

// ActiveLimitsResponse is the GET /active payload.
type ActiveLimitsResponse struct {
	Limits []models.ActiveLimitRecord `json:"limits"`
	Total  int                        `json:"total"`
}

// KeyStatusResponse is the GET /status/:configName/:key payload.
type KeyStatusResponse struct {
	ConfigName   string    `json:"config_name"`
	Key          string    `json:"key"`
	Active       bool      `json:"active"`
	CurrentCount int64     `json:"current_count"`
	MaxAllowed   int       `json:"max_allowed"`
	ResetTime    time.Time `json:"reset_time,omitempty"`
	Blocked      bool      `json:"blocked"`
}

// ResetResponse reports the outcome of a manual reset.
type ResetResponse struct {
	ConfigName string `json:"config_name"`
	Key        string `json:"key,omitempty"`
	Cleared    int    `json:"cleared"`
}

// ReferenceDataResponse lists one class of reference entities.
type ReferenceDataResponse struct {
	Applications []models.Application `json:"applications,omitempty"`
	Roles        []models.Role        `json:"roles,omitempty"`
	Services     []models.Service     `json:"services,omitempty"`
}
