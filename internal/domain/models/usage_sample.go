package models

import "time"

// UsageSample is an hourly rollup of request and block volume per config.
// It feeds analytics only; enforcement never reads it. Coarser granularities
// (daily buckets) are aggregated from these rows at query time.
type UsageSample struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	ConfigName string    `json:"config_name" gorm:"size:128;uniqueIndex:idx_usage_bucket"`
	Bucket     time.Time `json:"bucket" gorm:"uniqueIndex:idx_usage_bucket;index"`

	Requests int64 `json:"requests"`
	Allowed  int64 `json:"allowed"`
	Blocked  int64 `json:"blocked"`
	Errors   int64 `json:"errors"`
}

// TableName sets the table name for GORM.
func (UsageSample) TableName() string {
	return "usage_samples"
}

// BucketFor truncates a timestamp to its hourly sample bucket.
func BucketFor(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
