package models

import "time"

// ActiveLimitRecord represents one currently tracked counter bucket. It is
// materialized from the counter store on demand, never persisted: created on
// the first request of a fresh window, incremented per request, and gone when
// the window expires or an operator resets the key.
type ActiveLimitRecord struct {
	// Key is the full store key including the config prefix,
	// e.g. "rl:api:ip:203.0.113.7".
	Key string `json:"key"`

	// BucketKey is the dimension part without the prefix, e.g. "ip:203.0.113.7".
	BucketKey string `json:"bucket_key"`

	ConfigName   string    `json:"config_name"`
	CurrentCount int64     `json:"current_count"`
	MaxAllowed   int       `json:"max_allowed"`
	ResetTime    time.Time `json:"reset_time"`
	Blocked      bool      `json:"blocked"`
}

// Utilization returns the bucket's usage as a percentage of its allowance.
// Values above 100 mean the bucket is over its limit.
func (r *ActiveLimitRecord) Utilization() float64 {
	if r.MaxAllowed <= 0 {
		return 0
	}
	return float64(r.CurrentCount) / float64(r.MaxAllowed) * 100.0
}
