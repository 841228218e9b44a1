package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics manages the Prometheus metrics for the rate limiting service.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	DecisionLatency  *prometheus.HistogramVec
	StoreErrors      *prometheus.CounterVec
	KeygenFallbacks  *prometheus.CounterVec
	ConfigMutations  *prometheus.CounterVec
	ConfigCacheReads *prometheus.CounterVec
	ActiveResets     *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitd_decisions_total",
				Help: "Total rate limit decisions.",
			},
			[]string{"config", "strategy", "result"},
		),
		DecisionLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "limitd_decision_latency_seconds",
				Help:    "Latency of the enforcement decision path.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"config"},
		),
		StoreErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitd_store_errors_total",
				Help: "Counter store failures by outcome policy.",
			},
			[]string{"config", "policy"},
		),
		KeygenFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitd_keygen_fallbacks_total",
				Help: "Custom key generator evaluations that fell back to the IP dimension.",
			},
			[]string{"config", "reason"},
		),
		ConfigMutations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitd_config_mutations_total",
				Help: "Rate limit configuration changes.",
			},
			[]string{"action"},
		),
		ConfigCacheReads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitd_config_cache_reads_total",
				Help: "Resolved-config cache lookups.",
			},
			[]string{"result"},
		),
		ActiveResets: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitd_counter_resets_total",
				Help: "Manual counter resets issued through the admin surface.",
			},
			[]string{"config", "scope"},
		),
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitd_http_requests_total",
				Help: "Total HTTP requests handled by the admin surface.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "limitd_http_request_duration_seconds",
				Help:    "HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordDecision records the outcome of one enforcement decision.
func (m *Metrics) RecordDecision(configName, strategy, result string, duration time.Duration) {
	m.Decisions.WithLabelValues(configName, strategy, result).Inc()
	m.DecisionLatency.WithLabelValues(configName).Observe(duration.Seconds())
}

// RecordStoreError records a counter store failure and the policy applied.
func (m *Metrics) RecordStoreError(configName, policy string) {
	m.StoreErrors.WithLabelValues(configName, policy).Inc()
}

// RecordKeygenFallback records a custom key generator falling back to IP keying.
func (m *Metrics) RecordKeygenFallback(configName, reason string) {
	m.KeygenFallbacks.WithLabelValues(configName, reason).Inc()
}

// RecordConfigMutation records a configuration change by action.
func (m *Metrics) RecordConfigMutation(action string) {
	m.ConfigMutations.WithLabelValues(action).Inc()
}

// RecordConfigCacheRead records a resolved-config cache hit or miss.
func (m *Metrics) RecordConfigCacheRead(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ConfigCacheReads.WithLabelValues(result).Inc()
}

// RecordReset records a manual counter reset.
func (m *Metrics) RecordReset(configName, scope string) {
	m.ActiveResets.WithLabelValues(configName, scope).Inc()
}
