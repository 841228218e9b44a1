package config

import (
	"fmt"
	"time"

	"github.com/limitd/limitd/pkg/constants"
)

// Config holds the application's configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Counter     CounterConfig     `mapstructure:"counter"`
	Enforcement EnforcementConfig `mapstructure:"enforcement"`
	KeyGen      KeyGenConfig      `mapstructure:"keygen"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Log         LogConfig         `mapstructure:"log"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxConns        int    `mapstructure:"max_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime"` // in minutes
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Password     string   `mapstructure:"password"`
	DB           int      `mapstructure:"db"`
	PoolSize     int      `mapstructure:"pool_size"`
	MinIdleConns int      `mapstructure:"min_idle_conns"`
}

// CounterConfig selects and tunes the counter store implementation.
type CounterConfig struct {
	// Store selects the backing implementation: "redis" or "memory".
	Store string `mapstructure:"store"`
	// FailMode overrides the default fail-open/fail-closed policy: auto, open, closed.
	FailMode string `mapstructure:"fail_mode"`
	// ScanCount is the Redis SCAN page size used by listActive.
	ScanCount int64 `mapstructure:"scan_count"`
}

// EnforcementConfig tunes the request-time decision path.
type EnforcementConfig struct {
	// Environment selects which environmentOverrides entry applies.
	Environment string `mapstructure:"environment"`
	// ConfigCacheTTL bounds staleness of resolved configs, in seconds.
	ConfigCacheTTL int `mapstructure:"config_cache_ttl"`
}

// KeyGenConfig bounds operator-supplied custom key generator expressions.
type KeyGenConfig struct {
	// TimeoutMs is the hard evaluation ceiling in milliseconds.
	TimeoutMs int `mapstructure:"timeout_ms"`
	// MaxExpressionLength caps expression length at config-write time.
	MaxExpressionLength int `mapstructure:"max_expression_length"`
}

// AuthConfig configures the admin authentication middleware.
type AuthConfig struct {
	// JWTSecret signs and verifies admin bearer tokens (HS256).
	JWTSecret string `mapstructure:"jwt_secret"`
	// AdminRole is the role claim required for mutating calls.
	AdminRole string `mapstructure:"admin_role"`
	// CSRFEnabled toggles the double-submit header check on mutating verbs.
	CSRFEnabled bool `mapstructure:"csrf_enabled"`
}

// KafkaConfig configures the audit event stream.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	AuditTopic   string        `mapstructure:"audit_topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

type MonitoringConfig struct {
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// ConfigCacheTTLDuration returns the resolved-config cache TTL as a duration.
func (c *EnforcementConfig) ConfigCacheTTLDuration() time.Duration {
	if c.ConfigCacheTTL <= 0 {
		return constants.DefaultConfigCacheTTL
	}
	return time.Duration(c.ConfigCacheTTL) * time.Second
}

// KeyGenTimeout returns the custom key generator timeout as a duration.
func (c *KeyGenConfig) KeyGenTimeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return constants.DefaultKeyGeneratorTimeout
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	switch c.Counter.Store {
	case "", "redis", "memory":
	default:
		return fmt.Errorf("counter.store must be redis or memory, got %q", c.Counter.Store)
	}

	switch constants.FailMode(c.Counter.FailMode) {
	case "", constants.FailModeAuto, constants.FailModeOpen, constants.FailModeClosed:
	default:
		return fmt.Errorf("counter.fail_mode must be auto, open, or closed, got %q", c.Counter.FailMode)
	}

	if c.Counter.Store != "memory" && len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("redis.addresses is required when counter.store is redis")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	return nil
}
