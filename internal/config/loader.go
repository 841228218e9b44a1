package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads configuration from file and environment.
// Precedence: environment variables (LIMITD_*) > config file > defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("counter.store", "redis")
	v.SetDefault("counter.fail_mode", "auto")
	v.SetDefault("counter.scan_count", 256)
	v.SetDefault("enforcement.environment", "development")
	v.SetDefault("enforcement.config_cache_ttl", 5)
	v.SetDefault("keygen.timeout_ms", 50)
	v.SetDefault("keygen.max_expression_length", 1024)
	v.SetDefault("auth.admin_role", "admin")
	v.SetDefault("auth.csrf_enabled", true)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.audit_topic", "limitd.config-changes")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "limitd")
	v.SetDefault("tracing.sampling_rate", 1.0)
	v.SetDefault("monitoring.pprof_enabled", false)

	// Load from config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/limitd/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	v.SetEnvPrefix("LIMITD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
