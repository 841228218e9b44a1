// Package constants defines system-wide constants for the limitd rate limiting service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Config Type Constants
// ================================================================================

// ConfigType classifies a rate limit configuration by the class of traffic it protects.
type ConfigType string

const (
	// ConfigTypeAPI covers general REST API traffic
	ConfigTypeAPI ConfigType = "api"

	// ConfigTypeAuth covers authentication endpoints (login, token issuance)
	ConfigTypeAuth ConfigType = "auth"

	// ConfigTypeUpload covers file upload endpoints
	ConfigTypeUpload ConfigType = "upload"

	// ConfigTypeGraphQL covers GraphQL query endpoints
	ConfigTypeGraphQL ConfigType = "graphql"

	// ConfigTypeWebSocket covers websocket connection establishment
	ConfigTypeWebSocket ConfigType = "websocket"

	// ConfigTypeCustom covers operator-defined traffic classes
	ConfigTypeCustom ConfigType = "custom"
)

// ConfigTypes lists every valid configuration type.
var ConfigTypes = []ConfigType{
	ConfigTypeAPI,
	ConfigTypeAuth,
	ConfigTypeUpload,
	ConfigTypeGraphQL,
	ConfigTypeWebSocket,
	ConfigTypeCustom,
}

// ================================================================================
// Key Strategy Constants
// ================================================================================

// KeyStrategy selects how a counter bucket key is derived from a request.
type KeyStrategy string

const (
	// KeyStrategyApplication buckets by the authenticated caller's application
	KeyStrategyApplication KeyStrategy = "application"

	// KeyStrategyRole buckets by the caller's assigned role
	KeyStrategyRole KeyStrategy = "role"

	// KeyStrategyComponent buckets by service and procedure
	KeyStrategyComponent KeyStrategy = "component"

	// KeyStrategyIP buckets by client IP address
	KeyStrategyIP KeyStrategy = "ip"

	// KeyStrategyCustom buckets by an operator-supplied CEL expression
	KeyStrategyCustom KeyStrategy = "custom"
)

// KeyStrategies lists every valid key strategy.
var KeyStrategies = []KeyStrategy{
	KeyStrategyApplication,
	KeyStrategyRole,
	KeyStrategyComponent,
	KeyStrategyIP,
	KeyStrategyCustom,
}

// Dimension prefixes embedded in derived bucket keys.
const (
	// DimensionApplication prefixes application-derived keys (app:<id>)
	DimensionApplication = "app"

	// DimensionRole prefixes role-derived keys (role:<id>)
	DimensionRole = "role"

	// DimensionComponent prefixes component-derived keys (comp:<serviceId>:<procedure>)
	DimensionComponent = "comp"

	// DimensionIP prefixes IP-derived keys (ip:<addr>)
	DimensionIP = "ip"
)

// ================================================================================
// Environment Constants
// ================================================================================

// Environment identifies a deployment environment for per-environment overrides.
type Environment string

const (
	// EnvironmentDevelopment is the development environment
	EnvironmentDevelopment Environment = "development"

	// EnvironmentProduction is the production environment
	EnvironmentProduction Environment = "production"
)

// ================================================================================
// Failure Mode Constants
// ================================================================================

// FailMode controls the decision taken when the counter store is unreachable.
type FailMode string

const (
	// FailModeAuto rejects for auth-type configs and allows for all others
	FailModeAuto FailMode = "auto"

	// FailModeOpen always allows when the store is unreachable
	FailModeOpen FailMode = "open"

	// FailModeClosed always rejects when the store is unreachable
	FailModeClosed FailMode = "closed"
)

// ================================================================================
// Change Action Constants
// ================================================================================

// ChangeAction identifies the kind of configuration mutation recorded in the audit trail.
type ChangeAction string

const (
	// ChangeActionCreate records a configuration creation
	ChangeActionCreate ChangeAction = "create"

	// ChangeActionUpdate records a configuration update
	ChangeActionUpdate ChangeAction = "update"

	// ChangeActionToggle records an enable/disable flip
	ChangeActionToggle ChangeAction = "toggle"

	// ChangeActionDelete records a configuration deletion
	ChangeActionDelete ChangeAction = "delete"
)

// ================================================================================
// Defaults
// ================================================================================

const (
	// DefaultWindow is the default counting window when none is configured
	DefaultWindow = time.Minute

	// DefaultMax is the default request allowance per window
	DefaultMax = 100

	// DefaultKeyPrefixFormat derives a counter namespace from a config name
	DefaultKeyPrefixFormat = "rl:%s:"

	// DefaultConfigCacheTTL bounds staleness of resolved configs in the hot path
	DefaultConfigCacheTTL = 5 * time.Second

	// DefaultKeyGeneratorTimeout is the hard ceiling on custom key generator evaluation
	DefaultKeyGeneratorTimeout = 50 * time.Millisecond

	// MaxKeyGeneratorLength caps operator-supplied CEL expression length
	MaxKeyGeneratorLength = 1024

	// DefaultRateLimitMessage is returned to throttled callers with no configured message
	DefaultRateLimitMessage = "Too many requests. Please try again later."
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type used for request-scoped context values.
type ContextKey string

const (
	// ContextKeyRequestID carries the per-request correlation ID
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTraceID carries the distributed trace ID
	ContextKeyTraceID ContextKey = "trace_id"

	// ContextKeyAdminSubject carries the authenticated admin identity
	ContextKeyAdminSubject ContextKey = "admin_subject"
)

// Gin context keys set by the admin auth middleware.
const (
	// GinKeyAdminSubject holds the authenticated admin subject on the gin context
	GinKeyAdminSubject = "admin_subject"

	// GinKeyAdminRole holds the authenticated admin role on the gin context
	GinKeyAdminRole = "admin_role"
)

// ================================================================================
// Log Level Constants
// ================================================================================

// LogLevel represents the severity threshold for the logger.
type LogLevel int

const (
	// LogLevelDebug enables all log output
	LogLevelDebug LogLevel = iota

	// LogLevelInfo enables informational output and above
	LogLevelInfo

	// LogLevelWarn enables warnings and above
	LogLevelWarn

	// LogLevelError enables errors and above
	LogLevelError

	// LogLevelFatal enables only fatal output
	LogLevelFatal
)
