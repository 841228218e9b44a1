// Package service defines the domain service interfaces and pure domain logic
// for the limitd rate limiting service.
package service

import (
	"context"
	"time"

	"github.com/limitd/limitd/pkg/constants"
)

// Decision is the outcome of one counter operation.
type Decision struct {
	// Allowed reports whether the request fits inside the window allowance.
	Allowed bool

	// CurrentCount is the counter value after the operation.
	CurrentCount int64

	// ResetTime is when the current window rolls over.
	ResetTime time.Time

	// Blocked reports whether the key is inside an extra post-limit lockout.
	Blocked bool
}

// ActiveKey is one currently tracked, non-expired counter key as seen by the
// store. The application layer joins these with configurations to build
// ActiveLimitRecord views.
type ActiveKey struct {
	Key          string
	CurrentCount int64
	ResetTime    time.Time
	Blocked      bool
}

// CounterStore is the shared keyed counter with TTL expiry that backs every
// rate limit decision. It is the only mutable shared resource in the hot
// path; callers never read-then-write a counter outside these operations.
//
// IncrementAndCheck must be linearizable per key: concurrent callers never
// observe the same pre-increment count, so no more than max requests are
// admitted per window regardless of concurrency.
type CounterStore interface {
	// IncrementAndCheck atomically increments the counter for key, starting
	// a fresh window of the given length on first increment. When the limit
	// is first exceeded and blockDuration > 0, the key enters a lockout for
	// that extra duration; requests during the lockout are rejected without
	// re-incrementing, so retries do not extend the block.
	IncrementAndCheck(ctx context.Context, key string, window time.Duration, max int, blockDuration time.Duration) (*Decision, error)

	// CheckEvenSpacing enforces a minimum inter-request gap of window/max
	// instead of a per-window allowance. Used when a config sets execEvenly.
	CheckEvenSpacing(ctx context.Context, key string, window time.Duration, max int) (*Decision, error)

	// Peek reads the current count and reset time without mutating anything.
	// Returns (nil, nil) when the key has no active window.
	Peek(ctx context.Context, key string) (*Decision, error)

	// Decrement atomically lowers the counter by one, never below zero.
	// Used by the post-response skip-successful/skip-failed correction.
	Decrement(ctx context.Context, key string) error

	// Reset clears the counter and any lockout for key, as if the window
	// had expired early.
	Reset(ctx context.Context, key string) error

	// ResetPrefix clears every key under the given namespace and returns
	// how many were removed. Each key reset is independently atomic, so a
	// cancelled bulk reset is safe to resume or retry.
	ResetPrefix(ctx context.Context, prefix string) (int, error)

	// ListActive enumerates currently tracked keys, optionally scoped to
	// one configuration's namespace by prefix.
	ListActive(ctx context.Context, prefix string) ([]ActiveKey, error)

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// FailOpen decides the outcome when the counter store is unreachable.
// Default policy: fail closed (reject) for auth-type configs, fail open
// (allow, log a warning) for everything else, so one infrastructure
// dependency cannot take down non-security-critical traffic. The configured
// mode can force either behavior globally.
func FailOpen(configType constants.ConfigType, mode constants.FailMode) bool {
	switch mode {
	case constants.FailModeOpen:
		return true
	case constants.FailModeClosed:
		return false
	default:
		return configType != constants.ConfigTypeAuth
	}
}
