// Package counter provides the counter store implementations backing every
// rate limit decision: a Redis-based distributed store and an in-memory store
// with identical semantics.
package counter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/pkg/errors"
	"github.com/limitd/limitd/pkg/logger"
)

// Suffixes for auxiliary keys kept next to each counter. They share the
// counter's namespace so a prefix reset clears them too, and listActive
// filters them out.
const (
	blockSuffix   = ":block"
	spacingSuffix = ":last"
)

// resetPrefixConcurrency bounds parallel deletes during a bulk reset.
const resetPrefixConcurrency = 8

// incrementScript atomically applies the fixed-window increment. When the
// key is inside a post-limit lockout the counter is not touched, so retries
// never extend the block. The first increment past max plants the block mark.
//
// KEYS[1] counter, KEYS[2] block mark
// ARGV[1] window ms, ARGV[2] max, ARGV[3] block duration ms
// Returns {allowed, count, ttl_ms, blocked}
var incrementScript = redis.NewScript(`
local block_ttl = redis.call('PTTL', KEYS[2])
if block_ttl > 0 then
    local count = tonumber(redis.call('GET', KEYS[1])) or 0
    return {0, count, block_ttl, 1}
end

local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[1]))
end

local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
    ttl = tonumber(ARGV[1])
    redis.call('PEXPIRE', KEYS[1], ttl)
end

local max = tonumber(ARGV[2])
if count <= max then
    return {1, count, ttl, 0}
end

local block_ms = tonumber(ARGV[3])
if block_ms > 0 and count == max + 1 then
    redis.call('SET', KEYS[2], '1', 'PX', block_ms)
    return {0, count, block_ms, 1}
end

return {0, count, ttl, 0}
`)

// spacingScript enforces even distribution: a request is admitted only when
// at least interval ms have passed since the previously admitted one.
//
// KEYS[1] spacing mark
// ARGV[1] now ms, ARGV[2] interval ms, ARGV[3] window ms
// Returns {allowed, wait_ms}
var spacingScript = redis.NewScript(`
local last = tonumber(redis.call('GET', KEYS[1]))
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])

if last and (now - last) < interval then
    return {0, last + interval - now}
end

redis.call('SET', KEYS[1], now, 'PX', tonumber(ARGV[3]))
return {1, interval}
`)

// decrementScript lowers the counter by one without going below zero and
// without disturbing the window TTL.
var decrementScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1])) or 0
if count > 0 then
    return redis.call('DECR', KEYS[1])
end
return 0
`)

// RedisStoreConfig tunes the Redis counter store.
type RedisStoreConfig struct {
	// ScanCount is the SCAN page size for listActive and prefix resets.
	ScanCount int64
}

// RedisStore implements the counter store on Redis. All mutations run as Lua
// scripts so concurrent callers against one key are linearized by the server.
type RedisStore struct {
	client redis.UniversalClient
	config RedisStoreConfig
	logger logger.Logger
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig, log logger.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = 256
	}
	return &RedisStore{
		client: client,
		config: cfg,
		logger: log.WithComponent("redis_counter"),
	}, nil
}

// IncrementAndCheck implements service.CounterStore.
func (s *RedisStore) IncrementAndCheck(ctx context.Context, key string, window time.Duration, max int, blockDuration time.Duration) (*service.Decision, error) {
	res, err := incrementScript.Run(ctx, s.client,
		[]string{key, key + blockSuffix},
		window.Milliseconds(), max, blockDuration.Milliseconds(),
	).Result()
	if err != nil {
		return nil, errors.ErrStoreUnavailable(err)
	}

	allowed, count, ttlMs, blocked, err := parseScriptReply(res)
	if err != nil {
		return nil, errors.ErrStoreUnavailable(err)
	}

	return &service.Decision{
		Allowed:      allowed,
		CurrentCount: count,
		ResetTime:    time.Now().Add(time.Duration(ttlMs) * time.Millisecond),
		Blocked:      blocked,
	}, nil
}

// CheckEvenSpacing implements service.CounterStore.
func (s *RedisStore) CheckEvenSpacing(ctx context.Context, key string, window time.Duration, max int) (*service.Decision, error) {
	interval := window.Milliseconds() / int64(max)
	if interval < 1 {
		interval = 1
	}

	res, err := spacingScript.Run(ctx, s.client,
		[]string{key + spacingSuffix},
		time.Now().UnixMilli(), interval, window.Milliseconds(),
	).Result()
	if err != nil {
		return nil, errors.ErrStoreUnavailable(err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return nil, errors.ErrStoreUnavailable(fmt.Errorf("unexpected spacing script reply: %v", res))
	}

	allowed := toInt64(vals[0]) == 1
	waitMs := toInt64(vals[1])

	return &service.Decision{
		Allowed:      allowed,
		CurrentCount: 1,
		ResetTime:    time.Now().Add(time.Duration(waitMs) * time.Millisecond),
	}, nil
}

// Peek implements service.CounterStore. Strictly non-mutating.
func (s *RedisStore) Peek(ctx context.Context, key string) (*service.Decision, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	blockCmd := pipe.PTTL(ctx, key+blockSuffix)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, errors.ErrStoreUnavailable(err)
	}

	count, err := getCmd.Int64()
	if err == redis.Nil {
		if blockCmd.Val() > 0 {
			// Window expired during the lockout; the key is still rejected.
			return &service.Decision{
				Allowed:   false,
				ResetTime: time.Now().Add(blockCmd.Val()),
				Blocked:   true,
			}, nil
		}
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrStoreUnavailable(err)
	}

	resetIn := ttlCmd.Val()
	blocked := blockCmd.Val() > 0
	if blocked && blockCmd.Val() > resetIn {
		resetIn = blockCmd.Val()
	}

	return &service.Decision{
		Allowed:      false,
		CurrentCount: count,
		ResetTime:    time.Now().Add(resetIn),
		Blocked:      blocked,
	}, nil
}

// Decrement implements service.CounterStore.
func (s *RedisStore) Decrement(ctx context.Context, key string) error {
	if err := decrementScript.Run(ctx, s.client, []string{key}).Err(); err != nil && err != redis.Nil {
		return errors.ErrStoreUnavailable(err)
	}
	return nil
}

// Reset implements service.CounterStore.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	err := s.client.Del(ctx, key, key+blockSuffix, key+spacingSuffix).Err()
	if err != nil && err != redis.Nil {
		return errors.ErrStoreUnavailable(err)
	}
	s.logger.Debug(ctx, "counter reset", logger.String("key", key))
	return nil
}

// ResetPrefix implements service.CounterStore. Keys are deleted individually
// so a cancelled bulk reset leaves no partial per-key state.
func (s *RedisStore) ResetPrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.scanKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resetPrefixConcurrency)

	removed := make(chan int, len(keys))
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.client.Del(gctx, key).Err(); err != nil && err != redis.Nil {
				return err
			}
			removed <- 1
			return nil
		})
	}

	err = g.Wait()
	close(removed)

	count := 0
	for range removed {
		count++
	}

	if err != nil {
		if err == context.Canceled || err == context.DeadlineExceeded {
			return count, err
		}
		return count, errors.ErrStoreUnavailable(err)
	}

	s.logger.Info(ctx, "counter namespace cleared",
		logger.String("prefix", prefix),
		logger.Int("removed", count))
	return count, nil
}

// ListActive implements service.CounterStore.
func (s *RedisStore) ListActive(ctx context.Context, prefix string) ([]service.ActiveKey, error) {
	keys, err := s.scanKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	active := make([]service.ActiveKey, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, blockSuffix) || strings.HasSuffix(key, spacingSuffix) {
			continue
		}

		pipe := s.client.Pipeline()
		getCmd := pipe.Get(ctx, key)
		ttlCmd := pipe.PTTL(ctx, key)
		blockCmd := pipe.PTTL(ctx, key+blockSuffix)
		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			return nil, errors.ErrStoreUnavailable(err)
		}

		count, err := getCmd.Int64()
		if err == redis.Nil {
			continue // expired between scan and read
		}
		if err != nil {
			continue // non-counter key sharing the namespace
		}

		active = append(active, service.ActiveKey{
			Key:          key,
			CurrentCount: count,
			ResetTime:    time.Now().Add(ttlCmd.Val()),
			Blocked:      blockCmd.Val() > 0,
		})
	}

	return active, nil
}

// Ping implements service.CounterStore.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.ErrStoreUnavailable(err)
	}
	return nil
}

// Close implements service.CounterStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) scanKeys(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		page, next, err := s.client.Scan(ctx, cursor, prefix+"*", s.config.ScanCount).Result()
		if err != nil {
			return nil, errors.ErrStoreUnavailable(err)
		}
		keys = append(keys, page...)
		cursor = next
		if cursor == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return keys, err
		}
	}
	return keys, nil
}

func parseScriptReply(res interface{}) (allowed bool, count int64, ttlMs int64, blocked bool, err error) {
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 4 {
		return false, 0, 0, false, fmt.Errorf("unexpected increment script reply: %v", res)
	}
	return toInt64(vals[0]) == 1, toInt64(vals[1]), toInt64(vals[2]), toInt64(vals[3]) == 1, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
