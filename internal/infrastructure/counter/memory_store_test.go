package counter_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limitd/limitd/internal/infrastructure/counter"
	"github.com/limitd/limitd/pkg/logger"
)

func newMemoryStore(t *testing.T) *counter.MemoryStore {
	t.Helper()
	store := counter.NewMemoryStore(logger.NewNullLogger())
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMemoryIncrementAndCheck(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := store.IncrementAndCheck(ctx, "rl:api:ip:10.0.0.1", time.Minute, 3, 0)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, int64(i), d.CurrentCount)
	}

	d, err := store.IncrementAndCheck(ctx, "rl:api:ip:10.0.0.1", time.Minute, 3, 0)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.False(t, d.Blocked, "no block configured")
}

func TestMemoryWindowRollover(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.IncrementAndCheck(ctx, "rl:api:ip:10.0.0.2", 40*time.Millisecond, 2, 0)
		require.NoError(t, err)
	}

	time.Sleep(60 * time.Millisecond)

	d, err := store.IncrementAndCheck(ctx, "rl:api:ip:10.0.0.2", 40*time.Millisecond, 2, 0)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.CurrentCount)
}

func TestMemoryBlockDuration(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()
	key := "rl:auth:ip:10.0.0.3"

	_, err := store.IncrementAndCheck(ctx, key, 20*time.Millisecond, 1, 80*time.Millisecond)
	require.NoError(t, err)

	d, err := store.IncrementAndCheck(ctx, key, 20*time.Millisecond, 1, 80*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, d.Blocked)

	// Retries inside the lockout stay rejected and do not push it out.
	time.Sleep(40 * time.Millisecond)
	d, err = store.IncrementAndCheck(ctx, key, 20*time.Millisecond, 1, 80*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.Blocked)

	time.Sleep(60 * time.Millisecond)
	d, err = store.IncrementAndCheck(ctx, key, 20*time.Millisecond, 1, 80*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "block expired on its original schedule")
}

func TestMemoryEvenSpacing(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()
	key := "rl:api:ip:10.0.0.4"

	d, err := store.CheckEvenSpacing(ctx, key, time.Second, 10)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = store.CheckEvenSpacing(ctx, key, time.Second, 10)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	time.Sleep(110 * time.Millisecond)
	d, err = store.CheckEvenSpacing(ctx, key, time.Second, 10)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMemoryPeekAndDecrement(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()
	key := "rl:api:ip:10.0.0.5"

	d, err := store.Peek(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = store.IncrementAndCheck(ctx, key, time.Minute, 10, 0)
	require.NoError(t, err)
	_, err = store.IncrementAndCheck(ctx, key, time.Minute, 10, 0)
	require.NoError(t, err)

	d, err = store.Peek(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(2), d.CurrentCount)

	require.NoError(t, store.Decrement(ctx, key))
	require.NoError(t, store.Decrement(ctx, key))
	require.NoError(t, store.Decrement(ctx, key))

	d, err = store.Peek(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(0), d.CurrentCount, "decrement floors at zero")
}

func TestMemoryResetAndResetPrefix(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	for _, key := range []string{"rl:api:ip:1.1.1.1", "rl:api:ip:2.2.2.2", "rl:auth:ip:1.1.1.1"} {
		_, err := store.IncrementAndCheck(ctx, key, time.Minute, 10, 0)
		require.NoError(t, err)
	}

	require.NoError(t, store.Reset(ctx, "rl:api:ip:1.1.1.1"))
	d, err := store.Peek(ctx, "rl:api:ip:1.1.1.1")
	require.NoError(t, err)
	assert.Nil(t, d)

	removed, err := store.ResetPrefix(ctx, "rl:api:")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	d, err = store.Peek(ctx, "rl:auth:ip:1.1.1.1")
	require.NoError(t, err)
	require.NotNil(t, d)
}

func TestMemoryListActive(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	_, err := store.IncrementAndCheck(ctx, "rl:api:ip:3.3.3.3", time.Minute, 10, 0)
	require.NoError(t, err)
	_, err = store.IncrementAndCheck(ctx, "rl:auth:ip:3.3.3.3", time.Minute, 10, 0)
	require.NoError(t, err)

	active, err := store.ListActive(ctx, "rl:api:")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "rl:api:ip:3.3.3.3", active[0].Key)
	assert.Equal(t, int64(1), active[0].CurrentCount)
}

func TestMemoryConcurrentAdmission(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	const max = 25
	const workers = 100

	var allowed int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			d, err := store.IncrementAndCheck(ctx, "rl:api:app:acme", time.Minute, max, 0)
			if err == nil && d.Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(max), allowed)
}
