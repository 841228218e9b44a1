package counter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/pkg/logger"
)

// memoryEntry is one key's window state.
type memoryEntry struct {
	count        int64
	windowEnd    time.Time
	blockedUntil time.Time
	lastAccepted time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.windowEnd) && !now.Before(e.blockedUntil)
}

// MemoryStore is an in-process counter store with the same semantics as the
// Redis store. Suitable for single-instance deployments and tests; it does
// not coordinate across replicas.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	logger  logger.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// cleanupInterval is how often expired entries are swept.
const cleanupInterval = time.Minute

// NewMemoryStore creates an in-memory counter store with background sweeping.
func NewMemoryStore(log logger.Logger) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		logger:  log.WithComponent("memory_counter"),
		stop:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

// IncrementAndCheck implements service.CounterStore.
func (s *MemoryStore) IncrementAndCheck(ctx context.Context, key string, window time.Duration, max int, blockDuration time.Duration) (*service.Decision, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if ok && now.Before(e.blockedUntil) {
		return &service.Decision{
			Allowed:      false,
			CurrentCount: e.count,
			ResetTime:    e.blockedUntil,
			Blocked:      true,
		}, nil
	}

	if !ok || now.After(e.windowEnd) {
		e = &memoryEntry{windowEnd: now.Add(window)}
		s.entries[key] = e
	}

	e.count++
	if e.count <= int64(max) {
		return &service.Decision{
			Allowed:      true,
			CurrentCount: e.count,
			ResetTime:    e.windowEnd,
		}, nil
	}

	if blockDuration > 0 && e.count == int64(max)+1 {
		e.blockedUntil = now.Add(blockDuration)
		return &service.Decision{
			Allowed:      false,
			CurrentCount: e.count,
			ResetTime:    e.blockedUntil,
			Blocked:      true,
		}, nil
	}

	return &service.Decision{
		Allowed:      false,
		CurrentCount: e.count,
		ResetTime:    e.windowEnd,
	}, nil
}

// CheckEvenSpacing implements service.CounterStore.
func (s *MemoryStore) CheckEvenSpacing(ctx context.Context, key string, window time.Duration, max int) (*service.Decision, error) {
	interval := window / time.Duration(max)
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if ok && !e.lastAccepted.IsZero() && now.Sub(e.lastAccepted) < interval {
		return &service.Decision{
			Allowed:      false,
			CurrentCount: 1,
			ResetTime:    e.lastAccepted.Add(interval),
		}, nil
	}

	if !ok || now.After(e.windowEnd) {
		e = &memoryEntry{windowEnd: now.Add(window)}
		s.entries[key] = e
	}
	e.lastAccepted = now

	return &service.Decision{
		Allowed:      true,
		CurrentCount: 1,
		ResetTime:    now.Add(interval),
	}, nil
}

// Peek implements service.CounterStore.
func (s *MemoryStore) Peek(ctx context.Context, key string) (*service.Decision, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		return nil, nil
	}

	reset := e.windowEnd
	blocked := now.Before(e.blockedUntil)
	if blocked && e.blockedUntil.After(reset) {
		reset = e.blockedUntil
	}

	return &service.Decision{
		CurrentCount: e.count,
		ResetTime:    reset,
		Blocked:      blocked,
	}, nil
}

// Decrement implements service.CounterStore.
func (s *MemoryStore) Decrement(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.count > 0 {
		e.count--
	}
	return nil
}

// Reset implements service.CounterStore.
func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// ResetPrefix implements service.CounterStore.
func (s *MemoryStore) ResetPrefix(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// ListActive implements service.CounterStore.
func (s *MemoryStore) ListActive(ctx context.Context, prefix string) ([]service.ActiveKey, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]service.ActiveKey, 0, len(s.entries))
	for key, e := range s.entries {
		if !strings.HasPrefix(key, prefix) || e.expired(now) || e.count == 0 {
			continue
		}
		reset := e.windowEnd
		blocked := now.Before(e.blockedUntil)
		if blocked && e.blockedUntil.After(reset) {
			reset = e.blockedUntil
		}
		active = append(active, service.ActiveKey{
			Key:          key,
			CurrentCount: e.count,
			ResetTime:    reset,
			Blocked:      blocked,
		})
	}
	return active, nil
}

// Ping implements service.CounterStore.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close implements service.CounterStore.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, e := range s.entries {
				if e.expired(now) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
