package cache

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// MemoryStore is an in-process Store used by tests and by deployments that
// run without a shared cache. Expiry is evaluated lazily against the
// injected clock.
type MemoryStore struct {
	mu    sync.Mutex
	clock clock.Clock
	items map[string]memoryItem
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore returns an empty MemoryStore reading time from clk.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{clock: clk, items: map[string]memoryItem{}}
}

// Put writes value under key with the given TTL.
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrTTLRequired
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryItem{value: stored, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

// Get reads key, reporting absence via the bool.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if !s.clock.Now().Before(item.expiresAt) {
		delete(s.items, key)
		return nil, false, nil
	}
	return item.value, true, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close discards all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = map[string]memoryItem{}
	return nil
}
