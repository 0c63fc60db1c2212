package ttlstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process Store. Expired keys are dropped on access and
// by Sweep, which long-running processes should call periodically.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

// NewMemoryStore creates an empty store. A nil clock uses time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		items: make(map[string]entry),
		now:   clock,
	}
}

// lookup must be called with mu held.
func (m *MemoryStore) lookup(key string) (entry, bool) {
	e, ok := m.items[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(m.now()) {
		delete(m.items, key)
		return entry{}, false
	}
	return e, true
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	return e.value, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = e
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(key)
	return ok, nil
}

func (m *MemoryStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	var n int64
	if ok {
		v, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("increment %s: value is not an integer", key)
		}
		n = v
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	if n == 1 && ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = e
	return n, nil
}

func (m *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(m.now()), nil
}

func (m *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// Sweep removes every expired key and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of held keys, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemoryStore) Close() error { return nil }
