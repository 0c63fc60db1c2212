package ttlstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/lingorun/internal/ttlstore"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type backend struct {
	name    string
	store   ttlstore.Store
	advance func(time.Duration)
}

func backends(t *testing.T) []backend {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	mem := ttlstore.NewMemoryStore(clock.Now)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rs := ttlstore.NewRedisStoreFromClient(client)
	t.Cleanup(func() { _ = rs.Close() })

	return []backend{
		{name: "memory", store: mem, advance: clock.Advance},
		{name: "redis", store: rs, advance: mr.FastForward},
	}
}

func TestStore_GetSetExpire(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			_, ok, err := b.store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.store.Set(ctx, "k", "v", time.Minute))
			v, ok, err := b.store.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v", v)

			exists, err := b.store.Exists(ctx, "k")
			require.NoError(t, err)
			assert.True(t, exists)

			b.advance(time.Minute + time.Second)

			exists, err = b.store.Exists(ctx, "k")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestStore_IncrementArmsTTLOnlyOnce(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			n, err := b.store.Increment(ctx, "counter", time.Hour)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			b.advance(30 * time.Minute)

			n, err = b.store.Increment(ctx, "counter", time.Hour)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			ttl, err := b.store.TTL(ctx, "counter")
			require.NoError(t, err)
			assert.LessOrEqual(t, ttl, 30*time.Minute)
			assert.Greater(t, ttl, 29*time.Minute)

			b.advance(31 * time.Minute)

			n, err = b.store.Increment(ctx, "counter", time.Hour)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n, "expired window restarts")
		})
	}
}

func TestStore_IncrementConcurrent(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := b.store.Increment(ctx, "hot", time.Hour)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			v, ok, err := b.store.Get(ctx, "hot")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "50", v)
		})
	}
}

func TestStore_TTLAndDelete(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ttl, err := b.store.TTL(ctx, "nope")
			require.NoError(t, err)
			assert.Zero(t, ttl)

			require.NoError(t, b.store.Set(ctx, "a", "1", 0))
			require.NoError(t, b.store.Set(ctx, "b", "2", time.Minute))

			ttl, err = b.store.TTL(ctx, "a")
			require.NoError(t, err)
			assert.Zero(t, ttl, "persistent key has no ttl")

			require.NoError(t, b.store.Delete(ctx, "a", "b"))
			for _, k := range []string{"a", "b"} {
				exists, err := b.store.Exists(ctx, k)
				require.NoError(t, err)
				assert.False(t, exists)
			}
			require.NoError(t, b.store.Delete(ctx))
		})
	}
}

func TestMemoryStore_SweepFreesUnreadExpiredKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := ttlstore.NewMemoryStore(func() time.Time { return now })

	for i := 0; i < 1000; i++ {
		_, err := m.Increment(ctx, fmt.Sprintf("ratelimit:7:hour:%d", i), time.Hour)
		require.NoError(t, err)
		now = now.Add(time.Hour)
	}
	require.NoError(t, m.Set(ctx, "persistent", "v", 0))
	require.NoError(t, m.Set(ctx, "fresh", "v", time.Hour))
	assert.Equal(t, 1002, m.Len())

	assert.Equal(t, 1000, m.Sweep())
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 0, m.Sweep())
}
