package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/opsbridge/internal/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, cfg Config, aliases ...string) (*Cache, *testutil.MockResolver, *testutil.MockFactory, *fakeClock) {
	t.Helper()
	resolver := testutil.NewMockResolver(aliases...)
	factory := &testutil.MockFactory{}
	clock := newFakeClock()
	cache := NewCache(cfg, resolver, factory.Build, WithClock(clock.Now))
	return cache, resolver, factory, clock
}

func TestCache_ReuseWithinTTL(t *testing.T) {
	cache, resolver, factory, clock := newTestCache(t, Config{}, "dev")
	ctx := context.Background()

	first, err := cache.Resolve(ctx, "dev")
	require.NoError(t, err)

	clock.Advance(29 * time.Minute)
	second, err := cache.Resolve(ctx, "dev")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, resolver.Calls("dev"))
	assert.Equal(t, 1, factory.Built())

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	cache, resolver, factory, clock := newTestCache(t, Config{TTL: 30 * time.Minute}, "dev")
	ctx := context.Background()

	first, err := cache.Resolve(ctx, "dev")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	second, err := cache.Resolve(ctx, "dev")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, resolver.Calls("dev"))
	assert.Equal(t, 2, factory.Built())
	assert.True(t, factory.Clients[0].Closed)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, int64(1), cache.Stats().Evictions)
}

func TestCache_DefaultAlias(t *testing.T) {
	cache, resolver, _, _ := newTestCache(t, Config{DefaultAlias: "dev"}, "dev")

	client, err := cache.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "dev", client.Alias())
	assert.Equal(t, 1, resolver.Calls("dev"))
	assert.Equal(t, "dev", cache.DefaultAlias())
}

func TestCache_NoAlias(t *testing.T) {
	cache, _, factory, _ := newTestCache(t, Config{}, "dev")

	_, err := cache.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoAlias)
	assert.ErrorIs(t, cache.Evict(""), ErrNoAlias)
	assert.Zero(t, factory.Built())
}

func TestCache_CredentialNotFound(t *testing.T) {
	cache, _, factory, _ := newTestCache(t, Config{}, "dev")

	_, err := cache.Resolve(context.Background(), "prod")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
	assert.Contains(t, err.Error(), `"prod"`)
	assert.Zero(t, factory.Built())
	assert.Zero(t, cache.Len())
}

func TestCache_ResolverError(t *testing.T) {
	cache, resolver, _, _ := newTestCache(t, Config{}, "dev")
	resolver.Err = errors.New("redis down")

	_, err := cache.Resolve(context.Background(), "dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	assert.NotErrorIs(t, err, ErrCredentialNotFound)
}

func TestCache_FactoryError(t *testing.T) {
	cache, _, factory, _ := newTestCache(t, Config{}, "dev")
	factory.Err = errors.New("token exchange failed")

	_, err := cache.Resolve(context.Background(), "dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token exchange failed")
	assert.Zero(t, cache.Len())
}

func TestCache_Evict(t *testing.T) {
	cache, resolver, factory, _ := newTestCache(t, Config{}, "dev")
	ctx := context.Background()

	first, err := cache.Resolve(ctx, "dev")
	require.NoError(t, err)

	require.NoError(t, cache.Evict("dev"))
	assert.Zero(t, cache.Len())
	assert.True(t, factory.Clients[0].Closed)

	second, err := cache.Resolve(ctx, "dev")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, resolver.Calls("dev"))
}

func TestCache_EvictAbsentIsNoop(t *testing.T) {
	cache, _, _, _ := newTestCache(t, Config{}, "dev", "prod")
	ctx := context.Background()

	_, err := cache.Resolve(ctx, "dev")
	require.NoError(t, err)

	require.NoError(t, cache.Evict("prod"))
	require.NoError(t, cache.Evict("prod"))
	assert.Equal(t, 1, cache.Len())
	assert.Zero(t, cache.Stats().Evictions)
}

func TestCache_ExpiryKeepsFreshReplacement(t *testing.T) {
	cache, _, factory, clock := newTestCache(t, Config{TTL: 30 * time.Minute}, "dev")
	ctx := context.Background()

	_, err := cache.Resolve(ctx, "dev")
	require.NoError(t, err)
	clock.Advance(31 * time.Minute)

	// Another caller rebuilt the session after the expiry was observed.
	client := testutil.NewMockClient("dev")
	fresh := &entry{alias: "dev", client: client, createdAt: clock.Now()}
	cache.mu.Lock()
	cache.entries["dev"] = fresh
	cache.mu.Unlock()

	assert.False(t, cache.remove("dev", nil, reasonTTL))
	assert.Equal(t, 1, cache.Len())
	assert.False(t, client.Closed)
	assert.Zero(t, cache.Stats().Evictions)

	got, err := cache.Resolve(ctx, "dev")
	require.NoError(t, err)
	assert.Same(t, client, got)
	assert.Equal(t, 1, factory.Built())
}

func TestCache_ConcurrentColdResolve(t *testing.T) {
	cache, resolver, factory, _ := newTestCache(t, Config{}, "dev")
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Resolve(ctx, "dev"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("resolve failed: %v", err)
	}
	assert.Equal(t, 1, factory.Built())
	assert.Equal(t, 1, resolver.Calls("dev"))
	assert.Equal(t, 1, cache.Len())
}

func TestCache_SnapshotAndClose(t *testing.T) {
	cache, _, factory, clock := newTestCache(t, Config{TTL: 10 * time.Minute}, "dev", "prod")
	ctx := context.Background()

	_, err := cache.Resolve(ctx, "prod")
	require.NoError(t, err)
	clock.Advance(4 * time.Minute)
	_, err = cache.Resolve(ctx, "dev")
	require.NoError(t, err)

	snap := cache.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "dev", snap[0].Alias)
	assert.Equal(t, time.Duration(0), snap[0].Age)
	assert.Equal(t, 10*time.Minute, snap[0].ExpiresIn)
	assert.Equal(t, "prod", snap[1].Alias)
	assert.Equal(t, 4*time.Minute, snap[1].Age)
	assert.Equal(t, 6*time.Minute, snap[1].ExpiresIn)

	require.NoError(t, cache.Close())
	assert.Zero(t, cache.Len())
	for _, c := range factory.Clients {
		assert.True(t, c.Closed)
	}
}
