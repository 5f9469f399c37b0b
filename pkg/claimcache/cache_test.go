package claimcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/catalog"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

const companyType = authz.OrgType("company")

// countingSource counts resolutions so tests can assert cache behavior.
type countingSource struct {
	mu    sync.Mutex
	calls int
	rows  map[authz.UserID][]authz.RoleGrant
	err   error
}

func (s *countingSource) ActiveRoleGrants(_ context.Context, userID authz.UserID) ([]authz.RoleGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.rows[userID], nil
}

func (s *countingSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// failingBackend simulates an unavailable cache store.
type failingBackend struct{}

func (failingBackend) Get(context.Context, authz.UserID) (*authz.Claims, error) {
	return nil, errors.New("backend down")
}
func (failingBackend) Set(context.Context, *authz.Claims) error {
	return errors.New("backend down")
}
func (failingBackend) Delete(context.Context, ...authz.UserID) error {
	return errors.New("backend down")
}

func newTestCache(source *countingSource, backend Backend) *Cache {
	return New(Config{
		Backend:  backend,
		Resolver: authz.NewResolver(source),
	})
}

func singleUserSource() *countingSource {
	return &countingSource{rows: map[authz.UserID][]authz.RoleGrant{
		1: {{RoleID: 10, Grants: []catalog.Grant{"projects:read"}}},
	}}
}

func TestGetCachesThrough(t *testing.T) {
	ctx := context.Background()
	source := singleUserSource()
	cache := newTestCache(source, NewMemoryBackend(100, time.Minute))

	first, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, first.Global.Has("projects:read"))
	assert.Equal(t, 1, source.callCount())

	// Second get hits the backend; the resolver is not consulted again.
	second, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, second.Global.Has("projects:read"))
	assert.Equal(t, 1, source.callCount())
}

func TestMissMetricRequiresBackend(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Cache-less mode: every lookup resolves directly, none are misses.
	cache := New(Config{
		Resolver: authz.NewResolver(singleUserSource()),
		Metrics:  metrics,
	})
	_, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.CacheMissesTotal))

	// With a backend, a cold lookup is a miss and a warm one a hit.
	cache = New(Config{
		Backend:  NewMemoryBackend(100, time.Minute),
		Resolver: authz.NewResolver(singleUserSource()),
		Metrics:  metrics,
	})
	_, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheMissesTotal))

	_, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheHitsTotal))
}

func TestInvalidateForcesReresolution(t *testing.T) {
	ctx := context.Background()
	source := singleUserSource()
	cache := newTestCache(source, NewMemoryBackend(100, time.Minute))

	_, err := cache.Get(ctx, 1)
	require.NoError(t, err)

	// Role removed: the next resolution sees no grants.
	source.mu.Lock()
	source.rows[1] = nil
	source.mu.Unlock()

	// Stale entry still served until invalidation.
	stale, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, stale.Global.Has("projects:read"))

	require.NoError(t, cache.Invalidate(ctx, 1))

	fresh, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, fresh.Empty())
}

func TestInvalidateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	source := singleUserSource()
	cache := newTestCache(source, NewMemoryBackend(100, time.Minute))

	_, err := cache.Get(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, 1))
	require.NoError(t, cache.Invalidate(ctx, 1))

	before := source.callCount()
	_, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before+1, source.callCount(), "one miss resolves exactly once")
}

func TestGetDegradesWhenBackendUnavailable(t *testing.T) {
	ctx := context.Background()
	source := singleUserSource()
	cache := newTestCache(source, failingBackend{})

	claims, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, claims.Global.Has("projects:read"))

	// Every get resolves directly in cache-less mode.
	_, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, source.callCount())
}

func TestInvalidateReturnsBackendError(t *testing.T) {
	cache := newTestCache(singleUserSource(), failingBackend{})
	assert.Error(t, cache.Invalidate(context.Background(), 1))
}

func TestResolutionFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{err: errors.New("db down")}
	cache := newTestCache(source, NewMemoryBackend(100, time.Minute))

	_, err := cache.Get(ctx, 1)
	require.Error(t, err)
	assert.True(t, authz.IsResolutionError(err))

	// Store recovers; the failure must not have been cached.
	source.mu.Lock()
	source.err = nil
	source.rows = map[authz.UserID][]authz.RoleGrant{
		1: {{RoleID: 10, Grants: []catalog.Grant{"projects:read"}}},
	}
	source.mu.Unlock()

	claims, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, claims.Global.Has("projects:read"))
}

func TestConcurrentMissesShareOneResolution(t *testing.T) {
	ctx := context.Background()
	source := singleUserSource()
	// nil backend: every Get is a miss, so only singleflight dedupes.
	cache := newTestCache(source, nil)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			claims, err := cache.Get(ctx, 1)
			assert.NoError(t, err)
			assert.True(t, claims.Global.Has("projects:read"))
		}()
	}
	close(start)
	wg.Wait()

	assert.Less(t, source.callCount(), 16, "concurrent misses must collapse")
}

func TestInvalidateMany(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{rows: map[authz.UserID][]authz.RoleGrant{
		1: {{RoleID: 10, Grants: []catalog.Grant{"projects:read"}}},
		2: {{RoleID: 11, Grants: []catalog.Grant{"companies:read"}}},
	}}
	cache := newTestCache(source, NewMemoryBackend(100, time.Minute))

	_, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	_, err = cache.Get(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, source.callCount())

	require.NoError(t, cache.InvalidateMany(ctx, 1, 2))

	_, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	_, err = cache.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, source.callCount())
}
