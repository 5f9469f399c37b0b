package claimcache

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

// DefaultBackendTimeout bounds a single backend call. A slow cache must not
// block the permission check; past the timeout the check falls back to
// direct resolution.
const DefaultBackendTimeout = 250 * time.Millisecond

// Backend stores claims snapshots keyed by user id. Get returns (nil, nil)
// on a miss. Implementations must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, userID authz.UserID) (*authz.Claims, error)
	Set(ctx context.Context, claims *authz.Claims) error
	Delete(ctx context.Context, userIDs ...authz.UserID) error
}

// Cache is the cache-through layer in front of the resolver. Backend errors
// are swallowed and logged: availability of the authorization decision takes
// priority over cache-hit performance, so Get degrades to calling the
// resolver directly when the backend is unavailable.
type Cache struct {
	backend        Backend
	resolver       *authz.Resolver
	backendTimeout time.Duration
	logger         *observability.Logger
	metrics        *observability.Metrics
	group          singleflight.Group
}

// Config configures a Cache. Backend may be nil, which yields a cache-less
// mode where every Get resolves directly. Metrics may be nil.
type Config struct {
	Backend        Backend
	Resolver       *authz.Resolver
	BackendTimeout time.Duration
	Logger         *observability.Logger
	Metrics        *observability.Metrics
}

// New creates a claims cache.
func New(cfg Config) *Cache {
	timeout := cfg.BackendTimeout
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Cache{
		backend:        cfg.Backend,
		resolver:       cfg.Resolver,
		backendTimeout: timeout,
		logger:         logger,
		metrics:        cfg.Metrics,
	}
}

// Get returns the user's claims, from the backend on a hit, via the resolver
// on a miss. Concurrent misses for the same user share one resolution. A
// failed resolution propagates and is never cached.
func (c *Cache) Get(ctx context.Context, userID authz.UserID) (*authz.Claims, error) {
	if c.backend != nil {
		bctx, cancel := context.WithTimeout(ctx, c.backendTimeout)
		claims, err := c.backend.Get(bctx, userID)
		cancel()
		switch {
		case err != nil:
			c.backendError(err, "claims cache get failed, resolving directly")
		case claims != nil:
			if c.metrics != nil {
				c.metrics.CacheHitsTotal.Inc()
			}
			return claims, nil
		}
		// Only a backend lookup that did not hit counts as a miss;
		// cache-less mode resolves everything directly.
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.Inc()
		}
	}

	v, err, _ := c.group.Do(strconv.FormatInt(int64(userID), 10), func() (interface{}, error) {
		claims, err := c.resolve(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.store(ctx, claims)
		return claims, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*authz.Claims), nil
}

// Invalidate drops the cached claims for one user. Unlike Get, the backend
// error is returned: the caller triggered a write and is responsible for
// retrying a failed invalidation.
func (c *Cache) Invalidate(ctx context.Context, userID authz.UserID) error {
	return c.InvalidateMany(ctx, userID)
}

// InvalidateMany drops the cached claims for multiple users at once, e.g.
// after a bulk role reorder or member sync. Invalidation is idempotent.
func (c *Cache) InvalidateMany(ctx context.Context, userIDs ...authz.UserID) error {
	if c.backend == nil || len(userIDs) == 0 {
		return nil
	}
	bctx, cancel := context.WithTimeout(ctx, c.backendTimeout)
	defer cancel()
	if err := c.backend.Delete(bctx, userIDs...); err != nil {
		if c.metrics != nil {
			c.metrics.CacheBackendErrorsTotal.Inc()
		}
		return err
	}
	if c.metrics != nil {
		c.metrics.CacheInvalidationsTotal.Add(float64(len(userIDs)))
	}
	return nil
}

func (c *Cache) resolve(ctx context.Context, userID authz.UserID) (*authz.Claims, error) {
	start := time.Now()
	claims, err := c.resolver.Resolve(ctx, userID)
	if c.metrics != nil {
		c.metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.metrics.ResolutionsTotal.WithLabelValues(status).Inc()
	}
	return claims, err
}

// store writes a freshly resolved snapshot back to the backend,
// best-effort.
func (c *Cache) store(ctx context.Context, claims *authz.Claims) {
	if c.backend == nil {
		return
	}
	bctx, cancel := context.WithTimeout(ctx, c.backendTimeout)
	defer cancel()
	if err := c.backend.Set(bctx, claims); err != nil {
		c.backendError(err, "claims cache set failed")
	}
}

func (c *Cache) backendError(err error, message string) {
	if c.metrics != nil {
		c.metrics.CacheBackendErrorsTotal.Inc()
	}
	c.logger.WithError(err).Warn(message)
}
