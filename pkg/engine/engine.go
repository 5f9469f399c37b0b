package engine

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/gatekeeper/pkg/access"
	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/catalog"
	"github.com/platinummonkey/gatekeeper/pkg/claimcache"
	"github.com/platinummonkey/gatekeeper/pkg/membership"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
	"github.com/platinummonkey/gatekeeper/pkg/orgs"
	"github.com/platinummonkey/gatekeeper/pkg/roles"
)

// Engine wires the authorization core together: catalog, role and
// membership stores, the claims cache, the adapter registry, and the
// composite access helpers. Embedding applications construct one Engine at
// startup and hand it to their request handlers.
type Engine struct {
	Claims     *claimcache.Cache
	Roles      *roles.Service
	Membership *membership.Service
	Access     *access.Service
	Registry   *orgs.Registry

	cat       atomic.Pointer[catalog.Catalog]
	db        *sql.DB
	roleStore *roles.Store
	memStore  *membership.Store
	logger    *observability.Logger
}

// Config configures an Engine. DB is required. Catalog defaults to the
// built-in set, CacheBackend may be nil (cache-less mode), Logger and
// Metrics may be nil.
type Config struct {
	DB           *sql.DB
	Catalog      *catalog.Catalog
	CacheBackend claimcache.Backend
	CacheTimeout time.Duration
	Logger       *observability.Logger
	Metrics      *observability.Metrics
}

// New creates an Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	roleStore := roles.NewStore(cfg.DB)
	memStore := membership.NewStore(cfg.DB)
	registry := orgs.NewRegistry()

	cache := claimcache.New(claimcache.Config{
		Backend:        cfg.CacheBackend,
		Resolver:       authz.NewResolver(roleStore),
		BackendTimeout: cfg.CacheTimeout,
		Logger:         logger,
		Metrics:        cfg.Metrics,
	})

	e := &Engine{
		Claims: cache,
		Roles: roles.NewService(roles.ServiceConfig{
			Store:       roleStore,
			Catalog:     cat,
			Invalidator: cache,
			Logger:      logger,
			Metrics:     cfg.Metrics,
		}),
		Membership: membership.NewService(memStore, cache, logger),
		Access:     access.NewService(cache, memStore, registry, cfg.Metrics),
		Registry:   registry,

		db:        cfg.DB,
		roleStore: roleStore,
		memStore:  memStore,
		logger:    logger,
	}
	e.cat.Store(cat)
	return e
}

// Catalog returns the current permission catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.cat.Load()
}

// ReplaceCatalog swaps the permission catalog, e.g. after a catalog file
// reload. Checks in flight keep the catalog they started with.
func (e *Engine) ReplaceCatalog(cat *catalog.Catalog) {
	e.cat.Store(cat)
	e.Roles.SetCatalog(cat)
}

// Migrate applies the role and membership store migrations.
func (e *Engine) Migrate(ctx context.Context) error {
	if err := roles.RunMigrations(ctx, e.db); err != nil {
		return err
	}
	return membership.RunMigrations(ctx, e.db)
}

// RoleStore exposes the role store for wiring-level callers like the
// expired-assignment sweeper.
func (e *Engine) RoleStore() *roles.Store {
	return e.roleStore
}

// MembershipStore exposes the membership store for wiring-level callers.
func (e *Engine) MembershipStore() *membership.Store {
	return e.memStore
}

// GetClaims returns the user's claims, cache-through.
func (e *Engine) GetClaims(ctx context.Context, userID authz.UserID) (*authz.Claims, error) {
	return e.Claims.Get(ctx, userID)
}

// InvalidateClaims drops one user's cached claims.
func (e *Engine) InvalidateClaims(ctx context.Context, userID authz.UserID) error {
	return e.Claims.Invalidate(ctx, userID)
}

// InvalidateClaimsMany drops multiple users' cached claims.
func (e *Engine) InvalidateClaimsMany(ctx context.Context, userIDs ...authz.UserID) error {
	return e.Claims.InvalidateMany(ctx, userIDs...)
}

// Check reports whether the user holds the permission, optionally within an
// organization scope.
func (e *Engine) Check(ctx context.Context, userID authz.UserID, perm catalog.Key, orgCtx *authz.OrgContext) (bool, error) {
	return e.Access.Check(ctx, userID, perm, orgCtx)
}

// CreateOrganization registers a new organization with the engine: the
// BASIC and ADMIN system roles, the owner's membership row, and the
// owner's ADMIN assignment. All writes commit before the owner's claims
// are invalidated.
func (e *Engine) CreateOrganization(ctx context.Context, scope authz.OrgContext, ownerID authz.UserID) error {
	member := &membership.Member{
		UserID:  ownerID,
		OrgType: scope.Type,
		OrgID:   scope.ID,
		IsAdmin: true,
		IsOwner: true,
	}
	if err := e.Membership.AddMember(ctx, member); err != nil {
		return err
	}
	return e.Roles.BootstrapOrganization(ctx, scope, ownerID)
}
