package orgs

import (
	"context"
	"sync"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
)

// Adapter answers organization questions for one organization type. The
// engine stays agnostic of what a "company" or "project" is; the embedding
// application registers an adapter per type it owns.
type Adapter interface {
	// OrganizationUUID returns the public UUID of an organization, or ""
	// when it does not exist.
	OrganizationUUID(ctx context.Context, orgID authz.OrgID) (string, error)
	// IsMember reports whether the user belongs to the organization
	// according to the owning application.
	IsMember(ctx context.Context, userID authz.UserID, orgID authz.OrgID) (bool, error)
}

// BatchAdapter is an optional extension for adapters that can resolve many
// UUIDs in one round trip. The registry falls back to per-ID calls when an
// adapter does not implement it.
type BatchAdapter interface {
	Adapter
	OrganizationUUIDs(ctx context.Context, orgIDs []authz.OrgID) (map[authz.OrgID]string, error)
}

// UUIDResolver is an optional extension for adapters that can map a public
// UUID back to an internal id, used by handlers that address organizations
// by UUID.
type UUIDResolver interface {
	Adapter
	OrganizationIDByUUID(ctx context.Context, orgUUID string) (authz.OrgID, bool, error)
}

// Registry maps organization types to their adapters. Lookups for types
// with no registered adapter degrade to empty results rather than errors:
// an unknown type means "no such organizations", not a broken engine.
type Registry struct {
	mu       sync.RWMutex
	adapters map[authz.OrgType]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[authz.OrgType]Adapter)}
}

// Register binds an adapter to an organization type, replacing any
// previous binding.
func (r *Registry) Register(orgType authz.OrgType, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[orgType] = adapter
}

// Adapter returns the adapter for a type, or nil when none is registered.
func (r *Registry) Adapter(orgType authz.OrgType) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[orgType]
}

// Types lists the registered organization types.
func (r *Registry) Types() []authz.OrgType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]authz.OrgType, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	return types
}

// OrganizationUUID resolves one organization's UUID, or "" for unknown
// types and unknown organizations.
func (r *Registry) OrganizationUUID(ctx context.Context, orgType authz.OrgType, orgID authz.OrgID) (string, error) {
	adapter := r.Adapter(orgType)
	if adapter == nil {
		return "", nil
	}
	return adapter.OrganizationUUID(ctx, orgID)
}

// OrganizationUUIDs resolves many organizations' UUIDs at once, using the
// batch path when the adapter offers one. Unknown organizations are left
// out of the result; unknown types yield an empty map.
func (r *Registry) OrganizationUUIDs(ctx context.Context, orgType authz.OrgType, orgIDs []authz.OrgID) (map[authz.OrgID]string, error) {
	adapter := r.Adapter(orgType)
	if adapter == nil || len(orgIDs) == 0 {
		return map[authz.OrgID]string{}, nil
	}

	if batch, ok := adapter.(BatchAdapter); ok {
		uuids, err := batch.OrganizationUUIDs(ctx, orgIDs)
		if err != nil {
			return nil, err
		}
		if uuids == nil {
			uuids = map[authz.OrgID]string{}
		}
		return uuids, nil
	}

	uuids := make(map[authz.OrgID]string, len(orgIDs))
	for _, orgID := range orgIDs {
		uuid, err := adapter.OrganizationUUID(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if uuid != "" {
			uuids[orgID] = uuid
		}
	}
	return uuids, nil
}

// OrganizationIDByUUID maps a public UUID to an internal id. Unknown
// types, adapters without UUID resolution, and unknown UUIDs all yield
// (0, false).
func (r *Registry) OrganizationIDByUUID(ctx context.Context, orgType authz.OrgType, orgUUID string) (authz.OrgID, bool, error) {
	adapter := r.Adapter(orgType)
	if adapter == nil {
		return 0, false, nil
	}
	resolver, ok := adapter.(UUIDResolver)
	if !ok {
		return 0, false, nil
	}
	return resolver.OrganizationIDByUUID(ctx, orgUUID)
}

// IsMember reports organization membership, false for unknown types.
func (r *Registry) IsMember(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID) (bool, error) {
	adapter := r.Adapter(orgType)
	if adapter == nil {
		return false, nil
	}
	return adapter.IsMember(ctx, userID, orgID)
}
