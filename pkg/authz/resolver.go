package authz

import (
	"context"

	"github.com/platinummonkey/gatekeeper/pkg/catalog"
)

// RoleGrant is one active role assignment joined to its role's grants, the
// only row shape the resolver consumes. OrgType/OrgID are nil for global
// roles.
type RoleGrant struct {
	RoleID  int64
	OrgType *OrgType
	OrgID   *OrgID
	Grants  []catalog.Grant
}

// AssignmentSource lists a user's active role assignments joined to their
// roles. Implementations must apply the store's single active-row predicate
// (no soft-deleted or expired rows).
type AssignmentSource interface {
	ActiveRoleGrants(ctx context.Context, userID UserID) ([]RoleGrant, error)
}

// Resolver computes a user's claims snapshot from current store contents.
// It is pure with respect to the stores: no side effects, no caching.
type Resolver struct {
	source AssignmentSource
}

// NewResolver creates a resolver backed by the given assignment source.
func NewResolver(source AssignmentSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve builds the claims snapshot for a user. A store failure propagates
// as a ResolutionError and must never be cached.
func (r *Resolver) Resolve(ctx context.Context, userID UserID) (*Claims, error) {
	rows, err := r.source.ActiveRoleGrants(ctx, userID)
	if err != nil {
		return nil, &ResolutionError{UserID: userID, Err: err}
	}

	claims := NewClaims(userID)
	for _, row := range rows {
		if row.OrgType == nil {
			claims.AddGlobal(row.Grants...)
			continue
		}
		var orgID OrgID
		if row.OrgID != nil {
			orgID = *row.OrgID
		}
		claims.AddOrganization(*row.OrgType, orgID, row.Grants...)
	}
	return claims, nil
}
