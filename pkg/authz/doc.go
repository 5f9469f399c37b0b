// Package authz is the core of the authorization engine: claims snapshots,
// the resolver that builds them from role assignments, and the pure check
// functions that evaluate permissions against them.
//
// # Claims
//
// A Claims value is the derived snapshot of one user's effective grants: a
// global grant set plus one set per (organization type, organization id)
// pair. Grants are stored exactly as they appear on roles; wildcard
// expansion happens at check time so a snapshot stays stable across catalog
// changes.
//
// # Checking
//
// Check, CheckAny, CheckAll, CheckWithFallback, and CheckInAnyOrganization
// are deterministic functions of a Claims value. Evaluate returns a
// Decision carrying the grant/deny reason; Decision.Err converts a denial
// into a ForbiddenError at the boundary. No check ever defaults to granted
// on ambiguity or error.
//
// # Errors
//
// ForbiddenError is the expected, surfaceable denial. ImmutableRoleError
// marks mutations of system roles. NotFoundError covers missing or
// soft-deleted references. ResolutionError wraps store failures during
// claims computation and is never cached.
package authz
