package authz

import (
	"fmt"

	"github.com/platinummonkey/gatekeeper/pkg/catalog"
)

// Decision is the outcome of a single permission evaluation. Check functions
// stay pure and return Decisions; conversion to a ForbiddenError happens at
// the boundary nearest the caller.
type Decision struct {
	Granted bool
	Reason  string
}

// Deny builds a denied decision with a formatted reason.
func Deny(format string, args ...interface{}) Decision {
	return Decision{Granted: false, Reason: fmt.Sprintf(format, args...)}
}

// Grant builds a granted decision with a formatted reason.
func Grant(format string, args ...interface{}) Decision {
	return Decision{Granted: true, Reason: fmt.Sprintf(format, args...)}
}

// Err converts a denied decision into a ForbiddenError, or nil when granted.
func (d Decision) Err() error {
	if d.Granted {
		return nil
	}
	return &ForbiddenError{Message: d.Reason}
}

// Evaluate decides whether claims cover the permission, optionally within an
// organization scope. Precedence: global wildcard, global exact, global
// group wildcard, then the same three against the organization's set when an
// org context is given. Anything else is a deny.
func Evaluate(claims *Claims, perm catalog.Key, orgCtx *OrgContext) Decision {
	if claims.Global.Has(catalog.GlobalWildcard) {
		return Grant("global wildcard")
	}
	if claims.Global.Covers(perm) {
		return Grant("global grant covers %s", perm)
	}
	if orgCtx != nil {
		if set := claims.OrgGrants(orgCtx.Type, orgCtx.ID); set.Covers(perm) {
			return Grant("organization grant covers %s in %s/%d", perm, orgCtx.Type, orgCtx.ID)
		}
	}
	return Deny("no grant covers %s", perm)
}

// Check reports whether claims cover the permission. Pure and deterministic
// given claims.
func Check(claims *Claims, perm catalog.Key, orgCtx *OrgContext) bool {
	return Evaluate(claims, perm, orgCtx).Granted
}

// CheckAny reports whether claims cover at least one of the permissions.
func CheckAny(claims *Claims, perms []catalog.Key, orgCtx *OrgContext) bool {
	for _, perm := range perms {
		if Check(claims, perm, orgCtx) {
			return true
		}
	}
	return false
}

// CheckAll reports whether claims cover every one of the permissions.
func CheckAll(claims *Claims, perms []catalog.Key, orgCtx *OrgContext) bool {
	for _, perm := range perms {
		if !Check(claims, perm, orgCtx) {
			return false
		}
	}
	return true
}

// CheckWithFallback grants when the user holds globalPerm globally, or
// orgPerm within the given organization. The org check runs the full
// precedence chain, so orgPerm held globally also grants. This is the
// standard "list-all vs list-own-organization" pattern used by resource
// services.
func CheckWithFallback(claims *Claims, globalPerm, orgPerm catalog.Key, orgCtx OrgContext) bool {
	return Check(claims, globalPerm, nil) || Check(claims, orgPerm, &orgCtx)
}

// CheckInAnyOrganization reports whether claims cover the permission in at
// least one organization of the given type. Used for "can create in at
// least one org" checks.
func CheckInAnyOrganization(claims *Claims, perm catalog.Key, orgType OrgType) bool {
	if Check(claims, perm, nil) {
		return true
	}
	for _, set := range claims.Organizations[orgType] {
		if set.Covers(perm) {
			return true
		}
	}
	return false
}
