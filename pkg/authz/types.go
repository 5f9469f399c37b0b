package authz

import (
	"encoding/json"
	"sort"

	"github.com/platinummonkey/gatekeeper/pkg/catalog"
)

// UserID identifies a user.
type UserID int64

// OrgType names a kind of organization, e.g. "company". Organization types
// are opaque to the engine; adapters registered per type supply the
// type-specific behavior.
type OrgType string

// OrgID identifies one organization of a given type.
type OrgID int64

// OrgContext is the optional organization scope of a permission check.
type OrgContext struct {
	Type OrgType `json:"org_type"`
	ID   OrgID   `json:"org_id"`
}

// GrantSet is a set of permission grants.
type GrantSet map[catalog.Grant]struct{}

// NewGrantSet builds a set from the given grants.
func NewGrantSet(grants ...catalog.Grant) GrantSet {
	s := make(GrantSet, len(grants))
	for _, g := range grants {
		s[g] = struct{}{}
	}
	return s
}

// Add unions the given grants into the set.
func (s GrantSet) Add(grants ...catalog.Grant) {
	for _, g := range grants {
		s[g] = struct{}{}
	}
}

// Has reports whether the exact grant is present.
func (s GrantSet) Has(grant catalog.Grant) bool {
	_, ok := s[grant]
	return ok
}

// Covers reports whether any grant in the set covers the permission key,
// checking the global wildcard first, then the exact key, then the group
// wildcard.
func (s GrantSet) Covers(key catalog.Key) bool {
	if s.Has(catalog.GlobalWildcard) {
		return true
	}
	if s.Has(catalog.Grant(key)) {
		return true
	}
	return s.Has(catalog.Grant(key.Group() + catalog.Delimiter + "*"))
}

// Sorted returns the grants in lexical order.
func (s GrantSet) Sorted() []catalog.Grant {
	grants := make([]catalog.Grant, 0, len(s))
	for g := range s {
		grants = append(grants, g)
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i] < grants[j] })
	return grants
}

// MarshalJSON encodes the set as a sorted array of grant strings so cached
// claims are stable byte-for-byte.
func (s GrantSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of grant strings.
func (s *GrantSet) UnmarshalJSON(data []byte) error {
	var grants []catalog.Grant
	if err := json.Unmarshal(data, &grants); err != nil {
		return err
	}
	*s = NewGrantSet(grants...)
	return nil
}

// Claims is the derived snapshot of a user's effective grants: one global
// set plus one set per (organization type, organization id) pair. Claims are
// built by the Resolver and cached per user; they store grants as-is, never
// pre-expanded.
type Claims struct {
	UserID        UserID                          `json:"user_id"`
	Global        GrantSet                        `json:"global"`
	Organizations map[OrgType]map[OrgID]GrantSet `json:"organizations"`
}

// NewClaims returns an empty claims snapshot for the user.
func NewClaims(userID UserID) *Claims {
	return &Claims{
		UserID:        userID,
		Global:        make(GrantSet),
		Organizations: make(map[OrgType]map[OrgID]GrantSet),
	}
}

// AddGlobal unions grants into the global set.
func (c *Claims) AddGlobal(grants ...catalog.Grant) {
	c.Global.Add(grants...)
}

// AddOrganization unions grants into the set for one organization scope.
func (c *Claims) AddOrganization(orgType OrgType, orgID OrgID, grants ...catalog.Grant) {
	byID, ok := c.Organizations[orgType]
	if !ok {
		byID = make(map[OrgID]GrantSet)
		c.Organizations[orgType] = byID
	}
	set, ok := byID[orgID]
	if !ok {
		set = make(GrantSet)
		byID[orgID] = set
	}
	set.Add(grants...)
}

// OrgGrants returns the grant set for one organization scope, or nil when
// the user holds nothing there.
func (c *Claims) OrgGrants(orgType OrgType, orgID OrgID) GrantSet {
	byID, ok := c.Organizations[orgType]
	if !ok {
		return nil
	}
	return byID[orgID]
}

// Empty reports whether the user holds no grants at all.
func (c *Claims) Empty() bool {
	if len(c.Global) > 0 {
		return false
	}
	for _, byID := range c.Organizations {
		for _, set := range byID {
			if len(set) > 0 {
				return false
			}
		}
	}
	return true
}
