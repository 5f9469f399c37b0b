package catalog

import (
	"fmt"
	"strings"
)

// Grant is one entry in a role's permission set: an exact key
// ("projects:create"), a group wildcard ("projects:*"), or the global
// wildcard ("*").
type Grant string

// GlobalWildcard grants every permission in every group.
const GlobalWildcard Grant = "*"

// IsGlobalWildcard reports whether the grant is "*".
func (g Grant) IsGlobalWildcard() bool {
	return g == GlobalWildcard
}

// IsGroupWildcard reports whether the grant is of the form "group:*".
func (g Grant) IsGroupWildcard() bool {
	return strings.HasSuffix(string(g), Delimiter+"*") && len(g) > 2
}

// Group returns the group a group-wildcard or exact grant applies to, or ""
// for the global wildcard.
func (g Grant) Group() string {
	if g.IsGlobalWildcard() {
		return ""
	}
	if i := strings.Index(string(g), Delimiter); i >= 0 {
		return string(g)[:i]
	}
	return ""
}

// Covers reports whether the grant covers the given permission key. This is
// the single matching primitive: expansion of wildcards happens here, at
// check time, never when claims are built.
func (g Grant) Covers(key Key) bool {
	if g.IsGlobalWildcard() {
		return true
	}
	if g.IsGroupWildcard() {
		return g.Group() == key.Group()
	}
	return string(g) == string(key)
}

func (g Grant) String() string {
	return string(g)
}

// ValidateGrants checks a role's permission set against the catalog:
// exact grants must name known keys, group wildcards must name known groups,
// grants must be unique, and the global wildcard must be the only element
// when present.
func (c *Catalog) ValidateGrants(grants []Grant) error {
	seen := make(map[Grant]struct{}, len(grants))
	for _, g := range grants {
		if _, dup := seen[g]; dup {
			return fmt.Errorf("duplicate grant: %q", g)
		}
		seen[g] = struct{}{}

		switch {
		case g.IsGlobalWildcard():
			if len(grants) > 1 {
				return fmt.Errorf("global wildcard %q cannot be combined with other grants", GlobalWildcard)
			}
		case g.IsGroupWildcard():
			if !c.HasGroup(g.Group()) {
				return fmt.Errorf("unknown permission group in grant: %q", g)
			}
		default:
			if _, err := c.ParseKey(string(g)); err != nil {
				return fmt.Errorf("invalid grant: %w", err)
			}
		}
	}
	return nil
}
