package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Delimiter separates the group and action parts of a permission key.
const Delimiter = ":"

// Key is a permission key of the form "group:action", e.g. "projects:create".
type Key string

// Group returns the group part of the key.
func (k Key) Group() string {
	if i := strings.Index(string(k), Delimiter); i >= 0 {
		return string(k)[:i]
	}
	return ""
}

// Action returns the action part of the key.
func (k Key) Action() string {
	if i := strings.Index(string(k), Delimiter); i >= 0 {
		return string(k)[i+1:]
	}
	return ""
}

// Valid reports whether the key is well-formed (non-empty group and action,
// exactly one delimiter, no wildcard characters).
func (k Key) Valid() bool {
	parts := strings.Split(string(k), Delimiter)
	if len(parts) != 2 {
		return false
	}
	return parts[0] != "" && parts[1] != "" && !strings.Contains(string(k), "*")
}

func (k Key) String() string {
	return string(k)
}

// Catalog is the closed set of permission keys known to the system.
// It is built once at startup and read-only afterwards.
type Catalog struct {
	keys   map[Key]struct{}
	groups map[string][]Key
}

// New builds a catalog from the given keys. Malformed or duplicate keys are
// rejected.
func New(keys ...Key) (*Catalog, error) {
	c := &Catalog{
		keys:   make(map[Key]struct{}, len(keys)),
		groups: make(map[string][]Key),
	}

	for _, key := range keys {
		if !key.Valid() {
			return nil, fmt.Errorf("malformed permission key: %q", key)
		}
		if _, exists := c.keys[key]; exists {
			return nil, fmt.Errorf("duplicate permission key: %q", key)
		}
		c.keys[key] = struct{}{}
		c.groups[key.Group()] = append(c.groups[key.Group()], key)
	}

	for _, group := range c.groups {
		sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
	}

	return c, nil
}

// Default returns the built-in permission catalog.
func Default() *Catalog {
	c, err := New(
		"companies:create",
		"companies:read",
		"companies:update",
		"companies:delete",
		"projects:create",
		"projects:read",
		"projects:update",
		"projects:delete",
		"users:create",
		"users:read",
		"users:update",
		"users:delete",
		"roles:create",
		"roles:read",
		"roles:update",
		"roles:delete",
		"roles:assign",
		"reports:create",
		"reports:read",
		"reports:export",
	)
	if err != nil {
		// The built-in set is fixed; a failure here is a programming error.
		panic(err)
	}
	return c
}

// Has reports whether the key is part of the catalog.
func (c *Catalog) Has(key Key) bool {
	_, ok := c.keys[key]
	return ok
}

// HasGroup reports whether any key in the catalog belongs to the group.
func (c *Catalog) HasGroup(group string) bool {
	_, ok := c.groups[group]
	return ok
}

// Keys returns all keys in the catalog, sorted.
func (c *Catalog) Keys() []Key {
	keys := make([]Key, 0, len(c.keys))
	for key := range c.keys {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Groups returns all group names, sorted.
func (c *Catalog) Groups() []string {
	groups := make([]string, 0, len(c.groups))
	for group := range c.groups {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups
}

// GroupKeys returns the keys belonging to a group, sorted.
func (c *Catalog) GroupKeys(group string) []Key {
	keys := c.groups[group]
	out := make([]Key, len(keys))
	copy(out, keys)
	return out
}

// ParseKey validates external input against the catalog and returns it as a
// Key. Validation happens here, at the boundary, so internal logic can treat
// keys as trusted.
func (c *Catalog) ParseKey(s string) (Key, error) {
	key := Key(s)
	if !key.Valid() {
		return "", fmt.Errorf("malformed permission key: %q", s)
	}
	if !c.Has(key) {
		return "", fmt.Errorf("unknown permission key: %q", s)
	}
	return key, nil
}
