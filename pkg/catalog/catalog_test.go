package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyParts(t *testing.T) {
	key := Key("projects:create")
	assert.Equal(t, "projects", key.Group())
	assert.Equal(t, "create", key.Action())
	assert.True(t, key.Valid())
}

func TestKeyValid(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"projects:create", true},
		{"companies:read", true},
		{"projects", false},
		{"projects:", false},
		{":create", false},
		{"", false},
		{"projects:create:extra", false},
		{"projects:*", false},
		{"*", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.valid, Key(tt.key).Valid())
		})
	}
}

func TestNewRejectsMalformedAndDuplicateKeys(t *testing.T) {
	_, err := New("projects:create", "bogus")
	assert.Error(t, err)

	_, err = New("projects:create", "projects:create")
	assert.Error(t, err)
}

func TestCatalogLookups(t *testing.T) {
	c, err := New("projects:create", "projects:read", "companies:read")
	require.NoError(t, err)

	assert.True(t, c.Has("projects:create"))
	assert.False(t, c.Has("projects:delete"))
	assert.True(t, c.HasGroup("projects"))
	assert.False(t, c.HasGroup("reports"))

	assert.Equal(t, []string{"companies", "projects"}, c.Groups())
	assert.Equal(t, []Key{"projects:create", "projects:read"}, c.GroupKeys("projects"))
}

func TestParseKey(t *testing.T) {
	c := Default()

	key, err := c.ParseKey("projects:create")
	require.NoError(t, err)
	assert.Equal(t, Key("projects:create"), key)

	_, err = c.ParseKey("projects:frobnicate")
	assert.Error(t, err)

	_, err = c.ParseKey("not-a-key")
	assert.Error(t, err)
}

func TestGrantCovers(t *testing.T) {
	tests := []struct {
		name    string
		grant   Grant
		key     Key
		covered bool
	}{
		{"exact match", "projects:create", "projects:create", true},
		{"exact mismatch", "projects:create", "projects:read", false},
		{"group wildcard same group", "projects:*", "projects:delete", true},
		{"group wildcard other group", "projects:*", "companies:read", false},
		{"global wildcard", "*", "reports:export", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.covered, tt.grant.Covers(tt.key))
		})
	}
}

func TestGrantClassification(t *testing.T) {
	assert.True(t, Grant("*").IsGlobalWildcard())
	assert.False(t, Grant("*").IsGroupWildcard())

	assert.True(t, Grant("projects:*").IsGroupWildcard())
	assert.Equal(t, "projects", Grant("projects:*").Group())

	assert.False(t, Grant("projects:create").IsGroupWildcard())
	assert.False(t, Grant("projects:create").IsGlobalWildcard())
}

func TestValidateGrants(t *testing.T) {
	c := Default()

	tests := []struct {
		name    string
		grants  []Grant
		wantErr bool
	}{
		{"exact grants", []Grant{"projects:create", "companies:read"}, false},
		{"group wildcard", []Grant{"projects:*"}, false},
		{"global wildcard alone", []Grant{"*"}, false},
		{"global wildcard mixed", []Grant{"*", "projects:create"}, true},
		{"unknown key", []Grant{"projects:frobnicate"}, true},
		{"unknown group wildcard", []Grant{"widgets:*"}, true},
		{"duplicate grant", []Grant{"projects:create", "projects:create"}, true},
		{"empty set", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.ValidateGrants(tt.grants)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")

	content := `groups:
  - name: projects
    actions: [create, read, update, delete]
  - name: companies
    actions: [create, read]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := LoadFile(path)
	require.NoError(t, err)

	assert.True(t, c.Has("projects:update"))
	assert.True(t, c.Has("companies:read"))
	assert.False(t, c.Has("companies:delete"))
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")

	require.NoError(t, os.WriteFile(path, []byte("groups:\n  - name: \"\"\n    actions: [read]\n"), 0644))
	_, err := LoadFile(path)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
