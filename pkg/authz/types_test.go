package authz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatekeeper/pkg/catalog"
)

func TestGrantSetJSONIsStable(t *testing.T) {
	set := NewGrantSet("projects:read", "companies:*", "projects:create")

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["companies:*","projects:create","projects:read"]`, string(data))
}

func TestClaimsSurviveCacheEncoding(t *testing.T) {
	// The claims cache stores snapshots as JSON; a decoded snapshot must
	// answer checks identically to the original.
	original := NewClaims(42)
	original.AddGlobal("companies:read")
	original.AddOrganization(companyType, 7, "*")
	original.AddOrganization(companyType, 8, "projects:*")

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Claims
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, UserID(42), decoded.UserID)
	for _, key := range []catalog.Key{"companies:read", "projects:create"} {
		for _, orgCtx := range []*OrgContext{nil, {Type: companyType, ID: 7}, {Type: companyType, ID: 8}} {
			assert.Equal(t,
				Check(original, key, orgCtx),
				Check(&decoded, key, orgCtx),
				"key=%s orgCtx=%v", key, orgCtx)
		}
	}
}

func TestErrorTaxonomy(t *testing.T) {
	forbidden := Forbidden("missing permission %s", "projects:create")
	assert.True(t, IsForbidden(forbidden))
	assert.Contains(t, forbidden.Error(), "projects:create")

	immutable := &ImmutableRoleError{RoleName: "ADMIN"}
	assert.True(t, IsImmutableRole(immutable))
	assert.False(t, IsForbidden(immutable))

	notFound := NotFound("role", 17)
	assert.True(t, IsNotFound(notFound))
	assert.Contains(t, notFound.Error(), "17")
}
