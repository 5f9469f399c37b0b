package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatekeeper/pkg/catalog"
)

type fakeSource struct {
	rows map[UserID][]RoleGrant
	err  error
}

func (f *fakeSource) ActiveRoleGrants(_ context.Context, userID UserID) ([]RoleGrant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[userID], nil
}

func orgTypePtr(t OrgType) *OrgType { return &t }
func orgIDPtr(id OrgID) *OrgID      { return &id }

func TestResolverBuildsClaims(t *testing.T) {
	source := &fakeSource{rows: map[UserID][]RoleGrant{
		1: {
			{RoleID: 10, Grants: []catalog.Grant{"projects:read", "companies:read"}},
			{RoleID: 11, OrgType: orgTypePtr(companyType), OrgID: orgIDPtr(7), Grants: []catalog.Grant{"*"}},
			{RoleID: 12, OrgType: orgTypePtr(companyType), OrgID: orgIDPtr(8), Grants: []catalog.Grant{"projects:*"}},
		},
	}}

	claims, err := NewResolver(source).Resolve(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, UserID(1), claims.UserID)
	assert.True(t, claims.Global.Has("projects:read"))
	assert.True(t, claims.Global.Has("companies:read"))
	assert.True(t, claims.OrgGrants(companyType, 7).Has("*"))
	assert.True(t, claims.OrgGrants(companyType, 8).Has("projects:*"))
	assert.Nil(t, claims.OrgGrants(companyType, 9))
}

func TestResolverMergesGrantsAcrossRoles(t *testing.T) {
	source := &fakeSource{rows: map[UserID][]RoleGrant{
		1: {
			{RoleID: 10, OrgType: orgTypePtr(companyType), OrgID: orgIDPtr(7), Grants: []catalog.Grant{"projects:read"}},
			{RoleID: 11, OrgType: orgTypePtr(companyType), OrgID: orgIDPtr(7), Grants: []catalog.Grant{"projects:create", "projects:read"}},
		},
	}}

	claims, err := NewResolver(source).Resolve(context.Background(), 1)
	require.NoError(t, err)

	set := claims.OrgGrants(companyType, 7)
	assert.Len(t, set, 2)
	assert.True(t, set.Has("projects:read"))
	assert.True(t, set.Has("projects:create"))
}

func TestResolverNoRoles(t *testing.T) {
	claims, err := NewResolver(&fakeSource{}).Resolve(context.Background(), 99)
	require.NoError(t, err)

	assert.True(t, claims.Empty())
	assert.Empty(t, claims.Global)
	assert.Empty(t, claims.Organizations)
}

func TestResolverStoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	_, err := NewResolver(&fakeSource{err: storeErr}).Resolve(context.Background(), 1)

	require.Error(t, err)
	assert.True(t, IsResolutionError(err))
	assert.ErrorIs(t, err, storeErr)
}
