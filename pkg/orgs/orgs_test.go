package orgs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
)

const companyType = authz.OrgType("company")

// fakeAdapter serves a fixed set of organizations.
type fakeAdapter struct {
	uuids   map[authz.OrgID]string
	members map[authz.UserID]map[authz.OrgID]bool
	err     error
	calls   int
}

func (a *fakeAdapter) OrganizationUUID(_ context.Context, orgID authz.OrgID) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return a.uuids[orgID], nil
}

func (a *fakeAdapter) IsMember(_ context.Context, userID authz.UserID, orgID authz.OrgID) (bool, error) {
	if a.err != nil {
		return false, a.err
	}
	return a.members[userID][orgID], nil
}

// batchAdapter adds the one-round-trip UUID path.
type batchAdapter struct {
	fakeAdapter
	batchCalls int
}

func (a *batchAdapter) OrganizationUUIDs(_ context.Context, orgIDs []authz.OrgID) (map[authz.OrgID]string, error) {
	a.batchCalls++
	if a.err != nil {
		return nil, a.err
	}
	uuids := make(map[authz.OrgID]string)
	for _, orgID := range orgIDs {
		if uuid, ok := a.uuids[orgID]; ok {
			uuids[orgID] = uuid
		}
	}
	return uuids, nil
}

func TestUnknownTypeDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()

	uuid, err := registry.OrganizationUUID(ctx, "ghost", 1)
	require.NoError(t, err)
	assert.Empty(t, uuid)

	uuids, err := registry.OrganizationUUIDs(ctx, "ghost", []authz.OrgID{1, 2})
	require.NoError(t, err)
	assert.Empty(t, uuids)

	ok, err := registry.IsMember(ctx, 1, "ghost", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistryDelegation(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	adapter := &fakeAdapter{
		uuids:   map[authz.OrgID]string{7: "uuid-7"},
		members: map[authz.UserID]map[authz.OrgID]bool{1: {7: true}},
	}
	registry.Register(companyType, adapter)

	uuid, err := registry.OrganizationUUID(ctx, companyType, 7)
	require.NoError(t, err)
	assert.Equal(t, "uuid-7", uuid)

	uuid, err = registry.OrganizationUUID(ctx, companyType, 99)
	require.NoError(t, err)
	assert.Empty(t, uuid, "unknown organization yields empty uuid")

	ok, err := registry.IsMember(ctx, 1, companyType, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = registry.IsMember(ctx, 2, companyType, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBatchFallbackMapsOverSingular(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	adapter := &fakeAdapter{uuids: map[authz.OrgID]string{7: "uuid-7", 8: "uuid-8"}}
	registry.Register(companyType, adapter)

	uuids, err := registry.OrganizationUUIDs(ctx, companyType, []authz.OrgID{7, 8, 99})
	require.NoError(t, err)
	assert.Equal(t, map[authz.OrgID]string{7: "uuid-7", 8: "uuid-8"}, uuids)
	assert.Equal(t, 3, adapter.calls, "non-batch adapters are called per id")
}

func TestBatchAdapterUsedWhenAvailable(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	adapter := &batchAdapter{fakeAdapter: fakeAdapter{
		uuids: map[authz.OrgID]string{7: "uuid-7", 8: "uuid-8"},
	}}
	registry.Register(companyType, adapter)

	uuids, err := registry.OrganizationUUIDs(ctx, companyType, []authz.OrgID{7, 8})
	require.NoError(t, err)
	assert.Len(t, uuids, 2)
	assert.Equal(t, 1, adapter.batchCalls)
	assert.Zero(t, adapter.calls, "batch path skips per-id lookups")
}

func TestAdapterErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	registry.Register(companyType, &fakeAdapter{err: errors.New("upstream down")})

	_, err := registry.OrganizationUUID(ctx, companyType, 7)
	assert.Error(t, err)
	_, err = registry.OrganizationUUIDs(ctx, companyType, []authz.OrgID{7})
	assert.Error(t, err)
	_, err = registry.IsMember(ctx, 1, companyType, 7)
	assert.Error(t, err)
}

// resolverAdapter adds the UUID-to-id path.
type resolverAdapter struct {
	fakeAdapter
	ids map[string]authz.OrgID
}

func (a *resolverAdapter) OrganizationIDByUUID(_ context.Context, orgUUID string) (authz.OrgID, bool, error) {
	id, ok := a.ids[orgUUID]
	return id, ok, nil
}

func TestOrganizationIDByUUID(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()

	// Adapter without UUID resolution degrades to not-found.
	registry.Register(companyType, &fakeAdapter{})
	_, ok, err := registry.OrganizationIDByUUID(ctx, companyType, "uuid-7")
	require.NoError(t, err)
	assert.False(t, ok)

	registry.Register(companyType, &resolverAdapter{ids: map[string]authz.OrgID{"uuid-7": 7}})
	id, ok, err := registry.OrganizationIDByUUID(ctx, companyType, "uuid-7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, authz.OrgID(7), id)

	_, ok, err = registry.OrganizationIDByUUID(ctx, companyType, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = registry.OrganizationIDByUUID(ctx, "ghost", "uuid-7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterReplacesAndLists(t *testing.T) {
	registry := NewRegistry()
	first := &fakeAdapter{uuids: map[authz.OrgID]string{1: "first"}}
	second := &fakeAdapter{uuids: map[authz.OrgID]string{1: "second"}}
	registry.Register(companyType, first)
	registry.Register(companyType, second)

	uuid, err := registry.OrganizationUUID(context.Background(), companyType, 1)
	require.NoError(t, err)
	assert.Equal(t, "second", uuid)

	types := registry.Types()
	require.Len(t, types, 1)
	assert.Equal(t, fmt.Sprint(companyType), fmt.Sprint(types[0]))
}
