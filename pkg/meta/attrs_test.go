package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

func TestResourceToAttrMapRoundTrip(t *testing.T) {
	cc := &types.CollectionCommit{RequestID: "req-1"}
	cc.SetID(7)
	cc.SetCollectionID(3)
	cc.SetSchemaID(11)
	cc.SetMappings(types.NewMapping(101, 102, 103))
	cc.SetLSN(42)
	cc.SetSize(2048)
	cc.SetRowCount(16)
	cc.Activate()
	cc.SetCreatedOn(1000)
	cc.SetUpdatedOn(2000)

	attrs, err := ResourceToAttrMap(cc)
	require.NoError(t, err)
	assert.Equal(t, "7", attrs["id"])
	assert.Equal(t, "ACTIVE", attrs["state"])

	decoded := &types.CollectionCommit{}
	require.NoError(t, AttrMapToResource(attrs, decoded))

	assert.Equal(t, cc.GetID(), decoded.GetID())
	assert.Equal(t, cc.GetCollectionID(), decoded.GetCollectionID())
	assert.Equal(t, cc.GetSchemaID(), decoded.GetSchemaID())
	assert.True(t, cc.GetMappings().Equal(decoded.GetMappings()))
	assert.Equal(t, cc.GetLSN(), decoded.GetLSN())
	assert.Equal(t, cc.GetSize(), decoded.GetSize())
	assert.Equal(t, cc.GetRowCount(), decoded.GetRowCount())
	assert.Equal(t, cc.GetState(), decoded.GetState())
	assert.Equal(t, cc.GetCreatedOn(), decoded.GetCreatedOn())
	assert.Equal(t, cc.GetUpdatedOn(), decoded.GetUpdatedOn())
}

func TestAttrMapToResourcePartialUpdate(t *testing.T) {
	p := &types.Partition{}
	p.SetID(1)
	p.SetCollectionID(5)
	p.SetName("p0")
	p.Activate()

	require.NoError(t, AttrMapToResource(storage.AttrMap{"name": "p0-renamed"}, p))
	assert.Equal(t, "p0-renamed", p.GetName())
	assert.Equal(t, types.ID(1), p.GetID())
	assert.Equal(t, types.StateActive, p.GetState())
}

func TestAttrMapToResourceUnknownAttribute(t *testing.T) {
	col := &types.Collection{}
	err := AttrMapToResource(storage.AttrMap{"not_a_real_attr": "x"}, col)
	assert.ErrorIs(t, err, ErrUnknownAttribute)
}

func TestAttrMapToResourceMalformedID(t *testing.T) {
	col := &types.Collection{}
	err := AttrMapToResource(storage.AttrMap{"id": "not-a-number"}, col)
	assert.ErrorIs(t, err, ErrMalformedAttribute)
}

type fakeResource struct{}

func (fakeResource) Kind() types.Kind { return types.Kind(255) }

func TestResourceToAttrMapUnknownKind(t *testing.T) {
	_, err := ResourceToAttrMap(fakeResource{})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestResourceAttrsOfEveryKind(t *testing.T) {
	for _, k := range types.AllKinds() {
		attrs, err := ResourceAttrsOf(k)
		require.NoErrorf(t, err, "kind %v", k)
		assert.NotEmpty(t, attrs)
	}
}
