package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMappingEqual(t *testing.T) {
	a := NewMapping(1, 2, 3)
	b := NewMapping(3, 2, 1)
	c := NewMapping(1, 2)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, c.Equal(a))
}

func TestMappingSliceSorted(t *testing.T) {
	m := NewMapping(30, 10, 20)
	assert.Equal(t, []ID{10, 20, 30}, m.Slice())
}

func TestMappingSliceEmpty(t *testing.T) {
	var m Mapping
	assert.Equal(t, []ID{}, m.Slice())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "collection", KindCollection.String())
	assert.Equal(t, "field_element", KindFieldElement.String())
	assert.Equal(t, "unknown", Kind(999).String())
}

func TestAllKindsParentsBeforeChildren(t *testing.T) {
	order := AllKinds()
	pos := make(map[Kind]int, len(order))
	for i, k := range order {
		pos[k] = i
	}

	assert.Less(t, pos[KindCollection], pos[KindSchema])
	assert.Less(t, pos[KindSchema], pos[KindField])
	assert.Less(t, pos[KindField], pos[KindFieldElement])
	assert.Less(t, pos[KindPartition], pos[KindSegment])
	assert.Less(t, pos[KindSegment], pos[KindSegmentFile])
	assert.Less(t, pos[KindSchemaCommit], pos[KindCollectionCommit])
	assert.Less(t, pos[KindSegmentCommit], pos[KindCollectionCommit])
	assert.Less(t, pos[KindPartitionCommit], pos[KindCollectionCommit])
}

func TestStateStringAndParse(t *testing.T) {
	for _, s := range []State{StatePending, StateActive, StateDeactive} {
		parsed, ok := ParseState(s.String())
		assert.True(t, ok)
		assert.Equal(t, s, parsed)
	}

	_, ok := ParseState("NOT_A_STATE")
	assert.False(t, ok)
}

func TestStateMixinTransitions(t *testing.T) {
	var sm StateMixin
	assert.Equal(t, StatePending, sm.GetState())

	sm.Activate()
	assert.Equal(t, StateActive, sm.GetState())

	sm.Deactivate()
	assert.Equal(t, StateDeactive, sm.GetState())

	sm.ResetState()
	assert.Equal(t, StatePending, sm.GetState())
}

func TestResourceKindMethods(t *testing.T) {
	cases := []struct {
		kind Kind
		res  Resource
	}{
		{KindCollection, &Collection{}},
		{KindCollectionCommit, &CollectionCommit{}},
		{KindPartition, &Partition{}},
		{KindPartitionCommit, &PartitionCommit{}},
		{KindSegment, &Segment{}},
		{KindSegmentCommit, &SegmentCommit{}},
		{KindSegmentFile, &SegmentFile{}},
		{KindSchema, &Schema{}},
		{KindSchemaCommit, &SchemaCommit{}},
		{KindField, &Field{}},
		{KindFieldElement, &FieldElement{}},
	}

	for _, c := range cases {
		assert.Equal(t, c.kind, c.res.Kind())
	}
}

func TestNewConstructsExpectedConcreteType(t *testing.T) {
	for _, k := range AllKinds() {
		r := New(k)
		if assert.NotNil(t, r, "kind %v", k) {
			assert.Equal(t, k, r.Kind())
		}
	}

	assert.Nil(t, New(Kind(999)))
}
