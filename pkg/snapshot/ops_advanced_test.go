package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// addFieldToCollection seeds a Field under base's schema the way a real
// "add field" operation would, were one exposed: no constructor for it
// exists in this package (only AddFieldElementOperation, which requires an
// existing Field), so tests that need one build it directly through the
// same ResourceContext/baseOperation machinery the real operations use.
func addFieldToCollection(t *testing.T, store storage.Store, holder *Holder, base *Snapshot, name string) *Snapshot {
	t.Helper()

	build := func(store storage.Store, base *Snapshot, now types.Timestamp) ([]*ResourceContext, error) {
		fieldID, err := store.NextID(types.KindField)
		if err != nil {
			return nil, err
		}
		schemaCommitID, err := store.NextID(types.KindSchemaCommit)
		if err != nil {
			return nil, err
		}
		commitID, err := store.NextID(types.KindCollectionCommit)
		if err != nil {
			return nil, err
		}

		field := &types.Field{RequestID: "req-add-field"}
		field.SetID(fieldID)
		field.SetCollectionID(base.CollectionID)
		field.SetSchemaID(base.SchemaCommit.GetSchemaID())
		field.SetName(name)
		field.SetMappings(types.NewMapping())
		field.Activate()
		field.SetCreatedOn(now)
		field.SetUpdatedOn(now)

		newSchemaCommit := &types.SchemaCommit{RequestID: "req-add-field"}
		newSchemaCommit.SetID(schemaCommitID)
		newSchemaCommit.SetSchemaID(base.SchemaCommit.GetSchemaID())
		newSchemaCommit.SetCollectionID(base.CollectionID)
		newSchemaCommit.SetMappings(types.NewMapping(fieldID))
		newSchemaCommit.Activate()
		newSchemaCommit.SetCreatedOn(now)
		newSchemaCommit.SetUpdatedOn(now)

		commit := cloneCollectionCommit(base.Commit, commitID, now)
		commit.SetSchemaID(schemaCommitID)

		return []*ResourceContext{
			NewAddContext(field),
			NewAddContext(newSchemaCommit),
			NewDeactivateContext(base.SchemaCommit),
			deactivatePriorCommit(base.Commit),
			NewAddContext(commit),
		}, nil
	}

	op := newBaseOperation("test_add_field", store, holder, base, "req-add-field", build)
	require.NoError(t, op.Push())
	scoped, err := op.GetSnapshot()
	require.NoError(t, err)
	defer scoped.Release()
	return scoped.Snapshot()
}

func TestAddFieldElementOperationAppendsToField(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")
	base = addFieldToCollection(t, store, holder, base, "vector")

	var fieldID types.ID
	for id := range base.Fields {
		fieldID = id
	}

	op := AddFieldElementOperation(store, holder, base, fieldID, "vector_idx", "hnsw", types.FieldElementTypeIndex, "req-fe")
	require.NoError(t, op.Push())

	scoped, err := op.GetSnapshot()
	require.NoError(t, err)
	defer scoped.Release()
	next := scoped.Snapshot()

	require.Len(t, next.Fields, 1)
	for _, f := range next.Fields {
		assert.Equal(t, "vector", f.GetName())
		assert.Len(t, f.GetMappings(), 1)
	}
	require.Len(t, next.FieldElements, 1)
	for _, fe := range next.FieldElements {
		assert.Equal(t, "vector_idx", fe.GetName())
		assert.Equal(t, types.FieldElementTypeIndex, fe.GetFEType())
	}
}

func TestAddFieldElementOperationUnknownFieldReturnsNotFound(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")

	op := AddFieldElementOperation(store, holder, base, 99999, "x", "y", types.FieldElementTypeRaw, "req-fe")
	err := op.Push()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDropAllIndexOperationRemovesOnlyIndexElements(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")
	base = addFieldToCollection(t, store, holder, base, "vector")

	var fieldID types.ID
	for id := range base.Fields {
		fieldID = id
	}

	addIdx := AddFieldElementOperation(store, holder, base, fieldID, "idx", "hnsw", types.FieldElementTypeIndex, "req-idx")
	require.NoError(t, addIdx.Push())
	scoped, err := addIdx.GetSnapshot()
	require.NoError(t, err)
	base = scoped.Snapshot()
	for id := range base.Fields {
		fieldID = id
	}
	scoped.Release()

	addRaw := AddFieldElementOperation(store, holder, base, fieldID, "raw", "bytes", types.FieldElementTypeRaw, "req-raw")
	require.NoError(t, addRaw.Push())
	scoped, err = addRaw.GetSnapshot()
	require.NoError(t, err)
	base = scoped.Snapshot()
	for id := range base.Fields {
		fieldID = id
	}
	scoped.Release()

	require.Len(t, base.FieldElements, 2)

	drop := DropAllIndexOperation(store, holder, base, fieldID, "req-drop")
	require.NoError(t, drop.Push())
	scoped, err = drop.GetSnapshot()
	require.NoError(t, err)
	defer scoped.Release()
	next := scoped.Snapshot()

	require.Len(t, next.FieldElements, 1)
	for _, fe := range next.FieldElements {
		assert.Equal(t, "raw", fe.GetName())
	}
}

func buildTestPartition(t *testing.T, store storage.Store, holder *Holder, base *Snapshot, name string) (*Snapshot, types.ID) {
	t.Helper()
	op := NewCreatePartitionOperation(store, holder, base, name, "req-partition")
	require.NoError(t, op.Push())
	scoped, err := op.GetSnapshot()
	require.NoError(t, err)
	defer scoped.Release()
	next := scoped.Snapshot()

	var partitionID types.ID
	for id := range next.Partitions {
		partitionID = id
	}
	return next, partitionID
}

func TestNewSegmentOperationAddsSegmentUnderPartition(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")
	base, partitionID := buildTestPartition(t, store, holder, base, "p0")

	op := NewSegmentOperation(store, holder, base, partitionID, "req-seg")
	require.NoError(t, op.Push())

	scoped, err := op.GetSnapshot()
	require.NoError(t, err)
	defer scoped.Release()
	next := scoped.Snapshot()

	require.Len(t, next.Segments, 1)
	for _, s := range next.Segments {
		assert.Equal(t, partitionID, s.GetPartitionID())
	}
	require.Len(t, next.SegmentCommits, 1)
}

func buildTestSegment(t *testing.T, store storage.Store, holder *Holder, base *Snapshot, partitionID types.ID) (*Snapshot, types.ID) {
	t.Helper()
	op := NewSegmentOperation(store, holder, base, partitionID, "req-seg")
	require.NoError(t, op.Push())
	scoped, err := op.GetSnapshot()
	require.NoError(t, err)
	defer scoped.Release()
	next := scoped.Snapshot()

	var segmentID types.ID
	for id := range next.Segments {
		segmentID = id
	}
	return next, segmentID
}

func TestNewSegmentFileOperationAccumulatesSizeAndRowCount(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")
	base, partitionID := buildTestPartition(t, store, holder, base, "p0")
	base, segmentID := buildTestSegment(t, store, holder, base, partitionID)

	op := NewSegmentFileOperation(store, holder, base, segmentID, 0, types.FieldElementTypeRaw, 1024, 10, "req-file")
	require.NoError(t, op.Push())

	scoped, err := op.GetSnapshot()
	require.NoError(t, err)
	defer scoped.Release()
	next := scoped.Snapshot()

	require.Len(t, next.SegmentFiles, 1)
	for _, sc := range next.SegmentCommits {
		assert.Equal(t, uint64(1024), sc.GetSize())
		assert.Equal(t, uint64(10), sc.GetRowCount())
	}
	assert.Equal(t, uint64(1024), next.Commit.GetSize())
	assert.Equal(t, uint64(10), next.Commit.GetRowCount())
}

func TestNewSegmentFileOperationUnknownSegmentReturnsNotFound(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")
	base, partitionID := buildTestPartition(t, store, holder, base, "p0")

	op := NewSegmentFileOperation(store, holder, base, 99999, 0, types.FieldElementTypeRaw, 1, 1, "req-file")
	err := op.Push()
	assert.ErrorIs(t, err, ErrNotFound)
	_ = partitionID
}

func TestCompactOperationReplacesSegmentCommit(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")
	base, partitionID := buildTestPartition(t, store, holder, base, "p0")
	base, segmentID := buildTestSegment(t, store, holder, base, partitionID)

	addFile := NewSegmentFileOperation(store, holder, base, segmentID, 0, types.FieldElementTypeRaw, 1024, 10, "req-file")
	require.NoError(t, addFile.Push())
	scoped, err := addFile.GetSnapshot()
	require.NoError(t, err)
	base = scoped.Snapshot()
	var survivingFileID types.ID
	for id := range base.SegmentFiles {
		survivingFileID = id
	}
	scoped.Release()

	op := CompactOperation(store, holder, base, segmentID, []types.ID{survivingFileID}, 512, 5, "req-compact")
	require.NoError(t, op.Push())

	scoped, err = op.GetSnapshot()
	require.NoError(t, err)
	defer scoped.Release()
	next := scoped.Snapshot()

	require.Len(t, next.SegmentCommits, 1)
	for _, sc := range next.SegmentCommits {
		assert.Equal(t, uint64(512), sc.GetSize())
		assert.Equal(t, uint64(5), sc.GetRowCount())
		assert.Equal(t, types.NewMapping(survivingFileID), sc.GetMappings())
	}
	assert.Equal(t, uint64(512), next.Commit.GetSize())
	assert.Equal(t, uint64(5), next.Commit.GetRowCount())
}

func TestMergeOperationRetiresSourceSegments(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")
	base, partitionID := buildTestPartition(t, store, holder, base, "p0")
	base, segA := buildTestSegment(t, store, holder, base, partitionID)

	opB := NewSegmentOperation(store, holder, base, partitionID, "req-seg-b")
	require.NoError(t, opB.Push())
	scoped, err := opB.GetSnapshot()
	require.NoError(t, err)
	base = scoped.Snapshot()
	var segB types.ID
	for id := range base.Segments {
		if id != segA {
			segB = id
		}
	}
	scoped.Release()

	op := MergeOperation(store, holder, base, partitionID, []types.ID{segA, segB}, 2048, 20, "req-merge")
	require.NoError(t, op.Push())

	scoped, err = op.GetSnapshot()
	require.NoError(t, err)
	defer scoped.Release()
	next := scoped.Snapshot()

	require.Len(t, next.Segments, 1)
	for id, s := range next.Segments {
		assert.NotEqual(t, segA, id)
		assert.NotEqual(t, segB, id)
		assert.Equal(t, partitionID, s.GetPartitionID())
	}
}
