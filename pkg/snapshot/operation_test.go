package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

func openTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// buildTestCollection runs NewBuildOperation against a fresh holder and
// returns the holder plus the resulting base snapshot, for tests that need
// a seeded collection to operate on.
func buildTestCollection(t *testing.T, store storage.Store, name string) (*Holder, *Snapshot) {
	t.Helper()

	collID, err := store.NextID(types.KindCollection)
	require.NoError(t, err)

	holder := NewHolder(collID, ActiveOnlyPolicy{})
	op := NewBuildOperation(store, holder, collID, name, []byte(`{}`), "req-build")
	require.NoError(t, op.Push())

	scoped, err := op.GetSnapshot()
	require.NoError(t, err)
	defer scoped.Release()
	return holder, scoped.Snapshot()
}

func TestBuildOperationCreatesCollectionClosure(t *testing.T) {
	store := openTestStore(t)
	_, base := buildTestCollection(t, store, "widgets")

	assert.Equal(t, "widgets", base.Collection.GetName())
	assert.Equal(t, types.StateActive, base.Commit.GetState())
	assert.Empty(t, base.Commit.GetMappings())
	assert.NotNil(t, base.Schema)
	assert.NotNil(t, base.SchemaCommit)
}

func TestCreatePartitionOperationAdvancesSnapshot(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")

	op := NewCreatePartitionOperation(store, holder, base, "p0", "req-partition")
	require.NoError(t, op.Push())

	scoped, err := op.GetSnapshot()
	require.NoError(t, err)
	defer scoped.Release()

	next := scoped.Snapshot()
	assert.NotEqual(t, base.ID, next.ID)
	assert.Len(t, next.Partitions, 1)
	assert.Len(t, next.Commit.GetMappings(), 1)

	for _, p := range next.Partitions {
		assert.Equal(t, "p0", p.GetName())
		assert.Equal(t, base.CollectionID, p.GetCollectionID())
	}

	// the prior commit is superseded but still readable, just DEACTIVE.
	pinned, err := holder.Load(store, base.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateDeactive, pinned.Commit.GetState())
}

func TestOperationRejectsStaleBase(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")

	first := NewCreatePartitionOperation(store, holder, base, "p0", "req-1")
	require.NoError(t, first.Push())

	// base is now stale: the holder's active snapshot moved on.
	second := NewCreatePartitionOperation(store, holder, base, "p1", "req-2")
	err := second.Push()
	assert.ErrorIs(t, err, ErrStaleSnapshot)

	_, err = second.GetSnapshot()
	assert.ErrorIs(t, err, ErrStaleSnapshot)
}

func TestGetSnapshotBeforePushReturnsNotFound(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")

	op := NewCreatePartitionOperation(store, holder, base, "p0", "req-1")
	_, err := op.GetSnapshot()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHolderGetRejectsNonActiveID(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")

	op := NewCreatePartitionOperation(store, holder, base, "p0", "req-1")
	require.NoError(t, op.Push())

	_, err := holder.Get(base.ID)
	assert.ErrorIs(t, err, ErrNotActive)

	scoped, err := holder.Get(0)
	require.NoError(t, err)
	defer scoped.Release()
	assert.NotEqual(t, base.ID, scoped.Snapshot().ID)
}

func TestApplyEjectActiveOnlyPolicyKeepsActiveAndPinned(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")

	pinned, err := holder.Load(store, base.ID)
	require.NoError(t, err)
	scoped := newScopedSnapshot(holder, pinned)

	op := NewCreatePartitionOperation(store, holder, base, "p0", "req-1")
	require.NoError(t, op.Push())

	require.NoError(t, holder.ApplyEject())
	assert.Equal(t, 2, holder.NumOfSnapshot(), "active + pinned prior snapshot both survive")

	scoped.Release()
	require.NoError(t, holder.ApplyEject())
	assert.Equal(t, 1, holder.NumOfSnapshot(), "unpinned prior snapshot is ejected")
}

func TestApplyEjectEmptyHolderAfterDrop(t *testing.T) {
	holder := NewHolder(1, ActiveOnlyPolicy{})
	err := holder.ApplyEject()
	assert.ErrorIs(t, err, ErrEmptyHolder)
}

func TestRetainNPolicyKeepsMostRecent(t *testing.T) {
	older := &Snapshot{Commit: &types.CollectionCommit{}}
	older.Commit.SetUpdatedOn(100)
	newer := &Snapshot{Commit: &types.CollectionCommit{}}
	newer.Commit.SetUpdatedOn(200)

	policy := RetainNPolicy{N: 1}
	evict := policy.Evictable(map[types.ID]*Snapshot{1: older, 2: newer})
	assert.Equal(t, []types.ID{1}, evict)
}

func TestScopedSnapshotRefCounting(t *testing.T) {
	store := openTestStore(t)
	holder, base := buildTestCollection(t, store, "widgets")

	pinned, err := holder.Load(store, base.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pinned.RefCount())

	scoped := newScopedSnapshot(holder, pinned)
	assert.Equal(t, int64(1), pinned.RefCount())

	scoped.Release()
	assert.Equal(t, int64(0), pinned.RefCount())
}
