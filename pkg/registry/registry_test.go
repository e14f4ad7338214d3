package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/snapmeta/pkg/config"
	"github.com/cuemby/snapmeta/pkg/snapshot"
	"github.com/cuemby/snapmeta/pkg/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		ReaderTimerIntervalUS: config.DefaultReaderTimerIntervalUS,
		WriterTimerIntervalUS: config.DefaultWriterTimerIntervalUS,
	}
	return New(cfg, store, snapshot.ActiveOnlyPolicy{})
}

func TestCreateCollectionRegistersHolder(t *testing.T) {
	r := newTestRegistry(t)

	scoped, err := r.CreateCollection("widgets", []byte(`{}`), "req-1")
	require.NoError(t, err)
	defer scoped.Release()

	assert.Equal(t, "widgets", scoped.Snapshot().Collection.GetName())
	assert.Contains(t, r.GetCollectionIds(), scoped.Snapshot().CollectionID)
	assert.Contains(t, r.GetCollectionNames(), "widgets")

	ids, err := r.ResolveName("widgets")
	require.NoError(t, err)
	assert.Equal(t, []int64{scoped.Snapshot().CollectionID}, ids)
}

func TestGetSnapshotUnknownCollection(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.GetSnapshot(999, 0)
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestResolveNameUnknown(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.ResolveName("nonexistent")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestSubmitCreatesPartitionThroughExecutor(t *testing.T) {
	r := newTestRegistry(t)

	scoped, err := r.CreateCollection("widgets", []byte(`{}`), "req-1")
	require.NoError(t, err)
	cid := scoped.Snapshot().CollectionID
	scoped.Release()

	holder, err := r.Holder(cid)
	require.NoError(t, err)
	base, err := r.BaseSnapshot(cid)
	require.NoError(t, err)

	op := snapshot.NewCreatePartitionOperation(r.Store(), holder, base, "p0", "req-2")
	require.NoError(t, r.Submit(cid, op))

	updated, err := r.GetSnapshot(cid, 0)
	require.NoError(t, err)
	defer updated.Release()
	assert.Len(t, updated.Snapshot().Partitions, 1)
}

func TestDropPartitionAdvancesSnapshot(t *testing.T) {
	r := newTestRegistry(t)

	scoped, err := r.CreateCollection("widgets", []byte(`{}`), "req-1")
	require.NoError(t, err)
	cid := scoped.Snapshot().CollectionID
	scoped.Release()

	holder, err := r.Holder(cid)
	require.NoError(t, err)
	base, err := r.BaseSnapshot(cid)
	require.NoError(t, err)
	op := snapshot.NewCreatePartitionOperation(r.Store(), holder, base, "p0", "req-2")
	require.NoError(t, r.Submit(cid, op))

	var partitionID int64
	created, err := r.GetSnapshot(cid, 0)
	require.NoError(t, err)
	for id := range created.Snapshot().Partitions {
		partitionID = id
	}
	created.Release()

	require.NoError(t, r.DropPartition(cid, partitionID, "req-3"))

	after, err := r.GetSnapshot(cid, 0)
	require.NoError(t, err)
	defer after.Release()
	assert.Empty(t, after.Snapshot().Partitions)
}

func TestDropCollectionMovesHolderToInactive(t *testing.T) {
	r := newTestRegistry(t)

	scoped, err := r.CreateCollection("widgets", []byte(`{}`), "req-1")
	require.NoError(t, err)
	cid := scoped.Snapshot().CollectionID
	scoped.Release()

	require.NoError(t, r.DropCollection(cid, "req-2"))

	assert.NotContains(t, r.GetCollectionIds(), cid)
	_, err = r.GetSnapshot(cid, 0)
	assert.ErrorIs(t, err, ErrUnknownCollection)

	r.inactiveMu.Lock()
	_, ok := r.inactiveHolders[cid]
	r.inactiveMu.Unlock()
	assert.True(t, ok, "dropped holder should be retained for the writer timer to drain")
}

func TestInitWarmLoadsExistingCollections(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	cfg := &config.Config{
		ReaderTimerIntervalUS: config.DefaultReaderTimerIntervalUS,
		WriterTimerIntervalUS: config.DefaultWriterTimerIntervalUS,
	}
	seed := New(cfg, store, snapshot.ActiveOnlyPolicy{})
	scoped, err := seed.CreateCollection("widgets", []byte(`{}`), "req-1")
	require.NoError(t, err)
	cid := scoped.Snapshot().CollectionID
	scoped.Release()

	r := New(cfg, store, snapshot.ActiveOnlyPolicy{})
	require.NoError(t, r.Init())

	assert.Contains(t, r.GetCollectionIds(), cid)
	got, err := r.GetSnapshot(cid, 0)
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, "widgets", got.Snapshot().Collection.GetName())
}
