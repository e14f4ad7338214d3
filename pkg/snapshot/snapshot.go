// Package snapshot implements the versioning core of the engine: the
// immutable Snapshot closure, the ResourceContext/Operation machinery that
// produces new snapshots, and the per-collection Holder that caches and
// evicts them.
package snapshot

import (
	"sync/atomic"

	"github.com/cuemby/snapmeta/pkg/types"
)

// Snapshot is an immutable, fully-hydrated point-in-time view of a
// collection: its CollectionCommit plus the transitive closure of
// partitions, segments, files, schema, and fields that commit's mappings
// reach. Snapshots never change in place — a mutation always produces a
// new Snapshot with a new CollectionCommit ID.
type Snapshot struct {
	ID           types.ID
	CollectionID types.ID

	Collection *types.Collection
	Commit     *types.CollectionCommit

	Schema       *types.Schema
	SchemaCommit *types.SchemaCommit
	Fields       map[types.ID]*types.Field
	FieldElements map[types.ID]*types.FieldElement

	Partitions       map[types.ID]*types.Partition
	PartitionCommits map[types.ID]*types.PartitionCommit
	Segments         map[types.ID]*types.Segment
	SegmentCommits   map[types.ID]*types.SegmentCommit
	SegmentFiles     map[types.ID]*types.SegmentFile

	refCount int64
}

// UpdatedOn returns the commit's freshness timestamp, used to decide
// whether a newly loaded snapshot should become the holder's active one.
func (s *Snapshot) UpdatedOn() types.Timestamp {
	return s.Commit.GetUpdatedOn()
}

// RefCount returns the current pin count. Used by SnapshotPolicy
// implementations to veto eviction.
func (s *Snapshot) RefCount() int64 {
	return atomic.LoadInt64(&s.refCount)
}

func (s *Snapshot) ref() int64 {
	return atomic.AddInt64(&s.refCount, 1)
}

func (s *Snapshot) unref() int64 {
	return atomic.AddInt64(&s.refCount, -1)
}

// ScopedSnapshot is a ref-counting handle on a Snapshot. Obtaining one pins
// the snapshot against eviction until Release is called; Release must be
// called exactly once per ScopedSnapshot obtained, since every call
// decrements the refcount again.
type ScopedSnapshot struct {
	snap   *Snapshot
	holder *Holder
}

// Snapshot returns the pinned snapshot. Valid until Release is called.
func (h *ScopedSnapshot) Snapshot() *Snapshot {
	return h.snap
}

// Release decrements the snapshot's refcount. The holder's next ApplyEject
// pass may reclaim the snapshot once its refcount reaches zero and the
// policy admits it.
func (h *ScopedSnapshot) Release() {
	h.snap.unref()
}

func newScopedSnapshot(holder *Holder, snap *Snapshot) *ScopedSnapshot {
	snap.ref()
	return &ScopedSnapshot{snap: snap, holder: holder}
}
