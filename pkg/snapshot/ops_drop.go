package snapshot

import (
	"fmt"

	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// DropPartitionOperation deactivates a Partition and its active
// PartitionCommit, removes that PartitionCommit from the collection
// commit's mappings, and advances the commit chain. Segments, segment
// commits and segment files under the partition are not deactivated: they
// keep their stored state and stay reachable only from the superseded
// commit tree, and the orphan sweep, which removes only DEACTIVE rows,
// does not remove them.
func DropPartitionOperation(store storage.Store, holder *Holder, base *Snapshot, partitionID types.ID, requestID string) Operation {
	build := func(store storage.Store, base *Snapshot, now types.Timestamp) ([]*ResourceContext, error) {
		partition, ok := base.Partitions[partitionID]
		if !ok {
			return nil, fmt.Errorf("%w: partition %d", ErrNotFound, partitionID)
		}
		partitionCommit, err := activePartitionCommitFor(base, partitionID)
		if err != nil {
			return nil, err
		}

		commitID, err := store.NextID(types.KindCollectionCommit)
		if err != nil {
			return nil, err
		}

		ids := make([]types.ID, 0, len(base.Commit.GetMappings()))
		for id := range base.Commit.GetMappings() {
			if id == partitionCommit.GetID() {
				continue
			}
			ids = append(ids, id)
		}

		commit := cloneCollectionCommit(base.Commit, commitID, now)
		commit.SetMappings(types.NewMapping(ids...))

		return []*ResourceContext{
			NewDeactivateContext(partition),
			NewDeactivateContext(partitionCommit),
			deactivatePriorCommit(base.Commit),
			NewAddContext(commit),
		}, nil
	}

	return newBaseOperation("drop_partition", store, holder, base, requestID, build)
}

// DropCollectionOperation deactivates the Collection itself. The holder
// keeps serving its last active snapshot to anyone holding a ScopedSnapshot
// already, but the registry removes the collection from GetCollectionIds
// and stops routing new operations to it once this commits.
func DropCollectionOperation(store storage.Store, holder *Holder, base *Snapshot, requestID string) Operation {
	build := func(store storage.Store, base *Snapshot, now types.Timestamp) ([]*ResourceContext, error) {
		collection := base.Collection
		commitID, err := store.NextID(types.KindCollectionCommit)
		if err != nil {
			return nil, err
		}

		commit := cloneCollectionCommit(base.Commit, commitID, now)

		return []*ResourceContext{
			NewDeactivateContext(collection),
			deactivatePriorCommit(base.Commit),
			NewAddContext(commit),
		}, nil
	}

	return newBaseOperation("drop_collection", store, holder, base, requestID, build)
}
