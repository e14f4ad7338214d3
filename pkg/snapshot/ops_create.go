package snapshot

import (
	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// NewBuildOperation constructs the operation that creates a brand new
// collection: a Collection, an empty Schema, an empty SchemaCommit, and
// the first CollectionCommit pointing at it. There is no base snapshot —
// this is the only operation that runs against an empty Holder. collID
// must already be allocated (via store.NextID) and match holder's
// collection ID, since the caller needs the ID before it can construct a
// Holder to run the operation against.
func NewBuildOperation(store storage.Store, holder *Holder, collID types.ID, name string, params []byte, requestID string) Operation {
	build := func(store storage.Store, base *Snapshot, now types.Timestamp) ([]*ResourceContext, error) {
		schemaID, err := store.NextID(types.KindSchema)
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

		collection := &types.Collection{RequestID: requestID}
		collection.SetID(collID)
		collection.SetName(name)
		collection.SetParams(params)
		collection.Activate()
		collection.SetCreatedOn(now)
		collection.SetUpdatedOn(now)

		schema := &types.Schema{RequestID: requestID}
		schema.SetID(schemaID)
		schema.SetCollectionID(collID)
		schema.SetName(name)
		schema.Activate()
		schema.SetCreatedOn(now)
		schema.SetUpdatedOn(now)

		schemaCommit := &types.SchemaCommit{RequestID: requestID}
		schemaCommit.SetID(schemaCommitID)
		schemaCommit.SetSchemaID(schemaID)
		schemaCommit.SetCollectionID(collID)
		schemaCommit.SetMappings(types.NewMapping())
		schemaCommit.Activate()
		schemaCommit.SetCreatedOn(now)
		schemaCommit.SetUpdatedOn(now)

		commit := &types.CollectionCommit{RequestID: requestID}
		commit.SetID(commitID)
		commit.SetCollectionID(collID)
		commit.SetSchemaID(schemaCommitID)
		commit.SetMappings(types.NewMapping())
		commit.Activate()
		commit.SetCreatedOn(now)
		commit.SetUpdatedOn(now)

		return []*ResourceContext{
			NewAddContext(collection),
			NewAddContext(schema),
			NewAddContext(schemaCommit),
			NewAddContext(commit),
		}, nil
	}

	return newBaseOperation("build_collection", store, holder, nil, requestID, build)
}

// NewCreatePartitionOperation adds a Partition to the collection together
// with its first, empty PartitionCommit, and advances the commit chain with
// a new CollectionCommit whose mappings add that PartitionCommit.
func NewCreatePartitionOperation(store storage.Store, holder *Holder, base *Snapshot, name, requestID string) Operation {
	build := func(store storage.Store, base *Snapshot, now types.Timestamp) ([]*ResourceContext, error) {
		partitionID, err := store.NextID(types.KindPartition)
		if err != nil {
			return nil, err
		}
		partitionCommitID, err := store.NextID(types.KindPartitionCommit)
		if err != nil {
			return nil, err
		}
		commitID, err := store.NextID(types.KindCollectionCommit)
		if err != nil {
			return nil, err
		}

		partition := &types.Partition{RequestID: requestID}
		partition.SetID(partitionID)
		partition.SetCollectionID(base.CollectionID)
		partition.SetName(name)
		partition.Activate()
		partition.SetCreatedOn(now)
		partition.SetUpdatedOn(now)

		partitionCommit := &types.PartitionCommit{RequestID: requestID}
		partitionCommit.SetID(partitionCommitID)
		partitionCommit.SetPartitionID(partitionID)
		partitionCommit.SetMappings(types.NewMapping())
		partitionCommit.Activate()
		partitionCommit.SetCreatedOn(now)
		partitionCommit.SetUpdatedOn(now)

		mappings := base.Commit.GetMappings()
		newMappings := types.NewMapping(append(mappings.Slice(), partitionCommitID)...)

		commit := cloneCollectionCommit(base.Commit, commitID, now)
		commit.SetMappings(newMappings)

		return []*ResourceContext{
			NewAddContext(partition),
			NewAddContext(partitionCommit),
			deactivatePriorCommit(base.Commit),
			NewAddContext(commit),
		}, nil
	}

	return newBaseOperation("create_partition", store, holder, base, requestID, build)
}

// deactivatePriorCommit marks a superseded CollectionCommit DEACTIVE. The
// row is kept, not removed — GetInactiveResources picks it up later for
// the orphan sweep once nothing still references it.
func deactivatePriorCommit(prior *types.CollectionCommit) *ResourceContext {
	return NewDeactivateContext(prior)
}

// cloneCollectionCommit returns a new CollectionCommit carrying forward
// prior's fields, stamped with a fresh ID and timestamp. Every operation
// that advances a collection's snapshot does so by cloning its base
// CollectionCommit and overwriting only the fields it actually changes —
// the new commit supersedes prior as the holder's active snapshot once
// the write batch lands.
func cloneCollectionCommit(prior *types.CollectionCommit, newID types.ID, now types.Timestamp) *types.CollectionCommit {
	c := &types.CollectionCommit{RequestID: prior.RequestID}
	c.SetID(newID)
	c.SetCollectionID(prior.GetCollectionID())
	c.SetSchemaID(prior.GetSchemaID())
	c.SetMappings(prior.GetMappings())
	c.SetLSN(prior.GetLSN())
	c.SetSize(prior.GetSize())
	c.SetRowCount(prior.GetRowCount())
	c.Activate()
	c.SetCreatedOn(now)
	c.SetUpdatedOn(now)
	return c
}
