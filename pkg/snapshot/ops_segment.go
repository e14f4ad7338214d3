package snapshot

import (
	"fmt"

	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// NewSegmentOperation creates a Segment plus its first SegmentCommit under
// partitionID, folding the new SegmentCommit into that partition's
// PartitionCommit mappings and advancing the collection commit.
func NewSegmentOperation(store storage.Store, holder *Holder, base *Snapshot, partitionID types.ID, requestID string) Operation {
	build := func(store storage.Store, base *Snapshot, now types.Timestamp) ([]*ResourceContext, error) {
		partitionCommit, err := activePartitionCommitFor(base, partitionID)
		if err != nil {
			return nil, err
		}

		segmentID, err := store.NextID(types.KindSegment)
		if err != nil {
			return nil, err
		}
		segmentCommitID, err := store.NextID(types.KindSegmentCommit)
		if err != nil {
			return nil, err
		}
		newPartitionCommitID, err := store.NextID(types.KindPartitionCommit)
		if err != nil {
			return nil, err
		}
		commitID, err := store.NextID(types.KindCollectionCommit)
		if err != nil {
			return nil, err
		}

		segment := &types.Segment{RequestID: requestID}
		segment.SetID(segmentID)
		segment.SetCollectionID(base.CollectionID)
		segment.SetPartitionID(partitionID)
		segment.Activate()
		segment.SetCreatedOn(now)
		segment.SetUpdatedOn(now)

		segmentCommit := &types.SegmentCommit{RequestID: requestID}
		segmentCommit.SetID(segmentCommitID)
		segmentCommit.SetSegmentID(segmentID)
		segmentCommit.SetPartitionID(partitionID)
		segmentCommit.SetMappings(types.NewMapping())
		segmentCommit.Activate()
		segmentCommit.SetCreatedOn(now)
		segmentCommit.SetUpdatedOn(now)

		newPartitionCommit := &types.PartitionCommit{RequestID: requestID}
		newPartitionCommit.SetID(newPartitionCommitID)
		newPartitionCommit.SetPartitionID(partitionID)
		mappings := types.NewMapping(append(partitionCommit.GetMappings().Slice(), segmentCommitID)...)
		newPartitionCommit.SetMappings(mappings)
		newPartitionCommit.SetLSN(partitionCommit.GetLSN())
		newPartitionCommit.Activate()
		newPartitionCommit.SetCreatedOn(now)
		newPartitionCommit.SetUpdatedOn(now)

		commitMappings := replaceInMapping(base.Commit.GetMappings(), partitionCommit.GetID(), newPartitionCommitID)
		commit := cloneCollectionCommit(base.Commit, commitID, now)
		commit.SetMappings(commitMappings)

		return []*ResourceContext{
			NewAddContext(segment),
			NewAddContext(segmentCommit),
			NewAddContext(newPartitionCommit),
			deactivatePriorCommit(base.Commit),
			NewAddContext(commit),
		}, nil
	}

	return newBaseOperation("new_segment", store, holder, base, requestID, build)
}

// NewSegmentFileOperation adds a SegmentFile (a physical artifact for a
// FieldElement) to an existing segment, folding it into a fresh
// SegmentCommit/PartitionCommit/CollectionCommit chain.
func NewSegmentFileOperation(store storage.Store, holder *Holder, base *Snapshot, segmentID, fieldElementID types.ID, feType types.FieldElementType, size, rowCount uint64, requestID string) Operation {
	build := func(store storage.Store, base *Snapshot, now types.Timestamp) ([]*ResourceContext, error) {
		segment, ok := base.Segments[segmentID]
		if !ok {
			return nil, fmt.Errorf("%w: segment %d", ErrNotFound, segmentID)
		}
		segmentCommit, err := activeSegmentCommitFor(base, segmentID)
		if err != nil {
			return nil, err
		}
		partitionCommit, err := activePartitionCommitFor(base, segment.GetPartitionID())
		if err != nil {
			return nil, err
		}

		fileID, err := store.NextID(types.KindSegmentFile)
		if err != nil {
			return nil, err
		}
		newSegmentCommitID, err := store.NextID(types.KindSegmentCommit)
		if err != nil {
			return nil, err
		}
		newPartitionCommitID, err := store.NextID(types.KindPartitionCommit)
		if err != nil {
			return nil, err
		}
		commitID, err := store.NextID(types.KindCollectionCommit)
		if err != nil {
			return nil, err
		}

		file := &types.SegmentFile{RequestID: requestID}
		file.SetID(fileID)
		file.SetCollectionID(base.CollectionID)
		file.SetPartitionID(segment.GetPartitionID())
		file.SetSegmentID(segmentID)
		file.SetFieldElementID(fieldElementID)
		file.SetFEType(feType)
		file.SetSize(size)
		file.SetRowCount(rowCount)
		file.Activate()
		file.SetCreatedOn(now)
		file.SetUpdatedOn(now)

		newSegmentCommit := &types.SegmentCommit{RequestID: requestID}
		newSegmentCommit.SetID(newSegmentCommitID)
		newSegmentCommit.SetSegmentID(segmentID)
		newSegmentCommit.SetPartitionID(segment.GetPartitionID())
		newSegmentCommit.SetMappings(types.NewMapping(append(segmentCommit.GetMappings().Slice(), fileID)...))
		newSegmentCommit.SetSize(segmentCommit.GetSize() + size)
		newSegmentCommit.SetRowCount(segmentCommit.GetRowCount() + rowCount)
		newSegmentCommit.SetLSN(segmentCommit.GetLSN())
		newSegmentCommit.Activate()
		newSegmentCommit.SetCreatedOn(now)
		newSegmentCommit.SetUpdatedOn(now)

		newPartitionCommit := &types.PartitionCommit{RequestID: requestID}
		newPartitionCommit.SetID(newPartitionCommitID)
		newPartitionCommit.SetPartitionID(segment.GetPartitionID())
		newPartitionCommit.SetMappings(replaceInMapping(partitionCommit.GetMappings(), segmentCommit.GetID(), newSegmentCommitID))
		newPartitionCommit.SetLSN(partitionCommit.GetLSN())
		newPartitionCommit.Activate()
		newPartitionCommit.SetCreatedOn(now)
		newPartitionCommit.SetUpdatedOn(now)

		commit := cloneCollectionCommit(base.Commit, commitID, now)
		commit.SetMappings(replaceInMapping(base.Commit.GetMappings(), partitionCommit.GetID(), newPartitionCommitID))
		commit.SetSize(commit.GetSize() + size)
		commit.SetRowCount(commit.GetRowCount() + rowCount)

		return []*ResourceContext{
			NewAddContext(file),
			NewAddContext(newSegmentCommit),
			NewAddContext(newPartitionCommit),
			deactivatePriorCommit(base.Commit),
			NewAddContext(commit),
		}, nil
	}

	return newBaseOperation("new_segment_file", store, holder, base, requestID, build)
}

func activePartitionCommitFor(base *Snapshot, partitionID types.ID) (*types.PartitionCommit, error) {
	for _, pc := range base.PartitionCommits {
		if pc.GetPartitionID() == partitionID && pc.GetState() == types.StateActive {
			return pc, nil
		}
	}
	return nil, fmt.Errorf("%w: active partition commit for partition %d", ErrNotFound, partitionID)
}

func activeSegmentCommitFor(base *Snapshot, segmentID types.ID) (*types.SegmentCommit, error) {
	for _, sc := range base.SegmentCommits {
		if sc.GetSegmentID() == segmentID && sc.GetState() == types.StateActive {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("%w: active segment commit for segment %d", ErrNotFound, segmentID)
}

// replaceInMapping returns a copy of m with oldID removed and newID added,
// used whenever a commit's child set advances one member to a new version.
func replaceInMapping(m types.Mapping, oldID, newID types.ID) types.Mapping {
	ids := make([]types.ID, 0, len(m))
	for id := range m {
		if id == oldID {
			continue
		}
		ids = append(ids, id)
	}
	ids = append(ids, newID)
	return types.NewMapping(ids...)
}
