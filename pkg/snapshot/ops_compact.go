package snapshot

import (
	"fmt"

	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// CompactOperation replaces segmentID's active SegmentCommit with a fresh
// one listing only the SegmentFile IDs the caller says survived
// compaction, updating the segment's size/row count and folding the
// change up through the partition and collection commit chain.
func CompactOperation(store storage.Store, holder *Holder, base *Snapshot, segmentID types.ID, survivingFileIDs []types.ID, size, rowCount uint64, requestID string) Operation {
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

		sizeDelta := int64(size) - int64(segmentCommit.GetSize())
		rowDelta := int64(rowCount) - int64(segmentCommit.GetRowCount())

		newSegmentCommit := &types.SegmentCommit{RequestID: requestID}
		newSegmentCommit.SetID(newSegmentCommitID)
		newSegmentCommit.SetSegmentID(segmentID)
		newSegmentCommit.SetPartitionID(segment.GetPartitionID())
		newSegmentCommit.SetMappings(types.NewMapping(survivingFileIDs...))
		newSegmentCommit.SetSize(size)
		newSegmentCommit.SetRowCount(rowCount)
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
		commit.SetSize(addDelta(commit.GetSize(), sizeDelta))
		commit.SetRowCount(addDelta(commit.GetRowCount(), rowDelta))

		return []*ResourceContext{
			NewAddContext(newSegmentCommit),
			NewAddContext(newPartitionCommit),
			NewDeactivateContext(segmentCommit),
			deactivatePriorCommit(base.Commit),
			NewAddContext(commit),
		}, nil
	}

	return newBaseOperation("compact", store, holder, base, requestID, build)
}

// MergeOperation retires sourceSegmentIDs in favor of a single new Segment
// covering the same rows — the small-segment-merge maintenance pass. It
// creates the new segment and its SegmentCommit, drops the source segments
// from the partition's mappings, and adds the new one in their place.
func MergeOperation(store storage.Store, holder *Holder, base *Snapshot, partitionID types.ID, sourceSegmentIDs []types.ID, size, rowCount uint64, requestID string) Operation {
	build := func(store storage.Store, base *Snapshot, now types.Timestamp) ([]*ResourceContext, error) {
		partitionCommit, err := activePartitionCommitFor(base, partitionID)
		if err != nil {
			return nil, err
		}

		sourceCommitIDs := make(map[types.ID]*types.SegmentCommit, len(sourceSegmentIDs))
		for _, segID := range sourceSegmentIDs {
			sc, err := activeSegmentCommitFor(base, segID)
			if err != nil {
				return nil, err
			}
			sourceCommitIDs[segID] = sc
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
		segmentCommit.SetSize(size)
		segmentCommit.SetRowCount(rowCount)
		segmentCommit.Activate()
		segmentCommit.SetCreatedOn(now)
		segmentCommit.SetUpdatedOn(now)

		remaining := make([]types.ID, 0, len(partitionCommit.GetMappings()))
		for id := range partitionCommit.GetMappings() {
			if _, dropped := sourceCommitIDs[idToSegmentID(base, id)]; dropped {
				continue
			}
			remaining = append(remaining, id)
		}
		remaining = append(remaining, segmentCommitID)

		newPartitionCommit := &types.PartitionCommit{RequestID: requestID}
		newPartitionCommit.SetID(newPartitionCommitID)
		newPartitionCommit.SetPartitionID(partitionID)
		newPartitionCommit.SetMappings(types.NewMapping(remaining...))
		newPartitionCommit.SetLSN(partitionCommit.GetLSN())
		newPartitionCommit.Activate()
		newPartitionCommit.SetCreatedOn(now)
		newPartitionCommit.SetUpdatedOn(now)

		commit := cloneCollectionCommit(base.Commit, commitID, now)
		commit.SetMappings(replaceInMapping(base.Commit.GetMappings(), partitionCommit.GetID(), newPartitionCommitID))

		ctxs := []*ResourceContext{
			NewAddContext(segment),
			NewAddContext(segmentCommit),
		}
		for _, segID := range sourceSegmentIDs {
			if s, ok := base.Segments[segID]; ok {
				ctxs = append(ctxs, NewDeactivateContext(s))
			}
			ctxs = append(ctxs, NewDeactivateContext(sourceCommitIDs[segID]))
		}
		ctxs = append(ctxs,
			NewAddContext(newPartitionCommit),
			deactivatePriorCommit(base.Commit),
			NewAddContext(commit),
		)
		return ctxs, nil
	}

	return newBaseOperation("merge", store, holder, base, requestID, build)
}

func idToSegmentID(base *Snapshot, segmentCommitID types.ID) types.ID {
	if sc, ok := base.SegmentCommits[segmentCommitID]; ok {
		return sc.GetSegmentID()
	}
	return 0
}

func addDelta(v uint64, delta int64) uint64 {
	if delta < 0 && uint64(-delta) > v {
		return 0
	}
	return uint64(int64(v) + delta)
}
