package snapshot

import (
	"fmt"

	"github.com/cuemby/snapmeta/pkg/meta"
	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// loadResource fetches (kind, id) from store and decodes it into a fresh
// instance of the concrete resource type for kind.
func loadResource(store storage.Store, kind types.Kind, id types.ID) (types.Resource, error) {
	attrs, err := store.Get(kind, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %d: %v", ErrStore, kind, id, err)
	}
	r := types.New(kind)
	if r == nil {
		return nil, fmt.Errorf("%w: %v", meta.ErrUnknownKind, kind)
	}
	if err := meta.AttrMapToResource(attrs, r); err != nil {
		return nil, err
	}
	return r, nil
}

// loadSnapshotClosure hydrates the full transitive closure of
// commitID's CollectionCommit: its SchemaCommit and Fields/FieldElements,
// and every PartitionCommit/Partition/SegmentCommit/Segment/SegmentFile
// reachable from its mappings.
func loadSnapshotClosure(store storage.Store, collectionID, commitID types.ID) (*Snapshot, error) {
	commitRes, err := loadResource(store, types.KindCollectionCommit, commitID)
	if err != nil {
		return nil, err
	}
	commit := commitRes.(*types.CollectionCommit)

	collRes, err := loadResource(store, types.KindCollection, collectionID)
	if err != nil {
		return nil, err
	}
	collection := collRes.(*types.Collection)

	snap := &Snapshot{
		ID:               commitID,
		CollectionID:     collectionID,
		Collection:       collection,
		Commit:           commit,
		Fields:           map[types.ID]*types.Field{},
		FieldElements:    map[types.ID]*types.FieldElement{},
		Partitions:       map[types.ID]*types.Partition{},
		PartitionCommits: map[types.ID]*types.PartitionCommit{},
		Segments:         map[types.ID]*types.Segment{},
		SegmentCommits:   map[types.ID]*types.SegmentCommit{},
		SegmentFiles:     map[types.ID]*types.SegmentFile{},
	}

	if commit.GetSchemaID() != 0 {
		scRes, err := loadResource(store, types.KindSchemaCommit, commit.GetSchemaID())
		if err != nil {
			return nil, err
		}
		schemaCommit := scRes.(*types.SchemaCommit)
		snap.SchemaCommit = schemaCommit

		if schemaCommit.GetSchemaID() != 0 {
			sRes, err := loadResource(store, types.KindSchema, schemaCommit.GetSchemaID())
			if err != nil {
				return nil, err
			}
			snap.Schema = sRes.(*types.Schema)
		}

		for fieldID := range schemaCommit.GetMappings() {
			fRes, err := loadResource(store, types.KindField, fieldID)
			if err != nil {
				return nil, err
			}
			field := fRes.(*types.Field)
			snap.Fields[fieldID] = field

			for feID := range field.GetMappings() {
				feRes, err := loadResource(store, types.KindFieldElement, feID)
				if err != nil {
					return nil, err
				}
				snap.FieldElements[feID] = feRes.(*types.FieldElement)
			}
		}
	}

	for partitionCommitID := range commit.GetMappings() {
		pcRes, err := loadResource(store, types.KindPartitionCommit, partitionCommitID)
		if err != nil {
			return nil, err
		}
		partitionCommit := pcRes.(*types.PartitionCommit)
		snap.PartitionCommits[partitionCommitID] = partitionCommit

		if partitionCommit.GetPartitionID() != 0 {
			pRes, err := loadResource(store, types.KindPartition, partitionCommit.GetPartitionID())
			if err != nil {
				return nil, err
			}
			snap.Partitions[partitionCommit.GetPartitionID()] = pRes.(*types.Partition)
		}

		for segmentCommitID := range partitionCommit.GetMappings() {
			scRes, err := loadResource(store, types.KindSegmentCommit, segmentCommitID)
			if err != nil {
				return nil, err
			}
			segmentCommit := scRes.(*types.SegmentCommit)
			snap.SegmentCommits[segmentCommitID] = segmentCommit

			if segmentCommit.GetSegmentID() != 0 {
				sRes, err := loadResource(store, types.KindSegment, segmentCommit.GetSegmentID())
				if err != nil {
					return nil, err
				}
				snap.Segments[segmentCommit.GetSegmentID()] = sRes.(*types.Segment)
			}

			for fileID := range segmentCommit.GetMappings() {
				fileRes, err := loadResource(store, types.KindSegmentFile, fileID)
				if err != nil {
					return nil, err
				}
				snap.SegmentFiles[fileID] = fileRes.(*types.SegmentFile)
			}
		}
	}

	return snap, nil
}
