package snapshot

import (
	"fmt"

	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// AddFieldElementOperation adds a FieldElement (an index, a stats blob, a
// deleted-docs bitmap, ...) to an existing Field, folding the new Field
// version into a fresh SchemaCommit/CollectionCommit pair.
func AddFieldElementOperation(store storage.Store, holder *Holder, base *Snapshot, fieldID types.ID, name, typeName string, feType types.FieldElementType, requestID string) Operation {
	build := func(store storage.Store, base *Snapshot, now types.Timestamp) ([]*ResourceContext, error) {
		field, ok := base.Fields[fieldID]
		if !ok {
			return nil, fmt.Errorf("%w: field %d", ErrNotFound, fieldID)
		}

		elementID, err := store.NextID(types.KindFieldElement)
		if err != nil {
			return nil, err
		}
		newFieldID, err := store.NextID(types.KindField)
		if err != nil {
			return nil, err
		}
		newSchemaCommitID, err := store.NextID(types.KindSchemaCommit)
		if err != nil {
			return nil, err
		}
		commitID, err := store.NextID(types.KindCollectionCommit)
		if err != nil {
			return nil, err
		}

		element := &types.FieldElement{RequestID: requestID}
		element.SetID(elementID)
		element.SetCollectionID(base.CollectionID)
		element.SetFieldID(fieldID)
		element.SetName(name)
		element.SetTypeName(typeName)
		element.SetFEType(feType)
		element.Activate()
		element.SetCreatedOn(now)
		element.SetUpdatedOn(now)

		newField := &types.Field{RequestID: requestID}
		newField.SetID(newFieldID)
		newField.SetCollectionID(field.GetCollectionID())
		newField.SetSchemaID(field.GetSchemaID())
		newField.SetName(field.GetName())
		newField.SetNum(field.GetNum())
		newField.SetFType(field.GetFType())
		newField.SetMappings(types.NewMapping(append(field.GetMappings().Slice(), elementID)...))
		newField.Activate()
		newField.SetCreatedOn(now)
		newField.SetUpdatedOn(now)

		newSchemaCommit := &types.SchemaCommit{RequestID: requestID}
		newSchemaCommit.SetID(newSchemaCommitID)
		newSchemaCommit.SetSchemaID(base.SchemaCommit.GetSchemaID())
		newSchemaCommit.SetCollectionID(base.CollectionID)
		newSchemaCommit.SetMappings(replaceInMapping(base.SchemaCommit.GetMappings(), fieldID, newFieldID))
		newSchemaCommit.Activate()
		newSchemaCommit.SetCreatedOn(now)
		newSchemaCommit.SetUpdatedOn(now)

		commit := cloneCollectionCommit(base.Commit, commitID, now)
		commit.SetSchemaID(newSchemaCommitID)

		return []*ResourceContext{
			NewAddContext(element),
			NewAddContext(newField),
			NewAddContext(newSchemaCommit),
			NewDeactivateContext(field),
			NewDeactivateContext(base.SchemaCommit),
			deactivatePriorCommit(base.Commit),
			NewAddContext(commit),
		}, nil
	}

	return newBaseOperation("add_field_element", store, holder, base, requestID, build)
}

// DropAllIndexOperation deactivates every Index-typed FieldElement under
// fieldID, replacing the field's mappings with only its non-index
// elements and advancing the schema/collection commit chain.
func DropAllIndexOperation(store storage.Store, holder *Holder, base *Snapshot, fieldID types.ID, requestID string) Operation {
	build := func(store storage.Store, base *Snapshot, now types.Timestamp) ([]*ResourceContext, error) {
		field, ok := base.Fields[fieldID]
		if !ok {
			return nil, fmt.Errorf("%w: field %d", ErrNotFound, fieldID)
		}

		var ctxs []*ResourceContext
		remaining := make([]types.ID, 0, len(field.GetMappings()))
		for elemID := range field.GetMappings() {
			elem, ok := base.FieldElements[elemID]
			if !ok {
				continue
			}
			if elem.GetFEType() == types.FieldElementTypeIndex {
				ctxs = append(ctxs, NewDeactivateContext(elem))
				continue
			}
			remaining = append(remaining, elemID)
		}

		newFieldID, err := store.NextID(types.KindField)
		if err != nil {
			return nil, err
		}
		newSchemaCommitID, err := store.NextID(types.KindSchemaCommit)
		if err != nil {
			return nil, err
		}
		commitID, err := store.NextID(types.KindCollectionCommit)
		if err != nil {
			return nil, err
		}

		newField := &types.Field{RequestID: requestID}
		newField.SetID(newFieldID)
		newField.SetCollectionID(field.GetCollectionID())
		newField.SetSchemaID(field.GetSchemaID())
		newField.SetName(field.GetName())
		newField.SetNum(field.GetNum())
		newField.SetFType(field.GetFType())
		newField.SetMappings(types.NewMapping(remaining...))
		newField.Activate()
		newField.SetCreatedOn(now)
		newField.SetUpdatedOn(now)

		newSchemaCommit := &types.SchemaCommit{RequestID: requestID}
		newSchemaCommit.SetID(newSchemaCommitID)
		newSchemaCommit.SetSchemaID(base.SchemaCommit.GetSchemaID())
		newSchemaCommit.SetCollectionID(base.CollectionID)
		newSchemaCommit.SetMappings(replaceInMapping(base.SchemaCommit.GetMappings(), fieldID, newFieldID))
		newSchemaCommit.Activate()
		newSchemaCommit.SetCreatedOn(now)
		newSchemaCommit.SetUpdatedOn(now)

		commit := cloneCollectionCommit(base.Commit, commitID, now)
		commit.SetSchemaID(newSchemaCommitID)

		ctxs = append(ctxs,
			NewAddContext(newField),
			NewAddContext(newSchemaCommit),
			NewDeactivateContext(field),
			NewDeactivateContext(base.SchemaCommit),
			deactivatePriorCommit(base.Commit),
			NewAddContext(commit),
		)
		return ctxs, nil
	}

	return newBaseOperation("drop_all_index", store, holder, base, requestID, build)
}
