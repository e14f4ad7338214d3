// Package meta implements the attribute codec: the translation between a
// typed resource (pkg/types) and the flat string-keyed attribute map the
// Store persists (pkg/storage.AttrMap).
//
// This is a direct generalization of the Milvus metadata engine's
// AttrValue2Str / AttrMap2Resource pair, which dispatched per attribute
// name through a chain of dynamic_pointer_cast calls against mixin base
// classes. Here the dispatch is a single type switch on the resource's
// concrete Go type — Kind already tells the caller which concrete type to
// expect — followed by direct calls to that type's mixin accessors. Each
// kind's attribute set is also available as a plain table via
// ResourceAttrsOf, for callers that need to know which attributes apply to
// a kind without a resource instance in hand.
package meta

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// Attribute names, as persisted. These are the wire keys in every
// storage.AttrMap; renaming one is a storage-format break.
const (
	attrID             = "id"
	attrCollectionID   = "collection_id"
	attrSchemaID       = "schema_id"
	attrPartitionID    = "partition_id"
	attrSegmentID      = "segment_id"
	attrFieldID        = "field_id"
	attrFieldElementID = "field_element_id"
	attrName           = "name"
	attrTypeName       = "type_name"
	attrNum            = "num"
	attrFType          = "ftype"
	attrFEType         = "fetype"
	attrLSN            = "lsn"
	attrSize           = "size"
	attrRowCount       = "row_count"
	attrState          = "state"
	attrMappings       = "mappings"
	attrParams         = "params"
	attrCreatedOn      = "created_on"
	attrUpdatedOn      = "updated_on"
)

// ErrUnknownKind is returned for a types.Kind value with no codec entry.
var ErrUnknownKind = errors.New("meta: unknown resource kind")

// ErrMalformedAttribute is returned when an attribute value can't be parsed
// into the type its name implies (e.g. a non-numeric "id").
var ErrMalformedAttribute = errors.New("meta: malformed attribute value")

// ErrUnknownAttribute is returned by AttrMapToResource when attrs contains
// a key that resource's kind does not recognize.
var ErrUnknownAttribute = errors.New("meta: unknown attribute for kind")

// ResourceAttrsOf returns the ordered attribute names that apply to kind.
func ResourceAttrsOf(kind types.Kind) ([]string, error) {
	base := []string{attrID, attrCreatedOn, attrUpdatedOn, attrState}
	switch kind {
	case types.KindCollection:
		return append([]string{attrName, attrParams}, base...), nil
	case types.KindCollectionCommit:
		return append([]string{attrCollectionID, attrSchemaID, attrMappings, attrLSN, attrSize, attrRowCount}, base...), nil
	case types.KindPartition:
		return append([]string{attrCollectionID, attrName}, base...), nil
	case types.KindPartitionCommit:
		return append([]string{attrPartitionID, attrMappings, attrLSN}, base...), nil
	case types.KindSegment:
		return append([]string{attrCollectionID, attrPartitionID}, base...), nil
	case types.KindSegmentCommit:
		return append([]string{attrSegmentID, attrPartitionID, attrMappings, attrSize, attrRowCount, attrLSN}, base...), nil
	case types.KindSegmentFile:
		return append([]string{attrCollectionID, attrPartitionID, attrSegmentID, attrFieldElementID, attrSize, attrRowCount, attrFEType}, base...), nil
	case types.KindSchema:
		return append([]string{attrCollectionID, attrName}, base...), nil
	case types.KindSchemaCommit:
		return append([]string{attrSchemaID, attrCollectionID, attrMappings}, base...), nil
	case types.KindField:
		return append([]string{attrCollectionID, attrSchemaID, attrName, attrNum, attrFType, attrMappings}, base...), nil
	case types.KindFieldElement:
		return append([]string{attrCollectionID, attrFieldID, attrName, attrTypeName, attrFEType}, base...), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
}

func int2str(v types.ID) string { return strconv.FormatInt(v, 10) }
func uint2str(v uint64) string  { return strconv.FormatUint(v, 10) }

func str2int(s string) (types.ID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedAttribute, s)
	}
	return v, nil
}

func str2uint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an unsigned integer", ErrMalformedAttribute, s)
	}
	return v, nil
}

// params2str encodes a Collection's raw params blob, with an absent (nil
// or empty) blob encoding as "{}" rather than the empty string.
func params2str(p []byte) string {
	if len(p) == 0 {
		return "{}"
	}
	return string(p)
}

func mappings2str(m types.Mapping) string {
	b, _ := marshalMapping(m)
	return string(b)
}

func str2mappings(s string) (types.Mapping, error) {
	if s == "" {
		return types.Mapping{}, nil
	}
	m, err := unmarshalMapping([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: mappings %q", ErrMalformedAttribute, s)
	}
	return m, nil
}

func state2str(s types.State) string { return s.String() }

func str2state(s string) (types.State, error) {
	st, ok := types.ParseState(s)
	if !ok {
		return 0, fmt.Errorf("%w: state %q", ErrMalformedAttribute, s)
	}
	return st, nil
}

// ResourceToAttrMap encodes r's mixin fields into a storage.AttrMap. The
// F_ID attribute is included for reads (Get) but is stripped again by
// pkg/storage.Create, which ignores any caller-supplied id on insert —
// mirroring ResourceContextAddAttrMap's "skip id on add" rule from the
// original engine.
func ResourceToAttrMap(r types.Resource) (storage.AttrMap, error) {
	attrs := storage.AttrMap{}
	switch v := r.(type) {
	case *types.Collection:
		attrs[attrID] = int2str(v.GetID())
		attrs[attrName] = v.GetName()
		attrs[attrParams] = params2str(v.GetParams())
		attrs[attrState] = state2str(v.GetState())
		attrs[attrCreatedOn] = uint2str(v.GetCreatedOn())
		attrs[attrUpdatedOn] = uint2str(v.GetUpdatedOn())
	case *types.CollectionCommit:
		attrs[attrID] = int2str(v.GetID())
		attrs[attrCollectionID] = int2str(v.GetCollectionID())
		attrs[attrSchemaID] = int2str(v.GetSchemaID())
		attrs[attrMappings] = mappings2str(v.GetMappings())
		attrs[attrLSN] = uint2str(v.GetLSN())
		attrs[attrSize] = uint2str(v.GetSize())
		attrs[attrRowCount] = uint2str(v.GetRowCount())
		attrs[attrState] = state2str(v.GetState())
		attrs[attrCreatedOn] = uint2str(v.GetCreatedOn())
		attrs[attrUpdatedOn] = uint2str(v.GetUpdatedOn())
	case *types.Partition:
		attrs[attrID] = int2str(v.GetID())
		attrs[attrCollectionID] = int2str(v.GetCollectionID())
		attrs[attrName] = v.GetName()
		attrs[attrState] = state2str(v.GetState())
		attrs[attrCreatedOn] = uint2str(v.GetCreatedOn())
		attrs[attrUpdatedOn] = uint2str(v.GetUpdatedOn())
	case *types.PartitionCommit:
		attrs[attrID] = int2str(v.GetID())
		attrs[attrPartitionID] = int2str(v.GetPartitionID())
		attrs[attrMappings] = mappings2str(v.GetMappings())
		attrs[attrLSN] = uint2str(v.GetLSN())
		attrs[attrState] = state2str(v.GetState())
		attrs[attrCreatedOn] = uint2str(v.GetCreatedOn())
		attrs[attrUpdatedOn] = uint2str(v.GetUpdatedOn())
	case *types.Segment:
		attrs[attrID] = int2str(v.GetID())
		attrs[attrCollectionID] = int2str(v.GetCollectionID())
		attrs[attrPartitionID] = int2str(v.GetPartitionID())
		attrs[attrState] = state2str(v.GetState())
		attrs[attrCreatedOn] = uint2str(v.GetCreatedOn())
		attrs[attrUpdatedOn] = uint2str(v.GetUpdatedOn())
	case *types.SegmentCommit:
		attrs[attrID] = int2str(v.GetID())
		attrs[attrSegmentID] = int2str(v.GetSegmentID())
		attrs[attrPartitionID] = int2str(v.GetPartitionID())
		attrs[attrMappings] = mappings2str(v.GetMappings())
		attrs[attrSize] = uint2str(v.GetSize())
		attrs[attrRowCount] = uint2str(v.GetRowCount())
		attrs[attrLSN] = uint2str(v.GetLSN())
		attrs[attrState] = state2str(v.GetState())
		attrs[attrCreatedOn] = uint2str(v.GetCreatedOn())
		attrs[attrUpdatedOn] = uint2str(v.GetUpdatedOn())
	case *types.SegmentFile:
		attrs[attrID] = int2str(v.GetID())
		attrs[attrCollectionID] = int2str(v.GetCollectionID())
		attrs[attrPartitionID] = int2str(v.GetPartitionID())
		attrs[attrSegmentID] = int2str(v.GetSegmentID())
		attrs[attrFieldElementID] = int2str(v.GetFieldElementID())
		attrs[attrSize] = uint2str(v.GetSize())
		attrs[attrRowCount] = uint2str(v.GetRowCount())
		attrs[attrFEType] = strconv.Itoa(int(v.GetFEType()))
		attrs[attrState] = state2str(v.GetState())
		attrs[attrCreatedOn] = uint2str(v.GetCreatedOn())
		attrs[attrUpdatedOn] = uint2str(v.GetUpdatedOn())
	case *types.Schema:
		attrs[attrID] = int2str(v.GetID())
		attrs[attrCollectionID] = int2str(v.GetCollectionID())
		attrs[attrName] = v.GetName()
		attrs[attrState] = state2str(v.GetState())
		attrs[attrCreatedOn] = uint2str(v.GetCreatedOn())
		attrs[attrUpdatedOn] = uint2str(v.GetUpdatedOn())
	case *types.SchemaCommit:
		attrs[attrID] = int2str(v.GetID())
		attrs[attrSchemaID] = int2str(v.GetSchemaID())
		attrs[attrCollectionID] = int2str(v.GetCollectionID())
		attrs[attrMappings] = mappings2str(v.GetMappings())
		attrs[attrState] = state2str(v.GetState())
		attrs[attrCreatedOn] = uint2str(v.GetCreatedOn())
		attrs[attrUpdatedOn] = uint2str(v.GetUpdatedOn())
	case *types.Field:
		attrs[attrID] = int2str(v.GetID())
		attrs[attrCollectionID] = int2str(v.GetCollectionID())
		attrs[attrSchemaID] = int2str(v.GetSchemaID())
		attrs[attrName] = v.GetName()
		attrs[attrNum] = uint2str(v.GetNum())
		attrs[attrFType] = strconv.Itoa(int(v.GetFType()))
		attrs[attrMappings] = mappings2str(v.GetMappings())
		attrs[attrState] = state2str(v.GetState())
		attrs[attrCreatedOn] = uint2str(v.GetCreatedOn())
		attrs[attrUpdatedOn] = uint2str(v.GetUpdatedOn())
	case *types.FieldElement:
		attrs[attrID] = int2str(v.GetID())
		attrs[attrCollectionID] = int2str(v.GetCollectionID())
		attrs[attrFieldID] = int2str(v.GetFieldID())
		attrs[attrName] = v.GetName()
		attrs[attrTypeName] = v.GetTypeName()
		attrs[attrFEType] = strconv.Itoa(int(v.GetFEType()))
		attrs[attrState] = state2str(v.GetState())
		attrs[attrCreatedOn] = uint2str(v.GetCreatedOn())
		attrs[attrUpdatedOn] = uint2str(v.GetUpdatedOn())
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, r)
	}
	return attrs, nil
}

// AttrMapToResource decodes attrs into resource in place. resource must
// already be the correct concrete type for its kind (see types.New).
// Unknown keys in attrs are reported via ErrUnknownAttribute rather than
// silently ignored, so a storage-format drift is caught at read time.
// State is applied through Activate/Deactivate/ResetState rather than
// direct field assignment, matching AttrMap2Resource's use of the state
// field's own transition API in the original engine.
func AttrMapToResource(attrs storage.AttrMap, resource types.Resource) error {
	known, err := ResourceAttrsOf(resource.Kind())
	if err != nil {
		return err
	}
	allowed := make(map[string]struct{}, len(known))
	for _, k := range known {
		allowed[k] = struct{}{}
	}
	for k := range attrs {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("%w: %q on %v", ErrUnknownAttribute, k, resource.Kind())
		}
	}

	applyState := func(sm interface{ GetState() types.State }, v string) error {
		st, err := str2state(v)
		if err != nil {
			return err
		}
		switch st {
		case types.StateActive:
			resource.(interface{ Activate() }).Activate()
		case types.StateDeactive:
			resource.(interface{ Deactivate() }).Deactivate()
		default:
			resource.(interface{ ResetState() }).ResetState()
		}
		return nil
	}

	switch v := resource.(type) {
	case *types.Collection:
		return decodeErr(
			setInt(attrs, attrID, v.SetID),
			setStr(attrs, attrName, v.SetName),
			setRaw(attrs, attrParams, v.SetParams),
			setState(attrs, v, applyState),
			setUint(attrs, attrCreatedOn, v.SetCreatedOn),
			setUint(attrs, attrUpdatedOn, v.SetUpdatedOn),
		)
	case *types.CollectionCommit:
		return decodeErr(
			setInt(attrs, attrID, v.SetID),
			setInt(attrs, attrCollectionID, v.SetCollectionID),
			setInt(attrs, attrSchemaID, v.SetSchemaID),
			setMappings(attrs, attrMappings, v.SetMappings),
			setUintLSN(attrs, attrLSN, v.SetLSN),
			setUint(attrs, attrSize, v.SetSize),
			setUint(attrs, attrRowCount, v.SetRowCount),
			setState(attrs, v, applyState),
			setUint(attrs, attrCreatedOn, v.SetCreatedOn),
			setUint(attrs, attrUpdatedOn, v.SetUpdatedOn),
		)
	case *types.Partition:
		return decodeErr(
			setInt(attrs, attrID, v.SetID),
			setInt(attrs, attrCollectionID, v.SetCollectionID),
			setStr(attrs, attrName, v.SetName),
			setState(attrs, v, applyState),
			setUint(attrs, attrCreatedOn, v.SetCreatedOn),
			setUint(attrs, attrUpdatedOn, v.SetUpdatedOn),
		)
	case *types.PartitionCommit:
		return decodeErr(
			setInt(attrs, attrID, v.SetID),
			setInt(attrs, attrPartitionID, v.SetPartitionID),
			setMappings(attrs, attrMappings, v.SetMappings),
			setUintLSN(attrs, attrLSN, v.SetLSN),
			setState(attrs, v, applyState),
			setUint(attrs, attrCreatedOn, v.SetCreatedOn),
			setUint(attrs, attrUpdatedOn, v.SetUpdatedOn),
		)
	case *types.Segment:
		return decodeErr(
			setInt(attrs, attrID, v.SetID),
			setInt(attrs, attrCollectionID, v.SetCollectionID),
			setInt(attrs, attrPartitionID, v.SetPartitionID),
			setState(attrs, v, applyState),
			setUint(attrs, attrCreatedOn, v.SetCreatedOn),
			setUint(attrs, attrUpdatedOn, v.SetUpdatedOn),
		)
	case *types.SegmentCommit:
		return decodeErr(
			setInt(attrs, attrID, v.SetID),
			setInt(attrs, attrSegmentID, v.SetSegmentID),
			setInt(attrs, attrPartitionID, v.SetPartitionID),
			setMappings(attrs, attrMappings, v.SetMappings),
			setUint(attrs, attrSize, v.SetSize),
			setUint(attrs, attrRowCount, v.SetRowCount),
			setUintLSN(attrs, attrLSN, v.SetLSN),
			setState(attrs, v, applyState),
			setUint(attrs, attrCreatedOn, v.SetCreatedOn),
			setUint(attrs, attrUpdatedOn, v.SetUpdatedOn),
		)
	case *types.SegmentFile:
		return decodeErr(
			setInt(attrs, attrID, v.SetID),
			setInt(attrs, attrCollectionID, v.SetCollectionID),
			setInt(attrs, attrPartitionID, v.SetPartitionID),
			setInt(attrs, attrSegmentID, v.SetSegmentID),
			setInt(attrs, attrFieldElementID, v.SetFieldElementID),
			setUint(attrs, attrSize, v.SetSize),
			setUint(attrs, attrRowCount, v.SetRowCount),
			setFEType(attrs, attrFEType, v.SetFEType),
			setState(attrs, v, applyState),
			setUint(attrs, attrCreatedOn, v.SetCreatedOn),
			setUint(attrs, attrUpdatedOn, v.SetUpdatedOn),
		)
	case *types.Schema:
		return decodeErr(
			setInt(attrs, attrID, v.SetID),
			setInt(attrs, attrCollectionID, v.SetCollectionID),
			setStr(attrs, attrName, v.SetName),
			setState(attrs, v, applyState),
			setUint(attrs, attrCreatedOn, v.SetCreatedOn),
			setUint(attrs, attrUpdatedOn, v.SetUpdatedOn),
		)
	case *types.SchemaCommit:
		return decodeErr(
			setInt(attrs, attrID, v.SetID),
			setInt(attrs, attrSchemaID, v.SetSchemaID),
			setInt(attrs, attrCollectionID, v.SetCollectionID),
			setMappings(attrs, attrMappings, v.SetMappings),
			setState(attrs, v, applyState),
			setUint(attrs, attrCreatedOn, v.SetCreatedOn),
			setUint(attrs, attrUpdatedOn, v.SetUpdatedOn),
		)
	case *types.Field:
		return decodeErr(
			setInt(attrs, attrID, v.SetID),
			setInt(attrs, attrCollectionID, v.SetCollectionID),
			setInt(attrs, attrSchemaID, v.SetSchemaID),
			setStr(attrs, attrName, v.SetName),
			setUint(attrs, attrNum, v.SetNum),
			setFType(attrs, attrFType, v.SetFType),
			setMappings(attrs, attrMappings, v.SetMappings),
			setState(attrs, v, applyState),
			setUint(attrs, attrCreatedOn, v.SetCreatedOn),
			setUint(attrs, attrUpdatedOn, v.SetUpdatedOn),
		)
	case *types.FieldElement:
		return decodeErr(
			setInt(attrs, attrID, v.SetID),
			setInt(attrs, attrCollectionID, v.SetCollectionID),
			setInt(attrs, attrFieldID, v.SetFieldID),
			setStr(attrs, attrName, v.SetName),
			setStr(attrs, attrTypeName, v.SetTypeName),
			setFEType(attrs, attrFEType, v.SetFEType),
			setState(attrs, v, applyState),
			setUint(attrs, attrCreatedOn, v.SetCreatedOn),
			setUint(attrs, attrUpdatedOn, v.SetUpdatedOn),
		)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, resource)
	}
}

// The set* helpers below each look up one attribute, skip it silently if
// absent (a partial attrs map is valid — ApplyOperation updates may touch
// only the dirty subset), and report the first decode error they hit.
// decodeErr collapses that chain into a single return.

func decodeErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func setInt(attrs storage.AttrMap, key string, set func(types.ID)) error {
	v, ok := attrs[key]
	if !ok {
		return nil
	}
	id, err := str2int(v)
	if err != nil {
		return err
	}
	set(id)
	return nil
}

func setUint(attrs storage.AttrMap, key string, set func(uint64)) error {
	v, ok := attrs[key]
	if !ok {
		return nil
	}
	n, err := str2uint(v)
	if err != nil {
		return err
	}
	set(n)
	return nil
}

func setUintLSN(attrs storage.AttrMap, key string, set func(types.LSN)) error {
	return setUint(attrs, key, func(n uint64) { set(types.LSN(n)) })
}

func setStr(attrs storage.AttrMap, key string, set func(string)) error {
	v, ok := attrs[key]
	if !ok {
		return nil
	}
	set(v)
	return nil
}

func setRaw(attrs storage.AttrMap, key string, set func([]byte)) error {
	v, ok := attrs[key]
	if !ok {
		return nil
	}
	set([]byte(v))
	return nil
}

func setMappings(attrs storage.AttrMap, key string, set func(types.Mapping)) error {
	v, ok := attrs[key]
	if !ok {
		return nil
	}
	m, err := str2mappings(v)
	if err != nil {
		return err
	}
	set(m)
	return nil
}

func setFType(attrs storage.AttrMap, key string, set func(types.FieldType)) error {
	v, ok := attrs[key]
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: ftype %q", ErrMalformedAttribute, v)
	}
	set(types.FieldType(n))
	return nil
}

func setFEType(attrs storage.AttrMap, key string, set func(types.FieldElementType)) error {
	v, ok := attrs[key]
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: fetype %q", ErrMalformedAttribute, v)
	}
	set(types.FieldElementType(n))
	return nil
}

func setState(attrs storage.AttrMap, sm interface{ GetState() types.State }, apply func(interface{ GetState() types.State }, string) error) error {
	v, ok := attrs[attrState]
	if !ok {
		return nil
	}
	return apply(sm, v)
}
