package snapshot

import (
	"fmt"

	"github.com/cuemby/snapmeta/pkg/meta"
	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// opTag identifies what a ResourceContext wants the Store to do with its
// Resource when the enclosing Operation commits.
type opTag int

const (
	opAdd opTag = iota
	opUpdate
	opDelete
)

// ResourceContext pairs a resource with the write it represents within a
// single Operation's batch. An Operation's build step produces one of
// these per resource it touches; baseOperation.Push converts the whole set
// into a storage.OperationWrite batch in one pass.
type ResourceContext struct {
	tag      opTag
	resource types.Resource
	dirty    map[string]struct{} // nil means "every attribute", used by Add
}

// NewAddContext stages resource for creation. resource's ID field is
// expected to already be set (pre-allocated via Store.NextID) so sibling
// ResourceContexts in the same batch can reference it.
func NewAddContext(resource types.Resource) *ResourceContext {
	return &ResourceContext{tag: opAdd, resource: resource}
}

// NewUpdateContext stages a partial update to an existing resource: only
// the named attributes are written, matching the Store's merge-on-update
// contract. Pass no names to update every attribute the codec knows for
// resource's kind.
func NewUpdateContext(resource types.Resource, attrNames ...string) *ResourceContext {
	ctx := &ResourceContext{tag: opUpdate, resource: resource}
	if len(attrNames) > 0 {
		ctx.dirty = make(map[string]struct{}, len(attrNames))
		for _, n := range attrNames {
			ctx.dirty[n] = struct{}{}
		}
	}
	return ctx
}

// NewDeactivateContext stages a resource for the DEACTIVE state transition
// that backs every "delete": resources are never removed outright by an
// Operation, only marked DEACTIVE for the GC sweep to collect later.
func NewDeactivateContext(resource types.Resource) *ResourceContext {
	sm, ok := resource.(interface{ Deactivate() })
	if ok {
		sm.Deactivate()
	}
	return &ResourceContext{tag: opDelete, resource: resource, dirty: map[string]struct{}{"state": {}}}
}

type idGetter interface{ GetID() types.ID }

// toWrite converts the context into the storage.OperationWrite baseOperation
// submits. Add contexts carry ID == 0 only when the caller chose not to
// pre-allocate one; in practice every Add context built by this package's
// operation constructors already has a non-zero ID from Store.NextID so
// cross-resource references resolve before the batch is ever submitted.
func (c *ResourceContext) toWrite() (storage.OperationWrite, error) {
	attrs, err := meta.ResourceToAttrMap(c.resource)
	if err != nil {
		return storage.OperationWrite{}, fmt.Errorf("%w: %v", ErrStore, err)
	}

	if c.dirty != nil {
		filtered := storage.AttrMap{}
		for k := range c.dirty {
			if v, ok := attrs[k]; ok {
				filtered[k] = v
			}
		}
		attrs = filtered
	}

	id := types.ID(0)
	if g, ok := c.resource.(idGetter); ok {
		id = g.GetID()
	}

	return storage.OperationWrite{Kind: c.resource.Kind(), ID: id, Attrs: attrs}, nil
}
