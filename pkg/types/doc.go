/*
Package types defines the resource model of the snapshot metadata engine.

This package contains every resource kind the engine versions: Collection,
CollectionCommit, Partition, PartitionCommit, Segment, SegmentCommit,
SegmentFile, Schema, SchemaCommit, Field, and FieldElement. Every other
package — pkg/meta, pkg/storage, pkg/snapshot, pkg/executor, pkg/registry —
builds on these types without introducing its own view of the resource
graph.

# Mixins

Rather than one monolithic struct per kind, each kind is assembled from
small embedded mixins: IDMixin, CollectionIDMixin, NameMixin, StateMixin,
MappingsMixin, TimestampMixin, and so on. A mixin's presence on a kind is a
compile-time fact (it's either embedded or it isn't). pkg/meta's attribute
codec dispatches with one type switch on the concrete resource type:
ResourceAttrsOf(KindSegmentCommit) and the codec's SegmentCommit case both
just need to agree on which mixins SegmentCommit embeds.

# Identity and references

IDs are int64, allocated by the Store (see pkg/storage) and never reused.
A resource references its parents by ID only — a Segment holds a
PartitionID and CollectionID, not a pointer to the Partition or Collection
itself. This keeps a ResourceContext cheap to construct and avoids
reference cycles across commit generations; see pkg/snapshot for how
those IDs are resolved against a particular snapshot.

# Mappings

MappingsMixin carries the set of child-commit or child-resource IDs a
commit-kind resource owns: a CollectionCommit's Mappings are
PartitionCommit IDs, a SchemaCommit's Mappings are Field IDs, and so on.
Mapping is a plain map[int64]struct{}; Slice returns it in sorted order so
two equal mapping sets always encode identically.

# State

Every resource carries a StateMixin. State starts PENDING, becomes ACTIVE
once an operation's commit succeeds, and becomes DEACTIVE when a later
operation supersedes or drops it. State changes go through Activate/Deactivate/
ResetState rather than direct field assignment, so pkg/meta's codec and
pkg/snapshot's operations drive state the same way regardless of kind.

# RequestID

Every resource carries a RequestID, stamped from the uuid the initiating
Operation was given. It exists purely for log and trace correlation (an
operation logs the same value as request_id when it commits) and is never
part of the persisted attribute map.
*/
package types
