package storage

import (
	"github.com/cuemby/snapmeta/pkg/types"
)

// AttrMap is the codec's wire representation of a resource: attribute name
// to string value, as produced by pkg/meta.ResourceToAttrMap.
type AttrMap map[string]string

// Store defines the durable persistence interface for the resource graph.
// It knows nothing about snapshots, holders, or policy — it only stores and
// retrieves attribute maps keyed by Kind and ID. Everything above this
// interface (pkg/snapshot, pkg/registry) is built purely against it, so a
// non-bbolt backend only needs to satisfy this contract.
type Store interface {
	// Create allocates a new ID for kind, persists attrs under it, and
	// returns the assigned ID. F_ID in attrs, if present, is ignored.
	Create(kind types.Kind, attrs AttrMap) (types.ID, error)

	// NextID allocates and returns the next ID for kind without writing a
	// row. Operations use it to pre-assign IDs for a batch of resources
	// that reference each other (a SchemaCommit needs its Schema's ID
	// before either is persisted), then submit the whole batch through
	// ApplyOperation in one pass. An ID drawn this way is never reused
	// even if the caller never writes a row for it.
	NextID(kind types.Kind) (types.ID, error)

	// Update merges attrs into the attribute map already stored for an
	// existing (kind, id): only the listed attributes are overwritten,
	// the rest of the row is left as-is. Returns ErrNotFound if the row
	// doesn't exist.
	Update(kind types.Kind, id types.ID, attrs AttrMap) error

	// Get returns the attribute map stored for (kind, id).
	Get(kind types.Kind, id types.ID) (AttrMap, error)

	// Remove physically deletes (kind, id). Used only by GC, never by a
	// normal drop (drops are a state transition, not a deletion).
	Remove(kind types.Kind, id types.ID) error

	// GetCollectionIDs lists every Collection ID. When includeInactive is
	// false, only ACTIVE and PENDING collections are returned.
	GetCollectionIDs(includeInactive bool) ([]types.ID, error)

	// GetCollectionIDByName resolves a collection name to its ID.
	GetCollectionIDByName(name string) (types.ID, error)

	// GetSnapshotIDs lists CollectionCommit IDs belonging to collectionID.
	// When includeInactive is false, only ACTIVE commits are returned.
	GetSnapshotIDs(collectionID types.ID, includeInactive bool) ([]types.ID, error)

	// GetAllActiveSnapshotIDs lists the (collection_id, commit_id) pair of
	// every ACTIVE CollectionCommit across every collection whose UpdatedOn
	// is strictly greater than rangeLowBound, plus the greatest UpdatedOn
	// value observed among them (0 if none matched). The reader timer uses
	// the returned bound as next cycle's low-water mark, so a commit is
	// never re-selected once its UpdatedOn has been seen.
	GetAllActiveSnapshotIDs(rangeLowBound types.Timestamp) ([]SnapshotRef, types.Timestamp, error)

	// GetInactiveResources lists every (kind, id) pair currently DEACTIVE,
	// across all kinds, for orphan GC.
	GetInactiveResources() ([]ResourceRef, error)

	// ApplyOperation persists a batch of attribute-map writes as a single
	// unit. Entries with ID == 0 are treated as creates (an ID is
	// allocated and returned in the corresponding IDs slot); all others
	// are updates. Implementations that cannot provide atomicity across
	// the whole batch must document that a caller may observe partial
	// persistence on error (see pkg/snapshot's baseOperation.Push).
	ApplyOperation(batch []OperationWrite) ([]types.ID, error)

	// Close releases the underlying storage handle.
	Close() error
}

// ResourceRef names a single resource independent of its attribute payload.
type ResourceRef struct {
	Kind types.Kind
	ID   types.ID
}

// SnapshotRef names a CollectionCommit together with the collection it
// belongs to, so a caller scanning every active commit doesn't need a
// second Store round trip to recover the collection ID.
type SnapshotRef struct {
	CollectionID types.ID
	CommitID     types.ID
}

// OperationWrite is one entry in an ApplyOperation batch: either a create
// (ID == 0) or an update of an existing resource.
type OperationWrite struct {
	Kind  types.Kind
	ID    types.ID
	Attrs AttrMap
}
