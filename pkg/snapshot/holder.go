package snapshot

import (
	"fmt"
	"sync"

	"github.com/cuemby/snapmeta/pkg/log"
	"github.com/cuemby/snapmeta/pkg/metrics"
	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// Holder caches every Snapshot loaded or produced for a single collection,
// tracks which one is active, and periodically ejects the rest according
// to its SnapshotPolicy. Every exported method is safe for concurrent use.
type Holder struct {
	mu sync.RWMutex

	collectionID types.ID
	snapshots    map[types.ID]*Snapshot
	active       types.ID
	policy       SnapshotPolicy
}

// NewHolder returns an empty Holder for collectionID using policy.
func NewHolder(collectionID types.ID, policy SnapshotPolicy) *Holder {
	if policy == nil {
		policy = ActiveOnlyPolicy{}
	}
	return &Holder{
		collectionID: collectionID,
		snapshots:    map[types.ID]*Snapshot{},
		policy:       policy,
	}
}

// Add loads commitID's closure from store, inserts it into the holder, and
// — if it is newer than the current active snapshot — promotes it to
// active. Returns the loaded snapshot.
func (h *Holder) Add(store storage.Store, commitID types.ID) (*Snapshot, error) {
	snap, err := loadSnapshotClosure(store, h.collectionID, commitID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	h.mu.Lock()
	h.snapshots[commitID] = snap
	if h.active == 0 || snap.UpdatedOn() > h.snapshots[h.active].UpdatedOn() {
		h.active = commitID
	}
	n := len(h.snapshots)
	h.mu.Unlock()

	metrics.SnapshotsPerHolder.WithLabelValues(fmt.Sprint(h.collectionID)).Set(float64(n))
	return snap, nil
}

// Load returns the cached snapshot for id if present, otherwise loads it
// from store and caches it (without affecting which snapshot is active).
func (h *Holder) Load(store storage.Store, id types.ID) (*Snapshot, error) {
	h.mu.RLock()
	snap, ok := h.snapshots[id]
	h.mu.RUnlock()
	if ok {
		return snap, nil
	}

	snap, err := loadSnapshotClosure(store, h.collectionID, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	h.mu.Lock()
	h.snapshots[id] = snap
	h.mu.Unlock()
	return snap, nil
}

// Get returns a pinned handle on the active snapshot. A non-zero id must
// name the active snapshot: an id that is cached but not active yields
// ErrNotActive, and an id that is not cached yields ErrNotFound.
func (h *Holder) Get(id types.ID) (*ScopedSnapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	target := id
	if target == 0 {
		target = h.active
	}
	snap, ok := h.snapshots[target]
	if !ok {
		return nil, fmt.Errorf("%w: snapshot %d", ErrNotFound, target)
	}
	if target != h.active {
		return nil, ErrNotActive
	}
	return newScopedSnapshot(h, snap), nil
}

// activeSnapshot returns the currently-active snapshot ID without pinning
// it, for the stale-base check a running Operation performs before commit.
func (h *Holder) activeSnapshot() types.ID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active
}

// NumOfSnapshot returns how many snapshots the holder currently caches.
func (h *Holder) NumOfSnapshot() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.snapshots)
}

// ApplyEject runs the holder's policy over its non-active, unpinned
// snapshots and drops whatever it returns. ErrEmptyHolder signals the
// holder has nothing left at all — the registry's writer timer treats that
// as "this collection has been fully dropped and GC'd", not as a failure.
func (h *Holder) ApplyEject() error {
	h.mu.Lock()
	candidates := map[types.ID]*Snapshot{}
	for id, snap := range h.snapshots {
		if id == h.active || snap.RefCount() > 0 {
			continue
		}
		candidates[id] = snap
	}
	evict := h.policy.Evictable(candidates)
	for _, id := range evict {
		delete(h.snapshots, id)
	}
	n := len(h.snapshots)
	h.mu.Unlock()

	if len(evict) > 0 {
		log.WithCollection(h.collectionID).Debug().
			Int("ejected", len(evict)).
			Int("remaining", n).
			Msg("holder: ejected snapshots")
		metrics.GCEjectedTotal.WithLabelValues(fmt.Sprint(h.collectionID)).Add(float64(len(evict)))
	}
	metrics.SnapshotsPerHolder.WithLabelValues(fmt.Sprint(h.collectionID)).Set(float64(n))

	if n == 0 {
		return ErrEmptyHolder
	}
	return nil
}
