package snapshot

import "github.com/cuemby/snapmeta/pkg/types"

// SnapshotPolicy decides which of a holder's non-active snapshots are
// eligible for eviction. The active snapshot itself is never passed to
// Evictable — policies only ever judge history.
type SnapshotPolicy interface {
	// Evictable returns the IDs, among candidates, that the policy permits
	// the holder to eject right now. candidates already excludes the
	// active snapshot and anything with a non-zero RefCount.
	Evictable(candidates map[types.ID]*Snapshot) []types.ID
}

// ActiveOnlyPolicy evicts every unpinned, non-active snapshot immediately:
// the holder only ever retains the current snapshot plus whatever is
// pinned by a live ScopedSnapshot.
type ActiveOnlyPolicy struct{}

func (ActiveOnlyPolicy) Evictable(candidates map[types.ID]*Snapshot) []types.ID {
	ids := make([]types.ID, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	return ids
}

// RetainNPolicy keeps the N most recently updated unpinned, non-active
// snapshots around (for readers that loaded a still-recent version just
// before a commit superseded it) and evicts the rest.
type RetainNPolicy struct {
	N int
}

func (p RetainNPolicy) Evictable(candidates map[types.ID]*Snapshot) []types.ID {
	if len(candidates) <= p.N {
		return nil
	}
	type entry struct {
		id      types.ID
		updated types.Timestamp
	}
	entries := make([]entry, 0, len(candidates))
	for id, snap := range candidates {
		entries = append(entries, entry{id: id, updated: snap.UpdatedOn()})
	}
	// insertion sort, newest first: candidate sets are small (a handful
	// of recent commits per collection), not worth pulling in sort here.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].updated < entries[j].updated; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
	if p.N >= len(entries) {
		return nil
	}
	evict := make([]types.ID, 0, len(entries)-p.N)
	for _, e := range entries[p.N:] {
		evict = append(evict, e.id)
	}
	return evict
}
