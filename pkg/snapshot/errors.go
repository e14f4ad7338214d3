package snapshot

import "errors"

var (
	// ErrNotFound is returned when a requested snapshot or holder id/name
	// has no entry in memory.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrNotActive is returned when a snapshot has been superseded and the
	// holder's policy denies scoped access to non-active snapshots.
	ErrNotActive = errors.New("snapshot: not active")

	// ErrStaleSnapshot is returned by an operation whose base snapshot's
	// id no longer matches the holder's active snapshot at commit time.
	ErrStaleSnapshot = errors.New("snapshot: stale base snapshot")

	// ErrEmptyHolder is a sentinel, not a failure: ApplyEject returns it
	// to tell the caller the holder has no snapshots left to retain.
	ErrEmptyHolder = errors.New("snapshot: holder empty")

	// ErrStore wraps an opaque error returned by the Store.
	ErrStore = errors.New("snapshot: store error")
)
