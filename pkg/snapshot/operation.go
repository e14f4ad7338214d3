package snapshot

import (
	"fmt"
	"sync"

	"github.com/cuemby/snapmeta/pkg/log"
	"github.com/cuemby/snapmeta/pkg/metrics"
	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// BuildFunc assembles the ResourceContexts a single Operation needs to
// write, given the wall-clock "now" timestamp (nanoseconds since the Unix
// epoch) it commits at
// and the base snapshot it was constructed against. It returns the new
// CollectionCommit's context last — baseOperation uses its position in the
// slice as "the commit" only by convention, so build funcs must always
// append it last.
type BuildFunc func(store storage.Store, base *Snapshot, now types.Timestamp) ([]*ResourceContext, error)

// Operation is a single proposed mutation of a collection's resource
// graph. Push runs the operation on the calling goroutine and returns once
// it has committed or failed; it does not enqueue the operation with an
// executor. GetStatus reports the result of the last Push without
// blocking; GetSnapshot returns the resulting snapshot once Push has
// succeeded.
type Operation interface {
	// Push executes the operation's build step, applies the resulting
	// write batch, and updates the holder. It never blocks on anything
	// but the store and holder it was built against — callers that want
	// FIFO ordering per collection submit Operations through
	// pkg/executor rather than calling Push directly.
	Push() error

	// GetStatus returns the result of the last Push, or nil if Push
	// hasn't been called yet.
	GetStatus() error

	// GetSnapshot returns a pinned handle on the snapshot Push produced.
	// Only valid after a successful Push.
	GetSnapshot() (*ScopedSnapshot, error)
}

// baseOperation is the shared machinery every concrete operation
// constructor in this package wraps: optimistic-concurrency commit against
// a Holder, with StaleSnapshot detection when the holder's active snapshot
// has moved since the operation was built.
type baseOperation struct {
	kind      string
	store     storage.Store
	holder    *Holder
	base      *Snapshot
	requestID string
	build     BuildFunc

	mu     sync.Mutex
	done   bool
	err    error
	result *Snapshot
}

func newBaseOperation(kind string, store storage.Store, holder *Holder, base *Snapshot, requestID string, build BuildFunc) *baseOperation {
	return &baseOperation{
		kind:      kind,
		store:     store,
		holder:    holder,
		base:      base,
		requestID: requestID,
		build:     build,
	}
}

// Push runs the operation's build step against its base snapshot and
// commits the result. Failure partway through ApplyOperation may leave a
// partially-persisted batch if the Store can't guarantee atomicity; the
// next GC pass reclaims anything orphaned that way (see pkg/registry's
// inactive-resource sweep). BoltStore itself commits atomically, so this
// only matters for a hypothetical non-bbolt Store.
func (o *baseOperation) Push() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.OperationDuration.WithLabelValues(o.kind))

	o.mu.Lock()
	defer o.mu.Unlock()

	metrics.OperationsSubmittedTotal.WithLabelValues(o.kind).Inc()

	if o.base != nil && o.holder.activeSnapshot() != o.base.ID {
		metrics.StaleSnapshotRejectionsTotal.Inc()
		o.finish(nil, ErrStaleSnapshot)
		return ErrStaleSnapshot
	}

	now := nowTimestamp()
	ctxs, err := o.build(o.store, o.base, now)
	if err != nil {
		metrics.OperationsFailedTotal.WithLabelValues(o.kind, "build").Inc()
		o.finish(nil, err)
		return err
	}
	if len(ctxs) == 0 {
		err := fmt.Errorf("%w: operation %q produced no writes", ErrStore, o.kind)
		o.finish(nil, err)
		return err
	}

	batch := make([]storage.OperationWrite, len(ctxs))
	for i, ctx := range ctxs {
		w, err := ctx.toWrite()
		if err != nil {
			metrics.OperationsFailedTotal.WithLabelValues(o.kind, "encode").Inc()
			o.finish(nil, err)
			return err
		}
		batch[i] = w
	}

	ids, err := o.store.ApplyOperation(batch)
	if err != nil {
		metrics.OperationsFailedTotal.WithLabelValues(o.kind, "store").Inc()
		wrapped := fmt.Errorf("%w: %v", ErrStore, err)
		o.finish(nil, wrapped)
		return wrapped
	}

	// The new CollectionCommit is always the last context a build func
	// appends; its ID is whatever Store assigned (or pre-allocated, for
	// writes that came in with a non-zero ID already).
	commitID := ids[len(ids)-1]
	if commitID == 0 {
		if g, ok := ctxs[len(ctxs)-1].resource.(idGetter); ok {
			commitID = g.GetID()
		}
	}

	snap, err := o.holder.Add(o.store, commitID)
	if err != nil {
		metrics.OperationsFailedTotal.WithLabelValues(o.kind, "load").Inc()
		o.finish(nil, err)
		return err
	}

	log.WithSnapshot(o.holder.collectionID, commitID).Info().
		Str("request_id", o.requestID).
		Str("op", o.kind).
		Msg("operation committed")

	o.finish(snap, nil)
	return nil
}

func (o *baseOperation) finish(result *Snapshot, err error) {
	o.done = true
	o.result = result
	o.err = err
}

func (o *baseOperation) GetStatus() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func (o *baseOperation) GetSnapshot() (*ScopedSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.done {
		return nil, fmt.Errorf("%w: operation %q has not completed", ErrNotFound, o.kind)
	}
	if o.err != nil {
		return nil, o.err
	}
	return newScopedSnapshot(o.holder, o.result), nil
}
