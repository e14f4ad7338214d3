// Package registry implements the top-level surface the rest of the
// database calls into: Registry owns the Store, one Holder per live
// collection, and the reader/writer timer loops that keep read replicas
// in sync and reclaim dropped collections in cluster mode.
//
// The timer loops are grounded on the teacher's pkg/reconciler ticker +
// stopCh pattern; Init's warm-load fan-out uses golang.org/x/sync/errgroup
// the way the wider example corpus parallelizes per-item store reads.
package registry
