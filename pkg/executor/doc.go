// Package executor runs Operations (and post-commit Events) off the
// caller's goroutine while still giving each collection a strict FIFO
// commit order: two concurrent Pushes against the same collection must
// never race on which one observes the other as its base snapshot.
//
// OperationExecutor keeps one worker goroutine and a bounded channel per
// collection, grounded on the teacher's per-node heartbeat/executor
// goroutines in pkg/worker — a ticker-driven loop replaced here by a
// channel-driven one since operations arrive on demand rather than on a
// fixed interval. EventExecutor is a simpler shared worker pool for
// fire-and-forget post-commit notifications that don't need per-collection
// ordering.
package executor
