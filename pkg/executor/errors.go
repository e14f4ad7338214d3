package executor

import "errors"

// ErrExecutorStopped is returned by Submit once Stop has been called.
var ErrExecutorStopped = errors.New("executor: stopped")

// ErrQueueFull is returned by Submit when a collection's queue is at
// capacity. The caller decides whether to retry or surface backpressure.
var ErrQueueFull = errors.New("executor: collection queue full")
