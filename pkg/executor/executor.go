package executor

import (
	"fmt"
	"sync"

	"github.com/cuemby/snapmeta/pkg/log"
	"github.com/cuemby/snapmeta/pkg/metrics"
	"github.com/cuemby/snapmeta/pkg/snapshot"
	"github.com/cuemby/snapmeta/pkg/types"
)

const defaultQueueCapacity = 64

type job struct {
	op   snapshot.Operation
	done chan error
}

type collectionQueue struct {
	ch chan job
}

// OperationExecutor runs one Operation at a time per collection, in the
// order Submit was called for that collection, while letting different
// collections commit fully in parallel. Each collection gets its own
// worker goroutine, started lazily on first Submit and left running for
// the executor's lifetime.
type OperationExecutor struct {
	mu      sync.Mutex
	queues  map[types.ID]*collectionQueue
	stopped bool
	wg      sync.WaitGroup
}

// NewOperationExecutor returns an executor with no collection queues yet;
// they are created on demand by Submit.
func NewOperationExecutor() *OperationExecutor {
	return &OperationExecutor{
		queues: map[types.ID]*collectionQueue{},
	}
}

// Submit enqueues op for collectionID and blocks until it has run,
// returning whatever error op.Push produced (or ErrQueueFull/ErrExecutorStopped
// if it could not be enqueued at all).
func (e *OperationExecutor) Submit(collectionID types.ID, op snapshot.Operation) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrExecutorStopped
	}
	q, ok := e.queues[collectionID]
	if !ok {
		q = &collectionQueue{ch: make(chan job, defaultQueueCapacity)}
		e.queues[collectionID] = q
		e.wg.Add(1)
		go e.run(collectionID, q)
	}
	e.mu.Unlock()

	j := job{op: op, done: make(chan error, 1)}
	select {
	case q.ch <- j:
	default:
		return fmt.Errorf("%w: collection %d", ErrQueueFull, collectionID)
	}

	metrics.ExecutorQueueDepth.WithLabelValues(fmt.Sprint(collectionID)).Set(float64(len(q.ch)))
	return <-j.done
}

// Stop closes every collection queue and waits for their workers to drain.
// Submit calls after Stop returns ErrExecutorStopped.
func (e *OperationExecutor) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	for _, q := range e.queues {
		close(q.ch)
	}
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *OperationExecutor) run(collectionID types.ID, q *collectionQueue) {
	defer e.wg.Done()
	logger := log.WithCollection(collectionID)

	for j := range q.ch {
		err := j.op.Push()
		if err != nil {
			logger.Warn().Err(err).Msg("executor: operation failed")
		}
		metrics.ExecutorQueueDepth.WithLabelValues(fmt.Sprint(collectionID)).Set(float64(len(q.ch)))
		j.done <- err
	}
}
