package executor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/snapmeta/pkg/snapshot"
)

// fakeOp is a minimal snapshot.Operation whose Push blocks until release is
// closed (or runs immediately if release is nil), recording its push onto
// order under mu.
type fakeOp struct {
	release <-chan struct{}
	mu      *sync.Mutex
	order   *[]string
	name    string
	pushErr error
}

func (f *fakeOp) Push() error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	*f.order = append(*f.order, f.name)
	f.mu.Unlock()
	return f.pushErr
}

func (f *fakeOp) GetStatus() error { return f.pushErr }

func (f *fakeOp) GetSnapshot() (*snapshot.ScopedSnapshot, error) { return nil, nil }

func TestOperationExecutorRunsFIFOPerCollection(t *testing.T) {
	e := NewOperationExecutor()
	defer e.Stop()

	var mu sync.Mutex
	var order []string

	release := make(chan struct{})
	first := &fakeOp{release: release, mu: &mu, order: &order, name: "first"}
	second := &fakeOp{mu: &mu, order: &order, name: "second"}

	done := make(chan struct{})
	go func() {
		require.NoError(t, e.Submit(1, first))
		close(done)
	}()

	// give first a chance to block on release before submitting second,
	// so second is genuinely queued behind it rather than racing ahead.
	time.Sleep(10 * time.Millisecond)

	secondDone := make(chan error, 1)
	go func() { secondDone <- e.Submit(1, second) }()

	time.Sleep(10 * time.Millisecond)
	close(release)

	<-done
	require.NoError(t, <-secondDone)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestOperationExecutorDifferentCollectionsRunConcurrently(t *testing.T) {
	e := NewOperationExecutor()
	defer e.Stop()

	release := make(chan struct{})
	var mu sync.Mutex
	var order []string

	opA := &fakeOp{release: release, mu: &mu, order: &order, name: "a"}
	opB := &fakeOp{mu: &mu, order: &order, name: "b"}

	doneA := make(chan error, 1)
	go func() { doneA <- e.Submit(1, opA) }()

	// opB is for a different collection, so it must not wait on opA's release.
	require.NoError(t, e.Submit(2, opB))

	close(release)
	require.NoError(t, <-doneA)
}

func TestOperationExecutorSubmitReturnsPushError(t *testing.T) {
	e := NewOperationExecutor()
	defer e.Stop()

	boom := assertErr("boom")
	op := &fakeOp{mu: &sync.Mutex{}, order: &[]string{}, name: "x", pushErr: boom}
	err := e.Submit(1, op)
	assert.Equal(t, boom, err)
}

func TestOperationExecutorSubmitAfterStop(t *testing.T) {
	e := NewOperationExecutor()
	e.Stop()

	op := &fakeOp{mu: &sync.Mutex{}, order: &[]string{}, name: "x"}
	err := e.Submit(1, op)
	assert.ErrorIs(t, err, ErrExecutorStopped)
}

func TestOperationExecutorQueueFull(t *testing.T) {
	e := NewOperationExecutor()
	defer e.Stop()

	release := make(chan struct{})
	defer close(release)
	var mu sync.Mutex
	var order []string

	// the first Submit's worker goroutine immediately dequeues and blocks
	// on release; the queue itself (capacity defaultQueueCapacity) is then
	// filled directly, so the next Submit finds it full.
	blocking := &fakeOp{release: release, mu: &mu, order: &order, name: "blocker"}
	go e.Submit(1, blocking)
	time.Sleep(10 * time.Millisecond)

	// the worker for collection 1 already dequeued "blocker" and is stuck
	// on release, so its queue channel is empty and free to fill directly.
	e.mu.Lock()
	q := e.queues[1]
	e.mu.Unlock()

	for i := 0; i < defaultQueueCapacity; i++ {
		select {
		case q.ch <- job{op: &fakeOp{mu: &mu, order: &order, name: "filler"}, done: make(chan error, 1)}:
		default:
		}
	}
	err := e.Submit(1, &fakeOp{mu: &mu, order: &order, name: "overflow"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestEventExecutorRunsSubmittedEvents(t *testing.T) {
	e := NewEventExecutor(2, 8)
	defer e.Stop()

	var count int64
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Submit(func() { atomic.AddInt64(&count, 1) }))
	}
	e.WaitToFinish()
	assert.Equal(t, int64(5), atomic.LoadInt64(&count))
}

func TestEventExecutorRecoversPanickingEvent(t *testing.T) {
	e := NewEventExecutor(1, 8)
	defer e.Stop()

	var ran int64
	require.NoError(t, e.Submit(func() { panic("boom") }))
	require.NoError(t, e.Submit(func() { atomic.AddInt64(&ran, 1) }))
	e.WaitToFinish()
	assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
}

func TestEventExecutorSubmitAfterStop(t *testing.T) {
	e := NewEventExecutor(1, 8)
	e.Stop()

	err := e.Submit(func() {})
	assert.ErrorIs(t, err, ErrExecutorStopped)
}
