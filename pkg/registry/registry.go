package registry

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/snapmeta/pkg/config"
	"github.com/cuemby/snapmeta/pkg/executor"
	"github.com/cuemby/snapmeta/pkg/log"
	"github.com/cuemby/snapmeta/pkg/metrics"
	"github.com/cuemby/snapmeta/pkg/snapshot"
	"github.com/cuemby/snapmeta/pkg/storage"
	"github.com/cuemby/snapmeta/pkg/types"
)

// Registry is the singleton surface the rest of the database calls into:
// one Holder per live collection, the operation/event executors, and the
// reader/writer timer loops that keep replicas in sync and reclaim
// dropped collections.
type Registry struct {
	store  storage.Store
	policy snapshot.SnapshotPolicy
	cfg    *config.Config

	opExec *executor.OperationExecutor
	evExec *executor.EventExecutor

	mu        sync.RWMutex
	holders   map[types.ID]*snapshot.Holder
	nameIDMap map[string]map[types.ID]struct{}
	aliveCIDs map[types.ID]struct{}

	inactiveMu      sync.Mutex
	inactiveHolders map[types.ID]*snapshot.Holder

	latestUpdated int64 // atomic, holds types.Timestamp

	invalidMu  sync.Mutex
	invalidSet map[types.ID]struct{}

	readerStop chan struct{}
	writerStop chan struct{}
	wg         sync.WaitGroup

	readerStatsMu sync.Mutex
	readerCycles  int
	readerDurSum  time.Duration
	readerDurMin  time.Duration
	readerDurMax  time.Duration
}

// New constructs a Registry against an already-open Store. Call Init to
// warm-load existing collections before StartService.
func New(cfg *config.Config, store storage.Store, policy snapshot.SnapshotPolicy) *Registry {
	if policy == nil {
		policy = snapshot.ActiveOnlyPolicy{}
	}
	return &Registry{
		store:           store,
		policy:          policy,
		cfg:             cfg,
		opExec:          executor.NewOperationExecutor(),
		evExec:          executor.NewEventExecutor(2, 256),
		holders:         map[types.ID]*snapshot.Holder{},
		nameIDMap:       map[string]map[types.ID]struct{}{},
		aliveCIDs:       map[types.ID]struct{}{},
		inactiveHolders: map[types.ID]*snapshot.Holder{},
		invalidSet:      map[types.ID]struct{}{},
		readerStop:      make(chan struct{}),
		writerStop:      make(chan struct{}),
	}
}

// Init enumerates every active collection in the Store and warm-loads a
// holder for each, fanned out across GOMAXPROCS workers. It also kicks off
// an orphaned-resource GC pass and waits for it to finish before
// returning.
func (r *Registry) Init() error {
	r.runOrphanGC()

	ids, err := r.store.GetCollectionIDs(false)
	if err != nil {
		return fmt.Errorf("registry: init: list collections: %w", err)
	}

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	var mu sync.Mutex
	for _, cid := range ids {
		cid := cid
		g.Go(func() error {
			holder, name, err := r.loadHolder(cid)
			if err != nil {
				return fmt.Errorf("registry: warm-load collection %d: %w", cid, err)
			}
			mu.Lock()
			r.registerHolder(cid, name, holder)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	metrics.HoldersTotal.Set(float64(len(r.holders)))
	log.Info(fmt.Sprintf("registry: warm-loaded %d collections", len(ids)))
	return nil
}

// loadHolder builds a fresh Holder for cid by resolving its current active
// CollectionCommit from the Store and loading that snapshot's closure.
func (r *Registry) loadHolder(cid types.ID) (*snapshot.Holder, string, error) {
	commitIDs, err := r.store.GetSnapshotIDs(cid, false)
	if err != nil {
		return nil, "", err
	}
	if len(commitIDs) == 0 {
		return nil, "", fmt.Errorf("%w: collection %d has no active commit", ErrUnknownCollection, cid)
	}

	holder := snapshot.NewHolder(cid, r.policy)
	snap, err := holder.Add(r.store, commitIDs[len(commitIDs)-1])
	if err != nil {
		return nil, "", err
	}
	return holder, snap.Collection.GetName(), nil
}

// registerHolder installs holder under cid/name in the active maps. Caller
// must already hold whatever lock it needs; registerHolder takes r.mu
// itself.
func (r *Registry) registerHolder(cid types.ID, name string, holder *snapshot.Holder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holders[cid] = holder
	r.aliveCIDs[cid] = struct{}{}
	if r.nameIDMap[name] == nil {
		r.nameIDMap[name] = map[types.ID]struct{}{}
	}
	r.nameIDMap[name][cid] = struct{}{}
}

// StartService starts the timer loop for this node's role when cluster
// mode is enabled: the reader timer on an RO node, the writer timer on an
// RW node. Single-node deployments never need them: there's no replica
// to synchronize and no cross-node drop to reconcile.
func (r *Registry) StartService() {
	if r.cfg == nil || !r.cfg.Cluster.Enable {
		return
	}
	r.wg.Add(1)
	if r.cfg.Cluster.Role == config.RoleReadOnly {
		go r.runReaderTimer()
		return
	}
	go r.runWriterTimer()
}

// StopService stops the timer loops and both executors, then closes the
// Store.
func (r *Registry) StopService() error {
	close(r.readerStop)
	close(r.writerStop)
	r.wg.Wait()

	r.opExec.Stop()
	r.evExec.Stop()

	return r.store.Close()
}

// CreateCollection builds a brand new collection and registers its
// holder. This is the one creation path that doesn't go through the
// per-collection operation executor: there's no holder to serialize
// against until this call produces one.
func (r *Registry) CreateCollection(name string, params []byte, requestID string) (*snapshot.ScopedSnapshot, error) {
	collID, err := r.store.NextID(types.KindCollection)
	if err != nil {
		return nil, fmt.Errorf("registry: allocate collection id: %w", err)
	}

	holder := snapshot.NewHolder(collID, r.policy)
	op := snapshot.NewBuildOperation(r.store, holder, collID, name, params, requestID)
	if err := op.Push(); err != nil {
		return nil, err
	}

	r.registerHolder(collID, name, holder)
	metrics.HoldersTotal.Set(float64(len(r.holders)))

	return op.GetSnapshot()
}

// Store returns the underlying Store, for callers that need to build an
// Operation Registry has no dedicated wrapper for.
func (r *Registry) Store() storage.Store {
	return r.store
}

// Holder returns the live holder for a collection, for callers (the debug
// CLI, tests) that need to build an Operation type Registry has no
// dedicated wrapper for.
func (r *Registry) Holder(cid types.ID) (*snapshot.Holder, error) {
	return r.holderFor(cid)
}

// BaseSnapshot returns collectionID's current active snapshot, unpinned.
// Safe to use as an Operation's base without holding a ScopedSnapshot: the
// active snapshot is never a GC candidate regardless of refcount.
func (r *Registry) BaseSnapshot(cid types.ID) (*snapshot.Snapshot, error) {
	h, err := r.holderFor(cid)
	if err != nil {
		return nil, err
	}
	scoped, err := h.Get(0)
	if err != nil {
		return nil, err
	}
	defer scoped.Release()
	return scoped.Snapshot(), nil
}

// holderFor returns the holder for a live collection ID.
func (r *Registry) holderFor(cid types.ID) (*snapshot.Holder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.holders[cid]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCollection, cid)
	}
	return h, nil
}

// ResolveName returns the collection ID(s) currently registered for name.
// A name normally maps to exactly one live ID; more than one can appear
// transiently around a drop-and-recreate.
func (r *Registry) ResolveName(name string) ([]types.ID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.nameIDMap[name]
	if !ok || len(set) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	ids := make([]types.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids, nil
}

// GetSnapshot resolves collectionID (or the active commit if id == 0) to a
// pinned handle through that collection's holder.
func (r *Registry) GetSnapshot(collectionID, id types.ID) (*snapshot.ScopedSnapshot, error) {
	h, err := r.holderFor(collectionID)
	if err != nil {
		return nil, err
	}
	return h.Get(id)
}

// GetSnapshotByName resolves name to a collection ID before delegating to
// GetSnapshot. If more than one ID is registered under name, the most
// recently created one wins.
func (r *Registry) GetSnapshotByName(name string, id types.ID) (*snapshot.ScopedSnapshot, error) {
	ids, err := r.ResolveName(name)
	if err != nil {
		return nil, err
	}
	chosen := ids[0]
	for _, cid := range ids {
		if cid > chosen {
			chosen = cid
		}
	}
	return r.GetSnapshot(chosen, id)
}

// LoadSnapshot ensures a holder exists for collectionID (loading it from
// the Store if this is the first time it's been asked for) and returns a
// pinned handle on commitID.
func (r *Registry) LoadSnapshot(collectionID, commitID types.ID) (*snapshot.ScopedSnapshot, error) {
	h, err := r.holderFor(collectionID)
	if err != nil {
		holder, name, loadErr := r.loadHolder(collectionID)
		if loadErr != nil {
			return nil, loadErr
		}
		r.registerHolder(collectionID, name, holder)
		h = holder
	}

	if _, err := h.Load(r.store, commitID); err != nil {
		return nil, err
	}
	return h.Get(commitID)
}

// GetCollectionIds returns every live collection ID under the shared lock.
func (r *Registry) GetCollectionIds() []types.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]types.ID, 0, len(r.aliveCIDs))
	for id := range r.aliveCIDs {
		ids = append(ids, id)
	}
	return ids
}

// GetCollectionNames returns every live collection name under the shared
// lock.
func (r *Registry) GetCollectionNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.nameIDMap))
	for name := range r.nameIDMap {
		names = append(names, name)
	}
	return names
}

// Submit runs op against collectionID's holder through the operation
// executor, preserving FIFO order relative to any other Push on the same
// collection.
func (r *Registry) Submit(collectionID types.ID, op snapshot.Operation) error {
	return r.opExec.Submit(collectionID, op)
}

// DropCollection runs a DropCollectionOperation against the collection's
// current snapshot, then moves its holder from the active maps to
// inactive_holders_ for the writer timer to drain. The active lock is
// released before the inactive one is acquired — the one handoff where
// the two lock domains interact.
func (r *Registry) DropCollection(collectionID types.ID, requestID string) error {
	holder, err := r.holderFor(collectionID)
	if err != nil {
		return err
	}
	scoped, err := holder.Get(0)
	if err != nil {
		return err
	}
	base := scoped.Snapshot()
	scoped.Release()

	op := snapshot.DropCollectionOperation(r.store, holder, base, requestID)
	if err := r.opExec.Submit(collectionID, op); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.holders, collectionID)
	delete(r.aliveCIDs, collectionID)
	for n, ids := range r.nameIDMap {
		if _, ok := ids[collectionID]; ok {
			delete(ids, collectionID)
			if len(ids) == 0 {
				delete(r.nameIDMap, n)
			}
		}
	}
	r.mu.Unlock()

	r.inactiveMu.Lock()
	r.inactiveHolders[collectionID] = holder
	r.inactiveMu.Unlock()

	metrics.HoldersTotal.Set(float64(len(r.holders)))
	metrics.InactiveHoldersTotal.Set(float64(len(r.inactiveHolders)))
	return nil
}

// DropPartition runs a DropPartitionOperation; the collection's holder
// retains its entry but gains a new active snapshot.
func (r *Registry) DropPartition(collectionID, partitionID types.ID, requestID string) error {
	holder, err := r.holderFor(collectionID)
	if err != nil {
		return err
	}
	scoped, err := holder.Get(0)
	if err != nil {
		return err
	}
	base := scoped.Snapshot()
	scoped.Release()

	op := snapshot.DropPartitionOperation(r.store, holder, base, partitionID, requestID)
	return r.opExec.Submit(collectionID, op)
}

func (r *Registry) runOrphanGC() {
	refs, err := r.store.GetInactiveResources()
	if err != nil {
		log.Error(fmt.Sprintf("registry: inactive resource scan failed: %v", err))
		return
	}
	for _, ref := range refs {
		if err := r.store.Remove(ref.Kind, ref.ID); err != nil {
			log.Error(fmt.Sprintf("registry: gc: failed to remove %s %d: %v", ref.Kind, ref.ID, err))
			continue
		}
		metrics.GCOrphanedResourcesTotal.Inc()
	}
}

func (r *Registry) markInvalid(ccid types.ID) {
	r.invalidMu.Lock()
	defer r.invalidMu.Unlock()
	if _, already := r.invalidSet[ccid]; already {
		return
	}
	r.invalidSet[ccid] = struct{}{}
	log.Error(fmt.Sprintf("registry: commit %d is not active", ccid))
}

func (r *Registry) latestUpdatedTimestamp() types.Timestamp {
	return types.Timestamp(atomic.LoadInt64(&r.latestUpdated))
}

func (r *Registry) advanceLatestUpdated(t types.Timestamp) {
	for {
		cur := atomic.LoadInt64(&r.latestUpdated)
		if int64(t) <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&r.latestUpdated, cur, int64(t)) {
			return
		}
	}
}
