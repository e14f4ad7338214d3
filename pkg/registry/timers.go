package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/snapmeta/pkg/log"
	"github.com/cuemby/snapmeta/pkg/metrics"
	"github.com/cuemby/snapmeta/pkg/snapshot"
	"github.com/cuemby/snapmeta/pkg/types"
)

const statsSummaryEveryNCycles = 100

// runReaderTimer keeps read-only replicas in sync: it asks the Store for
// every active snapshot updated since the last cycle, loads each one, and
// evicts any collection the Store no longer lists.
func (r *Registry) runReaderTimer() {
	defer r.wg.Done()

	interval := time.Duration(r.cfg.ReaderTimerIntervalUS) * time.Microsecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.readerTimerCycle()
		case <-r.readerStop:
			return
		}
	}
}

func (r *Registry) readerTimerCycle() {
	timer := metrics.NewTimer()
	defer func() {
		dur := timer.Duration()
		metrics.ReaderTimerDuration.Observe(dur.Seconds())
		r.recordReaderCycle(dur)
	}()

	bound := r.latestUpdatedTimestamp()
	refs, maxUpdated, err := r.store.GetAllActiveSnapshotIDs(bound)
	if err != nil {
		log.Error(fmt.Sprintf("registry: reader timer: list active snapshots: %v", err))
		return
	}

	for _, ref := range refs {
		if _, err := r.LoadSnapshot(ref.CollectionID, ref.CommitID); err != nil {
			if errors.Is(err, snapshot.ErrNotActive) {
				r.markInvalid(ref.CommitID)
			} else {
				log.Error(fmt.Sprintf("registry: reader timer: load snapshot %d of collection %d: %v",
					ref.CommitID, ref.CollectionID, err))
			}
		}
	}
	if maxUpdated > 0 {
		r.advanceLatestUpdated(maxUpdated)
	}

	storeIDs, err := r.store.GetCollectionIDs(false)
	if err != nil {
		log.Error(fmt.Sprintf("registry: reader timer: list collections: %v", err))
		return
	}
	storeSet := make(map[types.ID]struct{}, len(storeIDs))
	for _, id := range storeIDs {
		storeSet[id] = struct{}{}
	}

	r.mu.RLock()
	var stale []types.ID
	for id := range r.aliveCIDs {
		if _, ok := storeSet[id]; !ok {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		r.evictCollection(id)
	}
}

func (r *Registry) evictCollection(cid types.ID) {
	r.mu.Lock()
	delete(r.holders, cid)
	delete(r.aliveCIDs, cid)
	for name, ids := range r.nameIDMap {
		delete(ids, cid)
		if len(ids) == 0 {
			delete(r.nameIDMap, name)
		}
	}
	r.mu.Unlock()
	metrics.HoldersTotal.Set(float64(len(r.holders)))
}

func (r *Registry) recordReaderCycle(dur time.Duration) {
	r.readerStatsMu.Lock()
	defer r.readerStatsMu.Unlock()

	r.readerCycles++
	r.readerDurSum += dur
	if r.readerDurMin == 0 || dur < r.readerDurMin {
		r.readerDurMin = dur
	}
	if dur > r.readerDurMax {
		r.readerDurMax = dur
	}

	if r.readerCycles%statsSummaryEveryNCycles == 0 {
		mean := r.readerDurSum / time.Duration(r.readerCycles)
		log.Info(fmt.Sprintf(
			"registry: reader timer summary over %d cycles: mean=%dus min=%dus max=%dus",
			r.readerCycles, mean.Microseconds(), r.readerDurMin.Microseconds(), r.readerDurMax.Microseconds(),
		))
		r.readerDurSum = 0
		r.readerDurMin = 0
		r.readerDurMax = 0
	}
}

// runWriterTimer drains inactive_holders_: in single-node mode it simply
// discards everything; in cluster mode it calls ApplyEject on each and
// drops any holder that reports it has nothing left.
func (r *Registry) runWriterTimer() {
	defer r.wg.Done()

	interval := time.Duration(r.cfg.WriterTimerIntervalUS) * time.Microsecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.writerTimerCycle()
		case <-r.writerStop:
			return
		}
	}
}

func (r *Registry) writerTimerCycle() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WriterTimerDuration)

	if !r.cfg.Cluster.Enable {
		r.inactiveMu.Lock()
		n := len(r.inactiveHolders)
		r.inactiveHolders = map[types.ID]*snapshot.Holder{}
		r.inactiveMu.Unlock()
		log.Debug(fmt.Sprintf("registry: writer timer: discarded %d inactive holders", n))
		return
	}

	r.inactiveMu.Lock()
	defer r.inactiveMu.Unlock()
	for cid, holder := range r.inactiveHolders {
		if err := holder.ApplyEject(); err != nil {
			delete(r.inactiveHolders, cid)
		}
	}
	metrics.InactiveHoldersTotal.Set(float64(len(r.inactiveHolders)))
}
