/*
Package metrics defines and registers the Prometheus metrics exposed by the
snapshot metadata engine: holder sizes, GC activity, timer-loop duration, and
executor queue depth. Metrics are package-level so any component can record
against them without threading a collector through constructors, mirroring
how the rest of the engine's ambient packages (log) are used.
*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HoldersTotal tracks the number of collections with a live holder.
	HoldersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapmeta_holders_total",
			Help: "Number of collections with a registered snapshot holder",
		},
	)

	// SnapshotsPerHolder tracks how many snapshots a holder currently caches.
	SnapshotsPerHolder = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snapmeta_snapshots_per_holder",
			Help: "Number of snapshots cached by a holder, by collection",
		},
		[]string{"collection"},
	)

	// InactiveHoldersTotal tracks holders pending drain after DropCollection.
	InactiveHoldersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapmeta_inactive_holders_total",
			Help: "Number of holders moved to the inactive map awaiting drain",
		},
	)

	// OperationsSubmittedTotal counts operations pushed to the executor.
	OperationsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapmeta_operations_submitted_total",
			Help: "Total operations submitted to the operation executor, by kind",
		},
		[]string{"kind"},
	)

	// OperationsFailedTotal counts operations whose GetStatus returned an error.
	OperationsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapmeta_operations_failed_total",
			Help: "Total operations that failed, by kind and error reason",
		},
		[]string{"kind", "reason"},
	)

	// OperationDuration times Push-to-terminal-status latency.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapmeta_operation_duration_seconds",
			Help:    "Operation execution duration in seconds, by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// ExecutorQueueDepth tracks the pending-operation count per collection queue.
	ExecutorQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snapmeta_executor_queue_depth",
			Help: "Pending operations queued per collection",
		},
		[]string{"collection"},
	)

	// ReaderTimerDuration times each OnReaderTimer pass.
	ReaderTimerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapmeta_reader_timer_duration_seconds",
			Help:    "Duration of a reader-timer synchronization pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WriterTimerDuration times each OnWriterTimer pass.
	WriterTimerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapmeta_writer_timer_duration_seconds",
			Help:    "Duration of a writer-timer eject pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// GCEjectedTotal counts snapshots dropped by ApplyEject.
	GCEjectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapmeta_gc_ejected_total",
			Help: "Total snapshots ejected by the holder's GC policy, by collection",
		},
		[]string{"collection"},
	)

	// GCOrphanedResourcesTotal counts resources removed by the inactive-resources GC.
	GCOrphanedResourcesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapmeta_gc_orphaned_resources_total",
			Help: "Total orphaned resources physically removed by GC",
		},
	)

	// StaleSnapshotRejectionsTotal counts StaleSnapshot conflicts detected at commit.
	StaleSnapshotRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapmeta_stale_snapshot_rejections_total",
			Help: "Total operations rejected because their base snapshot was superseded",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HoldersTotal,
		SnapshotsPerHolder,
		InactiveHoldersTotal,
		OperationsSubmittedTotal,
		OperationsFailedTotal,
		OperationDuration,
		ExecutorQueueDepth,
		ReaderTimerDuration,
		WriterTimerDuration,
		GCEjectedTotal,
		GCOrphanedResourcesTotal,
		StaleSnapshotRejectionsTotal,
	)
}

// Timer is a small helper for timing a span of work and observing it into a
// histogram when the span completes.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
