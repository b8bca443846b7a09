// Package metrics exposes Prometheus instrumentation for storage, the
// transaction engine and the audit service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rzbill/auditstack/internal/txn"
)

const namespace = "auditstack"

// Recorder implements pebblestore.MetricsHook and txn.Metrics.
type Recorder struct {
	storageLatency *prometheus.HistogramVec
	storageBytes   *prometheus.CounterVec
	batchOps       prometheus.Counter

	commits       *prometheus.CounterVec
	commitLatency prometheus.Histogram
	retries       prometheus.Counter
	archived      prometheus.Counter

	entries *prometheus.CounterVec
}

// New registers the collectors on r.
func New(r prometheus.Registerer) *Recorder {
	f := promauto.With(r)
	return &Recorder{
		storageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "op_duration_seconds",
			Help:      "Latency of storage operations.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"op"}),
		storageBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "bytes_total",
			Help:      "Bytes moved by storage operations.",
		}, []string{"op"}),
		batchOps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "batch_ops_total",
			Help:      "Operations committed in batches.",
		}),
		commits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "commits_total",
			Help:      "Transaction commits by outcome.",
		}, []string{"outcome"}),
		commitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "commit_duration_seconds",
			Help:      "Time spent committing, including merges.",
			Buckets:   prometheus.DefBuckets,
		}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "retries_total",
			Help:      "Transactions retried after an unresolvable conflict.",
		}),
		archived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "archived_layers_total",
			Help:      "Layers written to the archive.",
		}),
		entries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Audit entries added.",
		}, []string{"ns"}),
	}
}

func (r *Recorder) ObserveWrite(elapsed time.Duration, bytes int) {
	r.storageLatency.WithLabelValues("write").Observe(elapsed.Seconds())
	r.storageBytes.WithLabelValues("write").Add(float64(bytes))
}

func (r *Recorder) ObserveRead(elapsed time.Duration, bytes int) {
	r.storageLatency.WithLabelValues("read").Observe(elapsed.Seconds())
	r.storageBytes.WithLabelValues("read").Add(float64(bytes))
}

func (r *Recorder) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	r.storageLatency.WithLabelValues("batch").Observe(elapsed.Seconds())
	r.storageBytes.WithLabelValues("batch").Add(float64(bytes))
	r.batchOps.Add(float64(numOps))
}

func (r *Recorder) ObserveCommit(outcome txn.Outcome, elapsed time.Duration) {
	r.commits.WithLabelValues(outcome.String()).Inc()
	r.commitLatency.Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveRetry() { r.retries.Inc() }

func (r *Recorder) ObserveArchived(layers int) { r.archived.Add(float64(layers)) }

// ObserveEntry counts an audit entry added in namespace ns.
func (r *Recorder) ObserveEntry(ns string) { r.entries.WithLabelValues(ns).Inc() }
