package seqfile

// metrics.go exposes Prometheus counters and histograms for writers,
// readers, sorters and mergers. A nil *Metrics disables collection.

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "seqfile"

// Metrics holds the collectors updated by this package.
type Metrics struct {
	RecordsWritten prometheus.Counter
	BytesWritten   prometheus.Counter
	RecordsRead    prometheus.Counter
	SyncMarkers    prometheus.Counter
	Blocks         prometheus.Counter
	Spills         prometheus.Counter
	MergePasses    prometheus.Counter
	CombinedRuns   prometheus.Counter
	SortDuration   prometheus.Histogram
	MergeDuration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecordsWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_written_total",
			Help:      "Records appended by writers.",
		}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bytes_written_total",
			Help:      "Bytes written to files, headers included.",
		}),
		RecordsRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_read_total",
			Help:      "Records returned by readers.",
		}),
		SyncMarkers: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sync_markers_total",
			Help:      "Sync markers written, block markers included.",
		}),
		Blocks: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_written_total",
			Help:      "Compressed blocks written.",
		}),
		Spills: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sort_spills_total",
			Help:      "Sorted segments spilled by sorters.",
		}),
		MergePasses: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "merge_passes_total",
			Help:      "Merge passes run, final passes included.",
		}),
		CombinedRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "combined_runs_total",
			Help:      "Runs of equal keys handed to a combiner.",
		}),
		SortDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "sort_duration_seconds",
			Help:      "Duration of sort calls.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		MergeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "merge_duration_seconds",
			Help:      "Duration of single merge passes.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

func (m *Metrics) recordWritten() {
	if m == nil {
		return
	}
	m.RecordsWritten.Inc()
}

func (m *Metrics) bytesWritten(n int) {
	if m == nil {
		return
	}
	m.BytesWritten.Add(float64(n))
}

func (m *Metrics) recordRead() {
	if m == nil {
		return
	}
	m.RecordsRead.Inc()
}

func (m *Metrics) syncMarker() {
	if m == nil {
		return
	}
	m.SyncMarkers.Inc()
}

func (m *Metrics) block() {
	if m == nil {
		return
	}
	m.Blocks.Inc()
}

func (m *Metrics) spill() {
	if m == nil {
		return
	}
	m.Spills.Inc()
}

func (m *Metrics) mergePass(start time.Time) {
	if m == nil {
		return
	}
	m.MergePasses.Inc()
	m.MergeDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) combinedRun() {
	if m == nil {
		return
	}
	m.CombinedRuns.Inc()
}

func (m *Metrics) sorted(start time.Time) {
	if m == nil {
		return
	}
	m.SortDuration.Observe(time.Since(start).Seconds())
}
