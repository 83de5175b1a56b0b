package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger module.
type Metrics struct {
	// Repetitions recorded, by input modality
	RepetitionsRecorded *prometheus.CounterVec

	// Deduplicated submissions that did not change the log
	DuplicatesIgnored prometheus.Counter

	// Cold-start and recovery rebuilds of the aggregate cache
	CacheRebuilds prometheus.Counter

	// Reconcile runs that found the cache disagreeing with a replay
	AggregationMismatches prometheus.Counter

	// Reads served from the in-process last-known value because both the
	// cache and the event store were unreachable
	DegradedReads prometheus.Counter

	// Record path latency including persistence
	RecordLatency prometheus.Histogram
}

// New creates a new Metrics instance with all ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		RepetitionsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "japa_ledger_repetitions_total",
			Help: "Total repetition events recorded, by source",
		}, []string{"source"}), // source: "manual", "audio"

		DuplicatesIgnored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "japa_ledger_duplicates_ignored_total",
			Help: "Total submissions ignored because their dedup key was already used",
		}),

		CacheRebuilds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "japa_ledger_cache_rebuilds_total",
			Help: "Total aggregate cache rebuilds from the event log",
		}),

		AggregationMismatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "japa_ledger_aggregation_mismatches_total",
			Help: "Total reconcile runs where the cache disagreed with a full replay",
		}),

		DegradedReads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "japa_ledger_degraded_reads_total",
			Help: "Total reads served from the last-known value during storage outages",
		}),

		RecordLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "japa_ledger_record_duration_seconds",
			Help:    "Duration of recording one repetition including persistence",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementRecorded counts one recorded repetition.
func (m *Metrics) IncrementRecorded(source string) {
	if m != nil {
		m.RepetitionsRecorded.WithLabelValues(source).Inc()
	}
}

// IncrementDuplicate counts one deduplicated submission.
func (m *Metrics) IncrementDuplicate() {
	if m != nil {
		m.DuplicatesIgnored.Inc()
	}
}

// IncrementRebuild counts one cache rebuild.
func (m *Metrics) IncrementRebuild() {
	if m != nil {
		m.CacheRebuilds.Inc()
	}
}

// IncrementMismatch counts one reconcile mismatch.
func (m *Metrics) IncrementMismatch() {
	if m != nil {
		m.AggregationMismatches.Inc()
	}
}

// IncrementDegradedRead counts one degraded read.
func (m *Metrics) IncrementDegradedRead() {
	if m != nil {
		m.DegradedReads.Inc()
	}
}

// ObserveRecordLatency records the duration of one record call.
func (m *Metrics) ObserveRecordLatency(d time.Duration) {
	if m != nil {
		m.RecordLatency.Observe(d.Seconds())
	}
}
