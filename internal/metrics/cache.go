package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results reported by the thumbnail cache.
const (
	LookupHit         = "hit"
	LookupMiss        = "miss"
	LookupOutdated    = "outdated"
	LookupCorrupt     = "corrupt"
	LookupUncacheable = "uncacheable"
)

// CacheMetrics collects thumbnail disk cache metrics.
type CacheMetrics struct {
	lookups       *prometheus.CounterVec
	lookupLatency prometheus.Histogram
	writes        *prometheus.CounterVec
	writeBytes    prometheus.Histogram
	removals      prometheus.Counter
	gcRemoved     prometheus.Counter
	gcKept        prometheus.Counter
}

// NewCacheMetrics registers the cache collectors with reg.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	return &CacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"result"}, // hit, miss, outdated, corrupt, uncacheable
		),
		lookupLatency: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookup_duration_milliseconds",
				Help:      "Duration of cache lookups including decode of hits",
				Buckets:   durationBuckets,
			},
		),
		writes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "writes_total",
				Help:      "Cache writes by encoded format and outcome",
			},
			[]string{"format", "status"}, // status: ok, error
		),
		writeBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "write_bytes",
				Help:      "Size of encoded thumbnails written to the cache",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 7), // 1KB .. 4MB
			},
		),
		removals: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "removals_total",
				Help:      "Cache entries invalidated",
			},
		),
		gcRemoved: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "gc_removed_total",
				Help:      "Orphaned cache entries deleted by garbage collection",
			},
		),
		gcKept: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "gc_kept_total",
				Help:      "Cache entries kept by garbage collection",
			},
		),
	}
}

// ObserveLookup records one cache lookup.
func (m *CacheMetrics) ObserveLookup(result string, d time.Duration) {
	if m == nil {
		return
	}

	m.lookups.WithLabelValues(result).Inc()
	m.lookupLatency.Observe(millis(d))
}

// ObserveWrite records one cache write attempt. bytes is ignored on failure.
func (m *CacheMetrics) ObserveWrite(format string, bytes int64, err error) {
	if m == nil {
		return
	}

	if err != nil {
		m.writes.WithLabelValues(format, "error").Inc()

		return
	}

	m.writes.WithLabelValues(format, "ok").Inc()
	m.writeBytes.Observe(float64(bytes))
}

// ObserveRemove records one invalidated entry.
func (m *CacheMetrics) ObserveRemove() {
	if m == nil {
		return
	}

	m.removals.Inc()
}

// ObserveGC records the outcome of one garbage collection run.
func (m *CacheMetrics) ObserveGC(removed, kept int) {
	if m == nil {
		return
	}

	m.gcRemoved.Add(float64(removed))
	m.gcKept.Add(float64(kept))
}
