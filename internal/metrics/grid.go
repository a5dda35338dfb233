package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Thumbnail sources reported by the grid engine.
const (
	SourceCache   = "cache"
	SourcePreview = "preview"
	SourceDecode  = "decode"
)

// GridMetrics collects grid engine metrics.
type GridMetrics struct {
	loads     *prometheus.CounterVec
	loadTime  *prometheus.HistogramVec
	failures  prometheus.Counter
	evictions prometheus.Counter
	resident  prometheus.Gauge
	renders   prometheus.Counter
}

// NewGridMetrics registers the grid collectors with reg.
func NewGridMetrics(reg prometheus.Registerer) *GridMetrics {
	return &GridMetrics{
		loads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "grid",
				Name:      "loads_total",
				Help:      "Thumbnails loaded by source",
			},
			[]string{"source"}, // cache, preview, decode
		),
		loadTime: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "grid",
				Name:      "load_duration_milliseconds",
				Help:      "Duration of thumbnail loads by source",
				Buckets:   durationBuckets,
			},
			[]string{"source"},
		),
		failures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "grid",
				Name:      "load_failures_total",
				Help:      "Thumbnail loads that could not produce an image",
			},
		),
		evictions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "grid",
				Name:      "evictions_total",
				Help:      "Resident thumbnails released by windowing or zoom",
			},
		),
		resident: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "grid",
				Name:      "resident_thumbnails",
				Help:      "Thumbnails currently held in memory",
			},
		),
		renders: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "grid",
				Name:      "renders_total",
				Help:      "Frames produced",
			},
		),
	}
}

// ObserveLoad records one successful thumbnail load.
func (m *GridMetrics) ObserveLoad(source string, d time.Duration) {
	if m == nil {
		return
	}

	m.loads.WithLabelValues(source).Inc()
	m.loadTime.WithLabelValues(source).Observe(millis(d))
}

// ObserveLoadFailure records one failed thumbnail load.
func (m *GridMetrics) ObserveLoadFailure() {
	if m == nil {
		return
	}

	m.failures.Inc()
}

// ObserveEvictions records n released thumbnails.
func (m *GridMetrics) ObserveEvictions(n int) {
	if m == nil || n == 0 {
		return
	}

	m.evictions.Add(float64(n))
}

// SetResident records the number of thumbnails in memory.
func (m *GridMetrics) SetResident(n int) {
	if m == nil {
		return
	}

	m.resident.Set(float64(n))
}

// ObserveRender records one produced frame.
func (m *GridMetrics) ObserveRender() {
	if m == nil {
		return
	}

	m.renders.Inc()
}
