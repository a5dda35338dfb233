package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JobMetrics collects worker pool metrics.
type JobMetrics struct {
	submitted *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	depth     prometheus.Gauge
}

// NewJobMetrics registers the job pool collectors with reg.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	return &JobMetrics{
		submitted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "submitted_total",
				Help:      "Jobs accepted by the queue by kind",
			},
			[]string{"kind"},
		),
		rejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "rejected_total",
				Help:      "Jobs rejected because the queue was full",
			},
			[]string{"kind"},
		),
		completed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "completed_total",
				Help:      "Jobs finished by kind and outcome",
			},
			[]string{"kind", "status"}, // status: ok, error
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "duration_milliseconds",
				Help:      "Time a worker spent on one job",
				Buckets:   durationBuckets,
			},
			[]string{"kind"},
		),
		depth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "queue_depth",
				Help:      "Jobs waiting in the priority queue",
			},
		),
	}
}

// ObserveSubmit records a submit attempt and the queue depth after it.
func (m *JobMetrics) ObserveSubmit(kind string, accepted bool, depth int) {
	if m == nil {
		return
	}

	if accepted {
		m.submitted.WithLabelValues(kind).Inc()
	} else {
		m.rejected.WithLabelValues(kind).Inc()
	}

	m.depth.Set(float64(depth))
}

// ObserveDone records a finished job.
func (m *JobMetrics) ObserveDone(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}

	m.completed.WithLabelValues(kind, status).Inc()
	m.duration.WithLabelValues(kind).Observe(millis(d))
}

// SetDepth records the current queue depth.
func (m *JobMetrics) SetDepth(depth int) {
	if m == nil {
		return
	}

	m.depth.Set(float64(depth))
}
