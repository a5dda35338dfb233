// Package metrics provides the Prometheus-backed collectors for the
// thumbnail cache, the grid engine and the job pool.
//
// Consumers depend on small interfaces declared in their own packages
// (thumbcache.Metrics, grid.Metrics, jobq.Metrics). The types here satisfy
// them. Every method is safe on a nil receiver, so a nil *CacheMetrics
// disables collection without extra checks at the call site.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "thumbs"

// NewRegistry returns a fresh registry. Tests use one registry per case so
// collectors never collide.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// WriteText writes every metric family gathered from g in the Prometheus
// text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	for _, mf := range families {
		_, err := expfmt.MetricFamilyToText(w, mf)
		if err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}

	return nil
}

// durationBuckets covers stat-only cache lookups up to full decodes of
// large photos, in milliseconds.
var durationBuckets = []float64{
	0.1,  // 100us - stat only
	0.5,  // 500us
	1,    // 1ms - small cached thumbnail
	5,    // 5ms
	10,   // 10ms
	50,   // 50ms - typical full decode
	100,  // 100ms
	500,  // 500ms - large photo
	2000, // 2s
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
