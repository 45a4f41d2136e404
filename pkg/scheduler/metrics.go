package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks scheduler counters and gauges.
type Metrics struct {
	QueueDepth     prometheus.Gauge
	RunningCount   prometheus.Gauge
	SessionsTotal  *prometheus.CounterVec
	RunDurationSec prometheus.Histogram
}

// NewMetrics registers the scheduler metrics on the given registerer.
// A nil registerer falls back to the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pilot_scheduler_queue_depth",
			Help: "Number of sessions waiting for a concurrency slot.",
		}),
		RunningCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pilot_scheduler_running_sessions",
			Help: "Number of sessions currently executing.",
		}),
		SessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pilot_scheduler_sessions_total",
			Help: "Sessions finished, labelled by terminal state.",
		}, []string{"state"}),
		RunDurationSec: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pilot_scheduler_run_duration_seconds",
			Help:    "Wall-clock duration of completed runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
}
