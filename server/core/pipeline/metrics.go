package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's prometheus collectors
type Metrics struct {
	Jobs            *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	FramesExtracted prometheus.Histogram
	CleanupFailures prometheus.Counter
	InFlight        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "framesight",
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Pipeline runs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "framesight",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900},
		}, []string{"stage"}),
		FramesExtracted: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "framesight",
			Subsystem: "pipeline",
			Name:      "frames_extracted",
			Help:      "Frames produced per video.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		CleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "framesight",
			Subsystem: "pipeline",
			Name:      "cleanup_failures_total",
			Help:      "Runs whose temporary files could not all be removed.",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "framesight",
			Subsystem: "pipeline",
			Name:      "jobs_in_flight",
			Help:      "Pipeline runs currently executing.",
		}),
	}
}

func (m *Metrics) observeStage(stage State, start time.Time) {
	m.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}
