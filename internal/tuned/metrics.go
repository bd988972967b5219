package tuned

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the engine's operational counters. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	trialsCompleted prometheus.Counter
	trialsFailed    prometheus.Counter
	studiesRunning  prometheus.Gauge
	trialDuration   prometheus.Histogram
}

// NewMetrics registers the engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		trialsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tuned",
			Name:      "trials_completed_total",
			Help:      "Trials that finished evaluation successfully.",
		}),
		trialsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tuned",
			Name:      "trials_failed_total",
			Help:      "Trials whose evaluation returned an error.",
		}),
		studiesRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tuned",
			Name:      "studies_running",
			Help:      "Studies with an active control loop.",
		}),
		trialDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tuned",
			Name:      "trial_duration_seconds",
			Help:      "Wall-clock duration of trial evaluations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}

// TrialCompleted records a successful evaluation and its duration.
func (m *Metrics) TrialCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.trialsCompleted.Inc()
	m.trialDuration.Observe(d.Seconds())
}

// TrialFailed records a failed evaluation.
func (m *Metrics) TrialFailed() {
	if m == nil {
		return
	}
	m.trialsFailed.Inc()
}

// StudyStarted marks a control loop as active.
func (m *Metrics) StudyStarted() {
	if m == nil {
		return
	}
	m.studiesRunning.Inc()
}

// StudyStopped marks a control loop as finished.
func (m *Metrics) StudyStopped() {
	if m == nil {
		return
	}
	m.studiesRunning.Dec()
}
