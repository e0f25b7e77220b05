package colo

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the checkpoint counters both sides can report. All fields
// are optional from the library's point of view; a nil *Metrics disables
// reporting entirely.
type Metrics struct {
	// Checkpoints counts completed checkpoint cycles.
	Checkpoints prometheus.Counter
	// Failures counts cycles or phases ended by an error.
	Failures prometheus.Counter
	// StateBytes counts serialized state bytes shipped (primary) or applied
	// (secondary).
	StateBytes prometheus.Counter
	// FrozenSeconds observes the guest's stopped window per cycle.
	FrozenSeconds prometheus.Histogram
}

// NewMetrics builds the checkpoint metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "colo",
			Name:      "checkpoints_total",
			Help:      "Completed checkpoint cycles.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "colo",
			Name:      "checkpoint_failures_total",
			Help:      "Checkpoint cycles or phases ended by an error.",
		}),
		StateBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "colo",
			Name:      "state_bytes_total",
			Help:      "Serialized guest state bytes shipped or applied.",
		}),
		FrozenSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "colo",
			Name:      "guest_frozen_seconds",
			Help:      "Duration the guest stays stopped per checkpoint cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Checkpoints, m.Failures, m.StateBytes, m.FrozenSeconds)
	}
	return m
}

func (m *Metrics) observeCycle(stateBytes uint64) {
	if m == nil {
		return
	}
	m.Checkpoints.Inc()
	m.StateBytes.Add(float64(stateBytes))
}

func (m *Metrics) observeFrozen(seconds float64) {
	if m == nil {
		return
	}
	m.FrozenSeconds.Observe(seconds)
}

func (m *Metrics) observeFailure() {
	if m == nil {
		return
	}
	m.Failures.Inc()
}
