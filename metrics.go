package vcr

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus counters for cassette sessions.
//
// Metrics:
//   - vcr_interactions_total: requests handled, by mode and outcome
//     (replayed, recorded, passthrough, unmatched, skipped, error)
//   - vcr_cassette_saves_total: cassette saves, by result (success, error)
//   - vcr_sessions_total: sessions started, by mode
type Metrics struct {
	interactions *prometheus.CounterVec
	saves        *prometheus.CounterVec
	sessions     *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		interactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcr",
				Name:      "interactions_total",
				Help:      "Total number of intercepted HTTP requests",
			},
			[]string{"mode", "outcome"},
		),
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcr",
				Name:      "cassette_saves_total",
				Help:      "Total number of cassette saves",
			},
			[]string{"result"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcr",
				Name:      "sessions_total",
				Help:      "Total number of cassette sessions started",
			},
			[]string{"mode"},
		),
	}
	reg.MustRegister(m.interactions, m.saves, m.sessions)
	return m
}

const (
	outcomeReplayed    = "replayed"
	outcomeRecorded    = "recorded"
	outcomePassThrough = "passthrough"
	outcomeUnmatched   = "unmatched"
	outcomeSkipped     = "skipped"
	outcomeError       = "error"
)

func (m *Metrics) observeInteraction(mode Mode, outcome string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(mode.String(), outcome).Inc()
}

func (m *Metrics) observeSave(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.saves.WithLabelValues(result).Inc()
}

func (m *Metrics) observeSession(mode Mode) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(mode.String()).Inc()
}
