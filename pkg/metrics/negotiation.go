package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NegotiationMetrics records the outcome of negotiation turns and their upstream calls.
type NegotiationMetrics struct {
	turns          *prometheus.CounterVec
	oracleDuration *prometheus.HistogramVec
	commits        *prometheus.CounterVec
}

// NewNegotiationMetrics registers the negotiation metrics on the provided registerer.
// A nil registerer yields a no-op collector.
func NewNegotiationMetrics(reg prometheus.Registerer) *NegotiationMetrics {
	if reg == nil {
		return &NegotiationMetrics{}
	}
	turns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "haggle_turns_total",
		Help: "Negotiation turns by resolved intent and decision source.",
	}, []string{"intent", "source"})
	oracleDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "haggle_oracle_duration_seconds",
		Help:    "Latency of oracle webhook calls in seconds.",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 7, 10, 15},
	}, []string{"result"})
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "haggle_commits_total",
		Help: "Draft order commit attempts by result.",
	}, []string{"result"})
	reg.MustRegister(turns, oracleDuration, commits)
	return &NegotiationMetrics{
		turns:          turns,
		oracleDuration: oracleDuration,
		commits:        commits,
	}
}

// IncTurn counts a completed turn.
func (m *NegotiationMetrics) IncTurn(intent, source string) {
	if m == nil || m.turns == nil {
		return
	}
	m.turns.WithLabelValues(normalizeLabel(intent), normalizeLabel(source)).Inc()
}

// ObserveOracle records an oracle call. result is "ok", "timeout" or "error".
func (m *NegotiationMetrics) ObserveOracle(result string, duration time.Duration) {
	if m == nil || m.oracleDuration == nil {
		return
	}
	m.oracleDuration.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

// IncCommit counts a commit attempt. result is "ok", "failed" or "reused".
func (m *NegotiationMetrics) IncCommit(result string) {
	if m == nil || m.commits == nil {
		return
	}
	m.commits.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
