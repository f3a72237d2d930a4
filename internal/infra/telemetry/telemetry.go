package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcome label values.
const (
	OutcomeSuccess          = "success"
	OutcomeFailure          = "failure"
	OutcomeParallelConflict = "parallel_conflict"
	OutcomeError            = "error"
)

// Metrics exposes the authentication core's Prometheus instruments.
type Metrics struct {
	loginAttempts *prometheus.CounterVec
	hashRotations prometheus.Counter
	hashDuration  prometheus.Histogram
	breachChecks  *prometheus.CounterVec
}

// NewMetrics registers the instruments on the supplied registerer. A nil
// registerer falls back to the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "login_attempts_total",
			Help:      "Authentication attempts by outcome",
		}, []string{"outcome"}),
		hashRotations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "hash_rotations_total",
			Help:      "Password hashes upgraded to the target cost on login",
		}),
		hashDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "authcore",
			Name:      "hash_duration_seconds",
			Help:      "Wall time spent computing password hashes",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		breachChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "breach_checks_total",
			Help:      "Breach corpus lookups by result",
		}, []string{"result"}),
	}
}

// ObserveLogin records an authentication attempt outcome.
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveHashRotation records a lazy hash-cost upgrade.
func (m *Metrics) ObserveHashRotation() {
	if m == nil {
		return
	}
	m.hashRotations.Inc()
}

// ObserveHashDuration records the wall time of a hash computation.
func (m *Metrics) ObserveHashDuration(seconds float64) {
	if m == nil {
		return
	}
	m.hashDuration.Observe(seconds)
}

// ObserveBreachCheck records a breach lookup result (hit, miss, error, skipped).
func (m *Metrics) ObserveBreachCheck(result string) {
	if m == nil {
		return
	}
	m.breachChecks.WithLabelValues(result).Inc()
}
