package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the onboarding flow.
type Metrics struct {
	// Submission outcomes by result and failure kind
	Outcomes *prometheus.CounterVec

	// Certificate container validation latency
	ValidationLatency prometheus.Histogram

	// Certificate files that could not be removed after a request
	CleanupFailures prometheus.Counter
}

// New creates the onboarding metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_submissions_total",
			Help: "Onboarding submissions by result and failure kind",
		}, []string{"result", "kind"}), // result: "accepted", "rejected", "failed"

		ValidationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "onboard_certificate_validation_duration_seconds",
			Help:    "Duration of certificate container validation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		CleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_certificate_cleanup_failures_total",
			Help: "Uploaded certificate containers that could not be deleted",
		}),
	}
}

// IncrementOutcome records a finished submission.
func (m *Metrics) IncrementOutcome(result, kind string) {
	if m != nil {
		m.Outcomes.WithLabelValues(result, kind).Inc()
	}
}

// ObserveValidationLatency records how long one container took to validate.
func (m *Metrics) ObserveValidationLatency(d time.Duration) {
	if m != nil {
		m.ValidationLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementCleanupFailures() {
	if m != nil {
		m.CleanupFailures.Inc()
	}
}
