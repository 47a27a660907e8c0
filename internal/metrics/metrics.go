package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the scheduler
type Metrics struct {
	// Review metrics
	ReviewsTotal      *prometheus.CounterVec
	ReviewIntervals   prometheus.Histogram
	StateTransitions  *prometheus.CounterVec
	ReviewFailures    *prometheus.CounterVec
	SessionsStarted   *prometheus.CounterVec
	SessionsCompleted prometheus.Counter

	// Leech metrics
	LeechesDetected      *prometheus.CounterVec
	InterventionsApplied *prometheus.CounterVec
	LeechesResolved      prometheus.Counter
	LeechScans           *prometheus.CounterVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			ReviewsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "examsrs_reviews_total",
					Help: "Total number of recorded reviews",
				},
				[]string{"rating"},
			),
			ReviewIntervals: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "examsrs_review_interval_days",
					Help:    "Scheduled interval after a review in days",
					Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // ~1.5m to ~262d
				},
			),
			StateTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "examsrs_card_state_transitions_total",
					Help: "Card state transitions caused by reviews",
				},
				[]string{"from", "to"},
			),
			ReviewFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "examsrs_review_failures_total",
					Help: "Reviews that could not be recorded",
				},
				[]string{"reason"},
			),
			SessionsStarted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "examsrs_sessions_started_total",
					Help: "Learning sessions started",
				},
				[]string{"session_type"},
			),
			SessionsCompleted: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "examsrs_sessions_completed_total",
					Help: "Learning sessions ended",
				},
			),
			LeechesDetected: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "examsrs_leeches_detected_total",
					Help: "Leech records created or refreshed by detection",
				},
				[]string{"severity"},
			),
			InterventionsApplied: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "examsrs_interventions_applied_total",
					Help: "Interventions applied to leeches",
				},
				[]string{"kind"},
			),
			LeechesResolved: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "examsrs_leeches_resolved_total",
					Help: "Leech records marked resolved",
				},
			),
			LeechScans: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "examsrs_leech_scans_total",
					Help: "Periodic leech scans per learner",
				},
				[]string{"result"},
			),
		}
	})

	return sharedMetrics
}

// All Record methods are no-ops on a nil *Metrics.

// RecordReview records a successful review
func (m *Metrics) RecordReview(rating, fromState, toState string, intervalDays float64) {
	if m == nil {
		return
	}
	m.ReviewsTotal.WithLabelValues(rating).Inc()
	m.ReviewIntervals.Observe(intervalDays)
	if fromState != toState {
		m.StateTransitions.WithLabelValues(fromState, toState).Inc()
	}
}

// RecordReviewFailure records a review rejected or lost with the given reason
func (m *Metrics) RecordReviewFailure(reason string) {
	if m == nil {
		return
	}
	m.ReviewFailures.WithLabelValues(reason).Inc()
}

// RecordSessionStart records a new learning session
func (m *Metrics) RecordSessionStart(sessionType string) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(sessionType).Inc()
}

// RecordSessionEnd records an ended learning session
func (m *Metrics) RecordSessionEnd() {
	if m == nil {
		return
	}
	m.SessionsCompleted.Inc()
}

// RecordLeech records a detected leech
func (m *Metrics) RecordLeech(severity string) {
	if m == nil {
		return
	}
	m.LeechesDetected.WithLabelValues(severity).Inc()
}

// RecordIntervention records an applied intervention
func (m *Metrics) RecordIntervention(kind string) {
	if m == nil {
		return
	}
	m.InterventionsApplied.WithLabelValues(kind).Inc()
}

// RecordResolution records a resolved leech
func (m *Metrics) RecordResolution() {
	if m == nil {
		return
	}
	m.LeechesResolved.Inc()
}

// RecordScan records the outcome of a periodic leech scan
func (m *Metrics) RecordScan(success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	m.LeechScans.WithLabelValues(result).Inc()
}
