package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsIsShared(t *testing.T) {
	assert.Same(t, NewMetrics(), NewMetrics())
}

func TestRecordReview(t *testing.T) {
	m := NewMetrics()
	before := testutil.ToFloat64(m.ReviewsTotal.WithLabelValues("good"))
	transitions := testutil.ToFloat64(m.StateTransitions.WithLabelValues("new", "learning"))

	m.RecordReview("good", "new", "learning", 0.007)
	m.RecordReview("good", "review", "review", 12)

	assert.Equal(t, before+2, testutil.ToFloat64(m.ReviewsTotal.WithLabelValues("good")))
	assert.Equal(t, transitions+1, testutil.ToFloat64(m.StateTransitions.WithLabelValues("new", "learning")))
}

func TestRecordLeechAndIntervention(t *testing.T) {
	m := NewMetrics()
	leeches := testutil.ToFloat64(m.LeechesDetected.WithLabelValues("severe"))
	applied := testutil.ToFloat64(m.InterventionsApplied.WithLabelValues("suspend_temporarily"))
	scans := testutil.ToFloat64(m.LeechScans.WithLabelValues("error"))

	m.RecordLeech("severe")
	m.RecordIntervention("suspend_temporarily")
	m.RecordScan(false)

	assert.Equal(t, leeches+1, testutil.ToFloat64(m.LeechesDetected.WithLabelValues("severe")))
	assert.Equal(t, applied+1, testutil.ToFloat64(m.InterventionsApplied.WithLabelValues("suspend_temporarily")))
	assert.Equal(t, scans+1, testutil.ToFloat64(m.LeechScans.WithLabelValues("error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordReview("again", "review", "relearning", 0.007)
		m.RecordReviewFailure("persistence")
		m.RecordSessionStart("quiz")
		m.RecordSessionEnd()
		m.RecordLeech("mild")
		m.RecordIntervention("additional_practice")
		m.RecordResolution()
		m.RecordScan(true)
	})
}
