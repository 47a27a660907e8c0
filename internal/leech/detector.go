package leech

import (
	"context"
	"errors"
	"time"

	"github.com/example/examsrs/internal/logger"
	"github.com/example/examsrs/internal/metrics"
	"github.com/example/examsrs/pkg/models"
)

// Trend describes how a card's recent results compare to the earlier ones
type Trend string

const (
	// TrendIncreasing means the card is getting harder: recent results are worse
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	// TrendDecreasing means recent results are better than before
	TrendDecreasing Trend = "decreasing"
)

const (
	trendWindow     = 5
	trendMinReviews = 3
	trendSwing      = 0.2
)

// Analysis is the detector's view of one leech
type Analysis struct {
	Card                  models.Card          `json:"card"`
	Question              models.Question      `json:"question"`
	Severity              models.LeechSeverity `json:"severity"`
	LapseCount            int                  `json:"lapse_count"`
	ReviewCount           int                  `json:"review_count"`
	SuccessRate           float64              `json:"success_rate"`
	AverageResponseTimeMs float64              `json:"average_response_time_ms"`
	Trend                 Trend                `json:"trend"`
	LastSuccessAt         *time.Time           `json:"last_success_at"`

	// Interventions already applied to the card
	InterventionHistory []models.InterventionKind `json:"intervention_history"`
}

// DetectOptions tunes a detection run
type DetectOptions struct {
	// Minimum lapse count; zero means models.DefaultLeechThreshold
	Threshold int
	// Re-analyze cards that already have an active record
	ForceRedetection bool
}

// Detector finds cards that keep lapsing and records them as leeches
type Detector struct {
	store   Store
	catalog QuestionCatalog
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDetector creates a detector. catalog may be nil, in which case analyses
// carry no question content.
func NewDetector(store Store, catalog QuestionCatalog, log *logger.Logger, m *metrics.Metrics) *Detector {
	return &Detector{
		store:   store,
		catalog: catalog,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Detect scans the learner's cards with at least Threshold lapses and
// creates or refreshes one LeechRecord per leech. Without ForceRedetection,
// cards with an active record are skipped, so repeated runs never duplicate
// records. A resolved record is refreshed only once the card lapses again
// after its resolution.
// Cards without review history are skipped.
func (d *Detector) Detect(ctx context.Context, learnerID int64, opts DetectOptions) ([]Analysis, error) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = models.DefaultLeechThreshold
	}

	candidates, err := d.store.ListCardsByLapses(ctx, learnerID, threshold)
	if err != nil {
		return nil, err
	}

	var found []Analysis
	for _, card := range candidates {
		existing, err := d.store.GetLeechRecord(ctx, card.ID)
		hasRecord := err == nil
		if err != nil && !errors.Is(err, models.ErrLeechNotFound) {
			return nil, err
		}
		if hasRecord && !opts.ForceRedetection {
			if existing.IsActive() {
				continue
			}
			relapsed, err := d.relapsedSince(ctx, card.ID, *existing.ResolvedAt)
			if err != nil {
				return nil, err
			}
			if !relapsed {
				continue
			}
		}

		analysis, ok, err := d.analyze(ctx, card, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		// lapse_count may have moved since the scan
		fresh, err := d.store.GetCard(ctx, card.ID)
		if err != nil {
			return nil, err
		}
		if fresh.LapseCount < threshold {
			d.log.Debug("leech candidate dropped below threshold", "card_id", card.ID, "lapse_count", fresh.LapseCount)
			continue
		}
		analysis.Card = fresh
		analysis.LapseCount = fresh.LapseCount
		analysis.Severity = classify(fresh.LapseCount, analysis.SuccessRate)

		now := d.now()
		rec, created, err := d.store.GetOrCreateLeechRecord(ctx, card.ID, now)
		if err != nil {
			return nil, err
		}
		rec.LapseCountAtDetection = fresh.LapseCount
		rec.Threshold = threshold
		rec.Severity = analysis.Severity
		rec.DetectedAt = now
		rec.ResolvedAt = nil
		if err := d.store.PutLeechRecord(ctx, rec); err != nil {
			return nil, err
		}

		d.metrics.RecordLeech(string(analysis.Severity))
		d.log.Info("leech detected",
			"card_id", card.ID,
			"learner_id", learnerID,
			"severity", string(analysis.Severity),
			"lapse_count", fresh.LapseCount,
			"success_rate", analysis.SuccessRate,
			"new", created,
		)
		found = append(found, analysis)
	}
	return found, nil
}

func (d *Detector) relapsedSince(ctx context.Context, cardID int64, since time.Time) (bool, error) {
	history, err := d.store.GetReviewHistory(ctx, cardID)
	if err != nil {
		return false, err
	}
	for _, e := range history {
		if e.Rating == models.RatingAgain && e.ReviewedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

// Analyze computes the analysis of a single card without recording anything.
// It fails with ErrCardNotFound for an unknown card.
func (d *Detector) Analyze(ctx context.Context, cardID int64) (Analysis, error) {
	card, err := d.store.GetCard(ctx, cardID)
	if err != nil {
		return Analysis{}, err
	}
	rec, err := d.store.GetLeechRecord(ctx, cardID)
	if err != nil && !errors.Is(err, models.ErrLeechNotFound) {
		return Analysis{}, err
	}
	analysis, _, err := d.analyze(ctx, card, rec)
	return analysis, err
}

// analyze reports ok=false for a card that has never been reviewed
func (d *Detector) analyze(ctx context.Context, card models.Card, rec models.LeechRecord) (Analysis, bool, error) {
	history, err := d.store.GetReviewHistory(ctx, card.ID)
	if err != nil {
		return Analysis{}, false, err
	}

	question, err := d.question(ctx, card.QuestionID)
	if err != nil {
		return Analysis{}, false, err
	}

	a := Analysis{
		Card:        card,
		Question:    question,
		LapseCount:  card.LapseCount,
		ReviewCount: len(history),
		Trend:       TrendStable,
	}
	if rec.ActionTaken != nil {
		a.InterventionHistory = []models.InterventionKind{*rec.ActionTaken}
	}
	if len(history) == 0 {
		a.Severity = classify(card.LapseCount, 0)
		return a, false, nil
	}

	a.SuccessRate = successRate(history)
	a.AverageResponseTimeMs = averageResponseTime(history)
	a.Trend = trend(history)
	a.Severity = classify(card.LapseCount, a.SuccessRate)
	for _, e := range history {
		if e.Rating.IsSuccess() {
			at := e.ReviewedAt
			a.LastSuccessAt = &at
			break
		}
	}
	return a, true, nil
}

// question looks the question up in the catalog. A question the catalog does
// not know yields a zero Question with only its ID set.
func (d *Detector) question(ctx context.Context, questionID int64) (models.Question, error) {
	if d.catalog == nil {
		return models.Question{ID: questionID}, nil
	}
	q, err := d.catalog.GetQuestion(ctx, questionID)
	if errors.Is(err, models.ErrQuestionNotFound) {
		return models.Question{ID: questionID}, nil
	}
	if err != nil {
		return models.Question{}, err
	}
	return q, nil
}

// classify maps lapses to a severity, moving Moderate cards up or down by
// their success rate
func classify(lapses int, successRate float64) models.LeechSeverity {
	var severity models.LeechSeverity
	switch {
	case lapses >= 9:
		severity = models.SeveritySevere
	case lapses >= 6:
		severity = models.SeverityModerate
	default:
		severity = models.SeverityMild
	}

	if severity == models.SeverityModerate {
		if successRate < 0.2 {
			severity = models.SeveritySevere
		} else if successRate > 0.6 {
			severity = models.SeverityMild
		}
	}
	return severity
}

func successRate(history []models.ReviewHistoryEntry) float64 {
	if len(history) == 0 {
		return 0
	}
	ok := 0
	for _, e := range history {
		if e.Rating.IsSuccess() {
			ok++
		}
	}
	return float64(ok) / float64(len(history))
}

// averageResponseTime ignores reviews without a recorded response time
func averageResponseTime(history []models.ReviewHistoryEntry) float64 {
	var total int64
	n := 0
	for _, e := range history {
		if e.ResponseTimeMs > 0 {
			total += e.ResponseTimeMs
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

// trend compares the five most recent reviews with the five before them.
// history is most recent first.
func trend(history []models.ReviewHistoryEntry) Trend {
	recent := history[:minInt(trendWindow, len(history))]
	if len(recent) < trendMinReviews || len(history) <= trendWindow {
		return TrendStable
	}
	older := history[trendWindow:minInt(2*trendWindow, len(history))]

	recentRate := successRate(recent)
	olderRate := successRate(older)
	switch {
	case recentRate > olderRate+trendSwing:
		return TrendDecreasing
	case recentRate < olderRate-trendSwing:
		return TrendIncreasing
	default:
		return TrendStable
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
