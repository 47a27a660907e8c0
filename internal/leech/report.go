package leech

import (
	"context"
	"math"
	"time"

	"github.com/example/examsrs/pkg/models"
)

// Overall leech rate thresholds for the report trend
const (
	worseningLeechRate = 0.15
	improvingLeechRate = 0.05
)

// uncategorized groups leeches whose question the catalog does not know
const uncategorized = "uncategorized"

// Recommendation pairs a leech with the strategies suggested for it
type Recommendation struct {
	Analysis   Analysis   `json:"analysis"`
	Strategies []Strategy `json:"strategies"`
}

// Report summarizes a learner's leeches
type Report struct {
	LearnerID       int64                        `json:"learner_id"`
	TotalLeeches    int                          `json:"total_leeches"`
	NewLeeches      int                          `json:"new_leeches"`
	ResolvedLeeches int                          `json:"resolved_leeches"`
	BySeverity      map[models.LeechSeverity]int `json:"by_severity"`
	ByCategory      map[string]int               `json:"by_category"`
	Recommendations []Recommendation             `json:"recommendations"`
	// Share of the learner's cards that are active leeches, rounded to 3 places
	LeechRate float64 `json:"leech_rate"`
	// improving, stable or worsening
	Trend       string    `json:"trend"`
	GeneratedAt time.Time `json:"generated_at"`
}

// CategoryStats counts leeches of one question category
type CategoryStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Suspended int `json:"suspended"`
}

// Statistics are the aggregate leech numbers of a learner
type Statistics struct {
	TotalLeeches      int                      `json:"total_leeches"`
	ActiveLeeches     int                      `json:"active_leeches"`
	SuspendedLeeches  int                      `json:"suspended_leeches"`
	ResolvedLeeches   int                      `json:"resolved_leeches"`
	LeechRate         float64                  `json:"leech_rate"`
	AverageLapseCount float64                  `json:"average_lapse_count"`
	ByCategory        map[string]CategoryStats `json:"by_category"`
	// Share of treated leeches that mostly succeeded after the intervention
	InterventionSuccessRate float64 `json:"intervention_success_rate"`
}

// Reporter builds leech reports and statistics
type Reporter struct {
	store    Store
	detector *Detector
	engine   *Engine
}

// NewReporter creates a reporter on top of a detector and an engine
func NewReporter(store Store, detector *Detector, engine *Engine) *Reporter {
	return &Reporter{store: store, detector: detector, engine: engine}
}

// Report runs detection with the default threshold and then describes every
// active leech. Leeches detected or resolved at or after since count as new
// or resolved.
func (r *Reporter) Report(ctx context.Context, learnerID int64, since time.Time) (Report, error) {
	if _, err := r.detector.Detect(ctx, learnerID, DetectOptions{}); err != nil {
		return Report{}, err
	}

	records, err := r.store.ListLeechRecords(ctx, learnerID)
	if err != nil {
		return Report{}, err
	}
	totalCards, err := r.store.CountCards(ctx, learnerID)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		LearnerID:   learnerID,
		ByCategory:  map[string]int{},
		GeneratedAt: r.detector.now(),
	}
	rep.BySeverity = map[models.LeechSeverity]int{
		models.SeverityMild:     0,
		models.SeverityModerate: 0,
		models.SeveritySevere:   0,
	}

	for _, rec := range records {
		if !rec.IsActive() {
			if !rec.ResolvedAt.Before(since) {
				rep.ResolvedLeeches++
			}
			continue
		}
		rep.TotalLeeches++
		if !rec.DetectedAt.Before(since) {
			rep.NewLeeches++
		}

		analysis, err := r.detector.Analyze(ctx, rec.CardID)
		if err != nil {
			return Report{}, err
		}
		analysis.Severity = rec.Severity
		rep.BySeverity[rec.Severity]++
		rep.ByCategory[category(analysis.Question)]++
		rep.Recommendations = append(rep.Recommendations, Recommendation{
			Analysis:   analysis,
			Strategies: r.engine.Recommend(analysis),
		})
	}

	if totalCards > 0 {
		rep.LeechRate = round(float64(rep.TotalLeeches)/float64(totalCards), 3)
	}
	switch {
	case rep.LeechRate > worseningLeechRate:
		rep.Trend = "worsening"
	case rep.LeechRate < improvingLeechRate:
		rep.Trend = "improving"
	default:
		rep.Trend = "stable"
	}
	return rep, nil
}

// Statistics aggregates all leech records of the learner, resolved ones included
func (r *Reporter) Statistics(ctx context.Context, learnerID int64) (Statistics, error) {
	records, err := r.store.ListLeechRecords(ctx, learnerID)
	if err != nil {
		return Statistics{}, err
	}
	totalCards, err := r.store.CountCards(ctx, learnerID)
	if err != nil {
		return Statistics{}, err
	}

	st := Statistics{
		TotalLeeches: len(records),
		ByCategory:   map[string]CategoryStats{},
	}
	lapses := 0
	treated, improved := 0, 0
	for _, rec := range records {
		lapses += rec.LapseCountAtDetection

		q, err := r.detector.question(ctx, rec.QuestionID)
		if err != nil {
			return Statistics{}, err
		}
		cat := st.ByCategory[category(q)]
		cat.Total++
		switch {
		case !rec.IsActive():
			st.ResolvedLeeches++
		case rec.IsSuspended:
			st.SuspendedLeeches++
			cat.Suspended++
		default:
			st.ActiveLeeches++
			cat.Active++
		}
		st.ByCategory[category(q)] = cat

		if rec.ActionTaken != nil && rec.ActionAt != nil {
			treated++
			ok, err := r.improvedAfter(ctx, rec.CardID, *rec.ActionAt)
			if err != nil {
				return Statistics{}, err
			}
			if ok {
				improved++
			}
		}
	}

	if totalCards > 0 {
		st.LeechRate = round(float64(st.ActiveLeeches+st.SuspendedLeeches)/float64(totalCards), 3)
	}
	if len(records) > 0 {
		st.AverageLapseCount = round(float64(lapses)/float64(len(records)), 1)
	}
	if treated > 0 {
		st.InterventionSuccessRate = float64(improved) / float64(treated)
	}
	return st, nil
}

// improvedAfter reports whether more than half of the reviews after the
// intervention were successful
func (r *Reporter) improvedAfter(ctx context.Context, cardID int64, at time.Time) (bool, error) {
	history, err := r.store.GetReviewHistory(ctx, cardID)
	if err != nil {
		return false, err
	}
	total, ok := 0, 0
	for _, e := range history {
		if !e.ReviewedAt.After(at) {
			continue
		}
		total++
		if e.Rating.IsSuccess() {
			ok++
		}
	}
	return total > 0 && float64(ok)/float64(total) > 0.5, nil
}

func category(q models.Question) string {
	if q.Category == "" {
		return uncategorized
	}
	return q.Category
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
