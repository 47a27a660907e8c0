package review

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/example/examsrs/pkg/models"
)

// SessionSummary reports how a learning session went
type SessionSummary struct {
	SessionID             uuid.UUID          `json:"session_id"`
	SessionType           models.SessionType `json:"session_type"`
	ReviewsCompleted      int                `json:"reviews_completed"`
	CorrectCount          int                `json:"correct_count"`
	IncorrectCount        int                `json:"incorrect_count"`
	AccuracyPercent       float64            `json:"accuracy_percent"`
	CompletionPercent     float64            `json:"completion_percent"`
	AverageResponseTimeMs int64              `json:"average_response_time_ms"`
	// Mean retrievability of the reviewed cards at the moment they were shown
	AverageRetrievability float64       `json:"average_retrievability"`
	Duration              time.Duration `json:"duration"`
	Open                  bool          `json:"open"`
}

// StartSession opens a learning session for the learner. maxReviews <= 0
// selects DefaultMaxReviews. The session targets the learner's configured
// retention.
func (r *Recorder) StartSession(ctx context.Context, learnerID int64, sessionType models.SessionType, maxReviews int) (models.LearningSession, error) {
	if !sessionType.Valid() {
		return models.LearningSession{}, fmt.Errorf("unknown session type %q", sessionType)
	}
	if maxReviews <= 0 {
		maxReviews = models.DefaultMaxReviews
	}

	cfg, err := r.store.GetAlgorithmConfig(ctx, learnerID)
	if err != nil {
		return models.LearningSession{}, err
	}

	session, err := r.store.CreateSession(ctx, models.LearningSession{
		ID:              uuid.New(),
		LearnerID:       learnerID,
		SessionType:     sessionType,
		TargetRetention: cfg.WithDefaults().TargetRetention,
		MaxReviews:      maxReviews,
		StartedAt:       r.now(),
	})
	if err != nil {
		return models.LearningSession{}, err
	}

	r.metrics.RecordSessionStart(string(sessionType))
	r.log.Info("session started", "session_id", session.ID, "learner_id", learnerID, "type", string(sessionType))
	return session, nil
}

// EndSession closes an open session and returns its summary
func (r *Recorder) EndSession(ctx context.Context, id uuid.UUID) (SessionSummary, error) {
	session, err := r.store.GetSession(ctx, id)
	if err != nil {
		return SessionSummary{}, err
	}
	if !session.IsOpen() {
		return SessionSummary{}, fmt.Errorf("session %s: %w", id, models.ErrSessionClosed)
	}

	ended := r.now()
	session.EndedAt = &ended
	if err := r.store.PutSession(ctx, session); err != nil {
		return SessionSummary{}, err
	}
	r.metrics.RecordSessionEnd()

	summary, err := r.summarize(ctx, session)
	if err != nil {
		return SessionSummary{}, err
	}
	r.log.Info("session ended",
		"session_id", id,
		"reviews", summary.ReviewsCompleted,
		"accuracy", summary.AccuracyPercent,
	)
	return summary, nil
}

// Summary reports on a session, open or ended
func (r *Recorder) Summary(ctx context.Context, id uuid.UUID) (SessionSummary, error) {
	session, err := r.store.GetSession(ctx, id)
	if err != nil {
		return SessionSummary{}, err
	}
	return r.summarize(ctx, session)
}

func (r *Recorder) summarize(ctx context.Context, session models.LearningSession) (SessionSummary, error) {
	reviews, err := r.store.GetSessionReviews(ctx, session.ID)
	if err != nil {
		return SessionSummary{}, err
	}

	end := r.now()
	if session.EndedAt != nil {
		end = *session.EndedAt
	}

	s := SessionSummary{
		SessionID:        session.ID,
		SessionType:      session.SessionType,
		ReviewsCompleted: session.ReviewsCompleted,
		CorrectCount:     session.CorrectCount,
		IncorrectCount:   session.ReviewsCompleted - session.CorrectCount,
		Duration:         end.Sub(session.StartedAt),
		Open:             session.IsOpen(),
	}
	if session.ReviewsCompleted > 0 {
		s.AccuracyPercent = round1(float64(session.CorrectCount) / float64(session.ReviewsCompleted) * 100)
	}
	if session.MaxReviews > 0 {
		s.CompletionPercent = round1(math.Min(float64(session.ReviewsCompleted)/float64(session.MaxReviews), 1) * 100)
	}
	if len(reviews) > 0 {
		var totalMs int64
		var totalR float64
		for _, e := range reviews {
			totalMs += e.ResponseTimeMs
			totalR += e.RetrievabilityBefore
		}
		s.AverageResponseTimeMs = totalMs / int64(len(reviews))
		s.AverageRetrievability = totalR / float64(len(reviews))
	}
	return s, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
