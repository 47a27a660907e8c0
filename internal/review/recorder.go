package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/examsrs/internal/logger"
	"github.com/example/examsrs/internal/metrics"
	sr "github.com/example/examsrs/internal/spaced_repetition"
	"github.com/example/examsrs/pkg/models"
)

// Recorder applies reviews to cards and keeps the review log and
// learning sessions in step with them
type Recorder struct {
	store   CardStore
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Recorder
type Option func(*Recorder)

// WithClock replaces time.Now as the source of review timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithMetrics makes the recorder report to m
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates a recorder over store
func NewRecorder(store CardStore, log *logger.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordReview schedules the card after a review with the given rating and
// stores the new card state, a history entry and the session counters in
// one transaction. Storage errors are returned unchanged and never retried.
func (r *Recorder) RecordReview(ctx context.Context, cardID int64, rating models.Rating, responseTimeMs int64, sessionID uuid.NullUUID) (models.ReviewHistoryEntry, error) {
	if !rating.Valid() {
		r.metrics.RecordReviewFailure("invalid_rating")
		return models.ReviewHistoryEntry{}, fmt.Errorf("%w: %d", models.ErrInvalidRating, int(rating))
	}
	if responseTimeMs < 0 {
		responseTimeMs = 0
	}

	card, err := r.store.GetCard(ctx, cardID)
	if err != nil {
		r.metrics.RecordReviewFailure(failureReason(err))
		return models.ReviewHistoryEntry{}, err
	}

	var session *models.LearningSession
	if sessionID.Valid {
		s, err := r.openSession(ctx, sessionID.UUID, card.LearnerID)
		if err != nil {
			r.metrics.RecordReviewFailure(failureReason(err))
			return models.ReviewHistoryEntry{}, err
		}
		session = &s
	}

	cfg, err := r.store.GetAlgorithmConfig(ctx, card.LearnerID)
	if err != nil {
		r.metrics.RecordReviewFailure(failureReason(err))
		return models.ReviewHistoryEntry{}, err
	}
	if session != nil && session.TargetRetention > 0 {
		cfg.TargetRetention = session.TargetRetention
	}

	now := r.now()
	before := card
	before.Retrievability = sr.Retrievability(card, now)

	updated, next, err := sr.Schedule(before, rating, now, cfg)
	if err != nil {
		r.metrics.RecordReviewFailure(failureReason(err))
		return models.ReviewHistoryEntry{}, err
	}

	entry := models.ReviewHistoryEntry{
		CardID:               card.ID,
		LearnerID:            card.LearnerID,
		QuestionID:           card.QuestionID,
		Rating:               rating,
		ResponseTimeMs:       responseTimeMs,
		DifficultyBefore:     before.Difficulty,
		StabilityBefore:      before.Stability,
		RetrievabilityBefore: before.Retrievability,
		StateBefore:          before.State,
		DifficultyAfter:      updated.Difficulty,
		StabilityAfter:       updated.Stability,
		RetrievabilityAfter:  updated.Retrievability,
		StateAfter:           updated.State,
		NextIntervalDays:     next.Sub(now).Hours() / 24,
		SessionID:            sessionID,
		ReviewedAt:           now,
	}

	if session != nil {
		session.ReviewsCompleted++
		if rating.IsSuccess() {
			session.CorrectCount++
		}
	}

	stored, err := r.store.CommitReview(ctx, updated, entry, session)
	if err != nil {
		r.metrics.RecordReviewFailure(failureReason(err))
		r.log.Error("failed to commit review", "card_id", cardID, "rating", rating.String(), "error", err)
		return models.ReviewHistoryEntry{}, err
	}

	r.metrics.RecordReview(rating.String(), before.State.String(), updated.State.String(), entry.NextIntervalDays)
	r.log.Debug("review recorded",
		"card_id", card.ID,
		"learner_id", card.LearnerID,
		"rating", rating.String(),
		"state", updated.State.String(),
		"stability", updated.Stability,
		"next_review_at", updated.NextReviewAt,
	)
	return stored, nil
}

func (r *Recorder) openSession(ctx context.Context, id uuid.UUID, learnerID int64) (models.LearningSession, error) {
	session, err := r.store.GetSession(ctx, id)
	if err != nil {
		return models.LearningSession{}, err
	}
	if session.LearnerID != learnerID {
		return models.LearningSession{}, fmt.Errorf("session %s for learner %d: %w", id, learnerID, models.ErrSessionNotFound)
	}
	if !session.IsOpen() {
		return models.LearningSession{}, fmt.Errorf("session %s: %w", id, models.ErrSessionClosed)
	}
	return session, nil
}

// Enroll returns the learner's card for the question, creating a New card
// the first time the question is scheduled
func (r *Recorder) Enroll(ctx context.Context, learnerID, questionID int64) (models.Card, error) {
	card, err := r.store.GetCardByQuestion(ctx, learnerID, questionID)
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, models.ErrCardNotFound) {
		return models.Card{}, err
	}

	card, err = r.store.PutCard(ctx, models.NewCard(learnerID, questionID, r.now()))
	if err != nil {
		return models.Card{}, err
	}
	r.log.Debug("card enrolled", "card_id", card.ID, "learner_id", learnerID, "question_id", questionID)
	return card, nil
}

// History returns the card's reviews, most recent first
func (r *Recorder) History(ctx context.Context, cardID int64) ([]models.ReviewHistoryEntry, error) {
	if _, err := r.store.GetCard(ctx, cardID); err != nil {
		return nil, err
	}
	return r.store.GetReviewHistory(ctx, cardID)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrCardNotFound):
		return "card_not_found"
	case errors.Is(err, models.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, models.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, models.ErrInvalidParameters):
		return "invalid_parameters"
	case errors.Is(err, models.ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}
