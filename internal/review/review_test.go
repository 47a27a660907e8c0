package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/examsrs/internal/database"
	"github.com/example/examsrs/internal/logger"
	"github.com/example/examsrs/pkg/models"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// clock is a settable time source
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

// failingStore loses every CommitReview
type failingStore struct {
	*database.MemoryStore
}

func (f failingStore) CommitReview(context.Context, models.Card, models.ReviewHistoryEntry, *models.LearningSession) (models.ReviewHistoryEntry, error) {
	return models.ReviewHistoryEntry{}, &models.PersistenceError{Op: "failed to commit transaction", Err: errors.New("disk full")}
}

func newRecorder(t *testing.T) (*Recorder, *database.MemoryStore, *clock) {
	t.Helper()
	store := database.NewMemoryStore()
	clk := &clock{t: t0}
	return NewRecorder(store, logger.Nop(), WithClock(clk.now)), store, clk
}

func enroll(t *testing.T, r *Recorder, learnerID, questionID int64) models.Card {
	t.Helper()
	card, err := r.Enroll(context.Background(), learnerID, questionID)
	require.NoError(t, err)
	return card
}

func TestRecordReviewFirstReview(t *testing.T) {
	r, store, _ := newRecorder(t)
	ctx := context.Background()
	card := enroll(t, r, 1, 100)

	entry, err := r.RecordReview(ctx, card.ID, models.RatingGood, 4200, uuid.NullUUID{})
	require.NoError(t, err)

	assert.NotZero(t, entry.ID)
	assert.Equal(t, card.ID, entry.CardID)
	assert.Equal(t, int64(100), entry.QuestionID)
	assert.Equal(t, int64(4200), entry.ResponseTimeMs)
	assert.Equal(t, models.StateNew, entry.StateBefore)
	assert.Equal(t, models.StateLearning, entry.StateAfter)
	assert.InDelta(t, 1.0, entry.RetrievabilityBefore, 1e-9)
	assert.InDelta(t, 10.0/(24*60), entry.NextIntervalDays, 1e-9)
	assert.True(t, entry.ReviewedAt.Equal(t0))

	stored, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateLearning, stored.State)
	assert.Equal(t, 1, stored.ReviewCount)
	assert.True(t, stored.NextReviewAt.Equal(t0.Add(10*time.Minute)))
	require.NotNil(t, stored.LastReviewedAt)
	assert.InDelta(t, entry.StabilityAfter, stored.Stability, 1e-12)
}

func TestRecordReviewSnapshotsDecayedRetrievability(t *testing.T) {
	r, store, clk := newRecorder(t)
	ctx := context.Background()
	card := enroll(t, r, 1, 1)

	reviewed := t0.Add(-10 * 24 * time.Hour)
	card.State = models.StateReview
	card.Stability = 10
	card.LastReviewedAt = &reviewed
	card.NextReviewAt = t0
	_, err := store.PutCard(ctx, card)
	require.NoError(t, err)

	entry, err := r.RecordReview(ctx, card.ID, models.RatingGood, 0, uuid.NullUUID{})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, entry.RetrievabilityBefore, 1e-9)
	assert.InDelta(t, 10, entry.StabilityBefore, 1e-12)
	assert.Greater(t, entry.StabilityAfter, entry.StabilityBefore)
	assert.True(t, entry.ReviewedAt.Equal(clk.t))
}

func TestRecordReviewLapse(t *testing.T) {
	r, store, _ := newRecorder(t)
	ctx := context.Background()
	card := enroll(t, r, 1, 1)

	reviewed := t0.Add(-5 * 24 * time.Hour)
	card.State = models.StateReview
	card.Stability = 20
	card.Difficulty = 5
	card.LapseCount = 2
	card.LastReviewedAt = &reviewed
	_, err := store.PutCard(ctx, card)
	require.NoError(t, err)

	entry, err := r.RecordReview(ctx, card.ID, models.RatingAgain, 9000, uuid.NullUUID{})
	require.NoError(t, err)
	assert.Equal(t, models.StateRelearning, entry.StateAfter)
	assert.Less(t, entry.StabilityAfter, entry.StabilityBefore)

	stored, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.LapseCount)
}

func TestRecordReviewErrors(t *testing.T) {
	r, _, _ := newRecorder(t)
	ctx := context.Background()
	card := enroll(t, r, 1, 1)

	_, err := r.RecordReview(ctx, 999, models.RatingGood, 0, uuid.NullUUID{})
	assert.ErrorIs(t, err, models.ErrCardNotFound)

	for _, rating := range []models.Rating{0, 5, -1} {
		_, err = r.RecordReview(ctx, card.ID, rating, 0, uuid.NullUUID{})
		assert.ErrorIs(t, err, models.ErrInvalidRating)
	}

	_, err = r.RecordReview(ctx, card.ID, models.RatingGood, 0, uuid.NullUUID{UUID: uuid.New(), Valid: true})
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestRecordReviewIsAtomic(t *testing.T) {
	mem := database.NewMemoryStore()
	r := NewRecorder(failingStore{mem}, logger.Nop(), WithClock(func() time.Time { return t0 }))
	ctx := context.Background()
	card := enroll(t, r, 1, 1)

	_, err := r.RecordReview(ctx, card.ID, models.RatingGood, 0, uuid.NullUUID{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPersistence)

	stored, err := mem.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateNew, stored.State)
	assert.Equal(t, 0, stored.ReviewCount)

	history, err := mem.GetReviewHistory(ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordReviewUsesSessionRetention(t *testing.T) {
	ctx := context.Background()
	intervals := map[float64]float64{}
	for _, retention := range []float64{0.8, 0.95} {
		r, store, _ := newRecorder(t)
		card := enroll(t, r, 1, 1)
		reviewed := t0.Add(-10 * 24 * time.Hour)
		card.State = models.StateReview
		card.Stability = 10
		card.LastReviewedAt = &reviewed
		_, err := store.PutCard(ctx, card)
		require.NoError(t, err)

		session, err := store.CreateSession(ctx, models.LearningSession{
			LearnerID: 1, SessionType: models.SessionReview, TargetRetention: retention,
			MaxReviews: 10, StartedAt: t0,
		})
		require.NoError(t, err)

		entry, err := r.RecordReview(ctx, card.ID, models.RatingGood, 0, uuid.NullUUID{UUID: session.ID, Valid: true})
		require.NoError(t, err)
		intervals[retention] = entry.NextIntervalDays
	}
	assert.Greater(t, intervals[0.8], intervals[0.95])
}

func TestSessionLifecycle(t *testing.T) {
	r, _, clk := newRecorder(t)
	ctx := context.Background()
	c1 := enroll(t, r, 1, 1)
	c2 := enroll(t, r, 1, 2)

	session, err := r.StartSession(ctx, 1, models.SessionReview, 0)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMaxReviews, session.MaxReviews)
	assert.InDelta(t, models.DefaultTargetRetention, session.TargetRetention, 1e-12)
	sid := uuid.NullUUID{UUID: session.ID, Valid: true}

	_, err = r.RecordReview(ctx, c1.ID, models.RatingGood, 2000, sid)
	require.NoError(t, err)
	clk.advance(time.Minute)
	_, err = r.RecordReview(ctx, c2.ID, models.RatingAgain, 6000, sid)
	require.NoError(t, err)
	clk.advance(time.Minute)

	summary, err := r.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ReviewsCompleted)
	assert.Equal(t, 1, summary.CorrectCount)
	assert.Equal(t, 1, summary.IncorrectCount)
	assert.InDelta(t, 50.0, summary.AccuracyPercent, 1e-9)
	assert.InDelta(t, 4.0, summary.CompletionPercent, 1e-9)
	assert.Equal(t, int64(4000), summary.AverageResponseTimeMs)
	assert.InDelta(t, 1.0, summary.AverageRetrievability, 1e-9)
	assert.Equal(t, 2*time.Minute, summary.Duration)
	assert.False(t, summary.Open)

	_, err = r.EndSession(ctx, session.ID)
	assert.ErrorIs(t, err, models.ErrSessionClosed)

	_, err = r.RecordReview(ctx, c1.ID, models.RatingGood, 0, sid)
	assert.ErrorIs(t, err, models.ErrSessionClosed)

	again, err := r.Summary(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, summary, again)
}

func TestSessionRejectsOtherLearner(t *testing.T) {
	r, _, _ := newRecorder(t)
	ctx := context.Background()
	card := enroll(t, r, 2, 1)

	session, err := r.StartSession(ctx, 1, models.SessionQuiz, 5)
	require.NoError(t, err)

	_, err = r.RecordReview(ctx, card.ID, models.RatingGood, 0, uuid.NullUUID{UUID: session.ID, Valid: true})
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestStartSessionRejectsUnknownType(t *testing.T) {
	r, _, _ := newRecorder(t)
	_, err := r.StartSession(context.Background(), 1, models.SessionType("cram"), 5)
	assert.Error(t, err)
}

func TestEnrollIsIdempotent(t *testing.T) {
	r, store, _ := newRecorder(t)
	ctx := context.Background()

	first := enroll(t, r, 1, 7)
	second := enroll(t, r, 1, 7)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.StateNew, first.State)
	assert.True(t, first.NextReviewAt.Equal(t0))

	n, err := store.CountCards(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHistory(t *testing.T) {
	r, _, clk := newRecorder(t)
	ctx := context.Background()
	card := enroll(t, r, 1, 1)

	for _, rating := range []models.Rating{models.RatingAgain, models.RatingGood} {
		_, err := r.RecordReview(ctx, card.ID, rating, 0, uuid.NullUUID{})
		require.NoError(t, err)
		clk.advance(time.Hour)
	}

	history, err := r.History(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RatingGood, history[0].Rating)

	_, err = r.History(ctx, 404)
	assert.ErrorIs(t, err, models.ErrCardNotFound)
}

func sessionRef(s models.LearningSession) uuid.NullUUID {
	return uuid.NullUUID{UUID: s.ID, Valid: true}
}
