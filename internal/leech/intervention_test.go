package leech

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/examsrs/internal/database"
	"github.com/example/examsrs/internal/logger"
	"github.com/example/examsrs/internal/review"
	"github.com/example/examsrs/pkg/models"
)

func kinds(strategies []Strategy) []models.InterventionKind {
	out := make([]models.InterventionKind, len(strategies))
	for i, s := range strategies {
		out[i] = s.Kind
	}
	return out
}

func TestEveryKindHasAnIntervention(t *testing.T) {
	for _, kind := range models.InterventionKinds {
		iv, ok := interventions[kind]
		require.True(t, ok, "missing intervention %s", kind)
		assert.Equal(t, kind, iv.Kind)
		assert.NotNil(t, iv.gate)
		assert.NotNil(t, iv.effect)
	}
	assert.Len(t, interventions, len(models.InterventionKinds))
}

func TestRecommend(t *testing.T) {
	e := newEngine(database.NewMemoryStore())

	tests := []struct {
		name     string
		analysis Analysis
		want     []models.InterventionKind
	}{
		{
			name:     "mild and fast",
			analysis: Analysis{Severity: models.SeverityMild, SuccessRate: 0.5, AverageResponseTimeMs: 3000},
			want:     []models.InterventionKind{},
		},
		{
			name:     "low success",
			analysis: Analysis{Severity: models.SeverityMild, SuccessRate: 0.25},
			want:     []models.InterventionKind{models.InterventionAdditionalPractice},
		},
		{
			name: "slow moderate history question",
			analysis: Analysis{
				Severity: models.SeverityModerate, SuccessRate: 0.4, AverageResponseTimeMs: 15000,
				Question: models.Question{Category: "Geschichte"},
			},
			want: []models.InterventionKind{
				models.InterventionConceptBreakdown,
				models.InterventionExpertExplanation,
				models.InterventionMnemonicSuggestion,
			},
		},
		{
			name:     "severe and failing",
			analysis: Analysis{Severity: models.SeveritySevere, SuccessRate: 0.1},
			want: []models.InterventionKind{
				models.InterventionAdditionalPractice,
				models.InterventionConceptBreakdown,
				models.InterventionSuspendTemporarily,
			},
		},
		{
			name:     "severe at the suspension boundary",
			analysis: Analysis{Severity: models.SeveritySevere, SuccessRate: 0.2},
			want: []models.InterventionKind{
				models.InterventionAdditionalPractice,
				models.InterventionConceptBreakdown,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Recommend(tt.analysis)
			assert.Equal(t, tt.want, append([]models.InterventionKind{}, kinds(got)...))
			for i := 1; i < len(got); i++ {
				assert.LessOrEqual(t, got[i-1].Priority, got[i].Priority)
			}
		})
	}
}

func TestRecommendUsesConfiguredTopics(t *testing.T) {
	e := NewEngine(database.NewMemoryStore(), EngineConfig{ComplexTopics: []string{"Recht"}}, logger.Nop(), nil)
	a := Analysis{Severity: models.SeverityMild, SuccessRate: 0.9, Question: models.Question{Category: "Recht"}}
	assert.Equal(t, []models.InterventionKind{models.InterventionExpertExplanation}, kinds(e.Recommend(a)))

	a.Question.Category = "Geschichte"
	assert.Empty(t, e.Recommend(a))
}

func detectOne(t *testing.T, store *database.MemoryStore, card models.Card) {
	t.Helper()
	found, err := newDetector(store).Detect(context.Background(), card.LearnerID, DetectOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, found)
}

func TestApplySuspend(t *testing.T) {
	store := database.NewMemoryStore()
	e := newEngine(store)
	ctx := context.Background()
	card := seedCard(t, store, 1, 1, 9, 0, repeat(models.RatingAgain, 9)...)
	detectOne(t, store, card)

	rec, err := e.Apply(ctx, card.ID, models.InterventionSuspendTemporarily, "revisit later")
	require.NoError(t, err)
	assert.True(t, rec.IsSuspended)
	require.NotNil(t, rec.ActionTaken)
	assert.Equal(t, models.InterventionSuspendTemporarily, *rec.ActionTaken)
	require.NotNil(t, rec.ActionAt)
	assert.True(t, rec.ActionAt.Equal(t0))
	assert.Equal(t, "revisit later", rec.UserNotes)

	stored, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stored.NextReviewAt.Sub(t0), 89*day)

	// still excluded once the suspension date has passed
	due, err := review.NewSelector(store, logger.Nop(), nil).DueCards(ctx, 1, t0.Add(200*day), 0)
	require.NoError(t, err)
	assert.NotContains(t, due, card.ID)
}

func TestApplyAdditionalPractice(t *testing.T) {
	store := database.NewMemoryStore()
	e := newEngine(store)
	ctx := context.Background()
	card := seedCard(t, store, 1, 1, 8, 0, repeat(models.RatingAgain, 8)...)
	card.NextReviewAt = t0.Add(10 * day)
	_, err := store.PutCard(ctx, card)
	require.NoError(t, err)
	detectOne(t, store, card)

	_, err = e.Apply(ctx, card.ID, models.InterventionAdditionalPractice, "")
	require.NoError(t, err)
	stored, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, stored.Stability, 1e-12)
	assert.True(t, stored.NextReviewAt.Equal(t0))

	stored.Stability = 0.15
	_, err = store.PutCard(ctx, stored)
	require.NoError(t, err)
	_, err = e.Apply(ctx, card.ID, models.InterventionAdditionalPractice, "")
	require.NoError(t, err)
	stored, err = store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, stored.Stability, 1e-12)
}

func TestApplyRecordOnlyInterventions(t *testing.T) {
	store := database.NewMemoryStore()
	e := newEngine(store)
	ctx := context.Background()
	card := seedCard(t, store, 1, 3, 8, 0, repeat(models.RatingAgain, 8)...)
	detectOne(t, store, card)

	for _, kind := range []models.InterventionKind{
		models.InterventionConceptBreakdown,
		models.InterventionMnemonicSuggestion,
		models.InterventionExpertExplanation,
	} {
		rec, err := e.Apply(ctx, card.ID, kind, string(kind))
		require.NoError(t, err)
		assert.Equal(t, kind, *rec.ActionTaken)
		assert.False(t, rec.IsSuspended)

		stored, err := store.GetCard(ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, card.Stability, stored.Stability)
		assert.True(t, stored.NextReviewAt.Equal(card.NextReviewAt))
	}
}

func TestApplyErrors(t *testing.T) {
	store := database.NewMemoryStore()
	e := newEngine(store)
	ctx := context.Background()
	card := seedCard(t, store, 1, 1, 2, 0, models.RatingAgain)

	_, err := e.Apply(ctx, card.ID, models.InterventionSuspendTemporarily, "")
	assert.ErrorIs(t, err, models.ErrLeechNotFound)

	_, err = e.Apply(ctx, card.ID, models.InterventionKind("spaced_repetition"), "")
	assert.ErrorIs(t, err, models.ErrUnknownIntervention)

	_, err = e.Resolve(ctx, card.ID, false)
	assert.ErrorIs(t, err, models.ErrLeechNotFound)
}

func TestResolve(t *testing.T) {
	store := database.NewMemoryStore()
	e := newEngine(store)
	ctx := context.Background()
	card := seedCard(t, store, 1, 1, 9, 0, repeat(models.RatingAgain, 9)...)
	detectOne(t, store, card)
	_, err := e.Apply(ctx, card.ID, models.InterventionSuspendTemporarily, "")
	require.NoError(t, err)

	e.now = fixedClock(t0.Add(3 * day))
	rec, err := e.Resolve(ctx, card.ID, true)
	require.NoError(t, err)
	assert.False(t, rec.IsActive())
	assert.False(t, rec.IsSuspended)

	stored, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.LapseCount)
	assert.True(t, stored.NextReviewAt.Equal(t0.Add(3*day)))

	_, err = e.Apply(ctx, card.ID, models.InterventionMnemonicSuggestion, "")
	assert.ErrorIs(t, err, models.ErrLeechNotFound)
	_, err = e.Resolve(ctx, card.ID, false)
	assert.ErrorIs(t, err, models.ErrLeechNotFound)
}

func TestResolvedLeechIsRedetectedOnlyAfterNewLapse(t *testing.T) {
	store := database.NewMemoryStore()
	e := newEngine(store)
	d := newDetector(store)
	ctx := context.Background()
	card := seedCard(t, store, 1, 1, 9, 0, repeat(models.RatingAgain, 9)...)
	detectOne(t, store, card)

	_, err := e.Resolve(ctx, card.ID, false)
	require.NoError(t, err)

	found, err := d.Detect(ctx, 1, DetectOptions{})
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = store.AppendReview(ctx, models.ReviewHistoryEntry{
		CardID: card.ID, LearnerID: 1, QuestionID: 1, Rating: models.RatingAgain,
		ReviewedAt: t0.Add(time.Hour),
	})
	require.NoError(t, err)

	found, err = d.Detect(ctx, 1, DetectOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	rec, err := store.GetLeechRecord(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, rec.IsActive())
}

func TestRepeatedAgainBecomesSevereLeech(t *testing.T) {
	store := database.NewMemoryStore()
	now := t0
	rec := review.NewRecorder(store, logger.Nop(), review.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	card, err := rec.Enroll(ctx, 1, 2)
	require.NoError(t, err)
	for i := 0; i < 9; i++ {
		_, err := rec.RecordReview(ctx, card.ID, models.RatingAgain, 8000, uuid.NullUUID{})
		require.NoError(t, err)
		now = now.Add(day)
	}

	found, err := newDetector(store).Detect(ctx, 1, DetectOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 9, found[0].LapseCount)
	assert.Equal(t, models.SeveritySevere, found[0].Severity)
	assert.Zero(t, found[0].SuccessRate)
}
