package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/examsrs/pkg/models"
)

const reviewColumns = `id, card_id, learner_id, question_id, rating, response_time_ms,
	difficulty_before, stability_before, retrievability_before, state_before,
	difficulty_after, stability_after, retrievability_after, state_after,
	next_interval_days, session_id, reviewed_at`

// AppendReview stores a single review history entry
func (s *Store) AppendReview(ctx context.Context, entry models.ReviewHistoryEntry) (models.ReviewHistoryEntry, error) {
	return insertReview(ctx, s.db, entry)
}

func insertReview(ctx context.Context, q sqlx.ExtContext, entry models.ReviewHistoryEntry) (models.ReviewHistoryEntry, error) {
	query := q.Rebind(`
		INSERT INTO review_history (card_id, learner_id, question_id, rating, response_time_ms,
			difficulty_before, stability_before, retrievability_before, state_before,
			difficulty_after, stability_after, retrievability_after, state_after,
			next_interval_days, session_id, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := q.QueryRowxContext(ctx, query,
		entry.CardID,
		entry.LearnerID,
		entry.QuestionID,
		entry.Rating,
		entry.ResponseTimeMs,
		entry.DifficultyBefore,
		entry.StabilityBefore,
		entry.RetrievabilityBefore,
		entry.StateBefore,
		entry.DifficultyAfter,
		entry.StabilityAfter,
		entry.RetrievabilityAfter,
		entry.StateAfter,
		entry.NextIntervalDays,
		entry.SessionID,
		entry.ReviewedAt.UTC(),
	).Scan(&entry.ID)
	if err != nil {
		return models.ReviewHistoryEntry{}, persistErr("failed to append review", err)
	}
	return entry, nil
}

// GetReviewHistory returns a card's reviews, most recent first
func (s *Store) GetReviewHistory(ctx context.Context, cardID int64) ([]models.ReviewHistoryEntry, error) {
	query := s.db.Rebind(`SELECT ` + reviewColumns + ` FROM review_history
		WHERE card_id = ?
		ORDER BY reviewed_at DESC, id DESC`)

	entries := []models.ReviewHistoryEntry{}
	if err := s.db.SelectContext(ctx, &entries, query, cardID); err != nil {
		return nil, persistErr("failed to get review history", err)
	}
	return entries, nil
}

// GetSessionReviews returns the reviews recorded under a session, oldest first
func (s *Store) GetSessionReviews(ctx context.Context, sessionID uuid.UUID) ([]models.ReviewHistoryEntry, error) {
	query := s.db.Rebind(`SELECT ` + reviewColumns + ` FROM review_history
		WHERE session_id = ?
		ORDER BY reviewed_at ASC, id ASC`)

	entries := []models.ReviewHistoryEntry{}
	if err := s.db.SelectContext(ctx, &entries, query, sessionID); err != nil {
		return nil, persistErr("failed to get session reviews", err)
	}
	return entries, nil
}

// CommitReview writes the updated card, its history entry and the session
// counters in one transaction. Either all of them are stored or none.
func (s *Store) CommitReview(ctx context.Context, card models.Card, entry models.ReviewHistoryEntry, session *models.LearningSession) (models.ReviewHistoryEntry, error) {
	var stored models.ReviewHistoryEntry
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateCard(ctx, tx, card); err != nil {
			return err
		}
		var err error
		if stored, err = insertReview(ctx, tx, entry); err != nil {
			return err
		}
		if session != nil {
			return updateSession(ctx, tx, *session)
		}
		return nil
	})
	if err != nil {
		return models.ReviewHistoryEntry{}, err
	}
	return stored, nil
}
