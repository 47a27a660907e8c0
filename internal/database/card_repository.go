package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/examsrs/pkg/models"
)

const cardColumns = `id, learner_id, question_id, state, difficulty, stability, retrievability,
	step, lapse_count, review_count, next_review_at, last_reviewed_at, created_at, updated_at`

// GetCard retrieves a card by ID
func (s *Store) GetCard(ctx context.Context, cardID int64) (models.Card, error) {
	return getCard(ctx, s.db, cardID)
}

func getCard(ctx context.Context, q sqlx.ExtContext, cardID int64) (models.Card, error) {
	var card models.Card
	query := q.Rebind(`SELECT ` + cardColumns + ` FROM cards WHERE id = ?`)
	err := sqlx.GetContext(ctx, q, &card, query, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Card{}, fmt.Errorf("card %d: %w", cardID, models.ErrCardNotFound)
	}
	if err != nil {
		return models.Card{}, persistErr("failed to get card", err)
	}
	return card, nil
}

// GetCardByQuestion retrieves the card a learner holds for a question
func (s *Store) GetCardByQuestion(ctx context.Context, learnerID, questionID int64) (models.Card, error) {
	var card models.Card
	query := s.db.Rebind(`SELECT ` + cardColumns + ` FROM cards WHERE learner_id = ? AND question_id = ?`)
	err := s.db.GetContext(ctx, &card, query, learnerID, questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Card{}, fmt.Errorf("learner %d question %d: %w", learnerID, questionID, models.ErrCardNotFound)
	}
	if err != nil {
		return models.Card{}, persistErr("failed to get card by question", err)
	}
	return card, nil
}

// PutCard inserts the card when its ID is zero and updates it otherwise
func (s *Store) PutCard(ctx context.Context, card models.Card) (models.Card, error) {
	if card.ID == 0 {
		return insertCard(ctx, s.db, card)
	}
	if err := updateCard(ctx, s.db, card); err != nil {
		return models.Card{}, err
	}
	return card, nil
}

func insertCard(ctx context.Context, q sqlx.ExtContext, card models.Card) (models.Card, error) {
	query := q.Rebind(`
		INSERT INTO cards (learner_id, question_id, state, difficulty, stability, retrievability,
			step, lapse_count, review_count, next_review_at, last_reviewed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := q.QueryRowxContext(ctx, query,
		card.LearnerID,
		card.QuestionID,
		card.State,
		card.Difficulty,
		card.Stability,
		card.Retrievability,
		card.Step,
		card.LapseCount,
		card.ReviewCount,
		card.NextReviewAt.UTC(),
		utcPtr(card.LastReviewedAt),
		card.CreatedAt.UTC(),
		card.UpdatedAt.UTC(),
	).Scan(&card.ID)
	if err != nil {
		return models.Card{}, persistErr("failed to insert card", err)
	}
	return card, nil
}

func updateCard(ctx context.Context, q sqlx.ExtContext, card models.Card) error {
	query := q.Rebind(`
		UPDATE cards
		SET state = ?, difficulty = ?, stability = ?, retrievability = ?, step = ?,
			lapse_count = ?, review_count = ?, next_review_at = ?, last_reviewed_at = ?, updated_at = ?
		WHERE id = ?`)

	res, err := q.ExecContext(ctx, query,
		card.State,
		card.Difficulty,
		card.Stability,
		card.Retrievability,
		card.Step,
		card.LapseCount,
		card.ReviewCount,
		card.NextReviewAt.UTC(),
		utcPtr(card.LastReviewedAt),
		card.UpdatedAt.UTC(),
		card.ID,
	)
	if err != nil {
		return persistErr("failed to update card", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("failed to update card", err)
	}
	if n == 0 {
		return fmt.Errorf("card %d: %w", card.ID, models.ErrCardNotFound)
	}
	return nil
}

// QueryDue returns the learner's cards due at or before now, earliest first.
// With excludeSuspended, cards under an active suspension are left out.
func (s *Store) QueryDue(ctx context.Context, learnerID int64, now time.Time, excludeSuspended bool) ([]models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards c WHERE c.learner_id = ? AND c.next_review_at <= ?`
	args := []interface{}{learnerID, now.UTC()}
	if excludeSuspended {
		query += ` AND NOT EXISTS (
			SELECT 1 FROM leech_records l
			WHERE l.card_id = c.id AND l.is_suspended = ? AND l.resolved_at IS NULL)`
		args = append(args, true)
	}
	query += ` ORDER BY c.next_review_at ASC, c.id ASC`

	cards := []models.Card{}
	if err := s.db.SelectContext(ctx, &cards, s.db.Rebind(query), args...); err != nil {
		return nil, persistErr("failed to query due cards", err)
	}
	return cards, nil
}

// ListCardsByLapses returns the learner's cards with at least minLapses lapses
func (s *Store) ListCardsByLapses(ctx context.Context, learnerID int64, minLapses int) ([]models.Card, error) {
	query := s.db.Rebind(`SELECT ` + cardColumns + ` FROM cards
		WHERE learner_id = ? AND lapse_count >= ?
		ORDER BY lapse_count DESC, id ASC`)

	cards := []models.Card{}
	if err := s.db.SelectContext(ctx, &cards, query, learnerID, minLapses); err != nil {
		return nil, persistErr("failed to list cards by lapses", err)
	}
	return cards, nil
}

// CountCards returns how many cards the learner holds
func (s *Store) CountCards(ctx context.Context, learnerID int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM cards WHERE learner_id = ?`), learnerID); err != nil {
		return 0, persistErr("failed to count cards", err)
	}
	return n, nil
}

// ListLearners returns every learner that holds at least one card
func (s *Store) ListLearners(ctx context.Context) ([]int64, error) {
	learners := []int64{}
	if err := s.db.SelectContext(ctx, &learners, `SELECT DISTINCT learner_id FROM cards ORDER BY learner_id`); err != nil {
		return nil, persistErr("failed to list learners", err)
	}
	return learners, nil
}
