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

const leechColumns = `card_id, learner_id, question_id, lapse_count_at_detection, threshold, severity,
	detected_at, action_taken, action_at, is_suspended, user_notes, resolved_at`

// GetLeechRecord retrieves the leech record of a card
func (s *Store) GetLeechRecord(ctx context.Context, cardID int64) (models.LeechRecord, error) {
	return getLeechRecord(ctx, s.db, cardID)
}

func getLeechRecord(ctx context.Context, q sqlx.ExtContext, cardID int64) (models.LeechRecord, error) {
	var rec models.LeechRecord
	query := q.Rebind(`SELECT ` + leechColumns + ` FROM leech_records WHERE card_id = ?`)
	err := sqlx.GetContext(ctx, q, &rec, query, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LeechRecord{}, fmt.Errorf("card %d: %w", cardID, models.ErrLeechNotFound)
	}
	if err != nil {
		return models.LeechRecord{}, persistErr("failed to get leech record", err)
	}
	return rec, nil
}

// GetOrCreateLeechRecord returns the card's leech record, creating a mild
// one detected at detectedAt from the card's current lapse count if none
// exists. created reports whether a new row was written.
func (s *Store) GetOrCreateLeechRecord(ctx context.Context, cardID int64, detectedAt time.Time) (models.LeechRecord, bool, error) {
	var (
		rec     models.LeechRecord
		created bool
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO leech_records (card_id, learner_id, question_id, lapse_count_at_detection,
				threshold, severity, detected_at, is_suspended, user_notes)
			SELECT id, learner_id, question_id, lapse_count, ?, ?, ?, ?, ''
			FROM cards WHERE id = ?
			ON CONFLICT (card_id) DO NOTHING`)

		res, err := tx.ExecContext(ctx, query,
			models.DefaultLeechThreshold,
			models.SeverityMild,
			detectedAt.UTC(),
			false,
			cardID,
		)
		if err != nil {
			return persistErr("failed to create leech record", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return persistErr("failed to create leech record", err)
		}
		created = n > 0

		rec, err = getLeechRecord(ctx, tx, cardID)
		if errors.Is(err, models.ErrLeechNotFound) {
			return fmt.Errorf("card %d: %w", cardID, models.ErrCardNotFound)
		}
		return err
	})
	if err != nil {
		return models.LeechRecord{}, false, err
	}
	return rec, created, nil
}

// PutLeechRecord inserts or replaces the card's leech record
func (s *Store) PutLeechRecord(ctx context.Context, rec models.LeechRecord) error {
	return upsertLeechRecord(ctx, s.db, rec)
}

func upsertLeechRecord(ctx context.Context, q sqlx.ExtContext, rec models.LeechRecord) error {
	query := q.Rebind(`
		INSERT INTO leech_records (` + leechColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (card_id) DO UPDATE SET
			lapse_count_at_detection = excluded.lapse_count_at_detection,
			threshold = excluded.threshold,
			severity = excluded.severity,
			detected_at = excluded.detected_at,
			action_taken = excluded.action_taken,
			action_at = excluded.action_at,
			is_suspended = excluded.is_suspended,
			user_notes = excluded.user_notes,
			resolved_at = excluded.resolved_at`)

	var action *string
	if rec.ActionTaken != nil {
		a := string(*rec.ActionTaken)
		action = &a
	}

	_, err := q.ExecContext(ctx, query,
		rec.CardID,
		rec.LearnerID,
		rec.QuestionID,
		rec.LapseCountAtDetection,
		rec.Threshold,
		rec.Severity,
		rec.DetectedAt.UTC(),
		action,
		utcPtr(rec.ActionAt),
		rec.IsSuspended,
		rec.UserNotes,
		utcPtr(rec.ResolvedAt),
	)
	if err != nil {
		return persistErr("failed to put leech record", err)
	}
	return nil
}

// ListLeechRecords returns every leech record of a learner, newest detection first
func (s *Store) ListLeechRecords(ctx context.Context, learnerID int64) ([]models.LeechRecord, error) {
	query := s.db.Rebind(`SELECT ` + leechColumns + ` FROM leech_records
		WHERE learner_id = ?
		ORDER BY detected_at DESC, card_id ASC`)

	records := []models.LeechRecord{}
	if err := s.db.SelectContext(ctx, &records, query, learnerID); err != nil {
		return nil, persistErr("failed to list leech records", err)
	}
	return records, nil
}

// CommitIntervention writes the leech record and, when given, the card in
// one transaction
func (s *Store) CommitIntervention(ctx context.Context, rec models.LeechRecord, card *models.Card) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := upsertLeechRecord(ctx, tx, rec); err != nil {
			return err
		}
		if card != nil {
			return updateCard(ctx, tx, *card)
		}
		return nil
	})
}
