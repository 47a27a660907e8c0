package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/examsrs/pkg/models"
)

const sessionColumns = `id, learner_id, session_type, target_retention, max_reviews,
	reviews_completed, correct_count, started_at, ended_at`

// CreateSession stores a new learning session, assigning an ID if it has none
func (s *Store) CreateSession(ctx context.Context, session models.LearningSession) (models.LearningSession, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	query := s.db.Rebind(`
		INSERT INTO learning_sessions (id, learner_id, session_type, target_retention, max_reviews,
			reviews_completed, correct_count, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.LearnerID,
		session.SessionType,
		session.TargetRetention,
		session.MaxReviews,
		session.ReviewsCompleted,
		session.CorrectCount,
		session.StartedAt.UTC(),
		utcPtr(session.EndedAt),
	)
	if err != nil {
		return models.LearningSession{}, persistErr("failed to create session", err)
	}
	return session, nil
}

// GetSession retrieves a learning session by ID
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (models.LearningSession, error) {
	var session models.LearningSession
	query := s.db.Rebind(`SELECT ` + sessionColumns + ` FROM learning_sessions WHERE id = ?`)
	err := s.db.GetContext(ctx, &session, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LearningSession{}, fmt.Errorf("session %s: %w", id, models.ErrSessionNotFound)
	}
	if err != nil {
		return models.LearningSession{}, persistErr("failed to get session", err)
	}
	return session, nil
}

// PutSession updates the counters and end time of an existing session
func (s *Store) PutSession(ctx context.Context, session models.LearningSession) error {
	return updateSession(ctx, s.db, session)
}

func updateSession(ctx context.Context, q sqlx.ExtContext, session models.LearningSession) error {
	query := q.Rebind(`
		UPDATE learning_sessions
		SET reviews_completed = ?, correct_count = ?, ended_at = ?
		WHERE id = ?`)

	res, err := q.ExecContext(ctx, query,
		session.ReviewsCompleted,
		session.CorrectCount,
		utcPtr(session.EndedAt),
		session.ID,
	)
	if err != nil {
		return persistErr("failed to update session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("failed to update session", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", session.ID, models.ErrSessionNotFound)
	}
	return nil
}
