package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/examsrs/pkg/models"
)

// GetAlgorithmConfig retrieves the learner's algorithm configuration.
// A learner without a stored configuration gets the defaults.
func (s *Store) GetAlgorithmConfig(ctx context.Context, learnerID int64) (models.AlgorithmConfig, error) {
	query := s.db.Rebind(`
		SELECT learner_id, parameters, target_retention, maximum_interval_days,
			learning_steps, relearning_steps, graduation_stability, updated_at
		FROM algorithm_configs
		WHERE learner_id = ?`)

	var row algorithmConfigRow
	err := s.db.GetContext(ctx, &row, query, learnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultAlgorithmConfig(learnerID), nil
	}
	if err != nil {
		return models.AlgorithmConfig{}, persistErr("failed to get algorithm config", err)
	}

	cfg, err := row.toModel()
	if err != nil {
		return models.AlgorithmConfig{}, persistErr("failed to get algorithm config", err)
	}
	return cfg, nil
}

// PutAlgorithmConfig stores the learner's algorithm configuration
func (s *Store) PutAlgorithmConfig(ctx context.Context, cfg models.AlgorithmConfig) error {
	row, err := toConfigRow(cfg, time.Now())
	if err != nil {
		return persistErr("failed to encode algorithm config", err)
	}

	query := s.db.Rebind(`
		INSERT INTO algorithm_configs (learner_id, parameters, target_retention, maximum_interval_days,
			learning_steps, relearning_steps, graduation_stability, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (learner_id) DO UPDATE SET
			parameters = excluded.parameters,
			target_retention = excluded.target_retention,
			maximum_interval_days = excluded.maximum_interval_days,
			learning_steps = excluded.learning_steps,
			relearning_steps = excluded.relearning_steps,
			graduation_stability = excluded.graduation_stability,
			updated_at = excluded.updated_at`)

	_, err = s.db.ExecContext(ctx, query,
		row.LearnerID,
		row.Parameters,
		row.TargetRetention,
		row.MaximumIntervalDays,
		row.LearningSteps,
		row.RelearningSteps,
		row.GraduationStability,
		row.UpdatedAt,
	)
	if err != nil {
		return persistErr("failed to put algorithm config", err)
	}
	return nil
}
