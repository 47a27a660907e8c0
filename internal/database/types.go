package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/examsrs/pkg/models"
)

// algorithmConfigRow is the stored form of models.AlgorithmConfig.
// Weights and steps are kept as JSON text so both dialects share one layout.
type algorithmConfigRow struct {
	LearnerID           int64     `db:"learner_id"`
	Parameters          string    `db:"parameters"`
	TargetRetention     float64   `db:"target_retention"`
	MaximumIntervalDays int       `db:"maximum_interval_days"`
	LearningSteps       string    `db:"learning_steps"`
	RelearningSteps     string    `db:"relearning_steps"`
	GraduationStability float64   `db:"graduation_stability"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// steps are stored in whole seconds
func encodeSteps(steps []time.Duration) (string, error) {
	secs := make([]int64, len(steps))
	for i, s := range steps {
		secs[i] = int64(s / time.Second)
	}
	b, err := json.Marshal(secs)
	return string(b), err
}

func decodeSteps(raw string) ([]time.Duration, error) {
	var secs []int64
	if err := json.Unmarshal([]byte(raw), &secs); err != nil {
		return nil, err
	}
	steps := make([]time.Duration, len(secs))
	for i, s := range secs {
		steps[i] = time.Duration(s) * time.Second
	}
	return steps, nil
}

func toConfigRow(cfg models.AlgorithmConfig, now time.Time) (algorithmConfigRow, error) {
	params, err := json.Marshal(cfg.Parameters)
	if err != nil {
		return algorithmConfigRow{}, err
	}
	learning, err := encodeSteps(cfg.LearningSteps)
	if err != nil {
		return algorithmConfigRow{}, err
	}
	relearning, err := encodeSteps(cfg.RelearningSteps)
	if err != nil {
		return algorithmConfigRow{}, err
	}
	return algorithmConfigRow{
		LearnerID:           cfg.LearnerID,
		Parameters:          string(params),
		TargetRetention:     cfg.TargetRetention,
		MaximumIntervalDays: cfg.MaximumIntervalDays,
		LearningSteps:       learning,
		RelearningSteps:     relearning,
		GraduationStability: cfg.GraduationStability,
		UpdatedAt:           now.UTC(),
	}, nil
}

func (r algorithmConfigRow) toModel() (models.AlgorithmConfig, error) {
	cfg := models.AlgorithmConfig{
		LearnerID:           r.LearnerID,
		TargetRetention:     r.TargetRetention,
		MaximumIntervalDays: r.MaximumIntervalDays,
		GraduationStability: r.GraduationStability,
	}
	if err := json.Unmarshal([]byte(r.Parameters), &cfg.Parameters); err != nil {
		return cfg, fmt.Errorf("decode parameters: %w", err)
	}
	var err error
	if cfg.LearningSteps, err = decodeSteps(r.LearningSteps); err != nil {
		return cfg, fmt.Errorf("decode learning steps: %w", err)
	}
	if cfg.RelearningSteps, err = decodeSteps(r.RelearningSteps); err != nil {
		return cfg, fmt.Errorf("decode relearning steps: %w", err)
	}
	return cfg, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
