package models

import "time"

// ParameterCount is the number of weights consumed by the scheduler
const ParameterCount = 19

// DefaultParameters are the FSRS-5 default weights.
//
//	w[0..3]   initial stability for Again/Hard/Good/Easy
//	w[4..7]   difficulty: initial, initial slope, delta, mean reversion
//	w[8..10]  recall stability: scale, stability decay, retrievability gain
//	w[11..14] lapse stability: scale, difficulty, stability, retrievability
//	w[15..16] hard penalty, easy bonus
//	w[17..18] short-term stability: scale, offset
var DefaultParameters = [ParameterCount]float64{
	0.5701, 1.4436, 4.1386, 10.9355,
	5.1443, 1.2006, 0.8627, 0.0362,
	1.629, 0.1342, 1.0166,
	2.1174, 0.0839, 0.3204, 1.4676,
	0.219, 2.8237,
	0.2188, 0.9859,
}

const (
	DefaultTargetRetention     = 0.9
	DefaultMaximumIntervalDays = 36500
	DefaultGraduationStability = 1.0
)

// AlgorithmConfig holds the per-learner scheduler parameters
type AlgorithmConfig struct {
	LearnerID           int64                   `json:"learner_id"`
	Parameters          [ParameterCount]float64 `json:"parameters"`
	TargetRetention     float64                 `json:"target_retention"`
	MaximumIntervalDays int                     `json:"maximum_interval_days"`
	LearningSteps       []time.Duration         `json:"learning_steps"`
	RelearningSteps     []time.Duration         `json:"relearning_steps"`
	// GraduationStability is the stability in days a learning card needs
	// before a Good or Easy rating moves it to Review.
	GraduationStability float64 `json:"graduation_stability"`
}

// DefaultAlgorithmConfig returns the configuration used for learners without a stored one
func DefaultAlgorithmConfig(learnerID int64) AlgorithmConfig {
	return AlgorithmConfig{
		LearnerID:           learnerID,
		Parameters:          DefaultParameters,
		TargetRetention:     DefaultTargetRetention,
		MaximumIntervalDays: DefaultMaximumIntervalDays,
		LearningSteps:       []time.Duration{time.Minute, 10 * time.Minute},
		RelearningSteps:     []time.Duration{10 * time.Minute},
		GraduationStability: DefaultGraduationStability,
	}
}

// WithDefaults fills zero-valued fields with their defaults.
// Nil step slices get the default steps; an empty non-nil slice means no steps.
func (c AlgorithmConfig) WithDefaults() AlgorithmConfig {
	def := DefaultAlgorithmConfig(c.LearnerID)
	if c.Parameters == [ParameterCount]float64{} {
		c.Parameters = def.Parameters
	}
	if c.TargetRetention == 0 {
		c.TargetRetention = def.TargetRetention
	}
	if c.MaximumIntervalDays == 0 {
		c.MaximumIntervalDays = def.MaximumIntervalDays
	}
	if c.LearningSteps == nil {
		c.LearningSteps = def.LearningSteps
	}
	if c.RelearningSteps == nil {
		c.RelearningSteps = def.RelearningSteps
	}
	if c.GraduationStability == 0 {
		c.GraduationStability = def.GraduationStability
	}
	return c
}
