package spaced_repetition

import (
	"fmt"

	"github.com/example/examsrs/pkg/models"
)

// LowerBounds is the minimum allowed value for each weight
var LowerBounds = [models.ParameterCount]float64{
	0.001, 0.001, 0.001, 0.001,
	1.0, 0.001, 0.001, 0.0,
	0.0, 0.0, 0.001,
	0.001, 0.001, 0.001, 0.0,
	0.0, 1.0,
	0.001, 0.0,
}

// UpperBounds is the maximum allowed value for each weight.
// w[17] > 0 and w[18] < 2 keep the lapse cap below the prior stability.
var UpperBounds = [models.ParameterCount]float64{
	100.0, 100.0, 100.0, 100.0,
	10.0, 4.0, 4.0, 0.75,
	4.5, 0.8, 3.5,
	5.0, 0.25, 0.9, 4.0,
	1.0, 6.0,
	2.0, 1.5,
}

// ValidateParameters checks every weight against LowerBounds and UpperBounds
func ValidateParameters(p [models.ParameterCount]float64) error {
	for i := range p {
		if p[i] < LowerBounds[i] || p[i] > UpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				models.ErrInvalidParameters, i, p[i], LowerBounds[i], UpperBounds[i])
		}
	}
	return nil
}

// ValidateConfig checks a configuration after defaults have been applied
func ValidateConfig(cfg models.AlgorithmConfig) error {
	if err := ValidateParameters(cfg.Parameters); err != nil {
		return err
	}
	if cfg.TargetRetention <= 0 || cfg.TargetRetention > 1 {
		return fmt.Errorf("%w: target retention %f out of range (0, 1]",
			models.ErrInvalidParameters, cfg.TargetRetention)
	}
	if cfg.MaximumIntervalDays < 1 {
		return fmt.Errorf("%w: maximum interval %d must be at least one day",
			models.ErrInvalidParameters, cfg.MaximumIntervalDays)
	}
	if cfg.GraduationStability < 0 {
		return fmt.Errorf("%w: graduation stability %f is negative",
			models.ErrInvalidParameters, cfg.GraduationStability)
	}
	if len(cfg.LearningSteps) == 0 || len(cfg.RelearningSteps) == 0 {
		return fmt.Errorf("%w: learning and relearning steps must not be empty", models.ErrInvalidParameters)
	}
	for _, steps := range [][]int64{durations(cfg.LearningSteps), durations(cfg.RelearningSteps)} {
		for _, d := range steps {
			if d <= 0 {
				return fmt.Errorf("%w: learning steps must be positive", models.ErrInvalidParameters)
			}
		}
	}
	return nil
}
