package spaced_repetition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/examsrs/pkg/models"
)

func TestDefaultParametersAreValid(t *testing.T) {
	assert.NoError(t, ValidateParameters(models.DefaultParameters))
	assert.NoError(t, ValidateConfig(models.DefaultAlgorithmConfig(1)))
}

func TestValidateParametersBounds(t *testing.T) {
	for i := range models.DefaultParameters {
		low := models.DefaultParameters
		low[i] = LowerBounds[i] - 0.01
		assert.ErrorIs(t, ValidateParameters(low), models.ErrInvalidParameters, "w[%d] below bound", i)

		high := models.DefaultParameters
		high[i] = UpperBounds[i] + 0.01
		assert.ErrorIs(t, ValidateParameters(high), models.ErrInvalidParameters, "w[%d] above bound", i)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.AlgorithmConfig)
	}{
		{"zero retention", func(c *models.AlgorithmConfig) { c.TargetRetention = -0.2 }},
		{"retention above one", func(c *models.AlgorithmConfig) { c.TargetRetention = 1.01 }},
		{"maximum interval", func(c *models.AlgorithmConfig) { c.MaximumIntervalDays = -3 }},
		{"negative graduation", func(c *models.AlgorithmConfig) { c.GraduationStability = -1 }},
		{"zero learning step", func(c *models.AlgorithmConfig) { c.LearningSteps = []time.Duration{0} }},
		{"negative relearning step", func(c *models.AlgorithmConfig) { c.RelearningSteps = []time.Duration{-time.Minute} }},
		{"no learning steps", func(c *models.AlgorithmConfig) { c.LearningSteps = []time.Duration{} }},
		{"no relearning steps", func(c *models.AlgorithmConfig) { c.RelearningSteps = []time.Duration{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.DefaultAlgorithmConfig(1)
			tt.mutate(&cfg)
			assert.ErrorIs(t, ValidateConfig(cfg), models.ErrInvalidParameters)
		})
	}
}

func TestLapseCapBelowOneWithinBounds(t *testing.T) {
	w := models.DefaultParameters
	w[17] = LowerBounds[17]
	w[18] = UpperBounds[18]
	assert.Less(t, lapseCap(&w), 1.0)
}
