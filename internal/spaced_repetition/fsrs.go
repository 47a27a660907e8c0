package spaced_repetition

import (
	"fmt"
	"math"
	"time"

	"github.com/example/examsrs/pkg/models"
)

const (
	// decay is the power-law exponent d of the forgetting curve
	decay = 0.5
	// referenceRetention is the recall probability reached after exactly one stability period
	referenceRetention = 0.9

	MinStability  = 0.1
	MinDifficulty = 1.0
	MaxDifficulty = 10.0

	day = 24 * time.Hour

	// MaxIntervalDays is the longest interval a time.Duration can hold
	MaxIntervalDays = int(math.MaxInt64 / int64(day))
)

// factor f makes R(S, S) equal referenceRetention: f = 0.9^(-1/d) - 1 = 19/81
var factor = math.Pow(referenceRetention, -1/decay) - 1

// RetrievabilityAt computes R(t, S) = (1 + f*t/S)^(-d) for t elapsed days
func RetrievabilityAt(elapsedDays, stability float64) float64 {
	if elapsedDays <= 0 || math.IsNaN(elapsedDays) {
		return 1.0
	}
	s := clampStability(stability)
	return math.Pow(1+factor*elapsedDays/s, -decay)
}

// Retrievability returns the modeled recall probability of the card at now.
// Cards that were never reviewed report 1.
func Retrievability(card models.Card, now time.Time) float64 {
	if card.LastReviewedAt == nil || card.State == models.StateNew {
		return 1.0
	}
	return RetrievabilityAt(elapsedDays(*card.LastReviewedAt, now), card.Stability)
}

// IntervalDays solves R(t, S) = targetRetention for t, rounded to whole days
// and clamped to [1, maxDays]. maxDays itself is capped at MaxIntervalDays.
func IntervalDays(stability, targetRetention float64, maxDays int) int {
	if maxDays > MaxIntervalDays {
		maxDays = MaxIntervalDays
	}
	if maxDays < 1 {
		maxDays = 1
	}
	t := math.Round(clampStability(stability) / factor * (math.Pow(targetRetention, -1/decay) - 1))
	if math.IsNaN(t) || t < 1 {
		return 1
	}
	if t > float64(maxDays) {
		return maxDays
	}
	return int(t)
}

// Schedule applies one review to the card and returns the updated card with its
// next review time. The input card is not modified and no state outside the
// arguments is read, so identical inputs always give identical outputs.
func Schedule(card models.Card, rating models.Rating, now time.Time, cfg models.AlgorithmConfig) (models.Card, time.Time, error) {
	if !rating.Valid() {
		return card, card.NextReviewAt, fmt.Errorf("%w: %d", models.ErrInvalidRating, int(rating))
	}
	cfg = cfg.WithDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return card, card.NextReviewAt, err
	}
	w := &cfg.Parameters

	c := sanitize(card)
	var elapsed float64
	if c.LastReviewedAt != nil {
		elapsed = elapsedDays(*c.LastReviewedAt, now)
	}

	var interval time.Duration
	switch c.State {
	case models.StateNew:
		c.Stability = initStability(w, rating)
		c.Difficulty = initDifficulty(w, rating)
		c.State = models.StateLearning
		interval = firstStep(&c, rating, cfg)

	case models.StateLearning, models.StateRelearning:
		if elapsed < 1 {
			c.Stability = shortTermStability(w, c.Stability, rating)
		} else {
			c.Stability = longTermStability(w, c.Difficulty, c.Stability, RetrievabilityAt(elapsed, c.Stability), rating)
		}
		c.Difficulty = nextDifficulty(w, c.Difficulty, rating)
		steps := cfg.LearningSteps
		if c.State == models.StateRelearning {
			steps = cfg.RelearningSteps
		}
		interval = stepTransition(&c, rating, steps, cfg)

	default:
		r := RetrievabilityAt(elapsed, c.Stability)
		c.Stability = longTermStability(w, c.Difficulty, c.Stability, r, rating)
		c.Difficulty = nextDifficulty(w, c.Difficulty, rating)
		if rating == models.RatingAgain {
			c.State = models.StateRelearning
			c.Step = 0
			interval = cfg.RelearningSteps[0]
		} else {
			interval = graduate(&c, cfg)
		}
	}

	if rating == models.RatingAgain {
		c.LapseCount++
	}
	c.ReviewCount++
	reviewedAt := now
	c.LastReviewedAt = &reviewedAt
	c.Retrievability = 1.0
	c.NextReviewAt = now.Add(interval)
	c.UpdatedAt = now

	return c, c.NextReviewAt, nil
}

// Preview returns the outcome of every possible rating for the card at now
func Preview(card models.Card, now time.Time, cfg models.AlgorithmConfig) (map[models.Rating]models.Card, error) {
	out := make(map[models.Rating]models.Card, len(models.Ratings))
	for _, r := range models.Ratings {
		c, _, err := Schedule(card, r, now, cfg)
		if err != nil {
			return nil, err
		}
		out[r] = c
	}
	return out, nil
}

// firstStep places a card that has just left New on its learning steps
func firstStep(c *models.Card, rating models.Rating, cfg models.AlgorithmConfig) time.Duration {
	steps := cfg.LearningSteps
	last := len(steps) - 1
	switch rating {
	case models.RatingAgain:
		c.Step = 0
		return steps[0]
	case models.RatingHard:
		c.Step = 0
		return hardStep(steps, 0)
	case models.RatingGood:
		c.Step = minInt(1, last)
		return steps[c.Step]
	default:
		c.Step = last
		return day
	}
}

// stepTransition moves a Learning or Relearning card along its steps
func stepTransition(c *models.Card, rating models.Rating, steps []time.Duration, cfg models.AlgorithmConfig) time.Duration {
	last := len(steps) - 1
	step := c.Step
	if step < 0 {
		step = 0
	}
	if step > last {
		step = last
	}

	switch rating {
	case models.RatingAgain:
		c.Step = 0
		return steps[0]
	case models.RatingHard:
		c.Step = step
		return hardStep(steps, step)
	case models.RatingGood:
		if step < last {
			c.Step = step + 1
			return steps[c.Step]
		}
	}

	// Good on the last step, or Easy.
	if c.Stability >= cfg.GraduationStability {
		return graduate(c, cfg)
	}
	c.Step = last
	return steps[last]
}

func hardStep(steps []time.Duration, step int) time.Duration {
	if step == 0 {
		if len(steps) >= 2 {
			return (steps[0] + steps[1]) / 2
		}
		return steps[0] * 3 / 2
	}
	return steps[step]
}

// graduate moves the card to Review and returns its whole-day interval
func graduate(c *models.Card, cfg models.AlgorithmConfig) time.Duration {
	c.State = models.StateReview
	c.Step = 0
	return time.Duration(IntervalDays(c.Stability, cfg.TargetRetention, cfg.MaximumIntervalDays)) * day
}

// initStability is S0(G) = w[G-1]
func initStability(w *[models.ParameterCount]float64, r models.Rating) float64 {
	return clampStability(w[r-1])
}

// initDifficulty is D0(G) = w4 - (G-3)*w5
func initDifficulty(w *[models.ParameterCount]float64, r models.Rating) float64 {
	return clampDifficulty(rawInitDifficulty(w, r))
}

func rawInitDifficulty(w *[models.ParameterCount]float64, r models.Rating) float64 {
	return w[4] - float64(r-3)*w[5]
}

// nextDifficulty applies D' = D - w6*(G-3) followed by mean reversion toward D0(Good).
// A lapse never lowers difficulty.
func nextDifficulty(w *[models.ParameterCount]float64, d float64, r models.Rating) float64 {
	next := d - w[6]*float64(r-3)
	next = w[7]*rawInitDifficulty(w, models.RatingGood) + (1-w[7])*next
	if r == models.RatingAgain && next < d {
		next = d
	}
	return clampDifficulty(next)
}

// longTermStability updates stability for a review at least a day after the previous one
func longTermStability(w *[models.ParameterCount]float64, d, s, r float64, rating models.Rating) float64 {
	if rating == models.RatingAgain {
		return lapseStability(w, d, s, r)
	}
	return recallStability(w, d, s, r, rating)
}

// recallStability is S * (e^w8 * (11-D) * S^-w9 * (e^(w10*(1-R)) - 1) * penalty + 1)
func recallStability(w *[models.ParameterCount]float64, d, s, r float64, rating models.Rating) float64 {
	modifier := 1.0
	switch rating {
	case models.RatingHard:
		modifier = w[15]
	case models.RatingEasy:
		modifier = w[16]
	}
	gain := math.Exp(w[8]) * (11 - d) * math.Pow(s, -w[9]) * (math.Exp(w[10]*(1-r)) - 1) * modifier
	return clampStability(s * (gain + 1))
}

// lapseStability is w11 * D^-w12 * ((S+1)^w13 - 1) * e^(w14*(1-R)), capped below S
func lapseStability(w *[models.ParameterCount]float64, d, s, r float64) float64 {
	forgot := w[11] * math.Pow(d, -w[12]) * (math.Pow(s+1, w[13]) - 1) * math.Exp(w[14]*(1-r))
	return clampStability(math.Min(forgot, s*lapseCap(w)))
}

// lapseCap is the short-term Again multiplier e^(w17*(w18-2)), always below 1
func lapseCap(w *[models.ParameterCount]float64) float64 {
	return math.Exp(w[17] * (w[18] - 2))
}

// shortTermStability is S * e^(w17*(G-3+w18)) for same-day reviews
func shortTermStability(w *[models.ParameterCount]float64, s float64, r models.Rating) float64 {
	return clampStability(s * math.Exp(w[17]*(float64(r)-3+w[18])))
}

// sanitize replaces out-of-range memory state so the update formulas stay finite
func sanitize(c models.Card) models.Card {
	if math.IsNaN(c.Difficulty) || math.IsInf(c.Difficulty, 0) {
		c.Difficulty = (MinDifficulty + MaxDifficulty) / 2
	}
	if math.IsNaN(c.Stability) || math.IsInf(c.Stability, 0) {
		c.Stability = MinStability
	}
	c.Difficulty = clampDifficulty(c.Difficulty)
	c.Stability = clampStability(c.Stability)
	if c.LapseCount < 0 {
		c.LapseCount = 0
	}
	if c.ReviewCount < 0 {
		c.ReviewCount = 0
	}
	return c
}

func clampDifficulty(d float64) float64 {
	return math.Min(MaxDifficulty, math.Max(MinDifficulty, d))
}

func clampStability(s float64) float64 {
	if math.IsNaN(s) {
		return MinStability
	}
	return math.Max(MinStability, s)
}

func elapsedDays(from, to time.Time) float64 {
	d := to.Sub(from).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

func durations(ds []time.Duration) []int64 {
	out := make([]int64, len(ds))
	for i, d := range ds {
		out[i] = int64(d)
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
