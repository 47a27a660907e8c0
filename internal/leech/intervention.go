package leech

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/example/examsrs/internal/logger"
	"github.com/example/examsrs/internal/metrics"
	sr "github.com/example/examsrs/internal/spaced_repetition"
	"github.com/example/examsrs/pkg/models"
)

// TimeInvestment is the rough learner effort an intervention costs
type TimeInvestment string

const (
	InvestmentLow    TimeInvestment = "low"
	InvestmentMedium TimeInvestment = "medium"
	InvestmentHigh   TimeInvestment = "high"
)

// Strategy is a recommended intervention. Lower Priority comes first.
type Strategy struct {
	Kind                   models.InterventionKind `json:"kind"`
	Priority               int                     `json:"priority"`
	Description            string                  `json:"description"`
	EstimatedEffectiveness float64                 `json:"estimated_effectiveness"`
	TimeInvestment         TimeInvestment          `json:"time_investment"`
	// Historical share of leeches that recovered after this intervention
	SuccessRate float64 `json:"success_rate"`
}

// intervention couples a strategy with the condition that recommends it and
// the effect applying it has on the card
type intervention struct {
	Strategy
	gate func(e *Engine, a Analysis) bool
	// effect mutates the record and card; it reports whether the card changed
	effect func(e *Engine, rec *models.LeechRecord, card *models.Card, now time.Time) bool
}

func noCardChange(*Engine, *models.LeechRecord, *models.Card, time.Time) bool { return false }

var interventions = map[models.InterventionKind]intervention{
	models.InterventionAdditionalPractice: {
		Strategy: Strategy{
			Kind:                   models.InterventionAdditionalPractice,
			Priority:               1,
			Description:            "Increase review frequency with shorter intervals",
			EstimatedEffectiveness: 0.7,
			TimeInvestment:         InvestmentMedium,
			SuccessRate:            0.65,
		},
		gate: func(_ *Engine, a Analysis) bool { return a.SuccessRate < 0.3 },
		effect: func(_ *Engine, _ *models.LeechRecord, card *models.Card, now time.Time) bool {
			card.Stability = math.Max(sr.MinStability, card.Stability*0.5)
			card.NextReviewAt = now
			return true
		},
	},
	models.InterventionConceptBreakdown: {
		Strategy: Strategy{
			Kind:                   models.InterventionConceptBreakdown,
			Priority:               2,
			Description:            "Break the concept into smaller, manageable parts",
			EstimatedEffectiveness: 0.8,
			TimeInvestment:         InvestmentHigh,
			SuccessRate:            0.75,
		},
		gate: func(_ *Engine, a Analysis) bool {
			return a.Severity == models.SeverityModerate || a.Severity == models.SeveritySevere
		},
		effect: noCardChange,
	},
	models.InterventionMnemonicSuggestion: {
		Strategy: Strategy{
			Kind:                   models.InterventionMnemonicSuggestion,
			Priority:               3,
			Description:            "Create a memory aid or mnemonic",
			EstimatedEffectiveness: 0.6,
			TimeInvestment:         InvestmentLow,
			SuccessRate:            0.55,
		},
		gate:   func(_ *Engine, a Analysis) bool { return a.AverageResponseTimeMs > 10000 },
		effect: noCardChange,
	},
	models.InterventionExpertExplanation: {
		Strategy: Strategy{
			Kind:                   models.InterventionExpertExplanation,
			Priority:               2,
			Description:            "Provide a detailed expert explanation with context",
			EstimatedEffectiveness: 0.75,
			TimeInvestment:         InvestmentMedium,
			SuccessRate:            0.70,
		},
		gate:   func(e *Engine, a Analysis) bool { return e.complexTopics[a.Question.Category] },
		effect: noCardChange,
	},
	models.InterventionSuspendTemporarily: {
		Strategy: Strategy{
			Kind:                   models.InterventionSuspendTemporarily,
			Priority:               5,
			Description:            "Suspend and revisit after related concepts are mastered",
			EstimatedEffectiveness: 0.5,
			TimeInvestment:         InvestmentLow,
			SuccessRate:            0.60,
		},
		gate: func(_ *Engine, a Analysis) bool {
			return a.Severity == models.SeveritySevere && a.SuccessRate < 0.2
		},
		effect: func(e *Engine, rec *models.LeechRecord, card *models.Card, now time.Time) bool {
			rec.IsSuspended = true
			card.NextReviewAt = now.Add(e.suspendFor)
			return true
		},
	},
}

// EngineConfig tunes the intervention engine
type EngineConfig struct {
	// Question categories that get an expert explanation
	ComplexTopics []string
	// How far a suspension pushes the card's next review
	SuspendFor time.Duration
}

// DefaultEngineConfig returns the stock topics and a 90 day suspension
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ComplexTopics: []string{"Politik", "Geschichte"},
		SuspendFor:    90 * 24 * time.Hour,
	}
}

// Engine recommends and applies leech interventions
type Engine struct {
	store         Store
	complexTopics map[string]bool
	suspendFor    time.Duration
	log           *logger.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewEngine creates an engine; zero config fields take their defaults
func NewEngine(store Store, cfg EngineConfig, log *logger.Logger, m *metrics.Metrics) *Engine {
	def := DefaultEngineConfig()
	if cfg.ComplexTopics == nil {
		cfg.ComplexTopics = def.ComplexTopics
	}
	if cfg.SuspendFor <= 0 {
		cfg.SuspendFor = def.SuspendFor
	}
	topics := make(map[string]bool, len(cfg.ComplexTopics))
	for _, t := range cfg.ComplexTopics {
		topics[t] = true
	}
	return &Engine{
		store:         store,
		complexTopics: topics,
		suspendFor:    cfg.SuspendFor,
		log:           log,
		metrics:       m,
		now:           time.Now,
	}
}

// Recommend returns every strategy whose condition holds for the analysis,
// highest priority first. Equal priorities keep the order of
// models.InterventionKinds.
func (e *Engine) Recommend(a Analysis) []Strategy {
	var out []Strategy
	for _, kind := range models.InterventionKinds {
		iv := interventions[kind]
		if iv.gate(e, a) {
			out = append(out, iv.Strategy)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Apply records the intervention on the card's active leech record and
// applies its effect to the card, both in one store transaction.
// It fails with ErrLeechNotFound when the card has no active record.
func (e *Engine) Apply(ctx context.Context, cardID int64, kind models.InterventionKind, notes string) (models.LeechRecord, error) {
	iv, ok := interventions[kind]
	if !ok {
		return models.LeechRecord{}, fmt.Errorf("%w: %q", models.ErrUnknownIntervention, kind)
	}

	rec, err := e.activeRecord(ctx, cardID)
	if err != nil {
		return models.LeechRecord{}, err
	}
	card, err := e.store.GetCard(ctx, cardID)
	if err != nil {
		return models.LeechRecord{}, err
	}

	now := e.now()
	rec.ActionTaken = &kind
	rec.ActionAt = &now
	rec.UserNotes = notes

	var changed *models.Card
	if iv.effect(e, &rec, &card, now) {
		card.UpdatedAt = now
		changed = &card
	}
	if err := e.store.CommitIntervention(ctx, rec, changed); err != nil {
		return models.LeechRecord{}, err
	}

	e.metrics.RecordIntervention(string(kind))
	e.log.Info("intervention applied",
		"card_id", cardID,
		"kind", string(kind),
		"suspended", rec.IsSuspended,
		"next_review_at", card.NextReviewAt,
	)
	return rec, nil
}

// Resolve marks the card's leech record resolved and lifts any suspension,
// making the card due immediately. With resetLapses the card's lapse count
// starts over from zero.
func (e *Engine) Resolve(ctx context.Context, cardID int64, resetLapses bool) (models.LeechRecord, error) {
	rec, err := e.activeRecord(ctx, cardID)
	if err != nil {
		return models.LeechRecord{}, err
	}
	card, err := e.store.GetCard(ctx, cardID)
	if err != nil {
		return models.LeechRecord{}, err
	}

	now := e.now()
	rec.ResolvedAt = &now

	var changed *models.Card
	if rec.IsSuspended {
		rec.IsSuspended = false
		card.NextReviewAt = now
		changed = &card
	}
	if resetLapses && card.LapseCount != 0 {
		card.LapseCount = 0
		changed = &card
	}
	if changed != nil {
		card.UpdatedAt = now
	}

	if err := e.store.CommitIntervention(ctx, rec, changed); err != nil {
		return models.LeechRecord{}, err
	}

	e.metrics.RecordResolution()
	e.log.Info("leech resolved", "card_id", cardID, "reset_lapses", resetLapses)
	return rec, nil
}

func (e *Engine) activeRecord(ctx context.Context, cardID int64) (models.LeechRecord, error) {
	rec, err := e.store.GetLeechRecord(ctx, cardID)
	if err != nil {
		return models.LeechRecord{}, err
	}
	if !rec.IsActive() {
		return models.LeechRecord{}, fmt.Errorf("card %d has only a resolved record: %w", cardID, models.ErrLeechNotFound)
	}
	return rec, nil
}
