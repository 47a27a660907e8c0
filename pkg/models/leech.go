package models

import "time"

// LeechSeverity classifies how badly a card resists learning
type LeechSeverity string

const (
	SeverityMild     LeechSeverity = "mild"
	SeverityModerate LeechSeverity = "moderate"
	SeveritySevere   LeechSeverity = "severe"
)

// InterventionKind is one of the remediation actions for a leech
type InterventionKind string

const (
	InterventionAdditionalPractice InterventionKind = "additional_practice"
	InterventionConceptBreakdown   InterventionKind = "concept_breakdown"
	InterventionMnemonicSuggestion InterventionKind = "mnemonic_suggestion"
	InterventionExpertExplanation  InterventionKind = "expert_explanation"
	InterventionSuspendTemporarily InterventionKind = "suspend_temporarily"
)

// InterventionKinds lists the closed set of intervention kinds
var InterventionKinds = []InterventionKind{
	InterventionAdditionalPractice,
	InterventionConceptBreakdown,
	InterventionMnemonicSuggestion,
	InterventionExpertExplanation,
	InterventionSuspendTemporarily,
}

// Valid reports whether k belongs to the closed set
func (k InterventionKind) Valid() bool {
	for _, known := range InterventionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// LeechRecord tracks a card that has been flagged as a leech.
// There is at most one record per card; it is active while ResolvedAt is nil.
type LeechRecord struct {
	CardID                int64             `json:"card_id" db:"card_id"`
	LearnerID             int64             `json:"learner_id" db:"learner_id"`
	QuestionID            int64             `json:"question_id" db:"question_id"`
	LapseCountAtDetection int               `json:"lapse_count_at_detection" db:"lapse_count_at_detection"`
	Threshold             int               `json:"threshold" db:"threshold"`
	Severity              LeechSeverity     `json:"severity" db:"severity"`
	DetectedAt            time.Time         `json:"detected_at" db:"detected_at"`
	ActionTaken           *InterventionKind `json:"action_taken" db:"action_taken"`
	ActionAt              *time.Time        `json:"action_at" db:"action_at"`
	IsSuspended           bool              `json:"is_suspended" db:"is_suspended"`
	UserNotes             string            `json:"user_notes" db:"user_notes"`
	ResolvedAt            *time.Time        `json:"resolved_at" db:"resolved_at"`
}

// IsActive reports whether the record still flags its card
func (r LeechRecord) IsActive() bool {
	return r.ResolvedAt == nil
}

// DefaultLeechThreshold is the lapse count at which a card becomes a leech
const DefaultLeechThreshold = 8
