package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewHistoryEntry is the immutable audit record of one review
type ReviewHistoryEntry struct {
	ID             int64  `json:"id" db:"id"`
	CardID         int64  `json:"card_id" db:"card_id"`
	LearnerID      int64  `json:"learner_id" db:"learner_id"`
	QuestionID     int64  `json:"question_id" db:"question_id"`
	Rating         Rating `json:"rating" db:"rating"`
	ResponseTimeMs int64  `json:"response_time_ms" db:"response_time_ms"`

	DifficultyBefore     float64   `json:"difficulty_before" db:"difficulty_before"`
	StabilityBefore      float64   `json:"stability_before" db:"stability_before"`
	RetrievabilityBefore float64   `json:"retrievability_before" db:"retrievability_before"`
	StateBefore          CardState `json:"state_before" db:"state_before"`

	DifficultyAfter     float64   `json:"difficulty_after" db:"difficulty_after"`
	StabilityAfter      float64   `json:"stability_after" db:"stability_after"`
	RetrievabilityAfter float64   `json:"retrievability_after" db:"retrievability_after"`
	StateAfter          CardState `json:"state_after" db:"state_after"`
	NextIntervalDays    float64   `json:"next_interval_days" db:"next_interval_days"`

	SessionID  uuid.NullUUID `json:"session_id" db:"session_id"`
	ReviewedAt time.Time     `json:"reviewed_at" db:"reviewed_at"`
}
