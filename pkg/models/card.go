package models

import "time"

// CardState is the learning phase of a card
type CardState int

const (
	StateNew        CardState = 0
	StateLearning   CardState = 1
	StateReview     CardState = 2
	StateRelearning CardState = 3
)

func (s CardState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLearning:
		return "learning"
	case StateReview:
		return "review"
	case StateRelearning:
		return "relearning"
	default:
		return "unknown"
	}
}

// Card is the memory state of one question for one learner
type Card struct {
	ID             int64      `json:"id" db:"id"`
	LearnerID      int64      `json:"learner_id" db:"learner_id"`
	QuestionID     int64      `json:"question_id" db:"question_id"`
	State          CardState  `json:"state" db:"state"`
	Difficulty     float64    `json:"difficulty" db:"difficulty"`         // 1.0 - 10.0
	Stability      float64    `json:"stability" db:"stability"`           // days, >= 0.1
	Retrievability float64    `json:"retrievability" db:"retrievability"` // recomputed at read time
	Step           int        `json:"step" db:"step"`                     // learning/relearning step index
	LapseCount     int        `json:"lapse_count" db:"lapse_count"`
	ReviewCount    int        `json:"review_count" db:"review_count"`
	NextReviewAt   time.Time  `json:"next_review_at" db:"next_review_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at" db:"last_reviewed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// NewCard returns a card that has never been reviewed and is due at now
func NewCard(learnerID, questionID int64, now time.Time) Card {
	return Card{
		LearnerID:      learnerID,
		QuestionID:     questionID,
		State:          StateNew,
		Difficulty:     5.0,
		Stability:      1.0,
		Retrievability: 1.0,
		NextReviewAt:   now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsDue reports whether the card should be reviewed at or before now
func (c Card) IsDue(now time.Time) bool {
	return !c.NextReviewAt.After(now)
}
