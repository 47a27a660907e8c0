package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionType describes what a learning session is drawing from
type SessionType string

const (
	SessionReview    SessionType = "review"
	SessionLearn     SessionType = "learn"
	SessionWeakFocus SessionType = "weak_focus"
	SessionQuiz      SessionType = "quiz"
	SessionMixed     SessionType = "mixed"
)

// Valid reports whether t is a known session type
func (t SessionType) Valid() bool {
	switch t {
	case SessionReview, SessionLearn, SessionWeakFocus, SessionQuiz, SessionMixed:
		return true
	}
	return false
}

// DefaultMaxReviews caps a session when the caller does not choose a limit
const DefaultMaxReviews = 50

// LearningSession groups reviews for reporting and capping
type LearningSession struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	LearnerID        int64       `json:"learner_id" db:"learner_id"`
	SessionType      SessionType `json:"session_type" db:"session_type"`
	TargetRetention  float64     `json:"target_retention" db:"target_retention"`
	MaxReviews       int         `json:"max_reviews" db:"max_reviews"`
	ReviewsCompleted int         `json:"reviews_completed" db:"reviews_completed"`
	CorrectCount     int         `json:"correct_count" db:"correct_count"`
	StartedAt        time.Time   `json:"started_at" db:"started_at"`
	EndedAt          *time.Time  `json:"ended_at" db:"ended_at"`
}

// IsOpen reports whether the session still accepts reviews
func (s LearningSession) IsOpen() bool {
	return s.EndedAt == nil
}

// Remaining is the number of reviews left before the cap is reached
func (s LearningSession) Remaining() int {
	if s.MaxReviews <= 0 {
		return 0
	}
	left := s.MaxReviews - s.ReviewsCompleted
	if left < 0 {
		return 0
	}
	return left
}
