package models

import "fmt"

// Rating is the learner's self-assessed recall quality
type Rating int

const (
	RatingAgain Rating = 1 // forgotten
	RatingHard  Rating = 2
	RatingGood  Rating = 3
	RatingEasy  Rating = 4
)

// Ratings lists every valid rating in ascending order
var Ratings = []Rating{RatingAgain, RatingHard, RatingGood, RatingEasy}

// Valid reports whether r is one of Again, Hard, Good or Easy
func (r Rating) Valid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

// IsSuccess reports whether the review counts as a successful recall
func (r Rating) IsSuccess() bool {
	return r >= RatingGood
}

func (r Rating) String() string {
	switch r {
	case RatingAgain:
		return "again"
	case RatingHard:
		return "hard"
	case RatingGood:
		return "good"
	case RatingEasy:
		return "easy"
	default:
		return fmt.Sprintf("rating(%d)", int(r))
	}
}
