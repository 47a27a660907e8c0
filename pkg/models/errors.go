package models

import (
	"errors"
	"fmt"
)

var (
	ErrCardNotFound        = errors.New("card not found")
	ErrInvalidRating       = errors.New("invalid rating")
	ErrInvalidParameters   = errors.New("invalid algorithm parameters")
	ErrLeechNotFound       = errors.New("leech record not found")
	ErrSessionNotFound     = errors.New("learning session not found")
	ErrSessionClosed       = errors.New("learning session is closed")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrUnknownIntervention = errors.New("unknown intervention kind")
	ErrPersistence         = errors.New("persistence failure")
)

// PersistenceError wraps a storage failure. It matches ErrPersistence with errors.Is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
