package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAssessmentNotFound indicates the assessment metadata could not be loaded.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrSessionNotFound is returned when no session exists for the participant.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadySubmitted is returned once a session has reached its terminal state.
	ErrAlreadySubmitted = errors.New("assessment already submitted")
	// ErrCannotVerifyStartTime denies a strict-mode submit when the session has
	// no recorded start time to measure the window against.
	ErrCannotVerifyStartTime = errors.New("cannot verify session start time")
)

// TooEarlyError denies a strict-mode submit attempted before the trailing
// submission window opens. It carries the window so the UI can explain itself.
type TooEarlyError struct {
	WindowMinutes int
	RemainingSec  int64
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("submission allowed only in the last %d minutes (%ds still remaining)", e.WindowMinutes, e.RemainingSec)
}
