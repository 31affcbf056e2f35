package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizInvalid marks a quiz that cannot be taken: no questions,
	// no time limit, or a choice question without exactly one correct choice.
	ErrQuizInvalid = errors.New("quiz configuration invalid")
	// ErrQuizNotOpen is returned when an attempt starts before the window opens.
	ErrQuizNotOpen = errors.New("quiz not open yet")
	// ErrQuizClosed is returned when an attempt starts after the window ends.
	ErrQuizClosed = errors.New("quiz closed")
	// ErrAttemptNotFound is returned when an attempt id does not resolve.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptSubmitted is returned for mutations after submission.
	ErrAttemptSubmitted = errors.New("attempt already submitted")
	// ErrAttemptNotSubmitted is returned when results are requested early.
	ErrAttemptNotSubmitted = errors.New("attempt not submitted yet")
)
