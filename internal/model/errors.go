package model

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyAnswer rejects a blank answer before any quota check or scoring call.
	ErrEmptyAnswer = errors.New("answer is empty")
	// ErrQuotaExceeded matches every *QuotaExceededError.
	ErrQuotaExceeded = errors.New("block quota exceeded")
	// ErrNotRunning is returned when the exam is not in the running state.
	ErrNotRunning = errors.New("exam is not running")
	// ErrAlreadyRunning is returned when starting an exam that is still running.
	ErrAlreadyRunning = errors.New("exam is already running")
	// ErrUnknownQuestion is returned for question ids outside the loaded paper or subject.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrInvalidSubject matches every *InvalidSubjectError.
	ErrInvalidSubject = errors.New("invalid subject")
	// ErrMalformedResponse marks collaborator replies of an unrecognized shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNetworkFailure marks transport-level failures talking to a collaborator.
	ErrNetworkFailure = errors.New("network failure")
)

// QuotaExceededError reports which block has no free answer slots left.
type QuotaExceededError struct {
	Block Block
	Quota int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("block %s quota exceeded: at most %d answers", e.Block, e.Quota)
}

// Is reports ErrQuotaExceeded as a match.
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// InvalidSubjectError carries the question source's error message.
type InvalidSubjectError struct {
	Message string
}

func (e *InvalidSubjectError) Error() string {
	return "invalid subject: " + e.Message
}

// Is reports ErrInvalidSubject as a match.
func (e *InvalidSubjectError) Is(target error) bool {
	return target == ErrInvalidSubject
}
