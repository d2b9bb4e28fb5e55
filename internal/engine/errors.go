package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a host-side failure detected by the engine.
//
// Runtime errors are distinct from registry rejections. A registry rejection
// (ProofAlreadyClaimed, NotProofOwner, ...) is a journaled outcome; a runtime
// error means the call never reached the journal.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Batch identifies the session, when known.
	Batch string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidCall indicates a malformed request (unknown op, empty caller).
	ErrCodeInvalidCall RuntimeErrorCode = "INVALID_CALL"

	// ErrCodeWeightExceeded indicates a call heavier than a whole block.
	ErrCodeWeightExceeded RuntimeErrorCode = "WEIGHT_EXCEEDED"

	// ErrCodeHalted indicates a previous store commit failed and the
	// in-memory state is ahead of the journal.
	ErrCodeHalted RuntimeErrorCode = "ENGINE_HALTED"

	// ErrCodeStopped indicates the engine no longer accepts requests.
	ErrCodeStopped RuntimeErrorCode = "ENGINE_STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Batch != "" {
		return fmt.Sprintf("%s: %s (batch=%s)", e.Code, e.Message, e.Batch)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsWeightError returns true if the error is a weight exceeded error.
// Matches both RuntimeError with ErrCodeWeightExceeded and WeightExceededError.
func IsWeightError(err error) bool {
	if hasCode(err, ErrCodeWeightExceeded) {
		return true
	}
	var we *WeightExceededError
	return errors.As(err, &we)
}

// IsHaltedError returns true if the engine refused a call because it halted.
func IsHaltedError(err error) bool {
	return hasCode(err, ErrCodeHalted)
}

// IsStoppedError returns true if the engine had already been stopped.
func IsStoppedError(err error) bool {
	return hasCode(err, ErrCodeStopped)
}

// IsInvalidCallError returns true if the request was malformed.
func IsInvalidCallError(err error) bool {
	return hasCode(err, ErrCodeInvalidCall)
}

// NewInvalidCallError creates a RuntimeError for a malformed request.
func NewInvalidCallError(batch, message string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidCall,
		Message: message,
		Batch:   batch,
	}
}

// NewWeightError creates a RuntimeError for a call that cannot fit in a block.
func NewWeightError(batch string, we *WeightExceededError) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeWeightExceeded,
		Message: we.Error(),
		Batch:   batch,
		Details: map[string]string{
			"weight": fmt.Sprintf("%d", we.Weight),
			"limit":  fmt.Sprintf("%d", we.Limit),
		},
	}
}

// NewHaltedError creates a RuntimeError for a halted engine.
func NewHaltedError(batch string, cause error) *RuntimeError {
	re := &RuntimeError{
		Code:    ErrCodeHalted,
		Message: "engine halted after a failed journal commit",
		Batch:   batch,
	}
	if cause != nil {
		re.Details = map[string]string{"cause": cause.Error()}
	}
	return re
}

// NewStoppedError creates a RuntimeError for a stopped engine.
func NewStoppedError(batch string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStopped,
		Message: "engine stopped",
		Batch:   batch,
	}
}
