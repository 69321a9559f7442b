package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure while executing one trigger.
//
// Runtime errors never abort replay. The engine logs them and resolves the
// firing as not executed, the same way every time, so replays stay
// deterministic.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RuleID identifies the trigger.
	RuleID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidPattern indicates a match pattern failed to compile.
	ErrCodeInvalidPattern RuntimeErrorCode = "INVALID_PATTERN"

	// ErrCodeScriptFailed indicates a Lua script raised an error or
	// returned data the IR cannot hold.
	ErrCodeScriptFailed RuntimeErrorCode = "SCRIPT_FAILED"

	// ErrCodeDataOp indicates a run operation could not be applied.
	ErrCodeDataOp RuntimeErrorCode = "DATA_OP_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.RuleID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsScriptError returns true if the error is a script failure.
// Uses errors.As to handle wrapped errors.
func IsScriptError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeScriptFailed
	}
	return false
}

// IsDataOpError returns true if the error is a data operation failure.
func IsDataOpError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDataOp
	}
	return false
}

// NewScriptError creates a RuntimeError for a failed script.
func NewScriptError(ruleID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeScriptFailed,
		Message: err.Error(),
		RuleID:  ruleID,
	}
}

// NewDataOpError creates a RuntimeError for a failed run operation.
func NewDataOpError(ruleID, op, key, msg string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDataOp,
		Message: msg,
		RuleID:  ruleID,
		Details: map[string]string{
			"op":  op,
			"key": key,
		},
	}
}
