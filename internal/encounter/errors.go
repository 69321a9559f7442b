package encounter

import (
	"errors"
	"fmt"
)

// UnreachableCode categorizes invariant violations.
type UnreachableCode string

const (
	// ErrCodeLineOutOfRange indicates a cursor advanced past the stored lines.
	ErrCodeLineOutOfRange UnreachableCode = "LINE_OUT_OF_RANGE"

	// ErrCodeMissingJob indicates an eligible member has no job when one is required.
	ErrCodeMissingJob UnreachableCode = "MISSING_JOB"

	// ErrCodeMissingPerspective indicates a record was reported for an unknown member.
	ErrCodeMissingPerspective UnreachableCode = "MISSING_PERSPECTIVE"

	// ErrCodeUnorderedLines indicates lines were supplied out of timestamp order.
	ErrCodeUnorderedLines UnreachableCode = "UNORDERED_LINES"
)

// UnreachableError reports a state the caller's data preconditions forbid.
//
// It is fatal for the current analysis unit and is never retried: replay is
// deterministic over immutable data, so a retry reproduces the same failure.
type UnreachableError struct {
	Code    UnreachableCode
	Message string
	ActorID string
	Index   int
}

// Error implements the error interface.
func (e *UnreachableError) Error() string {
	if e.ActorID != "" {
		return fmt.Sprintf("unreachable state %s: %s (actor=%s, index=%d)", e.Code, e.Message, e.ActorID, e.Index)
	}
	return fmt.Sprintf("unreachable state %s: %s (index=%d)", e.Code, e.Message, e.Index)
}

// IsUnreachable reports whether err wraps an UnreachableError.
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}

// NewLineOutOfRange creates the error for an out-of-bounds line read.
func NewLineOutOfRange(index, length int) *UnreachableError {
	return &UnreachableError{
		Code:    ErrCodeLineOutOfRange,
		Message: fmt.Sprintf("line index outside [0, %d)", length),
		Index:   index,
	}
}

// NewMissingJob creates the error for an eligible member without a job.
func NewMissingJob(actorID string, index int) *UnreachableError {
	return &UnreachableError{
		Code:    ErrCodeMissingJob,
		Message: "member has no job",
		ActorID: actorID,
		Index:   index,
	}
}

// NewMissingPerspective creates the error for a record without an owner.
func NewMissingPerspective(actorID string) *UnreachableError {
	return &UnreachableError{
		Code:    ErrCodeMissingPerspective,
		Message: "no perspective for member",
		ActorID: actorID,
		Index:   -1,
	}
}
