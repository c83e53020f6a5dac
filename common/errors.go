package common

import (
	"fmt"

	"github.com/pingcap/errors"
)

type GoDBErrorCode int

const (
	// PlanningInvariantViolation indicates that a declarative node reached execution
	// without being replaced by the planner, e.g. an aggregate expression was
	// evaluated directly instead of through an accumulator.
	PlanningInvariantViolation GoDBErrorCode = iota
	// AccumulatorTypeMismatch is returned when two accumulators of different kinds
	// or result types are merged. The executor paired the wrong partial results.
	AccumulatorTypeMismatch
	// EmptyReductionError is returned when a distinct reduction has no element to
	// start from.
	EmptyReductionError
	// TypeMismatchError indicates operands whose types cannot be combined.
	TypeMismatchError
	// DistinctLimitExceededError is returned by a bounded distinct set that grew
	// past its configured limit.
	DistinctLimitExceededError
	// CorruptStateError indicates a serialized accumulator state that cannot be decoded.
	CorruptStateError
	// UnresolvedAttributeError indicates a named reference that does not resolve to
	// exactly one attribute.
	UnresolvedAttributeError
	// NumericOverflowError indicates an integer result outside the int64 range.
	NumericOverflowError
)

func (ec GoDBErrorCode) String() string {
	switch ec {
	case PlanningInvariantViolation:
		return "PlanningInvariantViolation"
	case AccumulatorTypeMismatch:
		return "AccumulatorTypeMismatch"
	case EmptyReductionError:
		return "EmptyReductionError"
	case TypeMismatchError:
		return "TypeMismatchError"
	case DistinctLimitExceededError:
		return "DistinctLimitExceededError"
	case CorruptStateError:
		return "CorruptStateError"
	case UnresolvedAttributeError:
		return "UnresolvedAttributeError"
	case NumericOverflowError:
		return "NumericOverflowError"
	}
	return "unknown"
}

// GoDBError is the custom error type for the engine.
// It wraps a specific GoDBErrorCode with a detailed message.
//
// None of the codes are retryable: every one of them describes a programming or
// consistency bug, and running the same inputs again reproduces it. Callers abort
// the query and surface the error as is.
type GoDBError struct {
	Code      GoDBErrorCode
	ErrString string
}

func (e GoDBError) Error() string {
	return fmt.Sprintf("err: %s; msg: %s", e.Code.String(), e.ErrString)
}

// NewError builds a GoDBError with a formatted message.
func NewError(code GoDBErrorCode, format string, args ...any) GoDBError {
	return GoDBError{Code: code, ErrString: fmt.Sprintf(format, args...)}
}

// ErrorCode extracts the GoDBErrorCode from err, looking through any
// errors.Trace/Annotate wrapping.
func ErrorCode(err error) (GoDBErrorCode, bool) {
	if err == nil {
		return 0, false
	}
	switch e := errors.Cause(err).(type) {
	case GoDBError:
		return e.Code, true
	case *GoDBError:
		return e.Code, true
	}
	return 0, false
}

// IsErrorCode reports whether err is (or wraps) a GoDBError with the given code.
func IsErrorCode(err error, code GoDBErrorCode) bool {
	c, ok := ErrorCode(err)
	return ok && c == code
}
