package expand

import (
	"errors"
	"fmt"
)

// ExpansionError represents an invariant failure detected during
// navigation expansion.
//
// All expansion errors are programming/compile-time defects, not user
// data errors: they abort the whole compilation immediately and there
// is no partial or degraded mode.
type ExpansionError struct {
	// Code identifies the error category.
	Code ExpansionErrorCode

	// Op names the operator kind being processed when the error was
	// detected (for example "selectmany").
	Op string

	// Message is a human-readable description.
	Message string

	// Detail carries the offending expression or path rendering, when
	// one exists.
	Detail string
}

// ExpansionErrorCode categorizes expansion errors.
type ExpansionErrorCode string

const (
	// ErrCodeUnsupportedOperator indicates an operator kind outside the
	// recognized set reached a processor.
	ErrCodeUnsupportedOperator ExpansionErrorCode = "UNSUPPORTED_OPERATOR"

	// ErrCodeInvariantViolation indicates an expression shape that the
	// upstream tree builder should have made impossible, such as a
	// flatten collection selector that is not navigation-trackable.
	ErrCodeInvariantViolation ExpansionErrorCode = "INVARIANT_VIOLATION"

	// ErrCodeAmbiguousBinding indicates a member-access path resolved
	// against more than one live source mapping.
	ErrCodeAmbiguousBinding ExpansionErrorCode = "AMBIGUOUS_BINDING"

	// ErrCodeDepthExceeded indicates the recursion budget was hit
	// before the tree bottomed out.
	ErrCodeDepthExceeded ExpansionErrorCode = "DEPTH_EXCEEDED"
)

// Error implements the error interface.
func (e *ExpansionError) Error() string {
	if e.Op != "" && e.Detail != "" {
		return fmt.Sprintf("%s: %s (op=%s, detail=%s)", e.Code, e.Message, e.Op, e.Detail)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errUnsupported(op string) *ExpansionError {
	return &ExpansionError{
		Code:    ErrCodeUnsupportedOperator,
		Op:      op,
		Message: "operator kind is not supported by the expansion pass",
	}
}

func errInvariant(op, message, detail string) *ExpansionError {
	return &ExpansionError{Code: ErrCodeInvariantViolation, Op: op, Message: message, Detail: detail}
}

func errAmbiguous(detail string) *ExpansionError {
	return &ExpansionError{
		Code:    ErrCodeAmbiguousBinding,
		Message: "member-access path resolves against more than one live source mapping",
		Detail:  detail,
	}
}

func errDepth(limit int) *ExpansionError {
	return &ExpansionError{
		Code:    ErrCodeDepthExceeded,
		Message: fmt.Sprintf("operator tree exceeds recursion budget of %d", limit),
	}
}

// IsCode reports whether err is an ExpansionError with the given code.
func IsCode(err error, code ExpansionErrorCode) bool {
	var ee *ExpansionError
	return errors.As(err, &ee) && ee.Code == code
}
