package engine

import (
	"errors"
	"fmt"
)

// EngineError represents a failure to load or filter rows.
//
// Engine errors include:
//   - Bad rows: raw data is not a JSON array of objects with scalar fields
//   - Unknown column: a filter references a column the row does not carry
//   - Incomparable: a filter compares a column against a value of another kind
//   - Unsupported expression: a filter holds a node that is not a boolean filter
type EngineError struct {
	// Code identifies the error category.
	Code EngineErrorCode

	// Message is a human-readable description.
	Message string

	// Column names the offending column, if any.
	Column string

	// Err is the underlying cause, if any.
	Err error
}

// EngineErrorCode categorizes engine errors.
type EngineErrorCode string

const (
	ErrCodeBadRows               EngineErrorCode = "bad_rows"
	ErrCodeUnknownColumn         EngineErrorCode = "unknown_column"
	ErrCodeIncomparable          EngineErrorCode = "incomparable"
	ErrCodeUnsupportedExpression EngineErrorCode = "unsupported_expression"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s (column=%s)", e.Code, e.Message, e.Column)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Err }

// IsEngineError reports whether err wraps an EngineError. With codes given,
// the error must also carry one of them.
func IsEngineError(err error, codes ...EngineErrorCode) bool {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if ee.Code == c {
			return true
		}
	}
	return false
}

func newUnknownColumn(column string) *EngineError {
	return &EngineError{
		Code:    ErrCodeUnknownColumn,
		Message: "row has no such column",
		Column:  column,
	}
}
