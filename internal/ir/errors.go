package ir

import (
	"errors"
	"fmt"
)

// TypeErrorCode identifies why a value was rejected at construction.
type TypeErrorCode string

const (
	// CodeUnsupportedValue means the Go type has no ir.Value representation.
	CodeUnsupportedValue TypeErrorCode = "unsupported_value"

	// CodeNonOrderable means the value exists but cannot be totally ordered
	// or hashed (NaN, infinities, nil).
	CodeNonOrderable TypeErrorCode = "non_orderable_value"
)

// TypeError is returned when a relation or membership is built from a value
// that is not an ordered, hashable scalar.
type TypeError struct {
	Code  TypeErrorCode
	Value any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %T(%v)", e.Code, e.Value, e.Value)
}

// IsTypeError reports whether err is a construction-time TypeError.
func IsTypeError(err error) bool {
	var te *TypeError
	return errors.As(err, &te)
}

// ErrEmptyCompound is returned when an And or Or is built with no clauses.
// A zero-child conjunction or disjunction is not a legal expression.
var ErrEmptyCompound = errors.New("and/or requires at least one clause")

// ErrNilExpression is returned when a nil Expression is passed where a
// clause is required.
var ErrNilExpression = errors.New("nil expression")

// DecodeError reports a malformed serialized expression.
type DecodeError struct {
	Path    string
	Message string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return "decode: " + e.Message
	}
	return fmt.Sprintf("decode %s: %s", e.Path, e.Message)
}
