package query

import (
	"errors"
	"fmt"

	"github.com/roach88/splitq/internal/ir"
)

// DecompositionErrorCode categorizes decomposition failures.
type DecompositionErrorCode string

const (
	// ErrCodeShapeMismatch means the two filters have no common shape, such
	// as a conjunction against a disjunction or incomparable value kinds.
	ErrCodeShapeMismatch DecompositionErrorCode = "shape_mismatch"

	// ErrCodeAttributeMismatch means two relations constrain different
	// attributes.
	ErrCodeAttributeMismatch DecompositionErrorCode = "attribute_mismatch"

	// ErrCodeTableMismatch means query and source read different tables.
	ErrCodeTableMismatch DecompositionErrorCode = "table_mismatch"

	// ErrCodeColumnProjection means the source lacks columns the query or
	// its refine filter needs.
	ErrCodeColumnProjection DecompositionErrorCode = "column_projection"
)

// DecompositionError reports a source that cannot serve a query. It is not
// recoverable for that source.
type DecompositionError struct {
	Code    DecompositionErrorCode
	Message string

	// Query and Source are the filters being compared, when known.
	Query  ir.Expression
	Source ir.Expression
}

func (e *DecompositionError) Error() string {
	if e.Query == nil || e.Source == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (query=%s, source=%s)", e.Code, e.Message, e.Query, e.Source)
}

// IsDecompositionError reports whether err is a DecompositionError,
// optionally restricted to the given codes.
func IsDecompositionError(err error, codes ...DecompositionErrorCode) bool {
	var de *DecompositionError
	if !errors.As(err, &de) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if de.Code == c {
			return true
		}
	}
	return false
}

func decompositionErr(code DecompositionErrorCode, q, s ir.Expression, format string, args ...any) *DecompositionError {
	return &DecompositionError{Code: code, Message: fmt.Sprintf(format, args...), Query: q, Source: s}
}

// ParameterError reports a filter that cannot be mapped onto the declared
// remote parameters.
type ParameterError struct {
	Attribute string
	Message   string
}

func (e *ParameterError) Error() string {
	if e.Attribute == "" {
		return "parameters: " + e.Message
	}
	return fmt.Sprintf("parameter %s: %s", e.Attribute, e.Message)
}
