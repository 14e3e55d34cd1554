package domain

import (
	"errors"
	"fmt"

	"github.com/roach88/splitq/internal/ir"
)

// SimplifyErrorCode categorizes simplification failures.
type SimplifyErrorCode string

const (
	// ErrCodeMultivariate means a univariate operation saw several attributes.
	ErrCodeMultivariate SimplifyErrorCode = "multivariate"

	// ErrCodeNoAttributes means a univariate operation saw no attribute.
	ErrCodeNoAttributes SimplifyErrorCode = "no_attributes"

	// ErrCodeMixedTypes means values of different kinds share an attribute.
	ErrCodeMixedTypes SimplifyErrorCode = "mixed_types"

	// ErrCodeMixedDomains means In and range bounds share an attribute.
	ErrCodeMixedDomains SimplifyErrorCode = "mixed_domains"

	// ErrCodeUnsupportedClause means a clause has no domain interpretation.
	ErrCodeUnsupportedClause SimplifyErrorCode = "unsupported_clause"
)

// SimplifyError reports an expression the domain reducer cannot handle.
// These are usage errors; nothing is coerced.
type SimplifyError struct {
	Code    SimplifyErrorCode
	Message string
	Expr    ir.Expression
}

func (e *SimplifyError) Error() string {
	if e.Expr == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Expr)
}

// IsSimplifyError reports whether err is a SimplifyError, optionally
// restricted to the given codes.
func IsSimplifyError(err error, codes ...SimplifyErrorCode) bool {
	var se *SimplifyError
	if !errors.As(err, &se) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if se.Code == c {
			return true
		}
	}
	return false
}

func simplifyErr(code SimplifyErrorCode, e ir.Expression, format string, args ...any) *SimplifyError {
	return &SimplifyError{Code: code, Message: fmt.Sprintf(format, args...), Expr: e}
}
